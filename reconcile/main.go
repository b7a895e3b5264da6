// Package reconcile converts a two-letter consumer genotype into an
// alternate-allele dosage for a given (ref, alt) context.
package reconcile

// Kind classifies the outcome of a reconciliation. The merge hot path
// branches on this instead of allocating error values: mismatches are
// the common case, not the exceptional one.
type Kind uint8

const (
	OK Kind = iota
	// AllelesMismatch: ref or alt is not a single A/C/G/T base (indel
	// or multi-base site), or the genotype letters are not a subset of
	// {ref, alt}.
	AllelesMismatch
	// InvalidGenotype: the genotype is not exactly two characters.
	InvalidGenotype
	// MissingGenotype: the "--" no-call sentinel.
	MissingGenotype
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case AllelesMismatch:
		return "alleles_mismatch"
	case InvalidGenotype:
		return "invalid_genotype"
	case MissingGenotype:
		return "missing_genotype"
	}
	return "unknown"
}

// Result carries the dosage and phased representation on OK.
type Result struct {
	Kind   Kind
	Dosage float64 // 0, 1 or 2
	Phased string  // "0|0", "0|1" or "1|1"
}

func isBase(s string) bool {
	if len(s) != 1 {
		return false
	}
	switch s[0] {
	case 'A', 'C', 'G', 'T':
		return true
	}
	return false
}

// Resolve maps genotype "XY" against ref "R" / alt "A":
//
//	XY == RR       → dosage 0, "0|0"
//	XY ∈ {RA, AR}  → dosage 1, "0|1"
//	XY == AA       → dosage 2, "1|1"
//
// Indels must be rejected even when the two letters coincidentally
// match: a SNP and an insertion at the same position would otherwise
// both claim the same consumer call and double-count it.
// The heterozygous call is emitted "0|1"; consumer arrays are
// unphased, so the haplotype of origin is arbitrary.
func Resolve(genotype, ref, alt string) Result {
	if genotype == "--" || genotype == "" {
		return Result{Kind: MissingGenotype}
	}
	if len(genotype) != 2 {
		return Result{Kind: InvalidGenotype}
	}
	if !isBase(ref) || !isBase(alt) {
		return Result{Kind: AllelesMismatch}
	}

	altCount := 0
	for i := 0; i < 2; i++ {
		switch genotype[i] {
		case alt[0]:
			altCount++
		case ref[0]:
			// reference copy, contributes nothing
		default:
			return Result{Kind: AllelesMismatch}
		}
	}

	switch altCount {
	case 0:
		return Result{Kind: OK, Dosage: 0, Phased: "0|0"}
	case 1:
		return Result{Kind: OK, Dosage: 1, Phased: "0|1"}
	default:
		return Result{Kind: OK, Dosage: 2, Phased: "1|1"}
	}
}

// FlipStrand returns the reverse-complement of a genotype. Kept for
// array vendors that report the opposite strand; the merge engine
// itself only calls Resolve directly.
func FlipStrand(genotype string) string {
	flipped := make([]byte, len(genotype))
	for i := 0; i < len(genotype); i++ {
		switch genotype[i] {
		case 'A':
			flipped[i] = 'T'
		case 'T':
			flipped[i] = 'A'
		case 'C':
			flipped[i] = 'G'
		case 'G':
			flipped[i] = 'C'
		default:
			flipped[i] = genotype[i]
		}
	}
	return string(flipped)
}

// ResolveWithFlip retries a mismatch on the flipped strand.
func ResolveWithFlip(genotype, ref, alt string) Result {
	res := Resolve(genotype, ref, alt)
	if res.Kind != AllelesMismatch {
		return res
	}
	return Resolve(FlipStrand(genotype), ref, alt)
}

// PhasedFromDosage renders an imputed dosage as the nearest unphased
// integer pair, used when no directly-genotyped call exists.
func PhasedFromDosage(dosage float64) string {
	switch {
	case dosage < 0.5:
		return "0|0"
	case dosage < 1.5:
		return "0|1"
	default:
		return "1|1"
	}
}

// DosageFromPhased sums the haplotype indicators of a phased call
// such as "0|1". Unparseable calls count as zero.
func DosageFromPhased(genotype string) float64 {
	if len(genotype) != 3 {
		return 0
	}
	sep := genotype[1]
	if sep != '|' && sep != '/' {
		return 0
	}
	var dosage float64
	for _, idx := range []byte{genotype[0], genotype[2]} {
		if idx == '1' {
			dosage++
		}
	}
	return dosage
}
