package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHomozygousReference(t *testing.T) {
	for _, tc := range [][3]string{
		{"TT", "T", "C"},
		{"AA", "A", "G"},
		{"GG", "G", "A"},
		{"CC", "C", "T"},
	} {
		res := Resolve(tc[0], tc[1], tc[2])
		assert.Equal(t, OK, res.Kind)
		assert.Equal(t, 0.0, res.Dosage)
		assert.Equal(t, "0|0", res.Phased)
	}
}

func TestResolveHeterozygous(t *testing.T) {
	// order of letters does not matter
	for _, tc := range [][3]string{
		{"TC", "T", "C"},
		{"CT", "T", "C"},
		{"AG", "A", "G"},
		{"GA", "A", "G"},
	} {
		res := Resolve(tc[0], tc[1], tc[2])
		assert.Equal(t, OK, res.Kind)
		assert.Equal(t, 1.0, res.Dosage)
		assert.Equal(t, "0|1", res.Phased)
	}
}

func TestResolveHomozygousAlternate(t *testing.T) {
	for _, tc := range [][3]string{
		{"CC", "T", "C"},
		{"GG", "A", "G"},
		{"AA", "T", "A"},
		{"TT", "C", "T"},
	} {
		res := Resolve(tc[0], tc[1], tc[2])
		assert.Equal(t, OK, res.Kind)
		assert.Equal(t, 2.0, res.Dosage)
		assert.Equal(t, "1|1", res.Phased)
	}
}

func TestResolveMissing(t *testing.T) {
	assert.Equal(t, MissingGenotype, Resolve("--", "T", "C").Kind)
	assert.Equal(t, MissingGenotype, Resolve("", "T", "C").Kind)
}

func TestResolveInvalidLength(t *testing.T) {
	assert.Equal(t, InvalidGenotype, Resolve("T", "T", "C").Kind)
	assert.Equal(t, InvalidGenotype, Resolve("TTC", "T", "C").Kind)
}

func TestResolveMismatch(t *testing.T) {
	assert.Equal(t, AllelesMismatch, Resolve("TG", "T", "C").Kind)
	assert.Equal(t, AllelesMismatch, Resolve("AG", "T", "C").Kind)
}

func TestResolveRejectsIndels(t *testing.T) {
	// An insertion (alt "AG") must not claim a matching letter pair:
	// the SNP at the same position owns that consumer call.
	assert.Equal(t, AllelesMismatch, Resolve("AA", "A", "AG").Kind)
	assert.Equal(t, AllelesMismatch, Resolve("AA", "AG", "A").Kind)
	assert.Equal(t, AllelesMismatch, Resolve("AG", "A", "AG").Kind)
	// non-ACGT bases are rejected too
	assert.Equal(t, AllelesMismatch, Resolve("AA", "N", "A").Kind)
}

func TestFlipStrand(t *testing.T) {
	assert.Equal(t, "TA", FlipStrand("AT"))
	assert.Equal(t, "GC", FlipStrand("CG"))
	assert.Equal(t, "TG", FlipStrand("AC"))
	assert.Equal(t, "--", FlipStrand("--"))
}

func TestResolveWithFlip(t *testing.T) {
	res := ResolveWithFlip("AT", "T", "A")
	assert.Equal(t, OK, res.Kind)
	assert.Equal(t, 1.0, res.Dosage)
}

func TestPhasedFromDosage(t *testing.T) {
	assert.Equal(t, "0|0", PhasedFromDosage(0.02))
	assert.Equal(t, "0|1", PhasedFromDosage(1.17))
	assert.Equal(t, "1|1", PhasedFromDosage(1.93))
}

func TestDosageFromPhased(t *testing.T) {
	assert.Equal(t, 0.0, DosageFromPhased("0|0"))
	assert.Equal(t, 1.0, DosageFromPhased("0|1"))
	assert.Equal(t, 1.0, DosageFromPhased("1|0"))
	assert.Equal(t, 2.0, DosageFromPhased("1|1"))
	assert.Equal(t, 0.0, DosageFromPhased("./."))
	assert.Equal(t, 0.0, DosageFromPhased("garbage"))
}
