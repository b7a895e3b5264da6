// Package genome parses consumer direct-to-consumer genotype files:
// tab-separated rsid / chromosome / position / genotype rows with
// '#'-prefixed comments. Only autosomes 1-22 are kept.
package genome

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/captainzonks/GeneGnome/models/constants/chromosome"
)

// Record is one consumer genotype row.
type Record struct {
	Rsid       string
	Chromosome uint8
	Position   uint64
	// Genotype is two bases from {A,C,G,T}, or "--" for a no-call.
	Genotype string
}

// ParseError reports a malformed data line with its 1-based line number.
type ParseError struct {
	Line   int
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed genotype file at line %d: %s", e.Line, e.Detail)
}

// IndexedCall is the value side of a per-chromosome position index.
type IndexedCall struct {
	Rsid     string
	Genotype string
}

// File holds the parsed genotype file grouped by chromosome, each
// chromosome's records in file order.
type File struct {
	ByChromosome map[uint8][]Record
	TotalRecords int
	SkippedLines int // non-autosome and no-op lines
}

func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func Read(r io.Reader) (*File, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	out := &File{ByChromosome: make(map[uint8][]Record)}
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			return nil, &ParseError{
				Line:   lineNumber,
				Detail: fmt.Sprintf("expected 4 tab-separated fields, found %d", len(fields)),
			}
		}

		rsid := strings.TrimSpace(fields[0])
		chromText := strings.TrimSpace(fields[1])
		positionText := strings.TrimSpace(fields[2])
		genotype := strings.TrimSpace(fields[3])

		position, posErr := strconv.ParseUint(positionText, 10, 64)
		if posErr != nil {
			return nil, &ParseError{
				Line:   lineNumber,
				Detail: fmt.Sprintf("non-numeric position %q", positionText),
			}
		}

		// X, Y, MT and anything else outside 1-22 is ignored
		chrom := chromosome.CastToAutosome(chromText)
		if chrom == 0 {
			out.SkippedLines++
			continue
		}

		out.ByChromosome[chrom] = append(out.ByChromosome[chrom], Record{
			Rsid:       rsid,
			Chromosome: chrom,
			Position:   position,
			Genotype:   genotype,
		})
		out.TotalRecords++
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// ByPosition builds the merge engine's Phase-A index for one
// chromosome: position → (rsid, genotype). No-calls ("--") are
// excluded; they never override an imputed dosage.
func (f *File) ByPosition(chrom uint8) map[uint64]IndexedCall {
	records := f.ByChromosome[chrom]
	index := make(map[uint64]IndexedCall, len(records))
	for _, record := range records {
		if record.Genotype == "--" {
			continue
		}
		index[record.Position] = IndexedCall{Rsid: record.Rsid, Genotype: record.Genotype}
	}
	return index
}
