// Package imputed streams records out of the block-gzipped VCF-like
// files an imputation service returns, one file per autosome.
package imputed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/pgzip"

	"github.com/captainzonks/GeneGnome/models/constants/chromosome"
)

// ErrUnsupportedCompression indicates the file could not be opened as
// BGZF or as (multi-member) gzip. A decoder that stops after the first
// gzip member silently truncates these files, so both paths used here
// are explicitly multi-member.
var ErrUnsupportedCompression = errors.New("imputed: unsupported compression (expected block-gzip)")

// Variant is one streamed record.
type Variant struct {
	Chromosome uint8
	Position   uint64
	Rsid       string // empty when the ID column is "."
	RefAllele  string
	AltAllele  string
	Dosage     float64
	// Quality is the variant-level R²; NaN when INFO carries no R2 key.
	Quality float64
}

// Indel reports whether either allele is longer than one base. Such
// records are yielded but the merge engine drops them.
func (v *Variant) Indel() bool {
	return len(v.RefAllele) != 1 || len(v.AltAllele) != 1
}

// ParseError reports a malformed record with its chromosome and
// 1-based line number within the decompressed stream.
type ParseError struct {
	Chromosome uint8
	Line       int
	Detail     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed imputed file (chr%d line %d): %s", e.Chromosome, e.Line, e.Detail)
}

// Reader is a finite, ordered, non-restartable stream of Variants.
type Reader struct {
	file    *os.File
	decoder io.ReadCloser
	scanner *bufio.Scanner

	chrom     uint8
	line      int
	sawHeader bool
	done      bool
}

// Open opens one per-chromosome file. It prefers the BGZF reader and
// falls back to a multistream gzip decoder for plainly-gzipped input.
func Open(path string, chrom uint8) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var decoder io.ReadCloser
	if bz, bzErr := bgzf.NewReader(f, 0); bzErr == nil {
		decoder = bz
	} else {
		if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
			f.Close()
			return nil, seekErr
		}
		gz, gzErr := pgzip.NewReader(f)
		if gzErr != nil {
			f.Close()
			return nil, ErrUnsupportedCompression
		}
		gz.Multistream(true)
		decoder = gz
	}

	scanner := bufio.NewScanner(decoder)
	scanner.Buffer(make([]byte, 0, 256*1024), 4*1024*1024)

	return &Reader{file: f, decoder: decoder, scanner: scanner, chrom: chrom}, nil
}

func (r *Reader) Close() error {
	r.done = true
	r.decoder.Close()
	return r.file.Close()
}

// Next returns the next record, or io.EOF when the stream is drained.
func (r *Reader) Next() (*Variant, error) {
	if r.done {
		return nil, io.EOF
	}

	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Text()

		if strings.HasPrefix(line, "##") {
			continue
		}
		if strings.HasPrefix(line, "#CHROM") {
			if err := r.checkColumnHeader(line); err != nil {
				return nil, err
			}
			r.sawHeader = true
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !r.sawHeader {
			// data before the column header: whatever decompressed,
			// it is not the VCF stream we were promised
			return nil, ErrUnsupportedCompression
		}

		return r.parseRecord(line)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if !r.sawHeader {
		// decompressed cleanly but never met a VCF header: the input
		// is not the stream we were promised
		return nil, ErrUnsupportedCompression
	}
	r.done = true
	return nil, io.EOF
}

func (r *Reader) checkColumnHeader(line string) error {
	fields := strings.Split(line, "\t")
	// CHROM POS ID REF ALT QUAL FILTER INFO FORMAT + exactly 1 sample
	if len(fields) != 10 {
		return &ParseError{
			Chromosome: r.chrom,
			Line:       r.line,
			Detail:     fmt.Sprintf("expected exactly one sample column, header has %d fields", len(fields)),
		}
	}
	return nil
}

func (r *Reader) parseRecord(line string) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 10 {
		return nil, &ParseError{
			Chromosome: r.chrom,
			Line:       r.line,
			Detail:     fmt.Sprintf("record has %d fields, want 10", len(fields)),
		}
	}

	chrom := chromosome.CastToAutosome(fields[0])
	if chrom == 0 {
		return nil, &ParseError{
			Chromosome: r.chrom,
			Line:       r.line,
			Detail:     fmt.Sprintf("unexpected chromosome %q", fields[0]),
		}
	}

	position, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return nil, &ParseError{
			Chromosome: r.chrom,
			Line:       r.line,
			Detail:     fmt.Sprintf("non-numeric position %q", fields[1]),
		}
	}

	rsid := fields[2]
	if rsid == "." {
		rsid = ""
	}

	ref := fields[3]
	// multi-allelic records carry the first alternate only
	alt := fields[4]
	if idx := strings.IndexByte(alt, ','); idx >= 0 {
		alt = alt[:idx]
	}

	dosage, err := r.extractDosage(fields[8], fields[9])
	if err != nil {
		return nil, err
	}

	return &Variant{
		Chromosome: chrom,
		Position:   position,
		Rsid:       rsid,
		RefAllele:  ref,
		AltAllele:  alt,
		Dosage:     dosage,
		Quality:    extractQuality(fields[7]),
	}, nil
}

func (r *Reader) extractDosage(format, sample string) (float64, error) {
	dsIndex := -1
	for i, key := range strings.Split(format, ":") {
		if key == "DS" {
			dsIndex = i
			break
		}
	}
	if dsIndex < 0 {
		return 0, &ParseError{Chromosome: r.chrom, Line: r.line, Detail: "DS not present in FORMAT"}
	}

	values := strings.Split(sample, ":")
	if dsIndex >= len(values) {
		return 0, &ParseError{Chromosome: r.chrom, Line: r.line, Detail: "sample column shorter than FORMAT"}
	}

	dosage, err := strconv.ParseFloat(values[dsIndex], 64)
	if err != nil {
		return 0, &ParseError{
			Chromosome: r.chrom,
			Line:       r.line,
			Detail:     fmt.Sprintf("unparseable DS value %q", values[dsIndex]),
		}
	}
	return dosage, nil
}

func extractQuality(info string) float64 {
	for _, field := range strings.Split(info, ";") {
		if strings.HasPrefix(field, "R2=") {
			if r2, err := strconv.ParseFloat(field[3:], 64); err == nil {
				return r2
			}
		}
	}
	return math.NaN()
}
