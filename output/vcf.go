package output

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/pgzip"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/models/constants"
	"github.com/captainzonks/GeneGnome/models/constants/outputformat"
	"github.com/captainzonks/GeneGnome/models/constants/source"
	"github.com/captainzonks/GeneGnome/models/constants/vcfmode"
)

// vcfWriter renders VCFv4.3 with GT:DS:IQ per sample. Merged mode
// writes one pgzip-compressed file; per-chromosome mode writes 22
// bgzf-compressed files so downstream tabix indexing stays possible.
type vcfWriter struct {
	dir  string
	mode constants.VcfMode
	meta *Metadata

	// merged mode state
	mergedFile *os.File
	mergedGzip *pgzip.Writer
	mergedBuf  *bufio.Writer

	// per-chromosome mode state
	chromFile *os.File
	chromGzip *bgzf.Writer
	chromBuf  *bufio.Writer

	out      *bufio.Writer
	produced []Produced
}

func newVcfWriter(dir string, mode constants.VcfMode, meta *Metadata) (*vcfWriter, error) {
	w := &vcfWriter{dir: dir, mode: mode, meta: meta}
	if mode != vcfmode.PerChromosome {
		path := filepath.Join(dir, "merged.vcf.gz")
		file, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		w.mergedFile = file
		w.mergedGzip = pgzip.NewWriter(file)
		w.mergedBuf = bufio.NewWriterSize(w.mergedGzip, 256*1024)
		w.out = w.mergedBuf
		if err = writeVcfHeader(w.out, meta); err != nil {
			return nil, err
		}
		w.produced = append(w.produced, Produced{Format: outputformat.Vcf, Path: path})
	}
	return w, nil
}

// writeVcfHeader emits the meta-information block. VCF allows ## lines
// only before #CHROM, so the header carries the identity half of the
// descriptive block; the run counters land in the job manifest and the
// sibling formats, which are stamped after the merge.
func writeVcfHeader(out io.Writer, meta *Metadata) error {
	var b strings.Builder
	b.WriteString("##fileformat=VCFv4.3\n")
	for _, pair := range meta.IdentityPairs() {
		fmt.Fprintf(&b, "##%s=%s\n", pair[0], pair[1])
	}
	b.WriteString("##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">\n")
	b.WriteString("##FORMAT=<ID=DS,Number=1,Type=Float,Description=\"Alternate allele dosage\">\n")
	b.WriteString("##FORMAT=<ID=IQ,Number=1,Type=Float,Description=\"Imputation quality (R2)\">\n")
	b.WriteString("##INFO=<ID=AF,Number=1,Type=Float,Description=\"Allele frequency\">\n")
	b.WriteString("##INFO=<ID=MAF,Number=1,Type=Float,Description=\"Minor allele frequency\">\n")
	b.WriteString("##INFO=<ID=R2,Number=1,Type=Float,Description=\"Imputation quality of the user sample\">\n")
	b.WriteString("##INFO=<ID=TYPED,Number=0,Type=Flag,Description=\"User sample directly genotyped\">\n")
	b.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT")
	for _, id := range models.SampleIDs() {
		b.WriteByte('\t')
		b.WriteString(id)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(out, b.String())
	return err
}

func (w *vcfWriter) Begin(chrom uint8) error {
	if w.mode != vcfmode.PerChromosome {
		return nil
	}

	path := filepath.Join(w.dir, fmt.Sprintf("chr%d.vcf.gz", chrom))
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w.chromFile = file
	w.chromGzip = bgzf.NewWriter(file, 1)
	w.chromBuf = bufio.NewWriterSize(w.chromGzip, 256*1024)
	w.out = w.chromBuf
	if err = writeVcfHeader(w.out, w.meta); err != nil {
		return err
	}
	w.produced = append(w.produced, Produced{Format: outputformat.Vcf, Path: path})
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (w *vcfWriter) Write(v *models.MergedVariant) error {
	var b strings.Builder

	id := v.Rsid
	if id == "" {
		id = "."
	}

	var info []string
	if !math.IsNaN(v.AlleleFreq) {
		info = append(info, "AF="+formatFloat(v.AlleleFreq))
	}
	if !math.IsNaN(v.MinorAlleleFreq) {
		info = append(info, "MAF="+formatFloat(v.MinorAlleleFreq))
	}
	if user := v.UserSample(); user != nil && !math.IsNaN(user.Quality) {
		info = append(info, "R2="+formatFloat(user.Quality))
	}
	if v.IsTyped {
		info = append(info, "TYPED")
	}
	infoText := "."
	if len(info) > 0 {
		infoText = strings.Join(info, ";")
	}

	fmt.Fprintf(&b, "%d\t%d\t%s\t%s\t%s\t.\tPASS\t%s\tGT:DS:IQ",
		v.Chromosome, v.Position, id, v.RefAllele, v.AltAllele, infoText)

	for i := range v.Samples {
		s := &v.Samples[i]
		iq := "."
		if s.Source == source.Imputed || s.Source == source.ImputedLowQuality {
			if !math.IsNaN(s.Quality) {
				iq = formatFloat(s.Quality)
			}
		}
		b.WriteByte('\t')
		b.WriteString(s.Genotype)
		b.WriteByte(':')
		b.WriteString(formatFloat(s.Dosage))
		b.WriteByte(':')
		b.WriteString(iq)
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w.out, b.String())
	return err
}

func (w *vcfWriter) End(stats models.ChromosomeStats) error {
	if w.mode != vcfmode.PerChromosome {
		return nil
	}
	if err := w.chromBuf.Flush(); err != nil {
		return err
	}
	if err := w.chromGzip.Close(); err != nil {
		return err
	}
	if err := w.chromFile.Close(); err != nil {
		return err
	}
	w.chromFile, w.chromGzip, w.chromBuf, w.out = nil, nil, nil, nil
	return nil
}

func (w *vcfWriter) Finalize(meta *Metadata) ([]Produced, error) {
	if w.mode != vcfmode.PerChromosome {
		if err := w.mergedBuf.Flush(); err != nil {
			return nil, err
		}
		if err := w.mergedGzip.Close(); err != nil {
			return nil, err
		}
		if err := w.mergedFile.Close(); err != nil {
			return nil, err
		}
	}
	return w.produced, nil
}
