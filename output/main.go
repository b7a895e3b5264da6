// Package output streams merged variants into the selected export
// formats. All formats are fed concurrently from the same
// per-chromosome stream; no format ever buffers more than one
// chromosome's worth of variants.
package output

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/models/constants"
	"github.com/captainzonks/GeneGnome/models/constants/chromosome"
	"github.com/captainzonks/GeneGnome/models/constants/outputformat"
	"github.com/captainzonks/GeneGnome/pgs"
)

// ReferenceOnlyPolicy names the fallback applied to panel sites with
// no imputed or consumer call; recorded in every output's metadata.
const ReferenceOnlyPolicy = "emit-zero"

// Metadata is the common descriptive block every format records. The
// identity fields are set before the first variant is written; Totals
// and Scores are filled in before Finalize.
type Metadata struct {
	JobID        string
	UserID       string
	PanelVersion string
	Threshold    constants.QualityThreshold
	GeneratedAt  time.Time
	Totals       *models.MergeTotals
	Scores       []pgs.Score // empty unless a scores file was uploaded
}

// IdentityPairs renders the part of the descriptive block known before
// the merge starts, in a fixed key order shared by every format.
func (m *Metadata) IdentityPairs() [][2]string {
	return [][2]string{
		{"job_id", m.JobID},
		{"user_id", m.UserID},
		{"panel_version", m.PanelVersion},
		{"quality_threshold", string(m.Threshold)},
		{"reference_only_policy", ReferenceOnlyPolicy},
		{"generated_at", m.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z")},
	}
}

// CountPairs renders the per-run counters; only valid once Totals is
// set.
func (m *Metadata) CountPairs() [][2]string {
	pairs := [][2]string{
		{"total_variants", fmt.Sprintf("%d", m.Totals.Variants)},
		{"total_genotyped", fmt.Sprintf("%d", m.Totals.UserGenotyped)},
		{"total_imputed", fmt.Sprintf("%d", m.Totals.UserImputed)},
		{"total_imputed_low_quality", fmt.Sprintf("%d", m.Totals.UserImputedLowQ)},
		{"total_reference_only", fmt.Sprintf("%d", m.Totals.UserReferenceOnly)},
		{"indels_dropped", fmt.Sprintf("%d", m.Totals.IndelsDropped)},
		{"allele_mismatches", fmt.Sprintf("%d", m.Totals.AlleleMismatches)},
	}
	for chrom := uint8(1); chrom <= chromosome.Count; chrom++ {
		if stats, ok := m.Totals.PerChromosome[chrom]; ok {
			pairs = append(pairs, [2]string{
				fmt.Sprintf("chr%d_variants", chrom),
				fmt.Sprintf("%d", stats.Variants),
			})
		}
	}
	return pairs
}

// Produced describes one finished output artifact.
type Produced struct {
	Format constants.OutputFormat
	Path   string
}

// formatWriter is the per-format contract. Calls arrive from a single
// goroutine in stream order: Begin, n×Write, End per chromosome, then
// one Finalize.
type formatWriter interface {
	Begin(chrom uint8) error
	Write(v *models.MergedVariant) error
	End(stats models.ChromosomeStats) error
	Finalize(meta *Metadata) ([]Produced, error)
}

// channel depth per format; keeps the fan-out decoupled without
// letting any consumer fall a chromosome behind
const fanoutDepth = 1024

// Writer fans one variant stream out to every selected format.
type Writer struct {
	dir     string
	writers []formatWriter

	channels []chan *models.MergedVariant
	group    *errgroup.Group
}

// NewWriter prepares one writer per selected format under dir. meta's
// identity fields must already be set; they are stamped into headers
// written before the first variant.
func NewWriter(dir string, formats []constants.OutputFormat, vcfMode constants.VcfMode, meta *Metadata) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("no output formats selected")
	}

	w := &Writer{dir: dir}
	for _, format := range formats {
		var (
			fw  formatWriter
			err error
		)
		switch format {
		case outputformat.Parquet:
			fw, err = newParquetWriter(dir)
		case outputformat.Vcf:
			fw, err = newVcfWriter(dir, vcfMode, meta)
		case outputformat.Sqlite:
			fw, err = newSqliteWriter(dir)
		default:
			err = fmt.Errorf("unknown output format %q", format)
		}
		if err != nil {
			return nil, err
		}
		w.writers = append(w.writers, fw)
	}
	return w, nil
}

// BeginChromosome opens the fan-out for one chromosome. Each format
// consumes its own channel on its own goroutine.
func (w *Writer) BeginChromosome(chrom uint8) error {
	w.group = &errgroup.Group{}
	w.channels = make([]chan *models.MergedVariant, len(w.writers))

	for i, fw := range w.writers {
		if err := fw.Begin(chrom); err != nil {
			return err
		}
		ch := make(chan *models.MergedVariant, fanoutDepth)
		w.channels[i] = ch
		consumer := fw
		w.group.Go(func() error {
			for v := range ch {
				if err := consumer.Write(v); err != nil {
					// drain so the producer never blocks on a dead consumer
					for range ch {
					}
					return err
				}
			}
			return nil
		})
	}
	return nil
}

// Write hands one variant to every format. Matches the merge engine's
// emit callback signature.
func (w *Writer) Write(v *models.MergedVariant) error {
	for _, ch := range w.channels {
		ch <- v
	}
	return nil
}

// EndChromosome closes the fan-out, waits for all formats to drain,
// then flushes each one.
func (w *Writer) EndChromosome(stats models.ChromosomeStats) error {
	for _, ch := range w.channels {
		close(ch)
	}
	if err := w.group.Wait(); err != nil {
		return err
	}
	for _, fw := range w.writers {
		if err := fw.End(stats); err != nil {
			return err
		}
	}
	return nil
}

// Finalize stamps the metadata into every format, closes the files
// and returns the produced artifacts.
func (w *Writer) Finalize(meta *Metadata) ([]Produced, error) {
	var produced []Produced
	for _, fw := range w.writers {
		paths, err := fw.Finalize(meta)
		if err != nil {
			return nil, err
		}
		produced = append(produced, paths...)
	}
	return produced, nil
}
