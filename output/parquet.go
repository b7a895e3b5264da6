package output

import (
	"math"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/models/constants/outputformat"
)

// parquetWriter produces a single Snappy-compressed file with one row
// per (variant, sample) pair. Each chromosome is flushed as its own
// row group, so memory tracks one chromosome, not the whole genome.
type parquetWriter struct {
	path   string
	file   *os.File
	writer *pqarrow.FileWriter
	schema *arrow.Schema
	pool   *memory.GoAllocator

	rsid       *array.StringBuilder
	chromosome *array.Int32Builder
	position   *array.Int64Builder
	refAllele  *array.StringBuilder
	altAllele  *array.StringBuilder
	alleleFreq *array.Float64Builder
	minorFreq  *array.Float64Builder
	isTyped    *array.BooleanBuilder
	sampleID   *array.StringBuilder
	genotype   *array.StringBuilder
	dosage     *array.Float64Builder
	source     *array.StringBuilder
	quality    *array.Float64Builder

	rowsInGroup int64
}

func newParquetWriter(dir string) (*parquetWriter, error) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "rsid", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "chromosome", Type: arrow.PrimitiveTypes.Int32},
		{Name: "position", Type: arrow.PrimitiveTypes.Int64},
		{Name: "ref_allele", Type: arrow.BinaryTypes.String},
		{Name: "alt_allele", Type: arrow.BinaryTypes.String},
		{Name: "allele_freq", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "minor_allele_freq", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "is_typed", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "sample_id", Type: arrow.BinaryTypes.String},
		{Name: "genotype", Type: arrow.BinaryTypes.String},
		{Name: "dosage", Type: arrow.PrimitiveTypes.Float64},
		{Name: "source", Type: arrow.BinaryTypes.String},
		{Name: "imputation_quality", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	path := filepath.Join(dir, "results.parquet")
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	writer, err := pqarrow.NewFileWriter(schema, file, props, pqarrow.DefaultWriterProps())
	if err != nil {
		file.Close()
		return nil, err
	}

	pool := memory.NewGoAllocator()
	return &parquetWriter{
		path:   path,
		file:   file,
		writer: writer,
		schema: schema,
		pool:   pool,

		rsid:       array.NewStringBuilder(pool),
		chromosome: array.NewInt32Builder(pool),
		position:   array.NewInt64Builder(pool),
		refAllele:  array.NewStringBuilder(pool),
		altAllele:  array.NewStringBuilder(pool),
		alleleFreq: array.NewFloat64Builder(pool),
		minorFreq:  array.NewFloat64Builder(pool),
		isTyped:    array.NewBooleanBuilder(pool),
		sampleID:   array.NewStringBuilder(pool),
		genotype:   array.NewStringBuilder(pool),
		dosage:     array.NewFloat64Builder(pool),
		source:     array.NewStringBuilder(pool),
		quality:    array.NewFloat64Builder(pool),
	}, nil
}

func (p *parquetWriter) Begin(chrom uint8) error {
	return nil
}

func appendOptionalString(b *array.StringBuilder, s string) {
	if s == "" {
		b.AppendNull()
		return
	}
	b.Append(s)
}

func appendOptionalFloat(b *array.Float64Builder, f float64) {
	if math.IsNaN(f) {
		b.AppendNull()
		return
	}
	b.Append(f)
}

func (p *parquetWriter) Write(v *models.MergedVariant) error {
	for i := range v.Samples {
		s := &v.Samples[i]
		appendOptionalString(p.rsid, v.Rsid)
		p.chromosome.Append(int32(v.Chromosome))
		p.position.Append(int64(v.Position))
		p.refAllele.Append(v.RefAllele)
		p.altAllele.Append(v.AltAllele)
		appendOptionalFloat(p.alleleFreq, v.AlleleFreq)
		appendOptionalFloat(p.minorFreq, v.MinorAlleleFreq)
		p.isTyped.Append(v.IsTyped)
		p.sampleID.Append(s.SampleID)
		p.genotype.Append(s.Genotype)
		p.dosage.Append(s.Dosage)
		p.source.Append(string(s.Source))
		appendOptionalFloat(p.quality, s.Quality)
		p.rowsInGroup++
	}
	return nil
}

// End flushes the chromosome's rows as one row group.
func (p *parquetWriter) End(stats models.ChromosomeStats) error {
	if p.rowsInGroup == 0 {
		return nil
	}

	cols := []arrow.Array{
		p.rsid.NewArray(),
		p.chromosome.NewArray(),
		p.position.NewArray(),
		p.refAllele.NewArray(),
		p.altAllele.NewArray(),
		p.alleleFreq.NewArray(),
		p.minorFreq.NewArray(),
		p.isTyped.NewArray(),
		p.sampleID.NewArray(),
		p.genotype.NewArray(),
		p.dosage.NewArray(),
		p.source.NewArray(),
		p.quality.NewArray(),
	}
	record := array.NewRecord(p.schema, cols, p.rowsInGroup)
	defer record.Release()

	if err := p.writer.Write(record); err != nil {
		return err
	}
	p.rowsInGroup = 0
	return nil
}

// Finalize stamps the descriptive block into the footer's key-value
// metadata and closes the writer. pqarrow's Close also closes the
// underlying file.
func (p *parquetWriter) Finalize(meta *Metadata) ([]Produced, error) {
	pairs := meta.IdentityPairs()
	pairs = append(pairs, meta.CountPairs()...)
	for _, pair := range pairs {
		if err := p.writer.AppendKeyValueMetadata(pair[0], pair[1]); err != nil {
			return nil, err
		}
	}
	if err := p.writer.Close(); err != nil {
		return nil, err
	}
	return []Produced{{Format: outputformat.Parquet, Path: p.path}}, nil
}
