// Package refpanel reads the bundled 50-sample reference panel, a
// read-only SQLite database shipped alongside the service.
package refpanel

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"math"

	_ "github.com/mattn/go-sqlite3"

	"github.com/captainzonks/GeneGnome/models/constants"
	"github.com/captainzonks/GeneGnome/models/constants/chromosome"
)

// Variant is one panel row: a biallelic site with phased calls for all
// 50 reference samples in panel order (samp1..samp50).
type Variant struct {
	Chromosome      uint8
	Position        uint64
	Rsid            string
	RefAllele       string
	AltAllele       string
	AlleleFreq      float64 // NaN when the panel carries no AF
	MinorAlleleFreq float64 // NaN when the panel carries no MAF
	// IsTyped marks sites the panel's source array genotyped directly.
	IsTyped bool
	// ImputationQuality is the panel build's R² for the site, NaN when
	// the site was typed or the build recorded none.
	ImputationQuality float64
	Genotypes         []string
}

// Store wraps the panel database. Safe for concurrent use; open it
// once per worker process.
type Store struct {
	db *sql.DB
}

// Open opens the panel read-only. The panel is an input artifact, not
// service state, and must never be written.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path))
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("reference panel unreachable at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const variantColumns = `chromosome, position, rsid, ref_allele, alt_allele,
	allele_freq, minor_allele_freq, is_typed, imputation_quality, genotypes`

func scanVariant(row interface{ Scan(...any) error }) (*Variant, error) {
	var (
		v            Variant
		rsid         sql.NullString
		af, maf, icq sql.NullFloat64
		genotypes    string
	)
	err := row.Scan(&v.Chromosome, &v.Position, &rsid, &v.RefAllele, &v.AltAllele,
		&af, &maf, &v.IsTyped, &icq, &genotypes)
	if err != nil {
		return nil, err
	}

	v.Rsid = rsid.String
	v.AlleleFreq = math.NaN()
	if af.Valid {
		v.AlleleFreq = af.Float64
	}
	v.MinorAlleleFreq = math.NaN()
	if maf.Valid {
		v.MinorAlleleFreq = maf.Float64
	}
	v.ImputationQuality = math.NaN()
	if icq.Valid {
		v.ImputationQuality = icq.Float64
	}

	if err = json.Unmarshal([]byte(genotypes), &v.Genotypes); err != nil {
		return nil, fmt.Errorf("panel genotypes for chr%d:%d are not a JSON array: %w", v.Chromosome, v.Position, err)
	}
	if len(v.Genotypes) != constants.ReferenceSampleCount {
		return nil, fmt.Errorf("panel row chr%d:%d has %d genotypes, want %d",
			v.Chromosome, v.Position, len(v.Genotypes), constants.ReferenceSampleCount)
	}
	return &v, nil
}

// Get looks one variant up by its full identity tuple.
func (s *Store) Get(chrom uint8, position uint64, ref, alt string) (*Variant, bool, error) {
	row := s.db.QueryRow(`SELECT `+variantColumns+` FROM panel_variants
		WHERE chromosome = ? AND position = ? AND ref_allele = ? AND alt_allele = ?`,
		chrom, position, ref, alt)

	v, err := scanVariant(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Cursor iterates one chromosome's variants in merge order.
type Cursor struct {
	rows *sql.Rows
}

// Scan opens a cursor over one chromosome ordered by (position,
// ref_allele, alt_allele), the identity order the merge engine emits.
func (s *Store) Scan(chrom uint8) (*Cursor, error) {
	if chrom < 1 || chrom > chromosome.Count {
		return nil, fmt.Errorf("chromosome %d outside autosome range", chrom)
	}
	rows, err := s.db.Query(`SELECT `+variantColumns+` FROM panel_variants
		WHERE chromosome = ?
		ORDER BY position, ref_allele, alt_allele`, chrom)
	if err != nil {
		return nil, err
	}
	return &Cursor{rows: rows}, nil
}

// Next returns the next variant, or io.EOF when the chromosome is done.
func (c *Cursor) Next() (*Variant, error) {
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return scanVariant(c.rows)
}

func (c *Cursor) Close() error {
	return c.rows.Close()
}

// ChromosomeCount reports the panel's variant count on one chromosome,
// used to weight merge progress.
func (s *Store) ChromosomeCount(chrom uint8) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM panel_variants WHERE chromosome = ?`, chrom).Scan(&count)
	return count, err
}

func (s *Store) TotalCount() (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM panel_variants`).Scan(&count)
	return count, err
}

// Metadata returns one key from the panel's metadata table ("" when
// absent). Well-known keys: panel_version, sample_count, build.
func (s *Store) Metadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM panel_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Validate runs the startup sanity checks: both tables present, a
// non-empty panel, and the advertised sample count.
func (s *Store) Validate() error {
	total, err := s.TotalCount()
	if err != nil {
		return fmt.Errorf("panel_variants unreadable: %w", err)
	}
	if total == 0 {
		return fmt.Errorf("reference panel is empty")
	}

	sampleCount, err := s.Metadata("sample_count")
	if err != nil {
		return fmt.Errorf("panel_metadata unreadable: %w", err)
	}
	if sampleCount != fmt.Sprintf("%d", constants.ReferenceSampleCount) {
		return fmt.Errorf("reference panel advertises sample_count=%q, want %d",
			sampleCount, constants.ReferenceSampleCount)
	}
	return nil
}
