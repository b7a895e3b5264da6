package output

import (
	"database/sql"
	"math"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/models/constants/outputformat"
)

// sqliteWriter produces a queryable database: variants,
// sample_variants, a metadata key/value block and, when polygenic
// scores were uploaded, pgs_unscaled/pgs_scaled. One transaction per
// chromosome; indexes and VACUUM at the end so bulk inserts stay fast.
type sqliteWriter struct {
	path string
	db   *sql.DB

	tx            *sql.Tx
	insertVariant *sql.Stmt
	insertSample  *sql.Stmt
}

func newSqliteWriter(dir string) (*sqliteWriter, error) {
	path := filepath.Join(dir, "results.db")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=OFF&_synchronous=OFF")
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE variants (
			chromosome INTEGER NOT NULL,
			position INTEGER NOT NULL,
			ref_allele TEXT NOT NULL,
			alt_allele TEXT NOT NULL,
			rsid TEXT,
			allele_freq REAL,
			minor_allele_freq REAL,
			is_typed INTEGER NOT NULL,
			PRIMARY KEY (chromosome, position, ref_allele, alt_allele)
		);
		CREATE TABLE sample_variants (
			chromosome INTEGER NOT NULL,
			position INTEGER NOT NULL,
			ref_allele TEXT NOT NULL,
			alt_allele TEXT NOT NULL,
			sample_id TEXT NOT NULL,
			genotype TEXT NOT NULL,
			dosage REAL NOT NULL,
			source TEXT NOT NULL,
			imputation_quality REAL,
			PRIMARY KEY (chromosome, position, ref_allele, alt_allele, sample_id)
		);
		CREATE TABLE metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL);
		CREATE TABLE pgs_unscaled (sample_id TEXT NOT NULL, label TEXT NOT NULL, value REAL NOT NULL);
		CREATE TABLE pgs_scaled (sample_id TEXT NOT NULL, label TEXT NOT NULL, value REAL NOT NULL);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteWriter{path: path, db: db}, nil
}

func (s *sqliteWriter) Begin(chrom uint8) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	s.tx = tx

	s.insertVariant, err = tx.Prepare(`INSERT OR IGNORE INTO variants VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	s.insertSample, err = tx.Prepare(`INSERT OR IGNORE INTO sample_variants VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	return err
}

func nullableFloat(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *sqliteWriter) Write(v *models.MergedVariant) error {
	_, err := s.insertVariant.Exec(
		v.Chromosome, v.Position, v.RefAllele, v.AltAllele,
		nullableString(v.Rsid), nullableFloat(v.AlleleFreq), nullableFloat(v.MinorAlleleFreq), v.IsTyped)
	if err != nil {
		return err
	}

	for i := range v.Samples {
		call := &v.Samples[i]
		_, err = s.insertSample.Exec(
			v.Chromosome, v.Position, v.RefAllele, v.AltAllele,
			call.SampleID, call.Genotype, call.Dosage, string(call.Source), nullableFloat(call.Quality))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteWriter) End(stats models.ChromosomeStats) error {
	if err := s.tx.Commit(); err != nil {
		return err
	}
	s.tx, s.insertVariant, s.insertSample = nil, nil, nil
	return nil
}

func (s *sqliteWriter) Finalize(meta *Metadata) ([]Produced, error) {
	if err := s.writeMetadata(meta); err != nil {
		s.db.Close()
		return nil, err
	}

	_, err := s.db.Exec(`
		CREATE INDEX idx_variants_position ON variants (chromosome, position);
		CREATE INDEX idx_variants_rsid ON variants (rsid);
		CREATE INDEX idx_sample_variants_position ON sample_variants (chromosome, position);
	`)
	if err != nil {
		s.db.Close()
		return nil, err
	}
	if _, err = s.db.Exec(`VACUUM`); err != nil {
		s.db.Close()
		return nil, err
	}
	if err = s.db.Close(); err != nil {
		return nil, err
	}
	return []Produced{{Format: outputformat.Sqlite, Path: s.path}}, nil
}

func (s *sqliteWriter) writeMetadata(meta *Metadata) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert, err := tx.Prepare(`INSERT INTO metadata (key, value) VALUES (?, ?)`)
	if err != nil {
		return err
	}

	pairs := meta.IdentityPairs()
	pairs = append(pairs, meta.CountPairs()...)
	for _, pair := range pairs {
		if _, err = insert.Exec(pair[0], pair[1]); err != nil {
			return err
		}
	}

	if len(meta.Scores) > 0 {
		unscaled, prepErr := tx.Prepare(`INSERT INTO pgs_unscaled VALUES (?, ?, ?)`)
		if prepErr != nil {
			return prepErr
		}
		scaled, prepErr := tx.Prepare(`INSERT INTO pgs_scaled VALUES (?, ?, ?)`)
		if prepErr != nil {
			return prepErr
		}
		for _, score := range meta.Scores {
			if _, err = unscaled.Exec(score.SampleID, score.Label, score.Raw); err != nil {
				return err
			}
			if _, err = scaled.Exec(score.SampleID, score.Label, score.Scaled); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
