package merge

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captainzonks/GeneGnome/genome"
	"github.com/captainzonks/GeneGnome/imputed"
	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/models/constants"
	"github.com/captainzonks/GeneGnome/models/constants/source"
	"github.com/captainzonks/GeneGnome/models/constants/threshold"
	"github.com/captainzonks/GeneGnome/refpanel"
)

type panelRow struct {
	chrom    int
	position int
	rsid     string
	ref, alt string
	typed    bool
	quality  any
}

func buildPanel(t *testing.T, rows []panelRow) *refpanel.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panel.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE panel_variants (
			chromosome INTEGER NOT NULL,
			position INTEGER NOT NULL,
			rsid TEXT,
			ref_allele TEXT NOT NULL,
			alt_allele TEXT NOT NULL,
			allele_freq REAL,
			minor_allele_freq REAL,
			is_typed INTEGER NOT NULL DEFAULT 0,
			imputation_quality REAL,
			genotypes TEXT NOT NULL
		);
		CREATE TABLE panel_metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL);
	`)
	require.NoError(t, err)

	calls := make([]string, constants.ReferenceSampleCount)
	for i := range calls {
		calls[i] = "0|1"
	}
	genotypes, err := json.Marshal(calls)
	require.NoError(t, err)

	for _, r := range rows {
		_, err = db.Exec(`INSERT INTO panel_variants VALUES (?, ?, ?, ?, ?, 0.2, 0.2, ?, ?, ?)`,
			r.chrom, r.position, r.rsid, r.ref, r.alt, r.typed, r.quality, string(genotypes))
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	store, err := refpanel.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func consumerFile(t *testing.T, lines ...string) *genome.File {
	t.Helper()
	f, err := genome.Read(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	return f
}

// sliceStream satisfies ImputedSource from a fixed record list.
type sliceStream struct {
	records []*imputed.Variant
	next    int
}

func (s *sliceStream) Next() (*imputed.Variant, error) {
	if s.next >= len(s.records) {
		return nil, io.EOF
	}
	v := s.records[s.next]
	s.next++
	return v, nil
}

func imputedRecord(position uint64, ref, alt string, dosage, quality float64) *imputed.Variant {
	return &imputed.Variant{
		Chromosome: 7,
		Position:   position,
		Rsid:       fmt.Sprintf("rs_imp_%d", position),
		RefAllele:  ref,
		AltAllele:  alt,
		Dosage:     dosage,
		Quality:    quality,
	}
}

func collect(t *testing.T, m *Merger, chrom uint8, stream ImputedSource) ([]*models.MergedVariant, models.ChromosomeStats) {
	t.Helper()
	var out []*models.MergedVariant
	stats, err := m.MergeChromosome(chrom, stream, func(v *models.MergedVariant) error {
		out = append(out, v)
		return nil
	})
	require.NoError(t, err)
	return out, stats
}

func TestIndelAtSamePositionDoesNotStealConsumerCall(t *testing.T) {
	panel := buildPanel(t, []panelRow{
		{7, 100, "rs_snp", "A", "G", true, nil},
		{7, 100, "rs_ins", "A", "AG", false, nil},
	})
	consumer := consumerFile(t, "rs_snp\t7\t100\tAA")
	m := New(panel, consumer, threshold.R09)

	out, stats := collect(t, m, 7, &sliceStream{})
	require.Len(t, out, 1)

	user := out[0].UserSample()
	assert.Equal(t, "rs_snp", out[0].Rsid)
	assert.Equal(t, source.Genotyped, user.Source)
	assert.Equal(t, 0.0, user.Dosage)
	assert.Equal(t, "0|0", user.Genotype)
	assert.Equal(t, 1, stats.IndelsDropped)
	assert.Equal(t, 1, stats.UserGenotyped)
}

func TestGenotypedWinsOverImputed(t *testing.T) {
	panel := buildPanel(t, []panelRow{{7, 100, "rs1", "T", "C", true, nil}})
	consumer := consumerFile(t, "rs1\t7\t100\tTC")
	m := New(panel, consumer, threshold.R09)

	stream := &sliceStream{records: []*imputed.Variant{imputedRecord(100, "T", "C", 1.87, 0.99)}}
	out, stats := collect(t, m, 7, stream)
	require.Len(t, out, 1)

	user := out[0].UserSample()
	assert.Equal(t, source.Genotyped, user.Source)
	assert.Equal(t, 1.0, user.Dosage)
	assert.Equal(t, "0|1", user.Genotype)
	assert.True(t, math.IsNaN(user.Quality))
	assert.True(t, out[0].IsTyped)
	assert.Equal(t, 1, stats.UserGenotyped)
	assert.Equal(t, 0, stats.UserImputed)
}

func TestMismatchFallsThroughToImputed(t *testing.T) {
	panel := buildPanel(t, []panelRow{{7, 100, "rs1", "T", "C", false, nil}})
	consumer := consumerFile(t, "rs1\t7\t100\tAG") // neither T nor C
	m := New(panel, consumer, threshold.R09)

	stream := &sliceStream{records: []*imputed.Variant{imputedRecord(100, "T", "C", 1.12, 0.95)}}
	out, stats := collect(t, m, 7, stream)
	require.Len(t, out, 1)

	user := out[0].UserSample()
	assert.Equal(t, source.Imputed, user.Source)
	assert.InDelta(t, 1.12, user.Dosage, 1e-9)
	assert.Equal(t, "0|1", user.Genotype)
	assert.False(t, out[0].IsTyped)
	assert.Equal(t, 1, stats.AlleleMismatches)
	assert.Equal(t, 1, stats.UserImputed)
}

func TestLowQualityImputedIsRelabeledNotDropped(t *testing.T) {
	panel := buildPanel(t, []panelRow{
		{7, 100, "rs1", "T", "C", false, nil},
		{7, 200, "rs2", "A", "G", false, nil},
	})
	m := New(panel, consumerFile(t, "# empty"), threshold.R09)

	stream := &sliceStream{records: []*imputed.Variant{
		imputedRecord(100, "T", "C", 0.31, 0.42), // below 0.9
		imputedRecord(200, "A", "G", 1.90, 0.97),
	}}
	out, stats := collect(t, m, 7, stream)
	require.Len(t, out, 2)

	assert.Equal(t, source.ImputedLowQuality, out[0].UserSample().Source)
	assert.InDelta(t, 0.31, out[0].UserSample().Dosage, 1e-9)
	assert.Equal(t, source.Imputed, out[1].UserSample().Source)
	assert.Equal(t, "1|1", out[1].UserSample().Genotype)
	assert.Equal(t, 1, stats.UserImputedLowQ)
	assert.Equal(t, 1, stats.UserImputed)
}

func TestReferenceOnlySitesEmitZeroDosage(t *testing.T) {
	panel := buildPanel(t, []panelRow{{7, 500, "rs_ref", "C", "T", false, nil}})
	m := New(panel, consumerFile(t, "# empty"), threshold.R09)

	out, stats := collect(t, m, 7, &sliceStream{})
	require.Len(t, out, 1)

	user := out[0].UserSample()
	assert.Equal(t, source.Reference, user.Source)
	assert.Equal(t, 0.0, user.Dosage)
	assert.Equal(t, "0|0", user.Genotype)
	assert.Equal(t, 1, stats.UserReferenceOnly)
}

func TestEveryVariantCarries51OrderedSamples(t *testing.T) {
	panel := buildPanel(t, []panelRow{
		{7, 100, "rs1", "T", "C", false, nil},
		{7, 200, "rs2", "A", "G", true, nil},
		{7, 200, "rs2b", "A", "T", false, nil},
		{7, 300, "rs3", "G", "A", false, nil},
	})
	m := New(panel, consumerFile(t, "rs2\t7\t200\tAG"), threshold.R09)

	out, _ := collect(t, m, 7, &sliceStream{})
	require.Len(t, out, 4)

	wantIDs := models.SampleIDs()
	for i, v := range out {
		require.Len(t, v.Samples, constants.TotalSampleCount)
		for j, s := range v.Samples {
			assert.Equal(t, wantIDs[j], s.SampleID)
		}
		if i > 0 {
			prev := out[i-1]
			ordered := prev.Position < v.Position ||
				(prev.Position == v.Position && prev.RefAllele+prev.AltAllele < v.RefAllele+v.AltAllele)
			assert.True(t, ordered, "emission not ordered at index %d", i)
		}
	}
}

func TestImputedOnlyRecordsAreDiscarded(t *testing.T) {
	panel := buildPanel(t, []panelRow{{7, 200, "rs2", "A", "G", false, nil}})
	m := New(panel, consumerFile(t, "# empty"), threshold.R09)

	stream := &sliceStream{records: []*imputed.Variant{
		imputedRecord(100, "T", "C", 1.0, 0.99), // no panel site
		imputedRecord(200, "A", "G", 2.0, 0.99),
	}}
	out, stats := collect(t, m, 7, stream)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(200), out[0].Position)
	assert.Equal(t, 1, stats.Variants)
}

func TestPanelTypedFlagAndQualityCarryThrough(t *testing.T) {
	panel := buildPanel(t, []panelRow{
		{7, 100, "rs1", "T", "C", true, nil},
		{7, 200, "rs2", "A", "G", false, 0.88},
	})
	m := New(panel, consumerFile(t, "# empty"), threshold.R09)

	out, _ := collect(t, m, 7, &sliceStream{})
	require.Len(t, out, 2)

	// the typed flag is a property of the panel site, not of how the
	// user's call was resolved
	assert.True(t, out[0].IsTyped)
	assert.Equal(t, source.Reference, out[0].UserSample().Source)
	assert.False(t, out[1].IsTyped)

	for _, s := range out[0].Samples[:constants.ReferenceSampleCount] {
		assert.True(t, math.IsNaN(s.Quality))
	}
	for _, s := range out[1].Samples[:constants.ReferenceSampleCount] {
		assert.InDelta(t, 0.88, s.Quality, 1e-9)
	}
}

func TestReferenceSamplesKeepPanelPhasing(t *testing.T) {
	panel := buildPanel(t, []panelRow{{7, 100, "rs1", "T", "C", false, nil}})
	m := New(panel, consumerFile(t, "# empty"), threshold.R09)

	out, _ := collect(t, m, 7, &sliceStream{})
	require.Len(t, out, 1)

	for _, s := range out[0].Samples[:constants.ReferenceSampleCount] {
		assert.Equal(t, "0|1", s.Genotype)
		assert.Equal(t, 1.0, s.Dosage)
		assert.Equal(t, source.Reference, s.Source)
		assert.True(t, math.IsNaN(s.Quality))
	}
}
