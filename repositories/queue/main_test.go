package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChunkFieldsBuildsPerFileLedgers(t *testing.T) {
	ledgers, err := parseChunkFields(map[string]string{
		"chunk:chr7.vcf.gz:0": "1024",
		"chunk:chr7.vcf.gz:1": "512",
		"total:chr7.vcf.gz":   "2",
		"type:chr7.vcf.gz":    "imputed",
		"chunk:genome.txt:0":  "99",
		"total:genome.txt":    "1",
		"type:genome.txt":     "genome",
	})
	require.NoError(t, err)
	require.Len(t, ledgers, 2)

	imputed := ledgers["chr7.vcf.gz"]
	require.NotNil(t, imputed)
	assert.Equal(t, "imputed", imputed.FileType)
	assert.Equal(t, 2, imputed.TotalChunks)
	assert.Equal(t, int64(1024), imputed.Sizes[0])
	assert.Equal(t, int64(512), imputed.Sizes[1])

	genome := ledgers["genome.txt"]
	require.NotNil(t, genome)
	assert.Equal(t, "genome", genome.FileType)
	assert.Equal(t, int64(99), genome.Sizes[0])
}

func TestParseChunkFieldsHandlesLargeIndexes(t *testing.T) {
	ledgers, err := parseChunkFields(map[string]string{
		"chunk:chr1.vcf.gz:12345": "64",
		"total:chr1.vcf.gz":       "12346",
		"type:chr1.vcf.gz":        "imputed",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(64), ledgers["chr1.vcf.gz"].Sizes[12345])
}

func TestParseChunkFieldsKeepsHostileFilenamesApart(t *testing.T) {
	// filenames may look like the ledger's own prefixes; the chunk:
	// prefix keeps them from being misread as total or type entries
	ledgers, err := parseChunkFields(map[string]string{
		"chunk:total_report.txt:0": "10",
		"total:total_report.txt":   "1",
		"type:total_report.txt":    "pgs",
		"chunk:type_notes.txt:7":   "20",
		"total:type_notes.txt":     "8",
		"type:type_notes.txt":      "pgs",
	})
	require.NoError(t, err)
	require.Len(t, ledgers, 2)
	assert.Equal(t, int64(10), ledgers["total_report.txt"].Sizes[0])
	assert.Equal(t, int64(20), ledgers["type_notes.txt"].Sizes[7])
}

func TestParseChunkFieldsRejectsMalformedFields(t *testing.T) {
	cases := map[string]map[string]string{
		"unprefixed":        {"chr7.vcf.gz:0000": "1"},
		"missing index":     {"chunk:chr7.vcf.gz": "1"},
		"non-numeric index": {"chunk:chr7.vcf.gz:abc": "1"},
		"negative index":    {"chunk:chr7.vcf.gz:-1": "1"},
		"bad size":          {"chunk:chr7.vcf.gz:0": "lots"},
		"bad total":         {"total:chr7.vcf.gz": "many"},
	}
	for name, fields := range cases {
		_, err := parseChunkFields(fields)
		assert.Error(t, err, name)
	}
}
