package genome

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validFile = "# rsid\tchromosome\tposition\tgenotype\n" +
	"rs548049170\t1\t69869\tTT\n" +
	"rs13328684\t1\t74792\t--\n" +
	"rs9283150\t1\t565508\tAA\n" +
	"rs116587930\tX\t100000\tAG\n" +
	"rs3131972\t22\t752721\tAG\n" +
	"rs12184325\tMT\t16300\tCC\n"

func TestReadGroupsByChromosome(t *testing.T) {
	f, err := Read(strings.NewReader(validFile))
	require.NoError(t, err)

	assert.Equal(t, 4, f.TotalRecords)
	assert.Equal(t, 2, f.SkippedLines) // X and MT
	assert.Len(t, f.ByChromosome[1], 3)
	assert.Len(t, f.ByChromosome[22], 1)

	first := f.ByChromosome[1][0]
	assert.Equal(t, "rs548049170", first.Rsid)
	assert.Equal(t, uint64(69869), first.Position)
	assert.Equal(t, "TT", first.Genotype)
}

func TestReadReportsLineNumberOnShortRow(t *testing.T) {
	contents := "# header\nrs1\t1\t100\tAA\nrs2\t1\t200\n"
	_, err := Read(strings.NewReader(contents))
	require.Error(t, err)

	parseErr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, 3, parseErr.Line)
	assert.Contains(t, parseErr.Error(), "4 tab-separated fields")
}

func TestReadReportsNonNumericPosition(t *testing.T) {
	contents := "rs1\t1\tNOT_A_NUMBER\tTT\n"
	_, err := Read(strings.NewReader(contents))
	require.Error(t, err)

	parseErr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, 1, parseErr.Line)
	assert.Contains(t, parseErr.Detail, "NOT_A_NUMBER")
}

func TestReadTrimsWhitespace(t *testing.T) {
	contents := "  rs1  \t  7  \t  93752551  \t  AG  \n"
	f, err := Read(strings.NewReader(contents))
	require.NoError(t, err)

	record := f.ByChromosome[7][0]
	assert.Equal(t, "rs1", record.Rsid)
	assert.Equal(t, uint64(93752551), record.Position)
	assert.Equal(t, "AG", record.Genotype)
}

func TestByPositionExcludesNoCalls(t *testing.T) {
	f, err := Read(strings.NewReader(validFile))
	require.NoError(t, err)

	index := f.ByPosition(1)
	assert.Len(t, index, 2)
	_, hasNoCall := index[74792]
	assert.False(t, hasNoCall)

	call, ok := index[69869]
	require.True(t, ok)
	assert.Equal(t, "TT", call.Genotype)
	assert.Equal(t, "rs548049170", call.Rsid)
}
