package pgs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScalesPerLabel(t *testing.T) {
	contents := "# sample\tlabel\tvalue\n" +
		"samp1\theight\t1.0\n" +
		"samp2\theight\t2.0\n" +
		"samp3\theight\t3.0\n" +
		"samp1\tbmi\t10.0\n" +
		"samp2\tbmi\t10.0\n"

	scores, err := Parse(strings.NewReader(contents))
	require.NoError(t, err)
	require.Len(t, scores, 5)

	// height: mean 2, population stddev sqrt(2/3)
	assert.InDelta(t, -1.2247, scores[0].Scaled, 1e-3)
	assert.InDelta(t, 0.0, scores[1].Scaled, 1e-9)
	assert.InDelta(t, 1.2247, scores[2].Scaled, 1e-3)

	// zero variance scales to zero
	assert.Equal(t, 0.0, scores[3].Scaled)
	assert.Equal(t, 0.0, scores[4].Scaled)

	assert.Equal(t, "samp1", scores[0].SampleID)
	assert.Equal(t, "height", scores[0].Label)
	assert.Equal(t, 1.0, scores[0].Raw)
}

func TestParseRejectsShortRow(t *testing.T) {
	_, err := Parse(strings.NewReader("samp1\theight\n"))
	require.Error(t, err)
	parseErr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, 1, parseErr.Line)
}

func TestParseRejectsNonNumericValue(t *testing.T) {
	_, err := Parse(strings.NewReader("samp1\theight\ttall\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tall")
}

func TestParseEmptyInput(t *testing.T) {
	scores, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, scores)
}
