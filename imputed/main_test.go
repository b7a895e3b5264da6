package imputed

import (
	"bytes"
	"compress/gzip"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/biogo/hts/bgzf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chr7Header = "##fileformat=VCFv4.3\n" +
	"##INFO=<ID=R2,Number=1,Type=Float,Description=\"Imputation quality\">\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tSAMPLE1\n"

const chr7Records = "7\t100\trs1\tT\tC\t.\tPASS\tAF=0.2;R2=0.95\tGT:DS\t0|1:1.02\n" +
	"7\t200\t.\tA\tG\t.\tPASS\tAF=0.1\tGT:DS\t0|0:0.04\n" +
	"7\t300\trs3\tA\tAG\t.\tPASS\tR2=0.40\tGT:DS\t1|1:1.98\n"

func writeBgzf(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chr7.vcf.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := bgzf.NewWriter(f, 1)
	_, err = w.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

// writeMultiMemberGzip concatenates each part as its own gzip member,
// the way block-compressed uploads arrive.
func writeMultiMemberGzip(t *testing.T, parts ...string) string {
	t.Helper()
	var buf bytes.Buffer
	for _, part := range parts {
		w := gzip.NewWriter(&buf)
		_, err := w.Write([]byte(part))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	path := filepath.Join(t.TempDir(), "chr7.vcf.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func drain(t *testing.T, r *Reader) []*Variant {
	t.Helper()
	var out []*Variant
	for {
		v, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, v)
	}
}

func TestReaderStreamsBgzfRecords(t *testing.T) {
	path := writeBgzf(t, chr7Header+chr7Records)
	r, err := Open(path, 7)
	require.NoError(t, err)
	defer r.Close()

	variants := drain(t, r)
	require.Len(t, variants, 3)

	first := variants[0]
	assert.Equal(t, uint8(7), first.Chromosome)
	assert.Equal(t, uint64(100), first.Position)
	assert.Equal(t, "rs1", first.Rsid)
	assert.Equal(t, "T", first.RefAllele)
	assert.Equal(t, "C", first.AltAllele)
	assert.InDelta(t, 1.02, first.Dosage, 1e-9)
	assert.InDelta(t, 0.95, first.Quality, 1e-9)
	assert.False(t, first.Indel())
}

func TestReaderReadsAllGzipMembers(t *testing.T) {
	// a single-member decoder would stop after the header part and
	// report zero records
	path := writeMultiMemberGzip(t, chr7Header, chr7Records)
	r, err := Open(path, 7)
	require.NoError(t, err)
	defer r.Close()

	variants := drain(t, r)
	assert.Len(t, variants, 3)
}

func TestReaderHandlesDotIDAndMissingR2(t *testing.T) {
	path := writeBgzf(t, chr7Header+chr7Records)
	r, err := Open(path, 7)
	require.NoError(t, err)
	defer r.Close()

	variants := drain(t, r)
	second := variants[1]
	assert.Equal(t, "", second.Rsid)
	assert.True(t, math.IsNaN(second.Quality))
}

func TestReaderFlagsIndels(t *testing.T) {
	path := writeBgzf(t, chr7Header+chr7Records)
	r, err := Open(path, 7)
	require.NoError(t, err)
	defer r.Close()

	variants := drain(t, r)
	assert.True(t, variants[2].Indel())
}

func TestReaderRejectsMissingDosage(t *testing.T) {
	contents := chr7Header + "7\t100\trs1\tT\tC\t.\tPASS\tR2=0.9\tGT\t0|1\n"
	r, err := Open(writeBgzf(t, contents), 7)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.Error(t, err)
	parseErr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, uint8(7), parseErr.Chromosome)
	assert.Equal(t, 4, parseErr.Line)
	assert.Contains(t, parseErr.Detail, "DS")
}

func TestReaderTakesFirstAlternate(t *testing.T) {
	contents := chr7Header + "7\t100\trs1\tT\tC,G\t.\tPASS\tR2=0.9\tGT:DS\t0|1:1.0\n"
	r, err := Open(writeBgzf(t, contents), 7)
	require.NoError(t, err)
	defer r.Close()

	v, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "C", v.AltAllele)
}

func TestOpenRejectsUncompressedInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chr7.vcf")
	require.NoError(t, os.WriteFile(path, []byte(chr7Header+chr7Records), 0o644))

	_, err := Open(path, 7)
	assert.ErrorIs(t, err, ErrUnsupportedCompression)
}

func TestReaderRejectsHeaderlessStream(t *testing.T) {
	r, err := Open(writeMultiMemberGzip(t, "not a vcf at all\n"), 7)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrUnsupportedCompression)
}
