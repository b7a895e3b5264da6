package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/repositories/queue"
)

func uploadForTests(t *testing.T) *UploadService {
	t.Helper()
	cfg := &models.Config{}
	cfg.Api.DataRoot = t.TempDir()
	return NewUploadService(cfg)
}

func stage(t *testing.T, us *UploadService, uploadID, filename string, chunks ...string) *queue.ChunkLedger {
	t.Helper()
	ledger := &queue.ChunkLedger{TotalChunks: len(chunks), Sizes: make(map[int]int64)}
	for i, chunk := range chunks {
		n, err := us.StageChunk(uploadID, filename, i, strings.NewReader(chunk))
		require.NoError(t, err)
		ledger.Sizes[i] = n
	}
	return ledger
}

func TestAssembleConcatenatesInOrder(t *testing.T) {
	us := uploadForTests(t)

	ledger := stage(t, us, "up-1", "chr7.vcf.gz", "part0 ", "part1 ", "part2")
	assembled, err := us.Assemble("up-1", "job-1", map[string]*queue.ChunkLedger{"chr7.vcf.gz": ledger})
	require.NoError(t, err)
	require.Len(t, assembled, 1)

	contents, err := os.ReadFile(assembled[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "part0 part1 part2", string(contents))
	assert.Equal(t, int64(len(contents)), assembled[0].SizeBytes)
	assert.Len(t, assembled[0].Sha256, 64)
}

func TestAssembleToleratesOutOfOrderArrival(t *testing.T) {
	us := uploadForTests(t)

	ledger := &queue.ChunkLedger{TotalChunks: 2, Sizes: make(map[int]int64)}
	n, err := us.StageChunk("up-2", "genome.txt", 1, strings.NewReader("second"))
	require.NoError(t, err)
	ledger.Sizes[1] = n
	n, err = us.StageChunk("up-2", "genome.txt", 0, strings.NewReader("first-"))
	require.NoError(t, err)
	ledger.Sizes[0] = n

	assembled, err := us.Assemble("up-2", "job-2", map[string]*queue.ChunkLedger{"genome.txt": ledger})
	require.NoError(t, err)

	contents, err := os.ReadFile(assembled[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "first-second", string(contents))
}

func TestAssembleRefusesMissingChunk(t *testing.T) {
	us := uploadForTests(t)

	ledger := stage(t, us, "up-3", "chr7.vcf.gz", "a", "b", "c")
	ledger.TotalChunks = 4 // chunk 3 never arrived

	_, err := us.Assemble("up-3", "job-3", map[string]*queue.ChunkLedger{"chr7.vcf.gz": ledger})
	require.Error(t, err)

	missing, ok := err.(*ChunkMissingError)
	require.True(t, ok)
	assert.Equal(t, 3, missing.ChunkIndex)
	assert.Equal(t, "chr7.vcf.gz", missing.FileName)

	// staging is retained for a retry
	_, err = os.Stat(filepath.Join(us.chunkDir("up-3"), "chr7.vcf.gz_0000"))
	assert.NoError(t, err)
}

func TestStageWholeHashesTheUpload(t *testing.T) {
	us := uploadForTests(t)

	staged, err := us.StageWhole("job-4", "genome.txt", strings.NewReader("rs1\t7\t100\tAA\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(13), staged.SizeBytes)
	assert.Len(t, staged.Sha256, 64)

	_, err = os.Stat(staged.Path)
	assert.NoError(t, err)
}

func TestDiscardChunkSession(t *testing.T) {
	us := uploadForTests(t)
	stage(t, us, "up-5", "f", "x")

	require.NoError(t, us.DiscardChunkSession("up-5"))
	_, err := os.Stat(us.chunkDir("up-5"))
	assert.True(t, os.IsNotExist(err))
}

func TestSweepIdleChunkSessions(t *testing.T) {
	us := uploadForTests(t)
	stage(t, us, "up-6", "f", "x")

	// future cutoff: everything is idle
	removed, err := us.SweepIdleChunkSessions(1<<62 - 1)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = us.SweepIdleChunkSessions(0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
