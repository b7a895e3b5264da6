package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/repositories/queue"
	"github.com/captainzonks/GeneGnome/utils"
)

// ChunkMissingError refuses a finalize: some chunk in [0, total) never
// arrived. The staging directory is retained so the client can resend
// just the gap.
type ChunkMissingError struct {
	FileName   string
	ChunkIndex int
}

func (e *ChunkMissingError) Error() string {
	return fmt.Sprintf("chunk %d of %s was never received", e.ChunkIndex, e.FileName)
}

// ChunkSizeMismatchError refuses a finalize whose reassembled bytes
// disagree with the recorded per-chunk sizes.
type ChunkSizeMismatchError struct {
	FileName string
	Want     int64
	Got      int64
}

func (e *ChunkSizeMismatchError) Error() string {
	return fmt.Sprintf("%s reassembled to %d bytes, chunks recorded %d", e.FileName, e.Got, e.Want)
}

// AssembledFile is one reconstituted upload, hashed and ready to stage.
type AssembledFile struct {
	FileName  string
	Path      string
	SizeBytes int64
	Sha256    string
}

type UploadService struct {
	Config *models.Config
}

func NewUploadService(cfg *models.Config) *UploadService {
	return &UploadService{Config: cfg}
}

func (us *UploadService) chunkDir(uploadID string) string {
	return filepath.Join(us.Config.Api.DataRoot, "uploads", "chunks", uploadID)
}

// JobDir is where a job's staged input files live.
func (us *UploadService) JobDir(jobID string) string {
	return filepath.Join(us.Config.Api.DataRoot, "uploads", jobID)
}

// ResultsDir is where a job's output artifacts are written.
func (us *UploadService) ResultsDir(jobID string) string {
	return filepath.Join(us.Config.Api.DataRoot, "results", jobID)
}

func chunkFileName(filename string, chunkIndex int) string {
	return fmt.Sprintf("%s_%04d", filename, chunkIndex)
}

// StageChunk writes one chunk into the upload's staging directory.
// Chunks arrive in any order; the index is encoded in the filename.
func (us *UploadService) StageChunk(uploadID, filename string, chunkIndex int, body io.Reader) (int64, error) {
	dir := us.chunkDir(uploadID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, err
	}

	f, err := os.Create(filepath.Join(dir, chunkFileName(filename, chunkIndex)))
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, body)
	if err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}

// StageWhole copies a whole (non-chunked) upload straight into the
// job's staging directory and hashes it.
func (us *UploadService) StageWhole(jobID, filename string, body io.Reader) (*AssembledFile, error) {
	dir := us.JobDir(jobID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	size, err := io.Copy(f, body)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err = f.Close(); err != nil {
		return nil, err
	}

	digest, err := utils.HashFile(path)
	if err != nil {
		return nil, err
	}
	return &AssembledFile{FileName: filename, Path: path, SizeBytes: size, Sha256: digest}, nil
}

// Assemble reconstitutes every file in a chunk session into the job's
// staging directory. Refuses if any chunk is missing or the byte
// totals disagree; staging is untouched on refusal.
func (us *UploadService) Assemble(uploadID, jobID string, ledgers map[string]*queue.ChunkLedger) ([]*AssembledFile, error) {
	stagingDir := us.chunkDir(uploadID)

	// verify the full ledger before touching anything
	for filename, ledger := range ledgers {
		for i := 0; i < ledger.TotalChunks; i++ {
			if _, ok := ledger.Sizes[i]; !ok {
				return nil, &ChunkMissingError{FileName: filename, ChunkIndex: i}
			}
			if _, err := os.Stat(filepath.Join(stagingDir, chunkFileName(filename, i))); err != nil {
				return nil, &ChunkMissingError{FileName: filename, ChunkIndex: i}
			}
		}
	}

	jobDir := us.JobDir(jobID)
	if err := os.MkdirAll(jobDir, 0o750); err != nil {
		return nil, err
	}

	filenames := make([]string, 0, len(ledgers))
	for filename := range ledgers {
		filenames = append(filenames, filename)
	}
	sort.Strings(filenames)

	var assembled []*AssembledFile
	for _, filename := range filenames {
		ledger := ledgers[filename]

		sources := make([]string, ledger.TotalChunks)
		var want int64
		for i := 0; i < ledger.TotalChunks; i++ {
			sources[i] = filepath.Join(stagingDir, chunkFileName(filename, i))
			want += ledger.Sizes[i]
		}

		destination := filepath.Join(jobDir, filename)
		got, err := utils.ConcatenateFiles(destination, sources)
		if err != nil {
			return nil, err
		}
		if got != want {
			return nil, &ChunkSizeMismatchError{FileName: filename, Want: want, Got: got}
		}

		digest, err := utils.HashFile(destination)
		if err != nil {
			return nil, err
		}
		assembled = append(assembled, &AssembledFile{
			FileName:  filename,
			Path:      destination,
			SizeBytes: got,
			Sha256:    digest,
		})
	}

	return assembled, nil
}

// DiscardChunkSession removes an upload's staging directory.
func (us *UploadService) DiscardChunkSession(uploadID string) error {
	return os.RemoveAll(us.chunkDir(uploadID))
}

// SweepIdleChunkSessions removes staging directories that have not
// been touched inside the idle window. Redis session keys expire on
// their own; this reclaims the disk side.
func (us *UploadService) SweepIdleChunkSessions(idleBefore int64) (int, error) {
	root := filepath.Join(us.Config.Api.DataRoot, "uploads", "chunks")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		if info.ModTime().Unix() < idleBefore {
			if rmErr := os.RemoveAll(filepath.Join(root, entry.Name())); rmErr == nil {
				removed++
			}
		}
	}
	return removed, nil
}
