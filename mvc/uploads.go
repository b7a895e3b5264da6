package mvc

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/models/constants/chromosome"
	"github.com/captainzonks/GeneGnome/models/constants/jobstate"
	"github.com/captainzonks/GeneGnome/models/constants/threshold"
	"github.com/captainzonks/GeneGnome/models/constants/vcfmode"
	"github.com/captainzonks/GeneGnome/models/dtos"
	"github.com/captainzonks/GeneGnome/models/dtos/errors"
	"github.com/captainzonks/GeneGnome/repositories/postgres"
	"github.com/captainzonks/GeneGnome/repositories/queue"
	"github.com/captainzonks/GeneGnome/services"
	"github.com/captainzonks/GeneGnome/utils"
)

/*
	Chunked uploads exist for the imputed VCFs, which routinely exceed
	whole-request limits. The client picks an opaque upload_id, streams
	each file as numbered chunks in any order, then finalizes once. The
	arrival ledger lives in Redis; the bytes live on disk until
	finalize reassembles them into a job's staging directory.
*/

// UploadsPostChunk receives one chunk of one file in an upload session.
func UploadsPostChunk(c echo.Context) error {
	gc, cfg, _, redisClient := RetrieveCommonElements(c)

	uploadID := c.FormValue("upload_id")
	if len(uploadID) == 0 {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("Missing 'upload_id'!"))
	}

	filename := filepath.Base(c.FormValue("filename"))
	if len(filename) == 0 || filename == "." || filename == string(filepath.Separator) {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("Missing 'filename'!"))
	}
	// ':' is the ledger field separator in the session hash
	if strings.ContainsRune(filename, ':') {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("Filename must not contain ':'!"))
	}

	fileType := c.FormValue("file_type")
	if !utils.StringInSlice(fileType, []string{services.FileTypeGenome, services.FileTypeImputed, services.FileTypePgs}) {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest(
			"Unknown 'file_type'! Expected genome, imputed or pgs"))
	}

	chunkIndex, indexErr := strconv.Atoi(c.FormValue("chunk_index"))
	totalChunks, totalErr := strconv.Atoi(c.FormValue("total_chunks"))
	if indexErr != nil || totalErr != nil || totalChunks < 1 || chunkIndex < 0 || chunkIndex >= totalChunks {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest(
			"Invalid 'chunk_index' or 'total_chunks'! Check your input"))
	}

	fh, fhErr := c.FormFile("chunk")
	if fhErr != nil {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("Missing 'chunk' file part!"))
	}
	if cfg.Api.MaxPartSize > 0 && fh.Size > cfg.Api.MaxPartSize {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("Chunk exceeds the part size limit!"))
	}

	src, openErr := fh.Open()
	if openErr != nil {
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not read chunk"))
	}
	defer src.Close()

	received, stageErr := gc.UploadService.StageChunk(uploadID, filename, chunkIndex, src)
	if stageErr != nil {
		fmt.Printf("[%s] - Chunk stage error (upload %s, %s #%d): %v\n",
			time.Now(), uploadID, filename, chunkIndex, stageErr)
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not stage chunk"))
	}

	idleTTL := time.Duration(cfg.Retention.ChunkSessionIdleHours) * time.Hour
	if recordErr := queue.RecordChunk(c.Request().Context(), redisClient,
		uploadID, filename, fileType, chunkIndex, totalChunks, received, idleTTL); recordErr != nil {
		fmt.Printf("[%s] - Chunk ledger error (upload %s): %v\n", time.Now(), uploadID, recordErr)
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not record chunk"))
	}

	return c.JSON(http.StatusOK, dtos.ChunkUploadResponseDto{
		UploadID:    uploadID,
		FileName:    filename,
		ChunkIndex:  chunkIndex,
		TotalChunks: totalChunks,
		Received:    received,
	})
}

// UploadsFinalize reassembles a chunk session into a new job and
// queues it. A missing or short chunk refuses the finalize and leaves
// the session intact so the client can resend just the gap.
func UploadsFinalize(c echo.Context) error {
	gc, cfg, db, redisClient := RetrieveCommonElements(c)
	ctx := c.Request().Context()

	uploadID := c.FormValue("upload_id")
	if len(uploadID) == 0 {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("Missing 'upload_id'!"))
	}

	ledgers, readErr := queue.ReadChunkSession(ctx, redisClient, uploadID)
	if readErr != nil {
		fmt.Printf("[%s] - Chunk session read error (upload %s): %v\n", time.Now(), uploadID, readErr)
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not read upload session"))
	}
	if len(ledgers) == 0 {
		return c.JSON(http.StatusNotFound, errors.CreateSimpleNotFound("Unknown or expired upload session"))
	}
	if compositionErr := validateSessionComposition(ledgers); compositionErr != nil {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest(compositionErr.Error()))
	}

	form, _ := c.FormParams()
	job := &models.Job{
		ID:                  uuid.New(),
		UserID:              gc.UserID,
		UserEmail:           gc.UserEmail,
		OutputFormats:       parseOutputFormats(form["output_formats"]),
		VcfMode:             vcfmode.CastToVcfMode(c.FormValue("vcf_format")),
		QualityThreshold:    threshold.CastToQualityThreshold(c.FormValue("quality_threshold")),
		MaxDownloadAttempts: cfg.Download.MaxAttempts,
	}

	uploads := gc.UploadService
	jobID := job.ID.String()

	assembled, assembleErr := uploads.Assemble(uploadID, jobID, ledgers)
	if assembleErr != nil {
		switch assembleErr.(type) {
		case *services.ChunkMissingError, *services.ChunkSizeMismatchError:
			// session retained; the client resends and finalizes again
			return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest(assembleErr.Error()))
		}
		fmt.Printf("[%s] - Assembly error (upload %s): %v\n", time.Now(), uploadID, assembleErr)
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not assemble upload"))
	}

	if err := postgres.CreateJob(db, job); err != nil {
		fmt.Printf("[%s] - Job create error: %v\n", time.Now(), err)
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not create job"))
	}

	for _, file := range assembled {
		record := &models.FileRecord{
			JobID:     job.ID,
			FileName:  file.FileName,
			FileType:  ledgers[file.FileName].FileType,
			SizeBytes: file.SizeBytes,
			Sha256:    file.Sha256,
		}
		if err := postgres.CreateFileRecord(db, record); err != nil {
			fmt.Printf("[%s] - File record error (job %s): %v\n", time.Now(), jobID, err)
			postgres.MarkFailed(db, job.ID, "file registration failed")
			return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not register files"))
		}
	}

	if err := queue.Enqueue(ctx, redisClient, job.ID); err != nil {
		fmt.Printf("[%s] - Job %s enqueue error: %v\n", time.Now(), jobID, err)
		postgres.MarkFailed(db, job.ID, "queue unavailable")
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not enqueue job"))
	}

	queue.ClearChunkSession(ctx, redisClient, uploadID)
	uploads.DiscardChunkSession(uploadID)

	postgres.AppendAudit(db, &models.AuditEvent{
		EventType: "job",
		UserID:    gc.UserID,
		IPAddress: c.RealIP(),
		Action:    "finalize",
		Result:    "pending",
		Details:   fmt.Sprintf("job=%s upload=%s files=%d", jobID, uploadID, len(assembled)),
	})

	return c.JSON(http.StatusCreated, dtos.FinalizeResponseDto{
		JobID:     job.ID,
		State:     jobstate.Pending,
		FileCount: len(assembled),
		CreatedAt: time.Now().UTC(),
	})
}

// validateSessionComposition checks the ledger holds a complete run:
// one genome file, one imputed file per autosome, at most one scores
// file.
func validateSessionComposition(ledgers map[string]*queue.ChunkLedger) error {
	var genomeCount, pgsCount int
	seen := make(map[uint8]string, chromosome.Count)

	for filename, ledger := range ledgers {
		switch ledger.FileType {
		case services.FileTypeGenome:
			genomeCount++
		case services.FileTypePgs:
			pgsCount++
		case services.FileTypeImputed:
			chrom := services.ChromosomeFromFilename(filename)
			if chrom == 0 {
				return fmt.Errorf("cannot determine chromosome of '%s'; name files like chr7.vcf.gz", filename)
			}
			if previous, dup := seen[chrom]; dup {
				return fmt.Errorf("both '%s' and '%s' claim chromosome %d", previous, filename, chrom)
			}
			seen[chrom] = filename
		default:
			return fmt.Errorf("file '%s' has no recorded type", filename)
		}
	}

	if genomeCount != 1 {
		return fmt.Errorf("expected exactly one genome file, got %d", genomeCount)
	}
	if pgsCount > 1 {
		return fmt.Errorf("at most one pgs file is allowed, got %d", pgsCount)
	}
	if len(seen) != int(chromosome.Count) {
		return fmt.Errorf("expected %d imputed files (one per autosome), got %d", chromosome.Count, len(seen))
	}
	return nil
}
