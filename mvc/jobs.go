package mvc

import (
	"database/sql"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	linq "github.com/ahmetb/go-linq"
	"github.com/google/uuid"
	"github.com/labstack/echo"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/models/constants"
	"github.com/captainzonks/GeneGnome/models/constants/chromosome"
	"github.com/captainzonks/GeneGnome/models/constants/jobstate"
	"github.com/captainzonks/GeneGnome/models/constants/outputformat"
	"github.com/captainzonks/GeneGnome/models/constants/threshold"
	"github.com/captainzonks/GeneGnome/models/constants/vcfmode"
	"github.com/captainzonks/GeneGnome/models/dtos"
	"github.com/captainzonks/GeneGnome/models/dtos/errors"
	"github.com/captainzonks/GeneGnome/repositories/postgres"
	"github.com/captainzonks/GeneGnome/repositories/queue"
	"github.com/captainzonks/GeneGnome/services"
	"github.com/captainzonks/GeneGnome/utils"
)

// JobsSubmit accepts a whole (non-chunked) submission: the consumer
// genotype file, all 22 imputed files and an optional scores file in
// one multipart request.
func JobsSubmit(c echo.Context) error {
	gc, cfg, db, redisClient := RetrieveCommonElements(c)

	form, formErr := c.MultipartForm()
	if formErr != nil {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("Error reading multipart form! Check your input"))
	}

	genomeFiles := form.File["genome_file"]
	if len(genomeFiles) != 1 {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("Exactly one 'genome_file' is required!"))
	}

	vcfFiles := form.File["vcf_files"]
	if validationErr := validateImputedSet(vcfFiles); validationErr != nil {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest(validationErr.Error()))
	}

	pgsFiles := form.File["pgs_file"]
	if len(pgsFiles) > 1 {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("At most one 'pgs_file' is allowed!"))
	}

	for _, header := range form.File {
		for _, fh := range header {
			if cfg.Api.MaxPartSize > 0 && fh.Size > cfg.Api.MaxPartSize {
				return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest(
					fmt.Sprintf("'%s' exceeds the whole-upload size limit; use the chunked upload endpoints", fh.Filename)))
			}
		}
	}

	job := &models.Job{
		ID:                  uuid.New(),
		UserID:              gc.UserID,
		UserEmail:           gc.UserEmail,
		OutputFormats:       parseOutputFormats(form.Value["output_formats"]),
		VcfMode:             vcfmode.CastToVcfMode(c.FormValue("vcf_format")),
		QualityThreshold:    threshold.CastToQualityThreshold(c.FormValue("quality_threshold")),
		MaxDownloadAttempts: cfg.Download.MaxAttempts,
	}

	uploads := gc.UploadService
	jobID := job.ID.String()

	stageAll := func() error {
		if err := stageMultipart(uploads, db, job.ID, genomeFiles[0], services.FileTypeGenome); err != nil {
			return err
		}
		for _, fh := range vcfFiles {
			if err := stageMultipart(uploads, db, job.ID, fh, services.FileTypeImputed); err != nil {
				return err
			}
		}
		if len(pgsFiles) == 1 {
			return stageMultipart(uploads, db, job.ID, pgsFiles[0], services.FileTypePgs)
		}
		return nil
	}

	if err := postgres.CreateJob(db, job); err != nil {
		fmt.Printf("[%s] - Job create error: %v\n", time.Now(), err)
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not create job"))
	}
	if err := stageAll(); err != nil {
		fmt.Printf("[%s] - Job %s staging error: %v\n", time.Now(), jobID, err)
		postgres.MarkFailed(db, job.ID, "upload staging failed")
		utils.SecureDeleteDir(uploads.JobDir(jobID))
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not stage uploaded files"))
	}

	if err := queue.Enqueue(c.Request().Context(), redisClient, job.ID); err != nil {
		fmt.Printf("[%s] - Job %s enqueue error: %v\n", time.Now(), jobID, err)
		postgres.MarkFailed(db, job.ID, "queue unavailable")
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not enqueue job"))
	}

	postgres.AppendAudit(db, &models.AuditEvent{
		EventType: "job",
		UserID:    gc.UserID,
		IPAddress: c.RealIP(),
		Action:    "submit",
		Result:    "pending",
		Details:   fmt.Sprintf("job=%s files=%d", jobID, len(vcfFiles)+1+len(pgsFiles)),
	})

	return c.JSON(http.StatusCreated, dtos.JobSubmitResponseDto{
		JobID:     job.ID,
		State:     jobstate.Pending,
		CreatedAt: time.Now().UTC(),
	})
}

// validateImputedSet requires exactly one file per autosome.
func validateImputedSet(files []*multipart.FileHeader) error {
	if len(files) != int(chromosome.Count) {
		return fmt.Errorf("expected %d 'vcf_files' (one per autosome), got %d", chromosome.Count, len(files))
	}
	seen := make(map[uint8]string, chromosome.Count)
	for _, fh := range files {
		chrom := services.ChromosomeFromFilename(fh.Filename)
		if chrom == 0 {
			return fmt.Errorf("cannot determine chromosome of '%s'; name files like chr7.vcf.gz", fh.Filename)
		}
		if previous, dup := seen[chrom]; dup {
			return fmt.Errorf("both '%s' and '%s' claim chromosome %d", previous, fh.Filename, chrom)
		}
		seen[chrom] = fh.Filename
	}
	return nil
}

func parseOutputFormats(values []string) []constants.OutputFormat {
	var formats []constants.OutputFormat
	linq.From(values).
		WhereT(func(value string) bool {
			return outputformat.IsKnown(value)
		}).
		SelectT(func(value string) constants.OutputFormat {
			return constants.OutputFormat(value)
		}).
		Distinct().
		ToSlice(&formats)
	if len(formats) == 0 {
		// default: everything
		formats = []constants.OutputFormat{outputformat.Parquet, outputformat.Vcf, outputformat.Sqlite}
	}
	return formats
}

// stageMultipart copies one uploaded part into the job's staging
// directory and records its hash.
func stageMultipart(uploads *services.UploadService, db *sql.DB, jobID uuid.UUID, fh *multipart.FileHeader, fileType string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	staged, err := uploads.StageWhole(jobID.String(), filepath.Base(fh.Filename), src)
	if err != nil {
		return err
	}
	return postgres.CreateFileRecord(db, &models.FileRecord{
		JobID:     jobID,
		FileName:  staged.FileName,
		FileType:  fileType,
		SizeBytes: staged.SizeBytes,
		Sha256:    staged.Sha256,
	})
}

// JobsGetStatus returns the persisted status of one of the caller's
// jobs.
func JobsGetStatus(c echo.Context) error {
	gc, _, db, _ := RetrieveCommonElements(c)

	jobID, parseErr := uuid.Parse(c.Param("id"))
	if parseErr != nil {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("Invalid job id! Check your input"))
	}

	job, err := postgres.GetJobForUser(db, jobID, gc.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not read job"))
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, errors.CreateSimpleNotFound("No such job"))
	}

	return c.JSON(http.StatusOK, dtos.JobStatusResponseDto{
		JobID:         job.ID,
		State:         job.State,
		ProgressPct:   job.ProgressPct,
		OutputFormats: job.OutputFormats,
		VcfMode:       job.VcfMode,
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
		ExpiresAt:     job.ExpiresAt,
		ErrorMessage:  job.ErrorMessage,
	})
}

// JobsDelete honors a user deletion request: the state flips to
// user_deleted and every staged or produced byte is scrubbed. Workers
// notice the transition at the next chromosome boundary.
func JobsDelete(c echo.Context) error {
	gc, cfg, db, _ := RetrieveCommonElements(c)

	jobID, parseErr := uuid.Parse(c.Param("id"))
	if parseErr != nil {
		return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("Invalid job id! Check your input"))
	}

	deleted, err := postgres.MarkUserDeleted(db, jobID, gc.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errors.CreateSimpleInternalServerError("Could not delete job"))
	}
	if !deleted {
		return c.JSON(http.StatusNotFound, errors.CreateSimpleNotFound("No such job"))
	}

	uploads := gc.UploadService
	id := jobID.String()
	utils.SecureDeleteDir(uploads.JobDir(id))
	utils.SecureDeleteDir(uploads.ResultsDir(id))
	utils.SecureDeleteFile(filepath.Join(cfg.Api.DataRoot, "results", id+".tar.gz"))
	postgres.MarkFilesDeleted(db, jobID)

	postgres.AppendAudit(db, &models.AuditEvent{
		EventType: "job",
		UserID:    gc.UserID,
		IPAddress: c.RealIP(),
		Action:    "delete",
		Result:    "user_deleted",
		Details:   fmt.Sprintf("job=%s", id),
	})

	return c.NoContent(http.StatusNoContent)
}
