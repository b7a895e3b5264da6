package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/captainzonks/GeneGnome/genome"
	"github.com/captainzonks/GeneGnome/imputed"
	"github.com/captainzonks/GeneGnome/merge"
	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/models/constants/chromosome"
	"github.com/captainzonks/GeneGnome/models/constants/jobstate"
	"github.com/captainzonks/GeneGnome/models/dtos"
	"github.com/captainzonks/GeneGnome/output"
	"github.com/captainzonks/GeneGnome/pgs"
	"github.com/captainzonks/GeneGnome/refpanel"
	"github.com/captainzonks/GeneGnome/repositories/postgres"
	"github.com/captainzonks/GeneGnome/repositories/queue"
	"github.com/captainzonks/GeneGnome/utils"
)

// file_type values on staged file rows
const (
	FileTypeGenome  = "genome"
	FileTypeImputed = "imputed"
	FileTypePgs     = "pgs"
)

type ProcessingService struct {
	Config   *models.Config
	Db       *sql.DB
	Redis    *redis.Client
	Panel    *refpanel.Store
	Security *SecurityService
	Uploads  *UploadService
	Email    *EmailService
}

func NewProcessingService(cfg *models.Config, db *sql.DB, redisClient *redis.Client, panel *refpanel.Store) *ProcessingService {
	return &ProcessingService{
		Config:   cfg,
		Db:       db,
		Redis:    redisClient,
		Panel:    panel,
		Security: NewSecurityService(cfg),
		Uploads:  NewUploadService(cfg),
		Email:    NewEmailService(cfg),
	}
}

// Run blocks, pulling jobs with a fixed pool of workers until the
// context is cancelled.
func (ps *ProcessingService) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < ps.Config.Worker.Count; i++ {
		worker := i
		group.Go(func() error {
			fmt.Printf("[%s] - Worker %d started\n", time.Now(), worker)
			for {
				if groupCtx.Err() != nil {
					return nil
				}
				jobID, found, err := queue.Dequeue(groupCtx, ps.Redis, 5*time.Second)
				if err != nil {
					if groupCtx.Err() != nil {
						return nil
					}
					fmt.Printf("[%s] - Worker %d dequeue error: %v\n", time.Now(), worker, err)
					time.Sleep(time.Second)
					continue
				}
				if !found {
					continue
				}
				ps.ProcessJob(groupCtx, jobID)
			}
		})
	}
	return group.Wait()
}

// ProcessJob runs the full pipeline for one job. All failures land on
// the job row; the worker itself never dies over a bad job.
func (ps *ProcessingService) ProcessJob(ctx context.Context, jobID uuid.UUID) {
	claimed, err := postgres.MarkProcessing(ps.Db, jobID)
	if err != nil {
		fmt.Printf("[%s] - Job %s claim error: %v\n", time.Now(), jobID, err)
		return
	}
	if !claimed {
		// at-least-once delivery: someone else has it
		return
	}

	job, err := postgres.GetJob(ps.Db, jobID)
	if err != nil || job == nil {
		fmt.Printf("[%s] - Job %s vanished after claim: %v\n", time.Now(), jobID, err)
		return
	}

	ps.audit(job, "job", "process", "started", "")

	stopHeartbeat := make(chan struct{})
	go ps.heartbeat(jobID, stopHeartbeat)
	defer close(stopHeartbeat)

	if err = ps.runPipeline(ctx, job); err != nil {
		if err == errUserDeleted {
			ps.scrubJob(job)
			ps.audit(job, "job", "process", "user_deleted", "")
			return
		}
		fmt.Printf("[%s] - Job %s failed: %v\n", time.Now(), jobID, err)
		postgres.MarkFailed(ps.Db, jobID, err.Error())
		ps.publish(job, "error", job.ProgressPct, "processing failed", err.Error())
		ps.audit(job, "error", "process", "failed", err.Error())
		ps.scrubJob(job)
		if mailErr := ps.Email.SendFailureNotice(job.UserEmail, jobID.String(), err.Error()); mailErr != nil {
			fmt.Printf("[%s] - Job %s failure notice: %v\n", time.Now(), jobID, mailErr)
		}
	}
}

var errUserDeleted = fmt.Errorf("job deleted by user")

func (ps *ProcessingService) runPipeline(ctx context.Context, job *models.Job) error {
	files, err := postgres.ListFiles(ps.Db, job.ID)
	if err != nil {
		return err
	}

	genomePath, imputedPaths, pgsPath, err := classifyInputs(files, ps.Uploads.JobDir(job.ID.String()))
	if err != nil {
		return err
	}

	genomeFile, err := genome.Open(genomePath)
	if err != nil {
		return err
	}

	var scores []pgs.Score
	if pgsPath != "" {
		if scores, err = pgs.Open(pgsPath); err != nil {
			return err
		}
	}

	// progress weights by panel variant counts
	weights := make(map[uint8]int64, chromosome.Count)
	var totalWeight int64
	for chrom := uint8(1); chrom <= chromosome.Count; chrom++ {
		count, countErr := ps.Panel.ChromosomeCount(chrom)
		if countErr != nil {
			return countErr
		}
		weights[chrom] = count
		totalWeight += count
	}
	if totalWeight == 0 {
		return fmt.Errorf("reference panel is empty")
	}

	panelVersion, err := ps.Panel.Metadata("panel_version")
	if err != nil {
		return err
	}
	meta := &output.Metadata{
		JobID:        job.ID.String(),
		UserID:       job.UserID,
		PanelVersion: panelVersion,
		Threshold:    job.QualityThreshold,
		GeneratedAt:  time.Now().UTC(),
	}

	resultsDir := ps.Uploads.ResultsDir(job.ID.String())
	writer, err := output.NewWriter(resultsDir, job.OutputFormats, job.VcfMode, meta)
	if err != nil {
		return err
	}

	merger := merge.New(ps.Panel, genomeFile, job.QualityThreshold)
	totals := models.NewMergeTotals()

	var processedWeight int64
	for chrom := uint8(1); chrom <= chromosome.Count; chrom++ {
		// chromosome boundary: honor cancellation and user deletion
		if ctx.Err() != nil {
			return ctx.Err()
		}
		current, stateErr := postgres.GetJob(ps.Db, job.ID)
		if stateErr != nil {
			return stateErr
		}
		if current == nil || current.State == jobstate.UserDeleted {
			return errUserDeleted
		}

		reader, openErr := imputed.Open(imputedPaths[chrom], chrom)
		if openErr != nil {
			return fmt.Errorf("chr%d: %w", chrom, openErr)
		}

		if err = writer.BeginChromosome(chrom); err != nil {
			reader.Close()
			return err
		}
		stats, mergeErr := merger.MergeChromosome(chrom, reader, writer.Write)
		reader.Close()
		if mergeErr != nil {
			return mergeErr
		}
		if err = writer.EndChromosome(stats); err != nil {
			return err
		}
		totals.Add(stats)

		processedWeight += weights[chrom]
		// reserve the last few percent for packaging and handoff
		pct := float64(processedWeight) / float64(totalWeight) * 95
		postgres.UpdateProgress(ps.Db, job.ID, pct)
		ps.publish(job, "progress", pct, fmt.Sprintf("chromosome %d merged", chrom), "")
	}

	meta.Totals = totals
	meta.Scores = scores
	produced, err := writer.Finalize(meta)
	if err != nil {
		return err
	}

	if err = ps.writeManifest(job, resultsDir, panelVersion, produced, totals); err != nil {
		return err
	}

	archivePath := filepath.Join(ps.Config.Api.DataRoot, "results", job.ID.String()+".tar.gz")
	if err = utils.PackageDirectory(resultsDir, archivePath); err != nil {
		return err
	}
	archiveSha, err := utils.HashFile(archivePath)
	if err != nil {
		return err
	}

	token, err := ps.Security.GenerateToken()
	if err != nil {
		return err
	}
	password, err := ps.Security.GeneratePassword()
	if err != nil {
		return err
	}
	passwordHash, err := ps.Security.HashPassword(password)
	if err != nil {
		return err
	}

	expiresAt := time.Now().UTC().Add(time.Duration(ps.Config.Retention.TokenExpiryHours) * time.Hour)
	completed, err := postgres.MarkCompleted(ps.Db, job.ID, archivePath, archiveSha, token, passwordHash, expiresAt)
	if err != nil {
		return err
	}
	if !completed {
		// state moved underneath us (user deletion mid-packaging)
		return errUserDeleted
	}

	ps.publish(job, "completed", 100, "results ready", "")
	ps.audit(job, "job", "process", "completed", fmt.Sprintf("sha256=%s", archiveSha))

	if err = ps.Email.SendDownloadCredentials(job.UserEmail, job.ID.String(), token, password, expiresAt); err != nil {
		// the job itself succeeded; log and move on
		fmt.Printf("[%s] - Job %s credential email: %v\n", time.Now(), job.ID, err)
	} else {
		postgres.MarkEmailed(ps.Db, job.ID)
	}

	// inputs and the unpacked results are scrubbed; only the archive
	// survives until expiry
	if err = utils.SecureDeleteDir(ps.Uploads.JobDir(job.ID.String())); err != nil {
		fmt.Printf("[%s] - Job %s input scrub: %v\n", time.Now(), job.ID, err)
	}
	if err = utils.SecureDeleteDir(resultsDir); err != nil {
		fmt.Printf("[%s] - Job %s results scrub: %v\n", time.Now(), job.ID, err)
	}
	postgres.MarkFilesDeleted(ps.Db, job.ID)

	return nil
}

// classifyInputs resolves staged file rows to on-disk paths: one
// genome file, an imputed file per autosome, optionally one scores
// file.
func classifyInputs(files []*models.FileRecord, jobDir string) (string, map[uint8]string, string, error) {
	var genomePath, pgsPath string
	imputedPaths := make(map[uint8]string)

	for _, record := range files {
		if record.DeletedAt != nil {
			continue
		}
		path := filepath.Join(jobDir, record.FileName)
		switch record.FileType {
		case FileTypeGenome:
			genomePath = path
		case FileTypePgs:
			pgsPath = path
		case FileTypeImputed:
			chrom := ChromosomeFromFilename(record.FileName)
			if chrom == 0 {
				return "", nil, "", fmt.Errorf("cannot determine chromosome of %s", record.FileName)
			}
			imputedPaths[chrom] = path
		}
	}

	if genomePath == "" {
		return "", nil, "", fmt.Errorf("no genome file staged")
	}
	for chrom := uint8(1); chrom <= chromosome.Count; chrom++ {
		if _, ok := imputedPaths[chrom]; !ok {
			return "", nil, "", fmt.Errorf("no imputed file staged for chromosome %d", chrom)
		}
	}
	return genomePath, imputedPaths, pgsPath, nil
}

// ChromosomeFromFilename extracts N from the "chrN" fragment of an
// uploaded imputed filename, 0 when absent.
func ChromosomeFromFilename(name string) uint8 {
	lower := strings.ToLower(name)
	idx := strings.Index(lower, "chr")
	if idx < 0 {
		return 0
	}
	digits := lower[idx+3:]
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(digits[:end])
	if err != nil || n < 1 || n > chromosome.Count {
		return 0
	}
	return uint8(n)
}

func (ps *ProcessingService) writeManifest(job *models.Job, resultsDir, panelVersion string, produced []output.Produced, totals *models.MergeTotals) error {
	manifest := dtos.ManifestDto{
		JobID:               job.ID.String(),
		PanelVersion:        panelVersion,
		QualityThreshold:    string(job.QualityThreshold),
		ReferenceOnlyPolicy: output.ReferenceOnlyPolicy,
		GeneratedAt:         time.Now().UTC(),
		VariantTotals: map[string]int{
			"variants":            totals.Variants,
			"genotyped":           totals.UserGenotyped,
			"imputed":             totals.UserImputed,
			"imputed_low_quality": totals.UserImputedLowQ,
			"reference_only":      totals.UserReferenceOnly,
			"indels_dropped":      totals.IndelsDropped,
			"allele_mismatches":   totals.AlleleMismatches,
		},
		PerChromosome: make(map[string]int),
	}
	for chrom, stats := range totals.PerChromosome {
		manifest.PerChromosome[fmt.Sprintf("chr%d", chrom)] = stats.Variants
	}

	for _, artifact := range produced {
		info, err := os.Stat(artifact.Path)
		if err != nil {
			return err
		}
		digest, err := utils.HashFile(artifact.Path)
		if err != nil {
			return err
		}
		manifest.Files = append(manifest.Files, dtos.ManifestFileDto{
			Name:      filepath.Base(artifact.Path),
			Format:    string(artifact.Format),
			SizeBytes: info.Size(),
			Sha256:    digest,
		})
	}

	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(resultsDir, "manifest.json"), payload, 0o640)
}

func (ps *ProcessingService) heartbeat(jobID uuid.UUID, stop <-chan struct{}) {
	interval := time.Duration(ps.Config.Worker.HeartbeatTimeoutSeconds/3) * time.Second
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := postgres.Heartbeat(ps.Db, jobID); err != nil {
				fmt.Printf("[%s] - Job %s heartbeat: %v\n", time.Now(), jobID, err)
			}
		}
	}
}

func (ps *ProcessingService) publish(job *models.Job, frameType string, pct float64, message, errText string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := queue.PublishProgress(ctx, ps.Redis, &dtos.ProgressFrameDto{
		Type:        frameType,
		JobID:       job.ID.String(),
		ProgressPct: pct,
		Message:     message,
		Error:       errText,
	})
	if err != nil {
		fmt.Printf("[%s] - Job %s progress publish: %v\n", time.Now(), job.ID, err)
	}
}

func (ps *ProcessingService) audit(job *models.Job, eventType, action, result, details string) {
	err := postgres.AppendAudit(ps.Db, &models.AuditEvent{
		EventType: eventType,
		UserID:    job.UserID,
		Action:    action,
		Result:    result,
		Details:   details,
	})
	if err != nil {
		fmt.Printf("[%s] - Job %s audit append: %v\n", time.Now(), job.ID, err)
	}
}

// scrubJob removes every on-disk trace of a job.
func (ps *ProcessingService) scrubJob(job *models.Job) {
	jobID := job.ID.String()
	for _, dir := range []string{ps.Uploads.JobDir(jobID), ps.Uploads.ResultsDir(jobID)} {
		if err := utils.SecureDeleteDir(dir); err != nil {
			fmt.Printf("[%s] - Job %s scrub %s: %v\n", time.Now(), job.ID, dir, err)
		}
	}
	archive := filepath.Join(ps.Config.Api.DataRoot, "results", jobID+".tar.gz")
	if err := utils.SecureDeleteFile(archive); err != nil {
		fmt.Printf("[%s] - Job %s scrub archive: %v\n", time.Now(), job.ID, err)
	}
	postgres.MarkFilesDeleted(ps.Db, job.ID)
}
