// Package sweeper runs the background hygiene jobs: retention expiry,
// stuck-job recovery and chunk-session garbage collection.
package sweeper

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/repositories/postgres"
	"github.com/captainzonks/GeneGnome/services"
	"github.com/captainzonks/GeneGnome/utils"
)

type (
	SweeperService struct {
		Initialized bool
		Config      *models.Config
		Db          *sql.DB
		Uploads     *services.UploadService
		scheduler   *gocron.Scheduler
	}
)

func NewSweeperService(cfg *models.Config, db *sql.DB) *SweeperService {
	ss := &SweeperService{
		Config:  cfg,
		Db:      db,
		Uploads: services.NewUploadService(cfg),
	}

	ss.Init()

	return ss
}

func (ss *SweeperService) Init() {
	if ss.Initialized {
		return
	}

	s := gocron.NewScheduler(time.UTC)

	s.Every(15).Minutes().Do(func() {
		if err := ss.SweepExpiredJobs(); err != nil {
			fmt.Printf("[%s] - Retention sweep error: %v\n", time.Now(), err)
		}
	})

	s.Every(5).Minutes().Do(func() {
		if err := ss.SweepStuckJobs(); err != nil {
			fmt.Printf("[%s] - Stuck-job sweep error: %v\n", time.Now(), err)
		}
	})

	s.Every(1).Hours().Do(func() {
		if err := ss.SweepChunkSessions(); err != nil {
			fmt.Printf("[%s] - Chunk-session sweep error: %v\n", time.Now(), err)
		}
	})

	s.StartAsync()
	ss.scheduler = s
	ss.Initialized = true
}

func (ss *SweeperService) Stop() {
	if ss.scheduler != nil {
		ss.scheduler.Stop()
	}
}

// SweepExpiredJobs moves lapsed completed jobs to expired and scrubs
// their data from disk.
func (ss *SweeperService) SweepExpiredJobs() error {
	jobs, err := postgres.FindExpiredJobs(ss.Db)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		transitioned, markErr := postgres.MarkExpired(ss.Db, job.ID)
		if markErr != nil {
			fmt.Printf("[%s] - Expire %s: %v\n", time.Now(), job.ID, markErr)
			continue
		}
		if !transitioned {
			continue
		}

		jobID := job.ID.String()
		for _, dir := range []string{ss.Uploads.JobDir(jobID), ss.Uploads.ResultsDir(jobID)} {
			if scrubErr := utils.SecureDeleteDir(dir); scrubErr != nil {
				fmt.Printf("[%s] - Expire scrub %s: %v\n", time.Now(), dir, scrubErr)
			}
		}
		if job.ResultPath != "" {
			if scrubErr := utils.SecureDeleteFile(job.ResultPath); scrubErr != nil {
				fmt.Printf("[%s] - Expire scrub %s: %v\n", time.Now(), job.ResultPath, scrubErr)
			}
		}
		postgres.MarkFilesDeleted(ss.Db, job.ID)

		postgres.AppendAudit(ss.Db, &models.AuditEvent{
			EventType: "retention",
			UserID:    job.UserID,
			Action:    "expire",
			Result:    "expired",
			Details:   fmt.Sprintf("job=%s", jobID),
		})
		fmt.Printf("[%s] - Expired job %s\n", time.Now(), jobID)
	}
	return nil
}

// SweepStuckJobs fails processing jobs whose worker stopped
// heartbeating.
func (ss *SweeperService) SweepStuckJobs() error {
	startedBefore := time.Duration(ss.Config.Worker.StuckJobThresholdMins) * time.Minute
	heartbeatTimeout := time.Duration(ss.Config.Worker.HeartbeatTimeoutSeconds) * time.Second

	jobs, err := postgres.FindStuckJobs(ss.Db, startedBefore, heartbeatTimeout)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		failed, markErr := postgres.MarkFailed(ss.Db, job.ID, "worker timeout")
		if markErr != nil {
			fmt.Printf("[%s] - Stuck-fail %s: %v\n", time.Now(), job.ID, markErr)
			continue
		}
		if failed {
			postgres.AppendAudit(ss.Db, &models.AuditEvent{
				EventType: "error",
				UserID:    job.UserID,
				Action:    "stuck_job",
				Result:    "failed",
				Details:   fmt.Sprintf("job=%s", job.ID),
			})
			fmt.Printf("[%s] - Failed stuck job %s\n", time.Now(), job.ID)
		}
	}
	return nil
}

// SweepChunkSessions reclaims staging directories idle past the
// configured window.
func (ss *SweeperService) SweepChunkSessions() error {
	idleBefore := time.Now().
		Add(-time.Duration(ss.Config.Retention.ChunkSessionIdleHours) * time.Hour).Unix()
	removed, err := ss.Uploads.SweepIdleChunkSessions(idleBefore)
	if err != nil {
		return err
	}
	if removed > 0 {
		fmt.Printf("[%s] - Removed %d idle chunk sessions\n", time.Now(), removed)
	}
	return nil
}
