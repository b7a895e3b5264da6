package postgres

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/models/constants"
	"github.com/captainzonks/GeneGnome/models/constants/jobstate"
)

const jobColumns = `id, user_id, user_email, state, progress_pct, output_formats,
	vcf_mode, quality_threshold, error_message, result_path, result_sha256,
	download_token, password_hash, download_attempts, max_download_attempts,
	created_at, started_at, heartbeat_at, completed_at, expires_at, emailed_at,
	last_download_attempt`

func scanJob(row interface{ Scan(...any) error }) (*models.Job, error) {
	var (
		job     models.Job
		state   string
		formats string
		mode    string
		quality string
	)
	err := row.Scan(&job.ID, &job.UserID, &job.UserEmail, &state, &job.ProgressPct,
		&formats, &mode, &quality, &job.ErrorMessage, &job.ResultPath, &job.ResultSha256,
		&job.DownloadToken, &job.PasswordHash, &job.DownloadAttempts, &job.MaxDownloadAttempts,
		&job.CreatedAt, &job.StartedAt, &job.HeartbeatAt, &job.CompletedAt, &job.ExpiresAt,
		&job.EmailedAt, &job.LastDownloadAttempt)
	if err != nil {
		return nil, err
	}

	job.State = constants.JobState(state)
	job.VcfMode = constants.VcfMode(mode)
	job.QualityThreshold = constants.QualityThreshold(quality)
	for _, f := range strings.Split(formats, ",") {
		if f != "" {
			job.OutputFormats = append(job.OutputFormats, constants.OutputFormat(f))
		}
	}
	return &job, nil
}

func joinFormats(formats []constants.OutputFormat) string {
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

func CreateJob(db *sql.DB, job *models.Job) error {
	_, err := db.Exec(`INSERT INTO jobs
		(id, user_id, user_email, state, output_formats, vcf_mode, quality_threshold, max_download_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.UserID, job.UserEmail, string(jobstate.Pending),
		joinFormats(job.OutputFormats), string(job.VcfMode), string(job.QualityThreshold),
		job.MaxDownloadAttempts)
	return err
}

func GetJob(db *sql.DB, id uuid.UUID) (*models.Job, error) {
	job, err := scanJob(db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// GetJobForUser scopes the read to the owning user; other users see
// nothing, not an authorization error.
func GetJobForUser(db *sql.DB, id uuid.UUID, userID string) (*models.Job, error) {
	job, err := scanJob(db.QueryRow(
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND user_id = $2`, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

func GetJobByToken(db *sql.DB, token string) (*models.Job, error) {
	job, err := scanJob(db.QueryRow(
		`SELECT `+jobColumns+` FROM jobs WHERE download_token = $1`, token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// MarkProcessing performs the conditional pending→processing
// transition. Returns false when another worker already claimed the
// job; the queue is at-least-once, so duplicate deliveries happen.
func MarkProcessing(db *sql.DB, id uuid.UUID) (bool, error) {
	result, err := db.Exec(`UPDATE jobs
		SET state = $2, started_at = now(), heartbeat_at = now()
		WHERE id = $1 AND state = $3`,
		id, string(jobstate.Processing), string(jobstate.Pending))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

func Heartbeat(db *sql.DB, id uuid.UUID) error {
	_, err := db.Exec(`UPDATE jobs SET heartbeat_at = now()
		WHERE id = $1 AND state = $2`, id, string(jobstate.Processing))
	return err
}

func UpdateProgress(db *sql.DB, id uuid.UUID, pct float64) error {
	_, err := db.Exec(`UPDATE jobs SET progress_pct = GREATEST(progress_pct, $2)
		WHERE id = $1 AND state = $3`, id, pct, string(jobstate.Processing))
	return err
}

// MarkCompleted finishes a processing job and arms the download
// credentials in one statement.
func MarkCompleted(db *sql.DB, id uuid.UUID, resultPath, resultSha256, token, passwordHash string, expiresAt time.Time) (bool, error) {
	result, err := db.Exec(`UPDATE jobs
		SET state = $2, progress_pct = 100, completed_at = now(),
			result_path = $4, result_sha256 = $5,
			download_token = $6, password_hash = $7, expires_at = $8
		WHERE id = $1 AND state = $3`,
		id, string(jobstate.Completed), string(jobstate.Processing),
		resultPath, resultSha256, token, passwordHash, expiresAt)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

func MarkFailed(db *sql.DB, id uuid.UUID, message string) (bool, error) {
	result, err := db.Exec(`UPDATE jobs SET state = $2, error_message = $3
		WHERE id = $1 AND state IN ($4, $5)`,
		id, string(jobstate.Failed), message,
		string(jobstate.Pending), string(jobstate.Processing))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

func MarkEmailed(db *sql.DB, id uuid.UUID) error {
	_, err := db.Exec(`UPDATE jobs SET emailed_at = now() WHERE id = $1`, id)
	return err
}

func MarkExpired(db *sql.DB, id uuid.UUID) (bool, error) {
	result, err := db.Exec(`UPDATE jobs SET state = $2
		WHERE id = $1 AND state = $3`,
		id, string(jobstate.Expired), string(jobstate.Completed))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

// MarkUserDeleted honors a user's deletion request from any
// non-terminal state.
func MarkUserDeleted(db *sql.DB, id uuid.UUID, userID string) (bool, error) {
	result, err := db.Exec(`UPDATE jobs SET state = $3
		WHERE id = $1 AND user_id = $2 AND state IN ($4, $5, $6)`,
		id, userID, string(jobstate.UserDeleted),
		string(jobstate.Pending), string(jobstate.Processing), string(jobstate.Completed))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

// FindExpiredJobs returns completed jobs whose retention window has
// lapsed; the retention sweeper expires and scrubs them.
func FindExpiredJobs(db *sql.DB) ([]*models.Job, error) {
	return queryJobs(db, `SELECT `+jobColumns+` FROM jobs
		WHERE state = $1 AND expires_at IS NOT NULL AND expires_at < now()`,
		string(jobstate.Completed))
}

// FindStuckJobs returns processing jobs with both a stale start and a
// stale heartbeat.
func FindStuckJobs(db *sql.DB, startedBefore time.Duration, heartbeatTimeout time.Duration) ([]*models.Job, error) {
	return queryJobs(db, `SELECT `+jobColumns+` FROM jobs
		WHERE state = $1
		  AND started_at < now() - $2::interval
		  AND (heartbeat_at IS NULL OR heartbeat_at < now() - $3::interval)`,
		string(jobstate.Processing),
		startedBefore.String(), heartbeatTimeout.String())
}

func queryJobs(db *sql.DB, query string, args ...any) ([]*models.Job, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
