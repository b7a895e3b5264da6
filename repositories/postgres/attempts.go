package postgres

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/captainzonks/GeneGnome/models"
)

// RecordAttempt appends one download-attempt row. The table is
// append-only: rows are never updated or deleted.
func RecordAttempt(db *sql.DB, attempt *models.DownloadAttempt) error {
	_, err := db.Exec(`INSERT INTO download_attempts
		(job_id, result, ip_address, user_agent, token_provided, token_valid, password_provided, password_valid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		attempt.JobID, string(attempt.Result), attempt.IPAddress, attempt.UserAgent,
		attempt.TokenProvided, attempt.TokenValid, attempt.PasswordProvided, attempt.PasswordValid)
	return err
}

// CountRecentAttempts counts attempts on a job inside the rate-limit
// window, successful or not.
func CountRecentAttempts(db *sql.DB, jobID uuid.UUID, window time.Duration) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM download_attempts
		WHERE job_id = $1 AND attempted_at > now() - $2::interval`,
		jobID, window.String()).Scan(&count)
	return count, err
}

// ConsumeDownloadAttempt increments the job's attempt counter and
// verifies the password hash inside one transaction, so a burst of
// concurrent requests cannot spend a single attempt slot twice.
func ConsumeDownloadAttempt(db *sql.DB, jobID uuid.UUID, verify func(passwordHash string) bool) (valid bool, err error) {
	tx, err := db.Begin()
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var passwordHash string
	err = tx.QueryRow(`SELECT password_hash FROM jobs WHERE id = $1 FOR UPDATE`, jobID).
		Scan(&passwordHash)
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(`UPDATE jobs
		SET download_attempts = download_attempts + 1, last_download_attempt = now()
		WHERE id = $1`, jobID)
	if err != nil {
		return false, err
	}

	valid = verify(passwordHash)
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return valid, nil
}
