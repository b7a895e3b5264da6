package postgres

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/captainzonks/GeneGnome/models"
)

func CreateFileRecord(db *sql.DB, record *models.FileRecord) error {
	return db.QueryRow(`INSERT INTO files (job_id, file_name, file_type, size_bytes, sha256)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		record.JobID, record.FileName, record.FileType, record.SizeBytes, record.Sha256,
	).Scan(&record.ID)
}

func ListFiles(db *sql.DB, jobID uuid.UUID) ([]*models.FileRecord, error) {
	rows, err := db.Query(`SELECT id, job_id, file_name, file_type, size_bytes, sha256,
			uploaded_at, deleted_at
		FROM files WHERE job_id = $1 ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.FileRecord
	for rows.Next() {
		var record models.FileRecord
		err = rows.Scan(&record.ID, &record.JobID, &record.FileName, &record.FileType,
			&record.SizeBytes, &record.Sha256, &record.UploadedAt, &record.DeletedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// MarkFilesDeleted stamps every live file row of a job; the physical
// bytes are scrubbed separately.
func MarkFilesDeleted(db *sql.DB, jobID uuid.UUID) error {
	_, err := db.Exec(`UPDATE files SET deleted_at = now()
		WHERE job_id = $1 AND deleted_at IS NULL`, jobID)
	return err
}
