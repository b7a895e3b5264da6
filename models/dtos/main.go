package dtos

import (
	"time"

	"github.com/captainzonks/GeneGnome/models/constants"
	"github.com/google/uuid"
)

// -- Generic error response

type GeneralErrorResponseDto struct {
	Code      int            `json:"code"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Errors    []GeneralError `json:"errors"`
}

type GeneralError struct {
	Message string `json:"message"`
}

// -- Jobs

type JobSubmitResponseDto struct {
	JobID     uuid.UUID          `json:"jobId"`
	State     constants.JobState `json:"state"`
	CreatedAt time.Time          `json:"createdAt"`
}

type JobStatusResponseDto struct {
	JobID         uuid.UUID                `json:"jobId"`
	State         constants.JobState       `json:"state"`
	ProgressPct   float64                  `json:"progressPct"`
	OutputFormats []constants.OutputFormat `json:"outputFormats"`
	VcfMode       constants.VcfMode        `json:"vcfMode"`
	CreatedAt     time.Time                `json:"createdAt"`
	StartedAt     *time.Time               `json:"startedAt,omitempty"`
	CompletedAt   *time.Time               `json:"completedAt,omitempty"`
	ExpiresAt     *time.Time               `json:"expiresAt,omitempty"`
	ErrorMessage  string                   `json:"errorMessage,omitempty"`
}

// -- Progress frames (also the wire format on the Redis channel)

type ProgressFrameDto struct {
	Type        string  `json:"type"`
	JobID       string  `json:"jobId"`
	ProgressPct float64 `json:"progress_pct"`
	Message     string  `json:"message"`
	Error       string  `json:"error,omitempty"`
}

// -- Chunked uploads

type ChunkUploadResponseDto struct {
	UploadID    string `json:"uploadId"`
	FileName    string `json:"filename"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
	Received    int64  `json:"receivedBytes"`
}

type FinalizeResponseDto struct {
	JobID     uuid.UUID          `json:"jobId"`
	State     constants.JobState `json:"state"`
	FileCount int                `json:"fileCount"`
	CreatedAt time.Time          `json:"createdAt"`
}

// -- Result manifest, returned inside the packaged archive and from
//    the per-chromosome VCF mode

type ManifestFileDto struct {
	Name      string `json:"name"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"sizeBytes"`
	Sha256    string `json:"sha256"`
}

type ManifestDto struct {
	JobID               string            `json:"jobId"`
	PanelVersion        string            `json:"panelVersion"`
	QualityThreshold    string            `json:"qualityThreshold"`
	ReferenceOnlyPolicy string            `json:"referenceOnlyPolicy"`
	GeneratedAt         time.Time         `json:"generatedAt"`
	Files               []ManifestFileDto `json:"files"`
	VariantTotals       map[string]int    `json:"variantTotals"`
	PerChromosome       map[string]int    `json:"perChromosome"`
}
