package models

import (
	"fmt"
	"time"

	"github.com/captainzonks/GeneGnome/models/constants"
	"github.com/google/uuid"
)

// SampleCall is one sample's state at one variant position.
type SampleCall struct {
	SampleID string               `json:"sampleId"`
	Genotype string               `json:"genotype"` // phased pair, e.g. "0|1"
	Dosage   float64              `json:"dosage"`   // 0.0 - 2.0
	Source   constants.CallSource `json:"source"`
	// Quality is the variant-level R²; NaN when the call is not imputed.
	Quality float64 `json:"quality"`
}

// MergedVariant is the unit of emission by the merge engine: one
// (chromosome, position, ref, alt) with exactly 51 sample calls.
type MergedVariant struct {
	Rsid            string       `json:"rsid"`
	Chromosome      uint8        `json:"chromosome"`
	Position        uint64       `json:"position"`
	RefAllele       string       `json:"refAllele"`
	AltAllele       string       `json:"altAllele"`
	AlleleFreq      float64      `json:"alleleFreq"`      // NaN when absent
	MinorAlleleFreq float64      `json:"minorAlleleFreq"` // NaN when absent
	IsTyped         bool         `json:"isTyped"`
	Samples         []SampleCall `json:"samples"`
}

// Key returns the identity tuple used for duplicate suppression.
func (v *MergedVariant) Key() string {
	return fmt.Sprintf("%d:%d:%s:%s", v.Chromosome, v.Position, v.RefAllele, v.AltAllele)
}

// UserSample returns the submitting user's call (samp51), which is
// always last in the fixed sample ordering.
func (v *MergedVariant) UserSample() *SampleCall {
	if len(v.Samples) == 0 {
		return nil
	}
	return &v.Samples[len(v.Samples)-1]
}

// SampleIDs is the closed, ordered 51-sample identifier set.
func SampleIDs() []string {
	ids := make([]string, 0, constants.TotalSampleCount)
	for i := 1; i <= constants.TotalSampleCount; i++ {
		ids = append(ids, fmt.Sprintf("samp%d", i))
	}
	return ids
}

// Job is one submission flowing through the state machine.
type Job struct {
	ID                  uuid.UUID
	UserID              string
	UserEmail           string
	State               constants.JobState
	ProgressPct         float64
	OutputFormats       []constants.OutputFormat
	VcfMode             constants.VcfMode
	QualityThreshold    constants.QualityThreshold
	ErrorMessage        string
	ResultPath          string
	ResultSha256        string
	DownloadToken       string
	PasswordHash        string
	DownloadAttempts    int
	MaxDownloadAttempts int
	CreatedAt           time.Time
	StartedAt           *time.Time
	HeartbeatAt         *time.Time
	CompletedAt         *time.Time
	ExpiresAt           *time.Time
	EmailedAt           *time.Time
	LastDownloadAttempt *time.Time
}

// FileRecord tracks one staged or produced file for a job.
type FileRecord struct {
	ID         int64
	JobID      uuid.UUID
	FileName   string
	FileType   string
	SizeBytes  int64
	Sha256     string
	UploadedAt time.Time
	DeletedAt  *time.Time
}

// DownloadAttempt is an append-only row recording one hit on the
// download endpoint.
type DownloadAttempt struct {
	JobID            uuid.UUID
	AttemptedAt      time.Time
	Result           constants.AttemptResult
	IPAddress        string
	UserAgent        string
	TokenProvided    bool
	TokenValid       bool
	PasswordProvided bool
	PasswordValid    bool
}

// AuditEvent is one append-only audit row.
type AuditEvent struct {
	EventType string
	UserID    string
	SessionID string
	IPAddress string
	Action    string
	Result    string
	Details   string
	Severity  string
	CreatedAt time.Time
}

// ChromosomeStats accumulates per-chromosome merge accounting; the
// totals land in every output's metadata block.
type ChromosomeStats struct {
	Chromosome        uint8
	Variants          int
	UserGenotyped     int
	UserImputed       int
	UserImputedLowQ   int
	UserReferenceOnly int
	IndelsDropped     int
	AlleleMismatches  int
}

// MergeTotals sums ChromosomeStats across all 22 autosomes.
type MergeTotals struct {
	PerChromosome     map[uint8]ChromosomeStats
	Variants          int
	UserGenotyped     int
	UserImputed       int
	UserImputedLowQ   int
	UserReferenceOnly int
	IndelsDropped     int
	AlleleMismatches  int
}

func NewMergeTotals() *MergeTotals {
	return &MergeTotals{PerChromosome: make(map[uint8]ChromosomeStats)}
}

func (t *MergeTotals) Add(s ChromosomeStats) {
	t.PerChromosome[s.Chromosome] = s
	t.Variants += s.Variants
	t.UserGenotyped += s.UserGenotyped
	t.UserImputed += s.UserImputed
	t.UserImputedLowQ += s.UserImputedLowQ
	t.UserReferenceOnly += s.UserReferenceOnly
	t.IndelsDropped += s.IndelsDropped
	t.AlleleMismatches += s.AlleleMismatches
}
