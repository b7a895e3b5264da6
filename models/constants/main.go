package constants

type (
	// CallSource tags where a sample's dosage at a variant came from.
	CallSource string

	// QualityThreshold selects the job-level imputation-quality policy.
	QualityThreshold string

	// JobState is a node in the job lifecycle state machine.
	JobState string

	// OutputFormat names one of the downstream export formats.
	OutputFormat string

	// VcfMode selects merged or per-chromosome VCF output.
	VcfMode string

	// AttemptResult classifies one download attempt.
	AttemptResult string
)

// Fixed 51-sample cohort: samp1..samp50 are the reference panel,
// samp51 is the submitting user. Order matters downstream.
const (
	ReferenceSampleCount = 50
	TotalSampleCount     = 51
	UserSampleID         = "samp51"
)
