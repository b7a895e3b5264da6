package source

import (
	"github.com/captainzonks/GeneGnome/models/constants"
)

const (
	// Genotyped calls come straight from the consumer genotype file.
	Genotyped constants.CallSource = "Genotyped"
	// Imputed calls carry a dosage from the imputation service at or
	// above the job's quality threshold.
	Imputed constants.CallSource = "Imputed"
	// ImputedLowQuality calls are imputed below the threshold; the
	// dosage is kept, only the tag differs.
	ImputedLowQuality constants.CallSource = "ImputedLowQuality"
	// Reference marks the user sample at panel positions with neither
	// an imputed record nor a resolvable consumer genotype.
	Reference constants.CallSource = "Reference"
)

func IsKnown(text string) bool {
	switch constants.CallSource(text) {
	case Genotyped, Imputed, ImputedLowQuality, Reference:
		return true
	}
	return false
}
