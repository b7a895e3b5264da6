package vcfmode

import (
	"github.com/captainzonks/GeneGnome/models/constants"
)

const (
	Merged        constants.VcfMode = "merged"
	PerChromosome constants.VcfMode = "per_chromosome"
)

func IsKnown(text string) bool {
	switch constants.VcfMode(text) {
	case Merged, PerChromosome:
		return true
	}
	return false
}

func CastToVcfMode(text string) constants.VcfMode {
	if IsKnown(text) {
		return constants.VcfMode(text)
	}
	return Merged
}
