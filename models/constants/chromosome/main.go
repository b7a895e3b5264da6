package chromosome

import (
	"fmt"
	"strconv"
	"strings"
)

// The engine only merges autosomes; X, Y and MT are ignored upstream.
const Count = 22

func ValidListOfAutosomes() []string {
	var autosomes []string
	for i := 1; i <= Count; i++ {
		autosomes = append(autosomes, fmt.Sprint(i))
	}
	return autosomes
}

func IsValidAutosome(text string) bool {
	chromNumber, err := strconv.Atoi(strings.TrimPrefix(text, "chr"))
	if err != nil {
		return false
	}
	return chromNumber >= 1 && chromNumber <= Count
}

// CastToAutosome parses "7" or "chr7" into 7, or 0 when the text is
// not an autosome.
func CastToAutosome(text string) uint8 {
	chromNumber, err := strconv.Atoi(strings.TrimPrefix(text, "chr"))
	if err != nil || chromNumber < 1 || chromNumber > Count {
		return 0
	}
	return uint8(chromNumber)
}
