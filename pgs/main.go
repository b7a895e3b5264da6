// Package pgs parses optional polygenic score uploads: tab-separated
// rows of sample id, score label and raw value. Raw values are kept
// as-is and z-score scaled per label so scores from different
// instruments are comparable across the 51 samples.
package pgs

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Score is one sample's value for one score label, in both raw and
// label-scaled form.
type Score struct {
	SampleID string
	Label    string
	Raw      float64
	Scaled   float64
}

// ParseError reports a malformed score row.
type ParseError struct {
	Line   int
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed scores file at line %d: %s", e.Line, e.Detail)
}

func Open(path string) ([]Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the whole file and z-score scales each label's values.
// A label whose values have zero variance scales to all zeros.
func Parse(r io.Reader) ([]Score, error) {
	scanner := bufio.NewScanner(r)

	var scores []Score
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, &ParseError{
				Line:   lineNumber,
				Detail: fmt.Sprintf("expected 3 tab-separated fields, found %d", len(fields)),
			}
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return nil, &ParseError{
				Line:   lineNumber,
				Detail: fmt.Sprintf("non-numeric score value %q", fields[2]),
			}
		}

		scores = append(scores, Score{
			SampleID: strings.TrimSpace(fields[0]),
			Label:    strings.TrimSpace(fields[1]),
			Raw:      value,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	scale(scores)
	return scores, nil
}

func scale(scores []Score) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range scores {
		sums[s.Label] += s.Raw
		counts[s.Label]++
	}

	means := make(map[string]float64, len(sums))
	for label, sum := range sums {
		means[label] = sum / float64(counts[label])
	}

	variances := make(map[string]float64, len(sums))
	for _, s := range scores {
		diff := s.Raw - means[s.Label]
		variances[s.Label] += diff * diff
	}

	stddevs := make(map[string]float64, len(sums))
	for label, variance := range variances {
		stddevs[label] = math.Sqrt(variance / float64(counts[label]))
	}

	for i := range scores {
		sd := stddevs[scores[i].Label]
		if sd == 0 {
			scores[i].Scaled = 0
			continue
		}
		scores[i].Scaled = (scores[i].Raw - means[scores[i].Label]) / sd
	}
}
