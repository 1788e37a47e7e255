package inspection

import (
	"math"
	"strconv"
	"strings"
)

// ScoreField selects which score of a row is being edited.
type ScoreField string

const (
	ScoreMax    ScoreField = "max"
	ScoreActual ScoreField = "actual"
)

// ScoreResult reports the stored values after a score edit.
// Clamped is true when the actual score was lowered to fit the max score.
type ScoreResult struct {
	MaxScore    float64 `json:"maxScore"`
	ActualScore float64 `json:"actualScore"`
	Clamped     bool    `json:"clamped"`
}

// ParseScoreOrZero converts free-form score input to a non-negative number.
// Empty, non-numeric, NaN, infinite and negative inputs all become 0.
func ParseScoreOrZero(input string) float64 {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// round2 rounds half away from zero to two decimals
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
