package grading

import (
	"math"
	"strconv"
	"strings"
)

// Grade is a letter on the institutional qualification scale.
type Grade string

// Scale letters, best to worst.
const (
	GradeAD Grade = "AD"
	GradeA  Grade = "A"
	GradeB  Grade = "B"
	GradeC  Grade = "C"
	GradeD  Grade = "D"
)

// order lists the scale best to worst; scores maps each letter to its
// numeric value. FromScore depends on order being strictly descending.
var order = []Grade{GradeAD, GradeA, GradeB, GradeC, GradeD}

var scores = map[Grade]float64{
	GradeAD: 20,
	GradeA:  17,
	GradeB:  14,
	GradeC:  10,
	GradeD:  5,
}

// Normalize trims and uppercases raw and reports whether the result is a
// known letter. It never errors: callers decide whether an unknown letter
// means "absent" or "rejected".
func Normalize(raw string) (Grade, bool) {
	g := Grade(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := scores[g]; !ok {
		return "", false
	}
	return g, true
}

// Score returns the numeric value of a letter grade.
func Score(g Grade) (float64, bool) {
	v, ok := scores[g]
	return v, ok
}

// ScoreOf normalizes raw and returns its numeric value.
func ScoreOf(raw string) (float64, bool) {
	g, ok := Normalize(raw)
	if !ok {
		return 0, false
	}
	return scores[g], true
}

// FromScore buckets a numeric score back onto the scale. Walking best to
// worst, a score belongs to the first letter whose midpoint with the
// next-lower letter it reaches; D is the floor for everything below.
func FromScore(score float64) Grade {
	for i, g := range order {
		if i == len(order)-1 {
			return g
		}
		midpoint := (scores[g] + scores[order[i+1]]) / 2
		if score >= midpoint {
			return g
		}
	}
	return order[len(order)-1]
}

// ParseNumeric parses raw as a plain decimal number. Used by the roster
// cross-subject average, which treats qualifications as numeric strings
// rather than letters.
func ParseNumeric(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Mean returns the arithmetic mean of values, or false when empty.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

// Round2 rounds to two decimal places, half to even.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
