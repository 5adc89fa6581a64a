package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw   string
		grade Grade
		ok    bool
	}{
		{"AD", GradeAD, true},
		{" ad ", GradeAD, true},
		{"a", GradeA, true},
		{"B", GradeB, true},
		{"c", GradeC, true},
		{"D", GradeD, true},
		{"F", "", false},
		{"", "", false},
		{"  ", "", false},
		{"A+", "", false},
	}
	for _, tc := range cases {
		grade, ok := Normalize(tc.raw)
		assert.Equal(t, tc.ok, ok, "raw=%q", tc.raw)
		assert.Equal(t, tc.grade, grade, "raw=%q", tc.raw)
	}
}

func TestScoreRoundTrip(t *testing.T) {
	for _, grade := range []Grade{GradeAD, GradeA, GradeB, GradeC, GradeD} {
		score, ok := Score(grade)
		assert.True(t, ok)
		assert.Equal(t, grade, FromScore(score))
	}
}

func TestFromScoreMidpoints(t *testing.T) {
	cases := []struct {
		score float64
		grade Grade
	}{
		{20, GradeAD},
		{18.5, GradeAD},
		{18.4, GradeA},
		{17, GradeA},
		{15.5, GradeA},
		{15.4, GradeB},
		{14, GradeB},
		{12.0, GradeB},
		{11.9, GradeC},
		{10, GradeC},
		{7.5, GradeC},
		{7.4, GradeD},
		{5, GradeD},
		{2, GradeD},
		{0, GradeD},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.grade, FromScore(tc.score), "score=%v", tc.score)
	}
}

func TestScoreOf(t *testing.T) {
	score, ok := ScoreOf(" ad ")
	assert.True(t, ok)
	assert.Equal(t, 20.0, score)

	_, ok = ScoreOf("Z")
	assert.False(t, ok)
}

func TestParseNumeric(t *testing.T) {
	value, ok := ParseNumeric(" 15.5 ")
	assert.True(t, ok)
	assert.Equal(t, 15.5, value)

	_, ok = ParseNumeric("AD")
	assert.False(t, ok)
	_, ok = ParseNumeric("")
	assert.False(t, ok)
}

func TestMean(t *testing.T) {
	mean, ok := Mean([]float64{15, 17})
	assert.True(t, ok)
	assert.Equal(t, 16.0, mean)

	_, ok = Mean(nil)
	assert.False(t, ok)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 16.67, Round2(16.666666))
	assert.Equal(t, 16.0, Round2(16.0))
	// banker's rounding on exact halves
	assert.Equal(t, 16.12, Round2(16.125))
}
