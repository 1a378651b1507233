package result

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeOf(t *testing.T) {
	tests := []struct {
		score int
		want  Grade
	}{
		{100, GradeAPlus}, {90, GradeAPlus}, {89, GradeA}, {80, GradeA}, {79, GradeB}, {70, GradeB},
		{69, GradeC}, {60, GradeC}, {59, GradeD}, {50, GradeD}, {49, GradeF}, {0, GradeF},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.score), func(t *testing.T) {
			assert.Equal(t, tt.want, GradeOf(tt.score))
		})
	}
}

func TestGradeOf_Monotonic(t *testing.T) {
	rank := map[Grade]int{GradeAPlus: 5, GradeA: 4, GradeB: 3, GradeC: 2, GradeD: 1, GradeF: 0}
	for score := 100; score > 0; score-- {
		assert.GreaterOrEqual(t, rank[GradeOf(score)], rank[GradeOf(score-1)], "score %d", score)
	}
}

func TestPositionOrdinal(t *testing.T) {
	tests := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 10: "10th", 11: "11th", 12: "12th", 13: "13th",
		21: "21st", 22: "22nd", 23: "23rd", 100: "100th", 101: "101st", 111: "111th", 112: "112th", 1002: "1002nd",
	}
	for pos, want := range tests {
		t.Run(want, func(t *testing.T) {
			assert.Equal(t, want, PositionOrdinal(pos))
		})
	}
}
