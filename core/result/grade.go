package result

import "strconv"

// Grade is the letter band of a score.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// GradeOf returns the grade band of score.
func GradeOf(score int) Grade {
	switch {
	case score >= 90:
		return GradeAPlus
	case score >= 80:
		return GradeA
	case score >= 70:
		return GradeB
	case score >= 60:
		return GradeC
	case score >= 50:
		return GradeD
	}
	return GradeF
}

// PositionOrdinal formats a position as an English ordinal: 1st, 2nd, 3rd, 4th, 11th, 21st...
func PositionOrdinal(position int) string {
	suffix := "th"
	if v := position % 100; v < 11 || v > 13 {
		switch v % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(position) + suffix
}
