package result

import (
	"math"
	"sort"

	"github.com/zhuluh247/MySchool/core/student"
)

// Standing is the rank of a student within a cohort.
type Standing struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Average   int    `json:"average"`
	Position  int    `json:"position"`
}

// AverageOf returns the mean score of results rounded half up, 0 when there are none.
func AverageOf(results []Result) int {
	if len(results) == 0 {
		return 0
	}
	sum := 0
	for _, r := range results {
		sum += r.Score
	}
	return int(math.Floor(float64(sum)/float64(len(results)) + .5))
}

// Rank ranks the students of class for term by average score, best first.
// Class membership comes from the roster. Equal averages keep the order in which
// the students first appear in results and still get distinct positions.
func Rank(results []Result, roster []student.Student, class string, term int) []Standing {
	names := make(map[string]string)
	for _, st := range roster {
		if st.Class == class {
			names[st.ID] = st.Name
		}
	}

	var order []string
	byStudent := make(map[string][]Result)
	for _, r := range results {
		if r.Term != term {
			continue
		}
		if _, ok := names[r.StudentID]; !ok {
			continue
		}
		if _, seen := byStudent[r.StudentID]; !seen {
			order = append(order, r.StudentID)
		}
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
	}

	standings := make([]Standing, 0, len(order))
	for _, id := range order {
		standings = append(standings, Standing{StudentID: id, Name: names[id], Average: AverageOf(byStudent[id])})
	}
	sort.SliceStable(standings, func(i, j int) bool { return standings[i].Average > standings[j].Average })
	for i := range standings {
		standings[i].Position = i + 1
	}
	return standings
}

// RankCohort maps the id of every ranked student of the cohort to its position.
func RankCohort(results []Result, roster []student.Student, class string, term int) map[string]int {
	positions := make(map[string]int)
	for _, s := range Rank(results, roster, class, term) {
		positions[s.StudentID] = s.Position
	}
	return positions
}
