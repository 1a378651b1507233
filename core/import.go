package core

import "fmt"

type (
	ImportFailure struct {
		Row   int    `json:"row"` // 1-based
		Error string `json:"error"`
	}

	// ImportReport summarises a bulk import. Rows are created one by one; a failed row does not stop the import.
	ImportReport struct {
		Total     int             `json:"total"`
		Succeeded int             `json:"succeeded"`
		Failures  []ImportFailure `json:"failures"`
	}
)

func NewImportReport(total int) *ImportReport {
	return &ImportReport{Total: total, Failures: []ImportFailure{}}
}

// Record registers the outcome of the row at index i (0-based).
func (r *ImportReport) Record(i int, err error) {
	if err == nil {
		r.Succeeded++
		return
	}
	r.Failures = append(r.Failures, ImportFailure{Row: i + 1, Error: err.Error()})
}

func (r ImportReport) String() string {
	return fmt.Sprintf("%d of %d succeeded", r.Succeeded, r.Total)
}
