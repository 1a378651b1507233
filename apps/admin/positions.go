package main

import (
	"context"
	"fmt"

	"github.com/zhuluh247/MySchool/core"
)

// computePositions ranks a class for a term and prints the standings.
func (cli *commandLine) computePositions(class string, term int) error {
	if term < 1 || term > 3 {
		return fmt.Errorf("term must be 1, 2 or 3 (got %d)", term)
	}
	class = core.CleanString(class)

	report, err := cli.results.ComputePositions(context.Background(), class, term, "admin")
	if err != nil {
		return err
	}
	for _, s := range report.Standings {
		_, _ = fmt.Fprintf(cli.out, "%3d  %-30s %3d\n", s.Position, s.Name, s.Average)
	}
	_, _ = fmt.Fprintf(cli.out, "%s term %d: %d results updated, %d failed\n", report.Class, report.Term, report.Updated, report.Failed)
	if report.Failed > 0 {
		return fmt.Errorf("%d results could not be updated; run the command again", report.Failed)
	}
	return nil
}
