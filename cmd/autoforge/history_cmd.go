package main

import (
	"fmt"
	"os"
)

// HistoryCmd queries the build-run ledger (internal/history), a feature
// spec.md's distillation dropped but original_source's progress_tracker.py
// and summary_patcher.py tracked.
type HistoryCmd struct {
	List HistoryListCmd `cmd:"" help:"list recorded build runs, most recent first"`
	Show HistoryShowCmd `cmd:"" help:"show one build run by id"`
}

type HistoryListCmd struct{}

func (c *HistoryListCmd) Run(cctx *Context) error {
	runs, err := cctx.History.List()
	if err != nil {
		return err
	}
	for _, r := range runs {
		exit := "-"
		if r.ExitCode != nil {
			exit = fmt.Sprintf("%d", *r.ExitCode)
		}
		fmt.Printf("%s  %-24s %s/%s/%s  state=%s exit=%s\n", r.ID, r.RunName, r.SolutionName, r.ProjectName, r.ConfigName, r.FinalState, exit)
	}
	return nil
}

type HistoryShowCmd struct {
	ID string `arg:"" help:"build run id"`
}

func (c *HistoryShowCmd) Run(cctx *Context) error {
	r, err := cctx.History.Show(c.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("id:            %s\n", r.ID)
	fmt.Printf("run name:      %s\n", r.RunName)
	fmt.Printf("solution:      %s\n", r.SolutionName)
	fmt.Printf("project:       %s\n", r.ProjectName)
	fmt.Printf("configuration: %s\n", r.ConfigName)
	fmt.Printf("started at:    %s\n", r.StartedAt)
	if r.EndedAt != nil {
		fmt.Printf("ended at:      %s\n", *r.EndedAt)
	}
	fmt.Printf("final state:   %s\n", r.FinalState)
	if r.ExitCode != nil {
		fmt.Printf("exit code:     %d\n", *r.ExitCode)
	}
	if r.ErrorKind != "" {
		fmt.Printf("error:         %s\n", r.ErrorKind)
	}
	if r.DurationMs != nil {
		fmt.Printf("duration:      %dms\n", *r.DurationMs)
	}
	return nil
}
