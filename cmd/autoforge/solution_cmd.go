package main

import (
	"os"
)

// SolutionCmd inspects a loaded solution, mirroring spec.md §6's
// "solution show".
type SolutionCmd struct {
	Show SolutionShowCmd `cmd:"" help:"print the loaded solution tree"`
}

type SolutionShowCmd struct {
	SolutionFile string `arg:"" help:"path to the solution .json/.jsonc file"`
	Solution     string `default:"" placeholder:"<name>" help:"solution name, if the file declares more than one"`
}

func (c *SolutionShowCmd) Run(cctx *Context) error {
	model, err := loadSolution(cctx.Vars, c.SolutionFile, c.Solution)
	if err != nil {
		return err
	}
	return model.Print(os.Stdout)
}
