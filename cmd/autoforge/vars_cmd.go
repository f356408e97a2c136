package main

import (
	"fmt"
	"os"

	"github.com/autoforge-project/autoforge/internal/aferrors"
)

// VarsCmd bridges to the Variable Store, mirroring spec.md §6's
// "vars list|get|set <key> [value]". Each subcommand loads the named
// solution file first, since the store is populated from a solution
// document's "variables" block.
type VarsCmd struct {
	List VarsListCmd `cmd:"" help:"list every variable's expanded value (secret values are shown sealed or redacted)"`
	Get  VarsGetCmd  `cmd:"" help:"print one variable's expanded value"`
	Set  VarsSetCmd  `cmd:"" help:"set a variable's value and re-expand it"`
}

type VarsListCmd struct {
	SolutionFile string `arg:"" help:"path to the solution .json/.jsonc file"`
	Solution     string `default:"" placeholder:"<name>" help:"solution name, if the file declares more than one"`
}

func (c *VarsListCmd) Run(cctx *Context) error {
	if _, err := loadSolution(cctx.Vars, c.SolutionFile, c.Solution); err != nil {
		return err
	}
	for _, snap := range cctx.Vars.Export() {
		fmt.Printf("%-32s %s\n", snap.Name, snap.Value)
	}
	return nil
}

type VarsGetCmd struct {
	SolutionFile string `arg:"" help:"path to the solution .json/.jsonc file"`
	Key          string `arg:"" help:"variable name"`
	Solution     string `default:"" placeholder:"<name>" help:"solution name, if the file declares more than one"`
}

func (c *VarsGetCmd) Run(cctx *Context) error {
	if _, err := loadSolution(cctx.Vars, c.SolutionFile, c.Solution); err != nil {
		return err
	}
	value, err := cctx.Vars.Get(c.Key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", aferrors.Normalize(err))
		os.Exit(1)
	}
	fmt.Println(value)
	return nil
}

type VarsSetCmd struct {
	SolutionFile string `arg:"" help:"path to the solution .json/.jsonc file"`
	Key          string `arg:"" help:"variable name"`
	Value        string `arg:"" help:"new value"`
	Solution     string `default:"" placeholder:"<name>" help:"solution name, if the file declares more than one"`
}

func (c *VarsSetCmd) Run(cctx *Context) error {
	if _, err := loadSolution(cctx.Vars, c.SolutionFile, c.Solution); err != nil {
		return err
	}
	if err := cctx.Vars.SetValue(c.Key, c.Value); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", aferrors.Normalize(err))
		os.Exit(1)
	}
	value, _ := cctx.Vars.Get(c.Key)
	fmt.Printf("%s = %s\n", c.Key, value)
	return nil
}
