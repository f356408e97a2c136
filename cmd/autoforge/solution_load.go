package main

import (
	"github.com/autoforge-project/autoforge/internal/jsonc"
	"github.com/autoforge-project/autoforge/internal/solution"
	"github.com/autoforge-project/autoforge/internal/variables"
)

// loadSolution preprocesses and decodes path into a Document, then seeds
// vars from its top-level "variables" block before returning the named (or
// first) solution as a queryable Model.
func loadSolution(vars *variables.Store, path, solutionName string) (*solution.Model, error) {
	raw, err := jsonc.New().Preprocess(path)
	if err != nil {
		return nil, err
	}
	doc, err := solution.LoadDocument(raw)
	if err != nil {
		return nil, err
	}

	vars.Configure(doc.AutoPrefix, solutionName, doc.ForceUpperCaseNames, variables.Defaults{
		PathMustExist:        doc.Defaults.PathMustExist,
		CreatePathIfNotExist: doc.Defaults.CreatePathIfNotExist,
	})
	for _, v := range doc.Variables {
		if err := vars.Add(v.Name, v.Value, variables.AddOptions{
			Description:          v.Description,
			PathMustExist:        v.PathMustExist,
			CreatePathIfNotExist: v.CreatePathIfNotExist,
			IsSecret:             v.IsSecret,
		}); err != nil {
			return nil, err
		}
	}

	s, err := doc.FindSolution(solutionName)
	if err != nil {
		return nil, err
	}
	return solution.Load(s)
}
