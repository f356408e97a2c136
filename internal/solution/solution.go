// Package solution implements the Solution Model: a read-only query surface
// over a parsed solution tree loaded from a JSONC configuration file.
package solution

import (
	"fmt"

	"github.com/autoforge-project/autoforge/internal/aferrors"
)

// RequiredTool describes one entry of a toolchain's required_tools map.
type RequiredTool struct {
	Path             string   `json:"path,omitempty"`
	VersionConstraint string  `json:"version,omitempty"`
	Options          []string `json:"options,omitempty"`
}

// Toolchain mirrors the solution schema's tool_chain object.
type Toolchain struct {
	Name          string                  `json:"name"`
	Architecture  string                  `json:"architecture"`
	RequiredTools map[string]RequiredTool `json:"required_tools"`
	BuildSystem   string                  `json:"build_system"`
}

// Configuration mirrors one entry of a project's configurations list.
type Configuration struct {
	Name            string            `json:"name"`
	BuildPath       string            `json:"build_path"`
	ExecuteFrom     string            `json:"execute_from,omitempty"`
	CompilerOptions []string          `json:"compiler_options"`
	Artifacts       []string          `json:"artifacts"`
	PreBuildSteps   *OrderedSteps     `json:"pre_build_steps,omitempty"`
	PostBuildSteps  *OrderedSteps     `json:"post_build_steps,omitempty"`
	Clean           string            `json:"clean,omitempty"`
	Board           string            `json:"board,omitempty"`
}

// Project mirrors one entry of a solution's projects list.
type Project struct {
	Name           string          `json:"name"`
	Toolchain      Toolchain       `json:"tool_chain"`
	Configurations []Configuration `json:"configurations"`
}

// Solution is the top-level tree: a named grouping of projects.
type Solution struct {
	Name     string    `json:"name"`
	Projects []Project `json:"projects"`
}

// Model is the read-only, loaded view of a single solution file. It never
// mutates after Load; all query methods are pure.
type Model struct {
	solution Solution
}

// Load builds a Model from an already-decoded solution tree (typically the
// "solutions"[0] entry of a preprocessed JSONC document).
func Load(s Solution) (*Model, error) {
	seen := map[string]struct{}{}
	for _, p := range s.Projects {
		if _, dup := seen[p.Name]; dup {
			return nil, aferrors.New(aferrors.KindDuplicate, fmt.Sprintf("project %q declared more than once in solution %q", p.Name, s.Name))
		}
		seen[p.Name] = struct{}{}

		confSeen := map[string]struct{}{}
		for _, c := range p.Configurations {
			if _, dup := confSeen[c.Name]; dup {
				return nil, aferrors.New(aferrors.KindDuplicate, fmt.Sprintf("configuration %q declared more than once in project %q", c.Name, p.Name))
			}
			confSeen[c.Name] = struct{}{}
		}
	}
	return &Model{solution: s}, nil
}

// GetLoadedSolution returns the full solution tree.
func (m *Model) GetLoadedSolution() Solution { return m.solution }

// Name returns the solution's name.
func (m *Model) Name() string { return m.solution.Name }

// QueryProjects returns projects in declaration order.
func (m *Model) QueryProjects() []Project { return m.solution.Projects }

func (m *Model) findProject(projectName string) (*Project, error) {
	for i := range m.solution.Projects {
		if m.solution.Projects[i].Name == projectName {
			return &m.solution.Projects[i], nil
		}
	}
	return nil, aferrors.New(aferrors.KindUnknown, fmt.Sprintf("unknown project %q", projectName))
}

// QueryConfiguration returns a single named configuration within a project.
func (m *Model) QueryConfiguration(projectName, configurationName string) (*Configuration, error) {
	p, err := m.findProject(projectName)
	if err != nil {
		return nil, err
	}
	for i := range p.Configurations {
		if p.Configurations[i].Name == configurationName {
			return &p.Configurations[i], nil
		}
	}
	return nil, aferrors.New(aferrors.KindUnknown, fmt.Sprintf("unknown configuration %q in project %q", configurationName, projectName))
}

// QueryConfigurations returns every configuration declared for a project.
func (m *Model) QueryConfigurations(projectName string) ([]Configuration, error) {
	p, err := m.findProject(projectName)
	if err != nil {
		return nil, err
	}
	return p.Configurations, nil
}

// GetConfigurationsList returns just the configuration names for a project.
func (m *Model) GetConfigurationsList(projectName string) ([]string, error) {
	configs, err := m.QueryConfigurations(projectName)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(configs))
	for i, c := range configs {
		names[i] = c.Name
	}
	return names, nil
}

// Toolchain returns the resolved toolchain descriptor for a project.
func (m *Model) Toolchain(projectName string) (*Toolchain, error) {
	p, err := m.findProject(projectName)
	if err != nil {
		return nil, err
	}
	return &p.Toolchain, nil
}
