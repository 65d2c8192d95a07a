// Package prompts serves the instruction templates used by the planner, the
// step executor and the diagram routes.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	PlannerSystem         = "planner_system"
	PlannerUser           = "planner_user"
	ExecutorSystem        = "executor_system"
	ExecutorTask          = "executor_task"
	TerraformGoal         = "terraform_goal"
	InfrastructureDiagram = "infrastructure_diagram"
	SecurityGraph         = "security_graph"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Manager returns built-in templates, letting <name>.md files in Directory
// replace them. Extra *.md files in Directory/executor are appended to the
// executor system prompt.
type Manager struct {
	Directory string
	defaults  map[string]string
}

func NewManager(dir string) (*Manager, error) {
	defaults := make(map[string]string)
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		return nil, fmt.Errorf("failed to parse default prompts: %w", err)
	}
	return &Manager{Directory: dir, defaults: defaults}, nil
}

// Get returns the named template.
func (pm *Manager) Get(name string) (string, error) {
	if pm.Directory != "" {
		data, err := os.ReadFile(filepath.Join(pm.Directory, name+".md"))
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read prompt %s: %w", name, err)
		}
	}

	tpl, ok := pm.defaults[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	return strings.TrimSpace(tpl), nil
}

// Render fills {key} placeholders in the named template.
func (pm *Manager) Render(name string, vars map[string]string) (string, error) {
	tpl, err := pm.Get(name)
	if err != nil {
		return "", err
	}
	return Fill(tpl, vars), nil
}

// Fill replaces {key} placeholders. Unknown placeholders are left untouched.
func Fill(tpl string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(vars)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// fragment order for the executor prompt; unknown files sort by name after these.
var fragmentOrder = map[string]int{
	"identity.md":     1,
	"guidelines.md":   2,
	"capabilities.md": 3,
	"user.md":         4,
}

// ExecutorSystem returns the executor system prompt followed by any fragments
// found in Directory/executor.
func (pm *Manager) ExecutorSystem() (string, error) {
	base, err := pm.Get(ExecutorSystem)
	if err != nil {
		return "", err
	}
	if pm.Directory == "" {
		return base, nil
	}

	dir := filepath.Join(pm.Directory, "executor")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return "", fmt.Errorf("failed to read prompt fragments: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		oi, okI := fragmentOrder[entries[i].Name()]
		oj, okJ := fragmentOrder[entries[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return entries[i].Name() < entries[j].Name()
	})

	contents := []string{base}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return "", fmt.Errorf("failed to read prompt fragment %s: %w", e.Name(), err)
		}
		contents = append(contents, strings.TrimSpace(string(data)))
	}
	return strings.Join(contents, "\n\n---\n\n"), nil
}
