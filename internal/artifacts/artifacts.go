// Package artifacts manages the files a review run reads and writes in its
// working directory.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	OriginalInput         = "original.tf"
	LogsInput             = "logs.json"
	OriginalTerraform     = "original_terraform.tf"
	OriginalGraph         = "original_graph.txt"
	Report                = "report.txt"
	ChangedTerraform      = "changed_terraform.tf"
	ChangedGraph          = "changed_graph.txt"
	InfrastructureData    = "infrastructure_data.json"
	InfrastructureDiagram = "infrastructure_diagram.txt"
	SecurityGraph         = "security_relationship_graph.txt"
)

// ReviewOutputs are the files the review steps must have written.
var ReviewOutputs = []string{Report, OriginalGraph, ChangedGraph, ChangedTerraform}

// MissingInputError means a required input file is absent.
type MissingInputError struct {
	Name string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s file not found in the current directory. Please ensure the file exists.", e.Name)
}

// IncompleteRunError lists expected outputs that no step produced.
type IncompleteRunError struct {
	Missing []string
}

func (e *IncompleteRunError) Error() string {
	return "incomplete run: missing " + strings.Join(e.Missing, ", ")
}

// Workspace is the directory a run works in.
type Workspace struct {
	Dir string
}

func NewWorkspace(dir string) *Workspace {
	if dir == "" {
		dir = "."
	}
	return &Workspace{Dir: dir}
}

func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Inputs are the review's source files.
type Inputs struct {
	Terraform string
	Logs      json.RawMessage
}

// LoadInputs reads original.tf and logs.json. logs.json must hold valid JSON.
func (w *Workspace) LoadInputs() (*Inputs, error) {
	tf, err := os.ReadFile(w.Path(OriginalInput))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingInputError{Name: OriginalInput}
		}
		return nil, fmt.Errorf("error reading %s file: %w", OriginalInput, err)
	}

	logs, err := os.ReadFile(w.Path(LogsInput))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingInputError{Name: LogsInput}
		}
		return nil, fmt.Errorf("error reading %s file: %w", LogsInput, err)
	}
	if !json.Valid(logs) {
		return nil, fmt.Errorf("error reading %s file: invalid JSON", LogsInput)
	}

	return &Inputs{Terraform: string(tf), Logs: logs}, nil
}

// PurgeStale removes .txt and .tf files left by a previous run, keeping the
// original input. It returns the removed names; removal failures are joined
// into the error but do not stop the sweep.
func (w *Workspace) PurgeStale() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil, fmt.Errorf("listing workspace: %w", err)
	}

	var removed []string
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == OriginalInput {
			continue
		}
		if !strings.HasSuffix(name, ".txt") && !strings.HasSuffix(name, ".tf") {
			continue
		}
		if err := os.Remove(w.Path(name)); err != nil {
			errs = append(errs, fmt.Errorf("could not remove %s: %w", name, err))
			continue
		}
		removed = append(removed, name)
	}
	return removed, errors.Join(errs...)
}

func (w *Workspace) Write(name, content string) error {
	if err := os.WriteFile(w.Path(name), []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Read returns the file's content, with ok=false when it does not exist.
func (w *Workspace) Read(name string) (content string, ok bool, err error) {
	data, err := os.ReadFile(w.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s: %w", name, err)
	}
	return string(data), true, nil
}

// ReadAll reads every named file. Missing files are collected into an
// *IncompleteRunError instead of failing on the first one.
func (w *Workspace) ReadAll(names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		content, ok, err := w.Read(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, name)
			continue
		}
		out[name] = content
	}
	if len(missing) > 0 {
		return nil, &IncompleteRunError{Missing: missing}
	}
	return out, nil
}
