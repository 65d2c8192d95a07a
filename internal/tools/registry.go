package tools

import (
	"time"

	"github.com/tmc/langchaingo/vectorstores"
)

// Capabilities declares what a run's executor is allowed to touch. A registry
// is built from it once per run and injected into the executor.
type Capabilities struct {
	Workspace    string
	ShellTimeout time.Duration
	Search       *SearchTool
	Documents    vectorstores.VectorStore
	TopK         int
}

// BuildRegistry returns the fixed five-tool registry: read_file, write_file,
// execute_script, web_search and document_retriever. web_search is omitted
// when no search client is supplied.
func BuildRegistry(c Capabilities) *Registry {
	ws := c.Workspace
	if ws == "" {
		ws = "."
	}

	r := NewRegistry()
	r.Register(NewReadFileTool(ws))
	r.Register(NewWriteFileTool(ws))
	r.Register(NewShellTool(ws, c.ShellTimeout))
	if c.Search != nil {
		r.Register(c.Search)
	}
	r.Register(NewRAGTool(c.Documents, c.TopK))
	return r
}
