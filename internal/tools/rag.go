package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/vectorstores"
)

const retrieverUnavailable = "Error initializing document retriever."

// RAGTool searches the pre-built documentation index.
type RAGTool struct {
	Store vectorstores.VectorStore
	TopK  int
}

// NewRAGTool accepts a nil store; the tool then reports that the retriever is
// unavailable instead of failing the step.
func NewRAGTool(store vectorstores.VectorStore, topK int) *RAGTool {
	if topK <= 0 {
		topK = 4
	}
	return &RAGTool{Store: store, TopK: topK}
}

func (r *RAGTool) Name() string {
	return "document_retriever"
}

func (r *RAGTool) Description() string {
	return "Searches and returns relevant excerpts from internal documentation. Use for specific questions about configurations, APIs, or standard procedures."
}

func (r *RAGTool) Parameters() map[string]any {
	return objectSchema([]string{"query"},
		str("query", "The natural language query to search for"),
	)
}

func (r *RAGTool) Execute(ctx context.Context, input string) (string, error) {
	if r.Store == nil {
		return retrieverUnavailable, nil
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(r.Name(), input, &args); err != nil {
		return "", err
	}

	docs, err := r.Store.SimilaritySearch(ctx, args.Query, r.TopK)
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}
	if len(docs) == 0 {
		return "No relevant documentation found.", nil
	}

	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.PageContent)
	}
	return strings.Join(parts, "\n\n"), nil
}
