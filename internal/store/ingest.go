package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/tmc/langchaingo/vectorstores"
)

type IngestOptions struct {
	ChunkSize    int
	ChunkOverlap int
}

// SplitMarkdown cuts a markdown document into overlapping chunks tagged with
// their source.
func SplitMarkdown(source, text string, opts IngestOptions) ([]schema.Document, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1500
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", opts.ChunkOverlap, opts.ChunkSize)
	}

	splitter := textsplitter.NewMarkdownTextSplitter(
		textsplitter.WithChunkSize(opts.ChunkSize),
		textsplitter.WithChunkOverlap(opts.ChunkOverlap),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", source, err)
	}

	docs := make([]schema.Document, 0, len(chunks))
	for n, c := range chunks {
		docs = append(docs, schema.Document{
			PageContent: c,
			Metadata: map[string]any{
				"source": source,
				"chunk":  n,
			},
		})
	}
	return docs, nil
}

// IngestFiles splits each file and adds the chunks to vs. It returns the
// number of chunks stored.
func IngestFiles(ctx context.Context, vs vectorstores.VectorStore, paths []string, opts IngestOptions) (int, error) {
	total := 0
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return total, fmt.Errorf("reading %s: %w", p, err)
		}
		docs, err := SplitMarkdown(filepath.Base(p), string(data), opts)
		if err != nil {
			return total, err
		}
		if len(docs) == 0 {
			continue
		}
		if _, err := vs.AddDocuments(ctx, docs); err != nil {
			return total, fmt.Errorf("indexing %s: %w", p, err)
		}
		total += len(docs)
	}
	return total, nil
}
