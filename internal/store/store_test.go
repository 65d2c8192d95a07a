package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// keywordEmbedder maps text onto counts of a few fixed terms.
type keywordEmbedder struct {
	fail bool
}

var vocabulary = []string{"bucket", "iam", "vpc", "encryption"}

func (k keywordEmbedder) vector(text string) []float32 {
	v := make([]float32, len(vocabulary))
	lower := strings.ToLower(text)
	for n, w := range vocabulary {
		v[n] = float32(strings.Count(lower, w))
	}
	return v
}

func (k keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if k.fail {
		return nil, errors.New("quota exceeded")
	}
	out := make([][]float32, len(texts))
	for n, t := range texts {
		out[n] = k.vector(t)
	}
	return out, nil
}

func (k keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return k.vector(text), nil
}

func openIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index", "docs.db"), keywordEmbedder{})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexSimilaritySearch(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t)

	ids, err := idx.AddDocuments(ctx, []schema.Document{
		{PageContent: "Block public access on every bucket.", Metadata: map[string]any{"source": "s3.md"}},
		{PageContent: "IAM roles should follow least privilege. IAM users need MFA."},
		{PageContent: "Place databases in a private VPC subnet."},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	docs, err := idx.SimilaritySearch(ctx, "iam policy", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0].PageContent, "least privilege")
	assert.InDelta(t, 1.0, docs[0].Score, 1e-6)

	docs, err = idx.SimilaritySearch(ctx, "bucket", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "s3.md", docs[0].Metadata["source"])

	docs, err = idx.SimilaritySearch(ctx, "vpc", 5, vectorstores.WithScoreThreshold(0.5))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].PageContent, "private VPC")
}

func TestIndexEmbedderFailure(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "docs.db"), keywordEmbedder{fail: true})
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.AddDocuments(context.Background(), []schema.Document{{PageContent: "x"}})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestOpenExistingRequiresFile(t *testing.T) {
	_, err := OpenExisting(filepath.Join(t.TempDir(), "missing.db"), keywordEmbedder{})
	assert.Error(t, err)
}

func TestSplitMarkdown(t *testing.T) {
	var b strings.Builder
	for n := 0; n < 40; n++ {
		b.WriteString("## Section\n\nEnable encryption at rest for every bucket and rotate keys regularly.\n\n")
	}

	docs, err := SplitMarkdown("guide.md", b.String(), IngestOptions{ChunkSize: 300, ChunkOverlap: 50})
	require.NoError(t, err)
	require.Greater(t, len(docs), 1)
	for n, d := range docs {
		assert.Equal(t, "guide.md", d.Metadata["source"])
		assert.Equal(t, n, d.Metadata["chunk"])
	}

	_, err = SplitMarkdown("guide.md", "x", IngestOptions{ChunkSize: 100, ChunkOverlap: 100})
	assert.Error(t, err)
}

func TestIngestFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aws.md")
	require.NoError(t, os.WriteFile(path, []byte("# AWS\n\nUse a VPC endpoint for bucket access.\n"), 0644))

	idx := openIndex(t)
	n, err := IngestFiles(context.Background(), idx, []string{path}, IngestOptions{ChunkSize: 1500, ChunkOverlap: 350})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := idx.SimilaritySearch(context.Background(), "vpc", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "aws.md", docs[0].Metadata["source"])

	_, err = IngestFiles(context.Background(), idx, []string{filepath.Join(dir, "nope.md")}, IngestOptions{})
	assert.Error(t, err)
}
