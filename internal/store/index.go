// Package store persists the documentation index used by the retrieval tool.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// Index is a sqlite-backed vectorstores.VectorStore. Similarity is computed
// in process, which is fine for documentation-sized corpora.
type Index struct {
	DB       *sql.DB
	Embedder embeddings.Embedder
}

var _ vectorstores.VectorStore = (*Index)(nil)

func Open(dbPath string, embedder embeddings.Embedder) (*Index, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		metadata TEXT,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Index{DB: db, Embedder: embedder}, nil
}

// OpenExisting opens an index that must already exist on disk.
func OpenExisting(dbPath string, embedder embeddings.Embedder) (*Index, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("document index %s: %w", dbPath, err)
	}
	return Open(dbPath, embedder)
}

func (i *Index) Close() error {
	return i.DB.Close()
}

func (i *Index) embedder(opts vectorstores.Options) embeddings.Embedder {
	if opts.Embedder != nil {
		return opts.Embedder
	}
	return i.Embedder
}

func (i *Index) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := applyOptions(options)
	emb := i.embedder(opts)
	if emb == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for n, d := range docs {
		texts[n] = d.PageContent
	}
	vectors, err := emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	tx, err := i.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]string, len(docs))
	for n, d := range docs {
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata: %w", err)
		}
		ids[n] = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (id, content, metadata, embedding) VALUES (?, ?, ?, ?)`,
			ids[n], d.PageContent, string(meta), encodeVector(vectors[n]))
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (i *Index) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts := applyOptions(options)
	emb := i.embedder(opts)
	if emb == nil {
		return nil, fmt.Errorf("no embedder configured")
	}

	qv, err := emb.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := i.DB.QueryContext(ctx, `SELECT content, metadata, embedding FROM documents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		var content string
		var meta sql.NullString
		var blob []byte
		if err := rows.Scan(&content, &meta, &blob); err != nil {
			return nil, err
		}

		score := cosine(qv, decodeVector(blob))
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}

		doc := schema.Document{PageContent: content, Score: score}
		if meta.Valid && meta.String != "" && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata: %w", err)
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(a, b int) bool { return docs[a].Score > docs[b].Score })
	if numDocuments > 0 && len(docs) > numDocuments {
		docs = docs[:numDocuments]
	}
	return docs, nil
}

// Count returns the number of stored chunks.
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := i.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

func applyOptions(options []vectorstores.Option) vectorstores.Options {
	var opts vectorstores.Options
	for _, o := range options {
		o(&opts)
	}
	return opts
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for n, f := range v {
		binary.LittleEndian.PutUint32(buf[4*n:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for n := range v {
		v[n] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*n:]))
	}
	return v
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for n := range a {
		dot += float64(a[n]) * float64(b[n])
		na += float64(a[n]) * float64(a[n])
		nb += float64(b[n]) * float64(b[n])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
