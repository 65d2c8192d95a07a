package main

import (
	"context"
	"fmt"

	"github.com/rahul/sentinel/internal/provider"
	"github.com/rahul/sentinel/internal/store"
	"github.com/spf13/cobra"
)

var indexSources []string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the document index used by the retrieval tool",
	Long: `Index splits markdown documents into chunks, embeds them with the
configured provider and stores them in the sqlite index at index.path.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringArrayVar(&indexSources, "source", nil, "Markdown file to index (repeatable)")
	_ = indexCmd.MarkFlagRequired("source")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	_, client, err := provider.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	embedder, err := provider.NewEmbedder(client)
	if err != nil {
		return err
	}

	idx, err := store.Open(cfg.Index.Path, embedder)
	if err != nil {
		return err
	}
	defer idx.Close()

	n, err := store.IngestFiles(ctx, idx, indexSources, store.IngestOptions{
		ChunkSize:    cfg.Index.ChunkSize,
		ChunkOverlap: cfg.Index.ChunkOverlap,
	})
	if err != nil {
		return err
	}

	total, err := idx.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("index updated", "path", cfg.Index.Path, "chunks", n, "total", total)
	fmt.Printf("Indexed %d chunks (%d total) into %s\n", n, total, cfg.Index.Path)
	return nil
}
