package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/regqa/internal/models"
	"github.com/xhad/regqa/pkg/loader"
	"github.com/xhad/regqa/pkg/processor"
	"github.com/xhad/regqa/pkg/store"
	"go.uber.org/zap"
)

var indexCmd = &cobra.Command{
	Use:   "index [corpus-dir]",
	Short: "Build the passage index from a corpus",
	Long: `Load the corpus, split it into chunks and store their embeddings.

Plain text files are split into pages on form feeds, so PDFs should be
converted with pdftotext first to keep page numbers in citations.

Examples:
  regqa index ./corpus
  regqa index --url https://example.org/regulamento`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().String("url", "", "crawl this site instead of reading a directory")
}

func runIndex(cmd *cobra.Command, args []string) error {
	siteURL, _ := cmd.Flags().GetString("url")
	if (len(args) == 0) == (siteURL == "") {
		return fmt.Errorf("give either a corpus directory or --url")
	}
	ctx := cmd.Context()

	var loadedCount int32
	l := loader.NewWithConfig(loader.LoaderConfig{
		Extensions:     cfg.Loader.Extensions,
		MaxDepth:       cfg.Loader.MaxDepth,
		RateLimit:      cfg.Loader.RateLimit,
		IgnorePatterns: cfg.Loader.IgnorePatterns,
		OnProgress: func(string) {
			atomic.AddInt32(&loadedCount, 1)
		},
	}, logger.Named("loader"))

	p, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      cfg.Processor.ChunkSize,
		ChunkOverlap:   cfg.Processor.ChunkOverlap,
		MinChunkLength: cfg.Processor.MinChunkLength,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize processor: %w", err)
	}

	embedder, err := newEmbedder()
	if err != nil {
		return err
	}
	vectorStore, err := store.NewWithConfig(ctx, vectorStoreConfig(), embedder, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer vectorStore.Close()

	source := siteURL
	if source == "" {
		source = args[0]
	}
	color.Blue("\nIndexing %s\n", source)

	loadingBar := getProgressBar(-1, "Loading documents...")
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = loadingBar.Set(int(atomic.LoadInt32(&loadedCount)))
			}
		}
	}()

	var docs []models.Document
	if siteURL != "" {
		docs, err = l.Crawl(ctx, siteURL)
	} else {
		docs, err = l.LoadDir(ctx, args[0])
	}
	close(done)
	_ = loadingBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents found in %s", source)
	}
	color.Green("\n✓ Loaded %d documents\n", len(docs))

	processingBar := getProgressBar(len(docs), "Chunking documents...")
	processed := make([]models.ProcessedDocument, 0, len(docs))
	chunks := 0
	for _, doc := range docs {
		out, err := p.Process([]models.Document{doc})
		if err != nil {
			return fmt.Errorf("failed to process document %s: %w", doc.ID, err)
		}
		for _, d := range out {
			chunks += len(d.Chunks)
		}
		processed = append(processed, out...)
		_ = processingBar.Add(1)
	}
	color.Green("\n✓ Split into %d chunks\n", chunks)

	if err := vectorStore.EnsureSchema(ctx); err != nil {
		return err
	}

	storageBar := getProgressBar(chunks, "Storing embeddings...")
	err = vectorStore.Store(ctx, processed, func(n int) {
		_ = storageBar.Add(n)
	})
	if err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	total, err := vectorStore.Count(ctx)
	if err != nil {
		logger.Warn("failed to count stored chunks", zap.Error(err))
	}
	color.Green("\n✓ Index ready with %d chunks\n", total)
	return nil
}
