package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recallkit/recallkit/internal/app"
	"github.com/recallkit/recallkit/internal/config"
)

var (
	ingestTopic    string
	ingestCategory string
	ingestPriority string
	ingestReplace  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest markdown documents into the knowledge base",
	Long: `Chunks each markdown file along its headings, embeds the prose, and
stores the chunks. Fenced code blocks are stored with their chunk but are
never embedded.

With --replace, chunks previously ingested from the same file are deleted
before the new ones are stored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(args)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTopic, "topic", "", "topic tag stored in chunk metadata")
	ingestCmd.Flags().StringVar(&ingestCategory, "category", "", "category tag stored in chunk metadata")
	ingestCmd.Flags().StringVar(&ingestPriority, "priority", "", "priority tag stored in chunk metadata")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "delete chunks previously ingested from the same file first")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(paths []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	var totalStored, totalFailed int
	for _, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		file := filepath.Base(path)
		source := map[string]string{"file": file}
		if ingestTopic != "" {
			source["topic"] = ingestTopic
		}
		if ingestCategory != "" {
			source["category"] = ingestCategory
		}
		if ingestPriority != "" {
			source["priority"] = ingestPriority
		}

		if ingestReplace {
			deleted, err := a.Store.DeleteBySource(ctx, "file", file)
			if err != nil {
				return fmt.Errorf("replacing %s: %w", path, err)
			}
			if deleted > 0 {
				fmt.Printf("%s: replaced %d existing chunks\n", path, deleted)
			}
		}

		report, err := a.Ingestor.Ingest(ctx, string(content), source)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}

		totalStored += len(report.IDs)
		totalFailed += len(report.Failures)
		fmt.Printf("%s: stored %d chunks", path, len(report.IDs))
		if len(report.Failures) > 0 {
			fmt.Printf(", %d failed", len(report.Failures))
		}
		fmt.Println()
		for _, f := range report.Failures {
			fmt.Printf("  chunk %d: %v\n", f.ChunkIndex, f.Err)
		}
	}

	count, err := a.Store.Count(ctx, nil)
	if err != nil {
		a.Logger.Warn("counting chunks", "error", err)
	} else {
		fmt.Printf("knowledge base now holds %d chunks\n", count)
	}

	if totalFailed > 0 {
		return fmt.Errorf("%d of %d chunks failed to ingest", totalFailed, totalStored+totalFailed)
	}
	return nil
}
