package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recallkit/recallkit/internal/app"
	"github.com/recallkit/recallkit/internal/config"
	"github.com/recallkit/recallkit/internal/knowledge"
)

var (
	searchTopK    int
	searchFilters []string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Long: `Embeds the query, finds the most similar chunks, and prints them with
their code examples restored into the text.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(args[0])
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "maximum number of results (default from config)")
	searchCmd.Flags().StringArrayVar(&searchFilters, "filter", nil, "metadata filter as key=value (repeatable)")
	rootCmd.AddCommand(searchCmd)
}

// parseFilters converts repeatable key=value flag values into search
// options.
func parseFilters(filters []string) ([]knowledge.SearchOption, error) {
	var opts []knowledge.SearchOption
	for _, f := range filters {
		key, value, found := strings.Cut(f, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", f)
		}
		opts = append(opts, knowledge.WithFilter(key, value))
	}
	return opts, nil
}

func runSearch(query string) error {
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

	topK := cfg.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	filterOpts, err := parseFilters(searchFilters)
	if err != nil {
		return err
	}
	opts := append([]knowledge.SearchOption{knowledge.WithTopK(topK)}, filterOpts...)

	results, err := a.Retriever.Search(ctx, query, opts...)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("no matching knowledge found")
		return nil
	}

	for i, res := range results {
		if i > 0 {
			fmt.Println("\n---")
		}
		title := res.SectionTitle
		if title == "" {
			title = res.ID
		}
		fmt.Printf("\n[%d] %s (similarity %.3f)\n\n", i+1, title, res.Similarity)
		fmt.Println(res.Render())
	}

	return nil
}
