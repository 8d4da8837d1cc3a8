package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/bookwise/internal/bookloader"
)

var indexCorpus string

var indexCmd = &cobra.Command{
	Use:   "index [directory]",
	Short: "Index a directory of markdown book content",
	Long: `Reads every markdown file under the directory, chunks it and brings
the corpus index in sync. Unchanged content is skipped, changed content is
re-embedded and documents that disappeared are removed.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexCorpus, "corpus", "", "corpus to index into (required)")
	_ = indexCmd.MarkFlagRequired("corpus")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	dir := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	stack, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	docs, err := bookloader.Load(dir, indexCorpus)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no markdown content found under %s", dir)
	}

	report, err := stack.reindexer.Reindex(ctx, indexCorpus, docs)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	cmd.Printf("Corpus %s: %d documents\n", report.CorpusID, len(docs))
	cmd.Printf("  added:     %d\n", report.Added)
	cmd.Printf("  updated:   %d\n", report.Updated)
	cmd.Printf("  unchanged: %d\n", report.Unchanged)
	cmd.Printf("  removed:   %d\n", report.Removed)

	if len(report.FailedBatches) > 0 {
		for _, batch := range report.FailedBatches {
			cmd.Printf("  failed batch: %s\n", batch)
		}
		return errors.New("some batches failed; re-run to retry them")
	}
	return nil
}
