package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driving"
)

var (
	askCorpus   string
	askSelected string
	askSession  string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about indexed book content",
	Long: `Answers a question grounded on the book. By default the answer is
grounded on chunks retrieved from the given corpus; with --selected-text
it is grounded exclusively on the supplied passage and the index is never
consulted.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askCorpus, "corpus", "", "corpus to retrieve from")
	askCmd.Flags().StringVar(&askSelected, "selected-text", "", "answer from this passage only")
	askCmd.Flags().StringVar(&askSession, "session", "", "continue an existing session")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	req := driving.AskRequest{
		QueryText: args[0],
		Mode:      domain.ModeCorpus,
		CorpusID:  askCorpus,
		SessionID: askSession,
	}
	if askSelected != "" {
		req.Mode = domain.ModeSelection
		req.SelectedText = askSelected
		req.CorpusID = ""
	}

	result, err := stack.answerer.Ask(ctx, req)
	if err != nil {
		return err
	}

	cmd.Println(result.Answer)

	if len(result.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, c := range result.Citations {
			if c.Chapter != "" {
				cmd.Printf("  %s (%s)\n", c.ChunkID, c.Chapter)
			} else {
				cmd.Printf("  %s\n", c.ChunkID)
			}
		}
	}

	cmd.Printf("\nSession: %s\n", result.SessionID)
	return nil
}
