package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/bookwise/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/bookwise/internal/bookloader"
	"github.com/custodia-labs/bookwise/internal/logger"
	"github.com/custodia-labs/bookwise/internal/watcher"
)

var (
	serveAddr        string
	serveWatchDir    string
	serveWatchCorpus string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Starts the question-answering HTTP API.

With --watch, the server also observes a book directory and reindexes the
given corpus whenever its markdown content changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveWatchDir, "watch", "", "book directory to watch for changes")
	serveCmd.Flags().StringVar(&serveWatchCorpus, "corpus", "", "corpus to reindex on watched changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	if serveWatchDir != "" && serveWatchCorpus == "" {
		return fmt.Errorf("--watch requires --corpus")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	if serveWatchDir != "" {
		if err := watchAndReindex(ctx, stack); err != nil {
			return err
		}
	}

	server, err := httpapi.NewServer(httpapi.Config{
		Addr:            cfg.Server.Addr,
		Version:         version,
		ShutdownTimeout: cfg.ShutdownTimeout(),
		Ask:             stack.answerer,
		Reindex:         stack.reindexer,
		Source:          stack.browser,
	})
	if err != nil {
		return err
	}

	return server.Start(ctx)
}

// watchAndReindex reindexes the watched corpus once at startup and again
// after every settled change burst.
func watchAndReindex(ctx context.Context, stack *stack) error {
	w := watcher.New(serveWatchDir, 0)
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	reindex := func() {
		docs, err := bookloader.Load(serveWatchDir, serveWatchCorpus)
		if err != nil {
			logger.Error("loading %s: %v", serveWatchDir, err)
			return
		}
		report, err := stack.reindexer.Reindex(ctx, serveWatchCorpus, docs)
		if err != nil {
			logger.Error("reindexing %s: %v", serveWatchCorpus, err)
			return
		}
		logger.Info("reindexed %s: %d added, %d updated, %d unchanged, %d removed",
			report.CorpusID, report.Added, report.Updated, report.Unchanged, report.Removed)
		for _, batch := range report.FailedBatches {
			logger.Warn("reindex batch failed: %s", batch)
		}
	}

	go func() {
		reindex()
		for range changes {
			logger.Info("detected changes under %s", serveWatchDir)
			reindex()
		}
	}()
	return nil
}
