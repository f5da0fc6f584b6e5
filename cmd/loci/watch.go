package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/loci/internal/platform"
	"github.com/aretw0/loci/pkg/adapters/lifecycle"
	"github.com/aretw0/loci/pkg/core"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream changes made to the store until interrupted",
	Long: `Watch reports spaces and anchors created, modified or deleted by any
process, including hand edits of the fs adapter's records.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx,
			platform.WithMustExist(true),
			platform.WithReadOnly(true),
			platform.WithWatcherErrorHandler(func(err error) {
				slog.Warn("watcher error", "error", err)
			}),
		)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		watchable, ok := store.(core.Watchable)
		if !ok {
			return fmt.Errorf("the %s adapter does not support watching", cfg.Store.Adapter)
		}
		changes, err := watchable.Watch(ctx)
		if err != nil {
			return fmt.Errorf("starting watch: %w", err)
		}

		src := lifecycle.NewSource(changes)
		if err := src.Start(ctx); err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", cfg.Store.Path)
		for e := range src.Events() {
			fmt.Println(e.String())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
