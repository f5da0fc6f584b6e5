package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/introspection"
	"github.com/spf13/cobra"

	"github.com/aretw0/loci/internal/platform"
	"github.com/aretw0/loci/pkg/core"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the internal state of the configured store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx, platform.WithMustExist(true), platform.WithReadOnly(true))
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		out := map[string]any{
			"service": core.NewService(store).State(),
		}
		if intro, ok := store.(introspection.Introspectable); ok {
			name := "store"
			if comp, ok := store.(introspection.Component); ok {
				name = comp.ComponentType()
			}
			out[name] = intro.State()
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
