package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/loci/internal/platform"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [anchor-id]",
	Short: "Delete a note's anchor from the store",
	Long:  `Delete removes an anchor record. Deleting an anchor that does not exist is not an error.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx, platform.WithMustExist(true))
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		if err := store.DeleteAnchor(ctx, args[0]); err != nil {
			return fmt.Errorf("deleting anchor: %w", err)
		}
		fmt.Printf("Anchor deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
