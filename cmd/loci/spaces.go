package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/loci/internal/platform"
	"github.com/aretw0/loci/pkg/core"
)

var spacesJSON bool

type spaceView struct {
	ID        string    `json:"id"`
	MapBytes  int       `json:"map_bytes"`
	Anchors   int       `json:"anchors"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Current   bool      `json:"current"`
}

var spacesCmd = &cobra.Command{
	Use:   "spaces",
	Short: "List saved spaces, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx, platform.WithMustExist(true), platform.WithReadOnly(true))
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		spaces, err := store.LoadAllSpaces(ctx)
		if err != nil {
			return fmt.Errorf("listing spaces: %w", err)
		}
		current, _ := core.MostRecent(spaces)

		views := make([]spaceView, 0, len(spaces))
		for _, sp := range spaces {
			anchors, err := store.LoadAnchors(ctx, sp.ID)
			if err != nil {
				return fmt.Errorf("listing anchors of %s: %w", sp.ID, err)
			}
			views = append(views, spaceView{
				ID:        sp.ID,
				MapBytes:  len(sp.Map),
				Anchors:   len(anchors),
				CreatedAt: sp.CreatedAt,
				UpdatedAt: sp.UpdatedAt,
				Current:   sp.ID == current.ID,
			})
		}
		slices.SortFunc(views, func(a, b spaceView) int {
			if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
				return c
			}
			return strings.Compare(a.ID, b.ID)
		})

		if spacesJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(views)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tANCHORS\tMAP\tUPDATED\t")
		for _, v := range views {
			marker := ""
			if v.Current {
				marker = "*"
			}
			fmt.Fprintf(w, "%s%s\t%d\t%d B\t%s\t\n", v.ID, marker, v.Anchors, v.MapBytes, v.UpdatedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(spacesCmd)
	spacesCmd.Flags().BoolVar(&spacesJSON, "json", false, "Output in JSON format")
}
