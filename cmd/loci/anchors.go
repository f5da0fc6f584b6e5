package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aretw0/loci/internal/platform"
	"github.com/aretw0/loci/pkg/core"
)

var anchorsJSON bool

// noteColors maps note colors to terminal colors. The terminal has no
// orange or pink, so the closest bright variants stand in.
var noteColors = map[core.Color]*color.Color{
	core.ColorYellow: color.New(color.FgYellow),
	core.ColorPink:   color.New(color.FgHiMagenta),
	core.ColorBlue:   color.New(color.FgBlue),
	core.ColorGreen:  color.New(color.FgGreen),
	core.ColorOrange: color.New(color.FgHiRed),
	core.ColorPurple: color.New(color.FgMagenta),
}

var anchorsCmd = &cobra.Command{
	Use:   "anchors [space-id]",
	Short: "List the notes anchored in a space (default: the most recent)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx, platform.WithMustExist(true), platform.WithReadOnly(true))
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		var sp core.Space
		if len(args) == 1 {
			sp, err = store.LoadSpace(ctx, args[0])
		} else {
			sp, err = store.LoadMostRecentSpace(ctx)
		}
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("no such space (save a map first)")
		}
		if err != nil {
			return fmt.Errorf("loading space: %w", err)
		}

		anchors, err := store.LoadAnchors(ctx, sp.ID)
		if err != nil {
			return fmt.Errorf("listing anchors: %w", err)
		}
		notes := make([]core.Note, 0, len(anchors))
		for _, a := range anchors {
			notes = append(notes, core.NoteFromAnchor(a))
		}
		slices.SortFunc(notes, func(a, b core.Note) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return strings.Compare(a.ID, b.ID)
		})

		if anchorsJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(notes)
		}

		fmt.Printf("space %s: %d notes\n", sp.ID, len(notes))
		for _, n := range notes {
			swatch := noteColors[n.Color.OrDefault()]
			fmt.Printf("%s %s  %q  at (%.2f, %.2f, %.2f)\n",
				swatch.Sprint("■"), n.ID, n.Text, n.Position[0], n.Position[1], n.Position[2])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(anchorsCmd)
	anchorsCmd.Flags().BoolVar(&anchorsJSON, "json", false, "Output in JSON format")
}
