package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/loci/internal/platform"
	"github.com/aretw0/loci/pkg/adapters/sim"
	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/geom"
	"github.com/aretw0/loci/pkg/session"
)

var (
	simNotes []string
	simColor string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run two sessions against the store with a simulated tracker",
	Long: `Simulate places notes in a first session, backgrounds and stops it, then
starts a second session that restores the saved space. The saved notes are
printed before and after the simulated tracker relocalizes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		fmt.Println("== first session")
		err = simulate(ctx, store, func(s *session.Session, tracker *sim.Tracker) error {
			tracker.Stabilize()
			for i, text := range simNotes {
				n, err := s.CreateNote(ctx, session.NoteDraft{
					Text:     text,
					Color:    core.ParseColor(simColor),
					Position: geom.Vec3{float64(i) * 0.3, 1.2, -1},
				})
				if err != nil {
					return fmt.Errorf("placing %q: %w", text, err)
				}
				fmt.Printf("placed %s %q\n", n.ID, n.Text)
			}
			sp, err := s.Background(ctx)
			if err != nil {
				return fmt.Errorf("saving map: %w", err)
			}
			fmt.Printf("saved space %s (%d map bytes)\n", sp.ID, len(sp.Map))
			return nil
		})
		if err != nil {
			return err
		}

		fmt.Println("== second session")
		return simulate(ctx, store, func(s *session.Session, tracker *sim.Tracker) error {
			snap := s.Snapshot()
			fmt.Printf("phase %s, %d notes visible\n", snap.Phase, len(snap.Notes))

			tracker.Relocalize()
			if err := s.Flush(ctx); err != nil {
				return err
			}
			snap = s.Snapshot()
			fmt.Printf("phase %s, %d notes visible\n", snap.Phase, len(snap.Notes))
			for _, n := range snap.Notes {
				fmt.Printf("  %s %q (%s)\n", n.ID, n.Text, n.Color)
			}
			return nil
		})
	},
}

// simulate runs one session over store, hands it to script and prints the
// events it emitted once it has stopped.
func simulate(ctx context.Context, store core.SpaceStore, script func(*session.Session, *sim.Tracker) error) error {
	tracker := sim.NewTracker()
	s, _, err := platform.NewSession(ctx, cfg.Store.Path, tracker, sim.NewScene(), factoryOptions(platform.WithStore(store))...)
	if err != nil {
		return err
	}
	tracker.Attach(s.Deliver)

	if err := s.Start(ctx); err != nil {
		return err
	}
	if err := s.Flush(ctx); err != nil {
		return err
	}
	scriptErr := script(s, tracker)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		return err
	}
	for e := range s.Events() {
		fmt.Printf("  event: %s\n", e)
	}
	return scriptErr
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringArrayVar(&simNotes, "note", []string{"buy milk", "call mom"}, "Note text to place (repeatable)")
	simulateCmd.Flags().StringVar(&simColor, "color", string(core.DefaultColor), "Color of the placed notes")
}
