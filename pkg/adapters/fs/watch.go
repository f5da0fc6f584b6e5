package fs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/aretw0/loci/pkg/core"
)

const watchBuffer = 64

// Watch reports changes to space and anchor records until ctx is done, at
// which point the channel is closed. The watcher runs under a supervisor
// and is restarted if fsnotify fails.
func (r *Repository) Watch(ctx context.Context) (<-chan core.Change, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	for _, dir := range []string{spacesDir, anchorsDir} {
		if _, err := os.Stat(r.dir(dir)); err != nil {
			return nil, fmt.Errorf("cannot watch %s: %w", dir, err)
		}
	}

	out := make(chan core.Change, watchBuffer)

	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return newWatchWorker(r, out), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   time.Minute,
			MaxRestarts:     5,
			MaxDuration:     5 * time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}

	sup := supervisor.New("fs-watch", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err := sup.Stop(stopCtx)
		close(out)
		return err
	}, lifecycle.WithErrorHandler(func(err error) {
		r.config.Logger.Error("watcher shutdown failed", "error", err)
		if r.config.ErrorHandler != nil {
			r.config.ErrorHandler(err)
		}
	}))

	return out, nil
}

var _ core.Watchable = (*Repository)(nil)
