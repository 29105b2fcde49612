package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/aretw0/casebook"
	"github.com/aretw0/casebook/pkg/adapters/fs"
	lcsource "github.com/aretw0/casebook/pkg/adapters/lifecycle"
)

var watchInterval time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow changes to the case collection",
	Long: `Print the edit script for every change to the case collection, including
changes made by other casebook processes, plus photo writes and removals.
Stops on Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		app, err := openVault(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		src := lcsource.NewSource(app.Store.SubscribeCollection())
		if err := src.Start(ctx); err != nil {
			return err
		}

		assets, err := app.Assets.Watch(ctx)
		if err != nil {
			return err
		}
		defer assets.Stop(context.Background())

		if repo, ok := app.Repository.(*fs.Repository); ok {
			err = followFile(ctx, app, repo.File())
		} else {
			followPoll(ctx, app, watchInterval)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", app.Root)
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-src.Events():
				if !ok {
					return nil
				}
				printSnapshotEvent(out, ev)
			case ev, ok := <-assets.Events():
				if !ok {
					return nil
				}
				fmt.Fprintf(out, "photo %s %s\n", ev.Type, ev.ID)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "Reload interval for adapters without file notifications")
}

func printSnapshotEvent(out io.Writer, ev lifecycle.Event) {
	se, ok := ev.(lcsource.SnapshotEvent)
	if !ok {
		fmt.Fprintln(out, ev)
		return
	}
	slog.Debug("snapshot", "event", se.String())
	for _, op := range se.Ops {
		fmt.Fprintln(out, op)
	}
}

// followFile reloads the store whenever the records file is replaced.
// The directory is watched because saves swap the file by rename.
func followFile(ctx context.Context, app *casebook.App, file string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(file)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(file), err)
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer w.Close()

		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-w.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != filepath.Clean(file) {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					debounce = time.After(50 * time.Millisecond)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				slog.Warn("records watcher error", "error", err)
			case <-debounce:
				debounce = nil
				reload(ctx, app)
			}
		}
	})
	return nil
}

func followPoll(ctx context.Context, app *casebook.App, interval time.Duration) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				reload(ctx, app)
			}
		}
	})
}

func reload(ctx context.Context, app *casebook.App) {
	changed, err := app.Store.Reload(ctx)
	if err != nil {
		slog.Warn("reload failed", "error", err)
		return
	}
	if changed {
		slog.Debug("store reloaded from repository")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
