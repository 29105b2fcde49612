package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	captureTimeout time.Duration
	pruneDryRun    bool
)

// photoCmd groups the photo subcommands
var photoCmd = &cobra.Command{
	Use:   "photo",
	Short: "Manage case photos",
}

var photoPathCmd = &cobra.Command{
	Use:   "path [id]",
	Short: "Print where the photo of a record lives",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := openVault(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		id, err := parseID(app, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), app.Assets.PathFor(id))
		return nil
	},
}

var photoImportCmd = &cobra.Command{
	Use:   "import [id] [file]",
	Short: "Copy an image file in as the photo of a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := openVault(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		id, err := parseID(app, args[0])
		if err != nil {
			return err
		}
		if _, err := app.Store.Get(id); err != nil {
			return err
		}

		src, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("failed to open image: %w", err)
		}
		defer src.Close()

		capture, err := app.Assets.BeginCapture(id, "import")
		if err != nil {
			return err
		}
		defer app.Assets.RevokeAll(id)

		n, werr := app.Assets.Write(capture.Grant.Token, src)
		capture.Complete(werr)
		if err := capture.Wait(ctx); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d bytes to %s\n", n, app.Assets.PathFor(id))
		return nil
	},
}

var photoCaptureCmd = &cobra.Command{
	Use:   "capture [id]",
	Short: "Wait for an external program to write the photo of a record",
	Long: `Grant write access to the photo location of a record, print the path
and wait until a file written there settles. Use it with any camera or
editing tool that can save to a given path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		app, err := openVault(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		id, err := parseID(app, args[0])
		if err != nil {
			return err
		}
		if _, err := app.Store.Get(id); err != nil {
			return err
		}

		watcher, err := app.Assets.Watch(ctx)
		if err != nil {
			return err
		}
		defer watcher.Stop(context.Background())

		capture, err := app.Assets.BeginCapture(id, "capture")
		if err != nil {
			return err
		}
		defer app.Assets.RevokeAll(id)

		fmt.Fprintf(cmd.OutOrStdout(), "Waiting for %s\n", app.Assets.PathFor(id))

		waitCtx, stop := context.WithTimeout(ctx, captureTimeout)
		defer stop()
		if err := capture.Wait(waitCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("no photo written within %s", captureTimeout)
			}
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Photo captured")
		return nil
	},
}

var photoPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete photos whose record no longer exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := openVault(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		if pruneDryRun {
			orphans, err := app.Orphans()
			if err != nil {
				return err
			}
			for _, id := range orphans {
				fmt.Fprintf(out, "would remove %s\n", app.Assets.PathFor(id))
			}
			return nil
		}

		removed, err := app.Prune(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %d orphaned photos\n", len(removed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(photoCmd)
	photoCmd.AddCommand(photoPathCmd, photoImportCmd, photoCaptureCmd, photoPruneCmd)
	photoCaptureCmd.Flags().DurationVar(&captureTimeout, "timeout", 5*time.Minute, "How long to wait for the photo")
	photoPruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "Only print what would be removed")
}
