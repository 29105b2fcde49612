package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	createTitle   string
	createSuspect string
	createSolved  bool
	createAt      string
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new case record",
	Long: `Create a new case record and print its id.

Example:
  casebook create --title "Stolen bicycle" --at 2026-03-14T09:30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := openVault(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		rec, err := app.Store.Create(ctx)
		if err != nil {
			return fmt.Errorf("failed to create record: %w", err)
		}

		rec.Title = createTitle
		rec.Suspect = createSuspect
		rec.Solved = createSolved
		if createAt != "" {
			at, err := parseTimestamp(createAt)
			if err != nil {
				return err
			}
			rec.OccurredAt = at
		}

		flags := cmd.Flags()
		if flags.Changed("title") || flags.Changed("suspect") || flags.Changed("solved") || flags.Changed("at") {
			if err := app.Store.Update(ctx, rec); err != nil {
				return fmt.Errorf("failed to save record: %w", err)
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&createTitle, "title", "t", "", "Case title")
	createCmd.Flags().StringVar(&createSuspect, "suspect", "", "Suspect name")
	createCmd.Flags().BoolVar(&createSolved, "solved", false, "Mark the case as solved")
	createCmd.Flags().StringVar(&createAt, "at", "", "When it happened (RFC3339, YYYY-MM-DDTHH:MM or YYYY-MM-DD)")
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimestamp accepts the layouts above, in local time when no zone is given.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
