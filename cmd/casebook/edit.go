package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/casebook/pkg/picker"
)

var (
	editTitle   string
	editSolved  bool
	editSuspect string
	editDate    string
	editTime    string
)

// editCmd represents the edit command
var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit a case record",
	Long: `Edit a case record through an edit session. Only the flags given are
changed. The session commits on exit and releases any photo grants.

Example:
  casebook edit 1f3c --solved --suspect "The neighbour"
  casebook edit 1f3c --date 2026-03-14 --time 21:15`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
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

		sess, err := app.OpenSession(ctx, id)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := sess.Close(ctx); cerr != nil && err == nil {
				err = fmt.Errorf("failed to save record: %w", cerr)
			}
			slog.Debug("edit session finished", "id", id, "state", sess.State())
		}()

		flags := cmd.Flags()
		if flags.Changed("title") {
			if err := sess.SetTitle(editTitle); err != nil {
				return err
			}
		}
		if flags.Changed("solved") {
			if err := sess.SetSolved(editSolved); err != nil {
				return err
			}
		}
		if flags.Changed("suspect") {
			if err := sess.SetSuspect(editSuspect); err != nil {
				return err
			}
		}
		dates := picker.New[time.Time]("occurred-at", slog.Default())
		if flags.Changed("date") {
			picked, err := pick(ctx, dates, sess.Record().OccurredAt, func(time.Time) (time.Time, error) {
				day, err := time.ParseInLocation("2006-01-02", editDate, time.Local)
				if err != nil {
					return time.Time{}, fmt.Errorf("invalid --date %q: %w", editDate, err)
				}
				// Noon keeps the calendar day stable across offset changes.
				return day.Add(12 * time.Hour), nil
			})
			if err != nil {
				return err
			}
			if err := sess.ApplyDate(picked); err != nil {
				return err
			}
		}
		if flags.Changed("time") {
			picked, err := pick(ctx, dates, sess.Record().OccurredAt, func(current time.Time) (time.Time, error) {
				clock, err := time.Parse("15:04", editTime)
				if err != nil {
					return time.Time{}, fmt.Errorf("invalid --time %q: %w", editTime, err)
				}
				y, m, d := current.Local().Date()
				return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, time.Local), nil
			})
			if err != nil {
				return err
			}
			if err := sess.ApplyTime(picked); err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", sess.State(), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVarP(&editTitle, "title", "t", "", "New title")
	editCmd.Flags().BoolVar(&editSolved, "solved", false, "Solved state (--solved=false to reopen)")
	editCmd.Flags().StringVar(&editSuspect, "suspect", "", "Suspect name (empty to clear)")
	editCmd.Flags().StringVar(&editDate, "date", "", "New date (YYYY-MM-DD), keeping the time of day")
	editCmd.Flags().StringVar(&editTime, "time", "", "New time of day (HH:MM), keeping the date")
}

// pick runs one selection through p. choose plays the dialog: it gets the
// current value and answers with the picked one, or fails and cancels.
func pick(ctx context.Context, p *picker.Picker[time.Time], current time.Time, choose func(time.Time) (time.Time, error)) (time.Time, error) {
	req, err := p.Request("edit", current)
	if err != nil {
		return time.Time{}, err
	}
	v, err := choose(req.Current)
	if err != nil {
		_ = p.Cancel(req.ID)
		return time.Time{}, err
	}
	if err := p.Resolve(req.ID, v); err != nil {
		return time.Time{}, err
	}
	return req.Wait(ctx)
}
