package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/casebook"
)

var showJSON bool

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one case record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := openVault(ctx, casebook.WithReadOnly(true))
		if err != nil {
			return err
		}
		defer app.Close()

		id, err := parseID(app, args[0])
		if err != nil {
			return err
		}
		rec, err := app.Store.Get(id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if showJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		suspect := rec.Suspect
		if !rec.HasSuspect() {
			suspect = "(none)"
		}
		photo := "(none)"
		if app.Assets.Exists(id) {
			photo = app.Assets.PathFor(id)
		}
		fmt.Fprintf(out, "ID:       %s\n", rec.ID)
		fmt.Fprintf(out, "Title:    %s\n", rec.Title)
		fmt.Fprintf(out, "Date:     %s\n", rec.OccurredAt.Local().Format("Monday, Jan 2, 2006 15:04"))
		fmt.Fprintf(out, "Solved:   %t\n", rec.Solved)
		fmt.Fprintf(out, "Suspect:  %s\n", suspect)
		fmt.Fprintf(out, "Photo:    %s\n", photo)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the record as JSON")
}
