package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aretw0/casebook"
)

var (
	listJSON        bool
	listNewestFirst bool
	listSolved      string
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List case records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := openVault(ctx, casebook.WithReadOnly(true))
		if err != nil {
			return err
		}
		defer app.Close()

		records := []casebook.Record(app.Store.List())
		if listNewestFirst {
			records = casebook.NewestFirst(records)
		}

		filtered := records[:0:0]
		for _, r := range records {
			switch listSolved {
			case "yes":
				if !r.Solved {
					continue
				}
			case "no":
				if r.Solved {
					continue
				}
			}
			filtered = append(filtered, r)
		}

		out := cmd.OutOrStdout()
		if listJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(filtered)
		}

		if len(filtered) == 0 {
			fmt.Fprintln(out, "No records found.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tSOLVED\tPHOTO\tTITLE")
		for _, r := range filtered {
			photo := ""
			if app.Assets.Exists(r.ID) {
				photo = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n",
				r.ID.String()[:8], r.OccurredAt.Local().Format("2006-01-02 15:04"), r.Solved, photo, r.Title)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print records as JSON")
	listCmd.Flags().BoolVar(&listNewestFirst, "newest-first", false, "Show the most recently created records first")
	listCmd.Flags().StringVar(&listSolved, "solved", "", "Filter by solved state: yes or no")
}
