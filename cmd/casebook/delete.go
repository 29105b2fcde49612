package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a case record and its photo",
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
		if err := app.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
