package main

import (
	"context"
	"encoding/json"

	"github.com/aretw0/introspection"
	"github.com/spf13/cobra"

	"github.com/aretw0/casebook"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the state of the vault components as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := openVault(ctx, casebook.WithReadOnly(true))
		if err != nil {
			return err
		}
		defer app.Close()

		components := []introspection.Component{app.Store, app.Assets}
		if c, ok := app.Repository.(introspection.Component); ok {
			components = append(components, c)
		}

		report := map[string]any{"root": app.Root}
		for _, c := range components {
			if in, ok := c.(introspection.Introspectable); ok {
				report[c.ComponentType()] = in.State()
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
