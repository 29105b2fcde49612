package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/casebook"
	"github.com/aretw0/casebook/internal/platform"
)

var initAssetDir string

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a casebook vault",
	Long: `Initialize a new casebook vault in the --vault directory (default: the
working directory). Writes casebook.yaml with the chosen adapter.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := vaultPath
		if root == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			root = wd
		}

		cfg, err := platform.LoadConfig(root)
		if err != nil {
			return err
		}
		if adapter != "" {
			cfg.Adapter = adapter
		}
		if cfg.Adapter == "" {
			cfg.Adapter = platform.AdapterFS
		}
		if initAssetDir != "" {
			cfg.AssetDir = initAssetDir
		}

		if err := os.MkdirAll(root, 0755); err != nil {
			return fmt.Errorf("failed to create vault directory: %w", err)
		}
		if err := platform.WriteConfig(root, cfg); err != nil {
			return err
		}

		app, err := casebook.New(context.Background(), root,
			casebook.WithLogger(slog.Default()),
			casebook.WithDevSafety(false),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize vault: %w", err)
		}
		defer app.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty casebook vault (%s) in %s\n", cfg.Adapter, app.Root)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initAssetDir, "photos", "", "Photo directory, relative to the vault")
}
