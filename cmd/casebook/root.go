package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/casebook"
)

var (
	verbose   bool
	vaultPath string
	adapter   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "casebook",
	Short: "Keep case records with photos, from the terminal",
	Long: `casebook keeps a collection of case records (title, date, solved flag,
suspect) in a local vault, each optionally attached to a photo.
Records live in a YAML file or an embedded SQLite database; photos can be
mirrored to an S3 bucket.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault", "", "Vault directory (default: nearest vault above the working directory)")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Storage adapter: fs, sqlite or memory (default: from casebook.yaml, then fs)")
}

// openVault opens the vault selected by --vault, or the nearest one above
// the working directory.
func openVault(ctx context.Context, extra ...casebook.Option) (*casebook.App, error) {
	root := vaultPath
	if root != "" {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("vault not found: %s", root)
		}
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		if root, err = casebook.FindVaultRoot(wd); err != nil {
			return nil, fmt.Errorf("not a casebook vault (run 'casebook init'): %w", err)
		}
	}

	opts := []casebook.Option{
		casebook.WithLogger(slog.Default()),
		casebook.WithMustExist(true),
		casebook.WithDevSafety(false),
	}
	if adapter != "" {
		opts = append(opts, casebook.WithAdapter(adapter))
	}
	return casebook.New(ctx, root, append(opts, extra...)...)
}

// parseID resolves a full id or a unique prefix of one.
func parseID(app *casebook.App, s string) (casebook.ID, error) {
	if id, err := casebook.ParseID(s); err == nil {
		return id, nil
	}
	var match casebook.ID
	found := 0
	for _, r := range app.Store.List() {
		if len(s) >= 4 && len(r.ID.String()) >= len(s) && r.ID.String()[:len(s)] == s {
			match = r.ID
			found++
		}
	}
	switch found {
	case 1:
		return match, nil
	case 0:
		return casebook.ID{}, fmt.Errorf("no record matches %q: %w", s, casebook.ErrNotFound)
	default:
		return casebook.ID{}, fmt.Errorf("%q matches %d records", s, found)
	}
}
