package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/casebook"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of casebook",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "casebook version %s\n", strings.TrimSpace(casebook.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
