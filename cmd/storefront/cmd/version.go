package cmd

import (
	"fmt"

	"github.com/nfrund/storefront/internal/app"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Storefront",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Storefront v%s\n", app.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
