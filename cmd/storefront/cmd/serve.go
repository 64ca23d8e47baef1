package cmd

import (
	"github.com/nfrund/storefront/internal/app"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			srv, err := a.Server()
			if err != nil {
				return err
			}
			return srv.Start(cmd.Context())
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
