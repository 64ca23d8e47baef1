package cmd

import (
	"context"
	"os"
	"time"

	"github.com/nfrund/storefront/internal/app"
	"github.com/nfrund/storefront/internal/config"
	"github.com/nfrund/storefront/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront web server and maintenance commands",
	Long: `Storefront serves the shop and offers a few maintenance commands.

Available commands:
  serve      Run the HTTP server
  promote    Change the role of an account
  images     Report on stored product images
  version    Print the version

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.New()
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp loads the configuration, builds the application and shuts it
// down once fn returns.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	a := app.New(cfg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
	}()
	return fn(a)
}
