package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/nfrund/storefront/internal/app"
	"github.com/spf13/cobra"
)

var imagesLimit int

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Report on the stored images of the newest products",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			svc, err := a.Catalog()
			if err != nil {
				return err
			}
			reports, err := svc.Debug(cmd.Context(), imagesLimit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tIMAGE\tLENGTH\tDATA URL\tPREFIX")
			for _, r := range reports {
				fmt.Fprintf(w, "%d\t%s\t%t\t%d\t%t\t%s\n",
					r.ProductID, r.Name, r.Present, r.Length, r.ValidPrefix, r.Prefix)
			}
			return w.Flush()
		})
	},
}

func init() {
	imagesCmd.Flags().IntVar(&imagesLimit, "limit", 5, "number of products to inspect")
	rootCmd.AddCommand(imagesCmd)
}
