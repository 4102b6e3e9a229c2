package cli

import "github.com/spf13/cobra"

var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopify-product-bridge",
		Short: "Create Shopify products from a simple JSON payload",
		Long: "shopify-product-bridge accepts a product with variations over HTTP, validates it " +
			"and creates it in the caller's Shopify store through the Admin GraphQL API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command line. Without a subcommand the server starts.
func Execute() error {
	return newRootCmd().Execute()
}
