package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/utafrali/shopify-product-bridge/internal/validation"
)

// errInvalidPayload makes the process exit non-zero once the error map has
// been printed.
var errInvalidPayload = errors.New("payload is invalid")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file|-]",
		Short: "Check a product payload without contacting Shopify",
		Long: "Run the request validation rules on a JSON file (or stdin with \"-\" or no argument) " +
			"and print the field errors the API would answer with.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readPayload(cmd, args)
			if err != nil {
				return err
			}

			sub, err := validation.Validate(body)
			var invalid validation.Errors
			switch {
			case errors.As(err, &invalid):
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{"valid": false, "errors": invalid}); err != nil {
					return err
				}
				return errInvalidPayload
			case err != nil:
				return fmt.Errorf("validate payload: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "valid: %q with %d variation(s)\n",
				sub.Product.Title, len(sub.Product.Variations))
			return nil
		},
	}
}

func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		body, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return body, nil
	}

	body, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return body, nil
}
