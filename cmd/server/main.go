package main

import (
	"log/slog"
	"os"

	"github.com/utafrali/shopify-product-bridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
