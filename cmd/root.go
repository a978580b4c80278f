// Package cmd defines the CLI commands for the image-scraper
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "image-scraper",
		Short: "Web image scraper service",
		Long: `image-scraper fetches pages, extracts their image URLs, and serves
scrape history, bulk zip download, and an image proxy over HTTP.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
	root.AddCommand(newServeCmd())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
