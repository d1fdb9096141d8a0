package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var createURL string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Shorten a URL and print the short link",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer d.Close()

		l, err := d.allocator.Allocate(cmd.Context(), createURL)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t(created %s)\n",
			strings.TrimRight(cfg.Server.BaseURL, "/"), l.ShortCode, l.CreatedAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createURL, "url", "", "the URL to shorten")
	createCmd.MarkFlagRequired("url")
}
