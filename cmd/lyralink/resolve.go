package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/sauerbraten/lyralink"
)

var resolveCode string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the URL a short code points to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer d.Close()

		l, err := d.resolver.Resolve(cmd.Context(), resolveCode)
		if xerrors.Is(err, lyralink.ErrNotFound) {
			return xerrors.Errorf("unknown or expired short code %q", resolveCode)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), l.OriginalURL)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveCode, "code", "", "the short code to look up")
	resolveCmd.MarkFlagRequired("code")
}
