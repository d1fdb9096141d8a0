package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	cfg        Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "lyralink",
	Short:         "lyralink shortens URLs into short base62 codes and redirects them back",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(configPath)
		if err != nil {
			return err
		}
		logger, err = newLogger(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ./lyralink.yaml or /etc/lyralink/lyralink.yaml)")

	rootCmd.AddCommand(serveCmd, migrateCmd, createCmd, resolveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
