// Package cmd implements the CLI commands for renditiond.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vidplat/renditiond/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "renditiond",
	Short:   "Video ingestion and adaptive transcoding service",
	Version: version.Short(),
	Long: `renditiond ingests user-submitted video files and produces multiple
resolution-scaled, codec-normalized renditions suitable for adaptive
playback.

Uploads are admitted through one-time processing tickets, validated
against a supported codec list, transcoded per rendition by an external
encoder, and published incrementally to the video catalog as each
rendition completes.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., $HOME, /etc/renditiond)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}
