// Package cmd implements the CLI commands for m3undle.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3undle/m3undle/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "m3undle",
	Short:   "Self-hosted IPTV lineup manager",
	Version: version.Short(),
	Long: `m3undle manages IPTV provider playlists and publishes curated lineups
for media players like Jellyfin, Plex and Threadfin.

It fetches M3U playlists and XMLTV guides from upstream providers, tracks
channel groups for opt-in filtering, and serves the resulting lineup with
stable stream URLs that never expose provider credentials.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// These flags are not bound to viper: serve checks Changed() and only
	// then overrides config/env values, preserving the priority
	// CLI flag > env var > config file > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/m3undle, $HOME/.m3undle)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}
