package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/m3undle/m3undle/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing m3undle configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  m3undle config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml in ., ./configs, /etc/m3undle, $HOME/.m3undle)
  - Environment variables (M3UNDLE_SERVER_PORT, M3UNDLE_DATABASE_PATH, etc.)
  - Command-line flags (for some options)

Environment variables use the M3UNDLE_ prefix and underscores for nesting.
Example: server.port -> M3UNDLE_SERVER_PORT`,
	RunE: runConfigDump,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after merging defaults, the config file and environment variables. Secrets are redacted.`,
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	v := viper.New()
	config.SetDefaults(v)

	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}
	cmd.Print(string(data))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	cmd.Print(string(data))
	return nil
}
