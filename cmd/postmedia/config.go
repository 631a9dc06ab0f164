package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"postmedia/pkg/config"
	"postmedia/pkg/resolver"
	"postmedia/pkg/ui"
)

const defaultConfigPath = ".postmedia.yaml"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage postmedia configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (POSTMEDIA_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	Long: `Write a configuration file containing every option at its default value.

The file is created as '.postmedia.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from all sources and check it.

This command checks:
  - YAML syntax
  - Value ranges
  - Strategy names in resolver.disabled_strategies
  - Log file directory`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return err
	}

	var warnings []string
	for _, name := range cfg.Resolver.DisabledStrategies {
		if !knownStrategy(name) {
			warnings = append(warnings, fmt.Sprintf("unknown strategy in disabled_strategies: %q", name))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return fmt.Errorf("cannot create log directory: %w", err)
		}
	}

	for _, w := range warnings {
		ui.PrintWarning(w)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintf(cmd.OutOrStdout(), "strategies: %v\n", enabledStrategies(cfg))
	return nil
}

var strategyNames = []string{
	resolver.StrategyNestedURL,
	resolver.StrategyDirectExtension,
	resolver.StrategyEmbed,
	resolver.StrategyMetadata,
	resolver.StrategyDocument,
}

func knownStrategy(name string) bool {
	for _, s := range strategyNames {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

func enabledStrategies(cfg *config.Config) []string {
	var names []string
	for _, s := range strategyNames {
		if cfg.StrategyEnabled(s) {
			names = append(names, s)
		}
	}
	return names
}
