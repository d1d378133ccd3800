/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/niflheim/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage nifl configuration",
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration file with a generated API key",
	Long: `Write a fresh configuration file with defaults and a generated API
key. Refuses to overwrite an existing file unless --force is given.

Examples:
  nifl config init
  nifl config init --data-dir /var/lib/nifl --force`,
	// Init must work even when the existing file is broken, so it opts
	// out of the root command's config loading.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")

		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", configPath)
			return
		}

		cfg, err := config.BootstrapConfig(configPath, dataDir)
		if err != nil {
			cmd.Printf("Error bootstrapping config: %v\n", err)
			os.Exit(1)
		}

		cmd.Printf("✅ Configuration created at %s\n", configPath)
		cmd.Printf("API key: %s\n", cfg.API.APIKey)
		cmd.Printf("Data directory: %s\n", cfg.DataDir)
		cmd.Printf("\nYou can now start the server with:\n")
		cmd.Printf("  nifl serve\n")
	},
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active configuration",
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		if !config.ConfigExists(configPath) {
			cmd.Printf("No configuration at %s (run 'nifl config init' to create one); showing defaults\n\n", configPath)
		}

		data, err := yaml.Marshal(loadedConfig(cmd))
		if err != nil {
			cmd.Printf("Error rendering config: %v\n", err)
			os.Exit(1)
		}
		cmd.Printf("%s", data)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().String("data-dir", "", "Data directory (default: ./data)")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
}
