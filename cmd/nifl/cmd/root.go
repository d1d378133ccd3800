/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ssargent/niflheim/pkg/cgf"
	"github.com/ssargent/niflheim/pkg/config"
	"github.com/ssargent/niflheim/pkg/di"
	"github.com/ssargent/niflheim/pkg/kfm"
	"github.com/ssargent/niflheim/pkg/nif"
	"github.com/ssargent/niflheim/pkg/schema"
	"github.com/ssargent/niflheim/pkg/toaster"
)

// container holds the dependencies injected by main
var container *di.Container

// SetContainer injects the dependency container. Called by main before
// Execute.
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nifl",
	Short: "Niflheim - Game asset container toolkit",
	Long: `Niflheim reads, verifies, and rewrites schema-driven game asset
containers: NetImmerse/Gamebryo block files (nif, kf, kfa), Crytek
chunk files (cgf, cga, chr, caf), and keyframe-motion manifests (kfm).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		// A missing file means defaults; a broken file is an error.
		cfg := config.DefaultConfig()
		if config.ConfigExists(configPath) {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = loaded
		}

		// Store in command context
		cmd.SetContext(context.WithValue(cmd.Context(), "config", cfg))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global config file flag
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: OS-specific location)")
}

// loadedConfig fetches the configuration the root command stashed in the
// context, falling back to defaults when a command runs bare.
func loadedConfig(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value("config").(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

// buildFormats assembles the container formats, honoring the schema
// overrides the configuration points at.
func buildFormats(cfg *config.Config) ([]toaster.Format, error) {
	overrides := make(map[string]*schema.Registry, len(cfg.SchemaPaths))
	for name, path := range cfg.SchemaPaths {
		reg, err := schema.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s schema: %w", name, err)
		}
		overrides[name] = reg
	}

	formats := toaster.Formats()
	for i, f := range formats {
		reg, ok := overrides[f.Name()]
		if !ok {
			continue
		}
		switch f.Name() {
		case "nif":
			formats[i] = toaster.NIF(&nif.Options{Registry: reg})
		case "cgf":
			formats[i] = toaster.CGF(&cgf.Options{Registry: reg})
		case "kfm":
			formats[i] = toaster.KFM(&kfm.Options{Registry: reg})
		}
	}
	return formats, nil
}

// newLogger builds the structured logger batch runs hand to the toaster.
func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
