/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ssargent/niflheim/pkg/toaster"
)

// toastCmd represents the toast command
var toastCmd = &cobra.Command{
	Use:   "toast --spell <name> <dir>",
	Short: "Cast a spell on every matching file under a directory",
	Long: `Walk a directory tree and cast the named spell on every file a
registered format claims. Modifying spells write back only with
--in-place; without it they behave as a dry run.

Examples:
  nifl toast --spell check_read ./assets
  nifl toast --spell check_readwrite --jobs 8 ./assets
  nifl toast --spell dump --include Node ./assets/actors`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		spellName, _ := cmd.Flags().GetString("spell")
		jobs, _ := cmd.Flags().GetInt("jobs")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		inPlace, _ := cmd.Flags().GetBool("in-place")
		resume, _ := cmd.Flags().GetBool("resume")
		include, _ := cmd.Flags().GetStringSlice("include")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")

		cfg := loadedConfig(cmd)
		if jobs <= 0 {
			jobs = cfg.Toaster.Jobs
		}
		if !cmd.Flags().Changed("dry-run") {
			dryRun = cfg.Toaster.DryRun
		}

		formats, err := buildFormats(cfg)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		factory, err := toaster.NewRegistry().Lookup(spellName)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			cmd.Printf("Run 'nifl spells' to list the registered spells\n")
			os.Exit(1)
		}

		log := newLogger(cfg.Logging.Level)
		defer log.Sync() //nolint:errcheck

		t, err := toaster.New(&toaster.Options{
			Log:       log,
			Out:       os.Stdout,
			Formats:   formats,
			Include:   include,
			Exclude:   exclude,
			Jobs:      jobs,
			DryRun:    dryRun,
			InPlace:   inPlace,
			Resume:    resume,
			CachePath: cfg.ToastCache(),
		})
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer t.Close()

		report, err := t.Toast(cmd.Context(), factory, args[0])
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Print(report.String())
		if report.Failed > 0 {
			color.New(color.FgRed, color.Bold).Printf("❌ %d file(s) failed\n", report.Failed)
			os.Exit(1)
		}
		color.New(color.FgGreen).Println("✅ run clean")
	},
}

func init() {
	rootCmd.AddCommand(toastCmd)

	toastCmd.Flags().String("spell", "", "Spell to cast (required)")
	toastCmd.Flags().IntP("jobs", "j", 0, "Concurrent workers (default: from config)")
	toastCmd.Flags().Bool("dry-run", false, "Discard write-backs instead of renaming over originals")
	toastCmd.Flags().Bool("in-place", false, "Let modifying spells overwrite originals")
	toastCmd.Flags().Bool("resume", false, "Skip files the cache remembers toasting clean")
	toastCmd.Flags().StringSlice("include", nil, "Record types to admit (empty admits all)")
	toastCmd.Flags().StringSlice("exclude", nil, "Record types to prune")
	if err := toastCmd.MarkFlagRequired("spell"); err != nil {
		panic(err)
	}
}
