/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ssargent/niflheim/pkg/toaster"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Print a container's record tree",
	Long: `Fully decode one container and print every reachable record with its
fields, references rendered as arrows, shared records under each parent
that points at them.

Example:
  nifl dump meadow.nif`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadedConfig(cmd)
		formats, err := buildFormats(cfg)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		t, err := toaster.New(&toaster.Options{
			Formats: formats,
			Out:     os.Stdout,
			Jobs:    1,
		})
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer t.Close()

		factory, err := toaster.NewRegistry().Lookup(toaster.SpellDump)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		report, err := t.Toast(cmd.Context(), factory, args[0])
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if report.Failed > 0 {
			errColor := color.New(color.FgRed)
			for path, msg := range report.Failures {
				errColor.Fprintf(os.Stderr, "%s: %s\n", path, msg)
			}
			os.Exit(1)
		}
		if report.Toasted == 0 {
			cmd.Printf("No registered format claims %s\n", args[0])
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
