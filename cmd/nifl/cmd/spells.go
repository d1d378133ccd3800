/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ssargent/niflheim/pkg/toaster"
)

// spellHelp carries the one-line summaries 'nifl spells' prints.
var spellHelp = map[string]string{
	toaster.SpellCheckNop:       "walk and claim files without reading them",
	toaster.SpellCheckRead:      "fully decode every matching file",
	toaster.SpellCheckReadWrite: "decode, re-encode, and verify byte-identical output",
	toaster.SpellDump:           "print every record field by field",
	toaster.SpellStats:          "tally record types across the tree",
}

// spellsCmd represents the spells command
var spellsCmd = &cobra.Command{
	Use:   "spells",
	Short: "List the registered spells",
	Run: func(cmd *cobra.Command, args []string) {
		nameColor := color.New(color.FgCyan, color.Bold)
		for _, name := range toaster.NewRegistry().Names() {
			nameColor.Printf("%-17s", name)
			fmt.Println(spellHelp[name])
		}
	},
}

func init() {
	rootCmd.AddCommand(spellsCmd)
}
