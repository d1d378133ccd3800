/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ssargent/niflheim/pkg/toaster"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <files...>",
	Short: "Show container envelope identities",
	Long: `Read each file's envelope and print what it claims to be: format,
version, vendor tag, and record count. Record bodies stay unread, so
inspect is safe on files that would fail a full decode.

Examples:
  nifl inspect meadow.nif
  nifl inspect props/barrel.cgf actors/guard.kfm`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadedConfig(cmd)
		formats, err := buildFormats(cfg)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		pathColor := color.New(color.FgCyan, color.Bold)
		errColor := color.New(color.FgRed)

		failed := 0
		for _, path := range args {
			hdr, size, err := inspectFile(formats, path)
			if err != nil {
				errColor.Fprintf(os.Stderr, "%s: %v\n", path, err)
				failed++
				continue
			}

			pathColor.Println(path)
			fmt.Printf("  format   %s %s\n", hdr.Format, hdr.VersionTag)
			if hdr.Vendor != "" {
				fmt.Printf("  vendor   %s\n", hdr.Vendor)
			}
			if hdr.NumRecords > 0 {
				fmt.Printf("  records  %s\n", humanize.Comma(int64(hdr.NumRecords)))
			}
			fmt.Printf("  size     %s\n", humanize.Bytes(uint64(size)))
		}

		if failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

// inspectFile reads one file's envelope. Extension matches pick the
// format directly; unknown extensions fall back to trying every format
// against the bytes.
func inspectFile(formats []toaster.Format, path string) (*toaster.Header, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}

	base := filepath.Base(path)
	for _, format := range formats {
		if !format.Match(base) {
			continue
		}
		hdr, err := format.Inspect(f)
		if err != nil {
			return nil, 0, err
		}
		return hdr, info.Size(), nil
	}

	for _, format := range formats {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, 0, err
		}
		if hdr, err := format.Inspect(f); err == nil {
			return hdr, info.Size(), nil
		}
	}
	return nil, 0, fmt.Errorf("no registered format accepts the file")
}
