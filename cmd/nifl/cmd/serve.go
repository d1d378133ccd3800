/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inspection REST API server",
	Long: `Start the read-only inspection server. Clients upload container bytes
and get envelope identities or full record trees back as JSON; Prometheus
metrics are scraped unauthenticated at /metrics.

Examples:
  nifl serve
  nifl serve --port 9000 --api-key mysecretkey`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadedConfig(cmd)

		port, _ := cmd.Flags().GetInt("port")
		apiKey, _ := cmd.Flags().GetString("api-key")

		if !cmd.Flags().Changed("port") {
			port = cfg.API.Port
		}
		if apiKey == "" {
			apiKey = cfg.API.APIKey
		}
		if apiKey == "" || apiKey == "auto" {
			cmd.Println("Error: no API key configured (run 'nifl config init' first or pass --api-key)")
			os.Exit(1)
		}

		formats, err := buildFormats(cfg)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		if container == nil {
			cmd.Println("Error: dependency container not initialized")
			os.Exit(1)
		}

		serverFactory := container.GetServerFactory()
		serverStarter := serverFactory.CreateServerStarter()

		if err := serverStarter.StartServer(formats, port, apiKey); err != nil {
			cmd.Printf("Error starting server: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 9200, "Port to listen on")
	serveCmd.Flags().String("api-key", "", "API key clients must present (default: from config)")
}
