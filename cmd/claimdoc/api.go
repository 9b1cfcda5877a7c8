package main

import (
	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/server/endpoints"
)

var serverURL string

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	reg := api.NewRegistry()
	for _, ep := range endpoints.TopLevel(endpoints.Config{}) {
		reg.Register(ep)
	}
	apiCmd := reg.BuildCommands(getServerURL)

	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Stored extractions as subcommand group
	apiCmd.AddCommand(api.Group("extractions", "Stored extraction commands", endpoints.ExtractionCommands(), getServerURL))

	rootCmd.AddCommand(apiCmd)
}
