package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/onewithdev/peterbot-sandbox/pkg/client"
)

var (
	baseURL string
	apiKey  string
)

var rootCmd = &cobra.Command{
	Use:   "psb",
	Short: "Peterbot sandbox CLI - build and inspect sandbox templates",
	Long: `psb is a command-line tool for the Peterbot sandbox build service.

It builds sandbox templates from the predefined Peterbot definition or a
Dockerfile, streams build logs, and inspects templates and build history.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", getEnvOrDefault("PETERBOT_BUILD_URL", client.DefaultBaseURL), "Build service base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("PETERBOT_API_KEY"), "Build service API key")
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func newClient() *client.Client {
	return client.NewClient(baseURL, apiKey)
}
