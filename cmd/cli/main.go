package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	authToken string
	apiURL    string = "http://localhost:8080"
	output    string = "text" // "text" or "json"
)

var rootCmd = &cobra.Command{
	Use:   "feavel",
	Short: "Feavel CLI - Manage your feeds from the command line",
	Long: `Feavel CLI provides command-line access to your account.
List, create and inspect feeds, and manage their collaborators.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if authToken == "" {
			authToken = os.Getenv("FEAVEL_TOKEN")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Authentication token (defaults to FEAVEL_TOKEN env var)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", apiURL, "API server URL")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(feedsCmd)
	rootCmd.AddCommand(collaboratorsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
