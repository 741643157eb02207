package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFile string
	envFile    string
	version    = "dev"
	buildTime  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "textcast",
	Short: "Textcast - SMS campaign authoring service",
	Long:  `Textcast manages SMS contacts, templates and campaign drafts, estimating segments and cost before submission.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnv()
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("textcast %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from file (default .env when present)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(phoneCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(contactsCmd)
}

// loadEnv reads TEXTCAST_* overrides from an env file. A missing default
// .env is not an error; a missing explicit file is.
func loadEnv() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		return nil
	}
	_ = godotenv.Load()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
