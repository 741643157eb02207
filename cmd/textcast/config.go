package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxzi/textcast/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  API key: %v\n", cfg.Server.APIKey != "")
	fmt.Printf("  Database path: %s\n", cfg.Database.Path)
	fmt.Printf("  Bolt path: %s\n", cfg.Storage.BoltPath)
	fmt.Printf("  Pricing: %d chars/segment at %.4f\n", cfg.Pricing.SegmentSize, cfg.Pricing.SegmentPrice)
	fmt.Printf("  Import limits: %d rows, %d bytes\n", cfg.Import.MaxRows, cfg.Import.MaxBytes)
	fmt.Printf("  Block over limit: %v\n", cfg.Campaign.BlockOverLimit)
	fmt.Printf("  Sandbox: %v\n", cfg.Sandbox.Enabled)
	if cfg.Metrics.Enabled {
		fmt.Printf("  Metrics: %s%s\n", cfg.Metrics.ListenAddr, cfg.Metrics.Path)
	}

	return nil
}
