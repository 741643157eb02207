package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/foxzi/textcast/internal/config"
	"github.com/foxzi/textcast/internal/segment"
)

var (
	estimatePrice      float64
	estimateRecipients int
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <text>",
	Short: "Estimate segments and cost for a message",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEstimate,
}

func init() {
	estimateCmd.Flags().Float64Var(&estimatePrice, "price", -1, "Price per segment (default from config)")
	estimateCmd.Flags().IntVar(&estimateRecipients, "recipients", 1, "Number of recipients")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	price := cfg.Pricing.SegmentPrice
	if estimatePrice >= 0 {
		price = estimatePrice
	}

	est := segment.NewEstimator(cfg.Pricing.SegmentSize, segment.MoneyFromFloat(price)).
		Estimate(strings.Join(args, " "))

	fmt.Printf("Characters: %d\n", est.Characters)
	fmt.Printf("Segments:   %d (%s)\n", est.Segments, est.Band)
	fmt.Printf("Per message: %s\n", est.CostPerMessage)
	fmt.Printf("Total (%d): %s\n", estimateRecipients, est.Total(estimateRecipients))
	return nil
}
