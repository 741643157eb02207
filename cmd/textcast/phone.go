package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/foxzi/textcast/internal/phone"
)

var phoneCmd = &cobra.Command{
	Use:   "phone",
	Short: "Phone number tools",
}

var phoneNormalizeCmd = &cobra.Command{
	Use:   "normalize <number>...",
	Short: "Normalize phone numbers to E.164",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPhoneNormalize,
}

func init() {
	phoneCmd.AddCommand(phoneNormalizeCmd)
}

type normalizeLine struct {
	Input string `json:"input"`
	phone.Result
}

func runPhoneNormalize(cmd *cobra.Command, args []string) error {
	enc := json.NewEncoder(os.Stdout)
	for _, raw := range args {
		if err := enc.Encode(normalizeLine{Input: raw, Result: phone.Normalize(raw)}); err != nil {
			return err
		}
	}
	return nil
}
