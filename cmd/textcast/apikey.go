package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "API key management commands",
}

var apikeyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random API key and its bcrypt hash",
	RunE:  runAPIKeyGenerate,
}

var apikeyHashCmd = &cobra.Command{
	Use:   "hash [key]",
	Short: "Print the bcrypt hash of an API key for server.api_key_hash",
	Long:  `Hash an API key. Without an argument the key is read from the terminal.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAPIKeyHash,
}

func init() {
	apikeyCmd.AddCommand(apikeyGenerateCmd)
	apikeyCmd.AddCommand(apikeyHashCmd)
	rootCmd.AddCommand(apikeyCmd)
}

func runAPIKeyGenerate(cmd *cobra.Command, args []string) error {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	key := hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}

	fmt.Printf("API key:      %s\n", key)
	fmt.Printf("api_key_hash: %s\n", hash)
	return nil
}

func runAPIKeyHash(cmd *cobra.Command, args []string) error {
	var key string
	if len(args) == 1 {
		key = args[0]
	} else {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return fmt.Errorf("no key given and stdin is not a terminal")
		}

		fmt.Print("Enter API key: ")
		first, err := term.ReadPassword(fd)
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		fmt.Println()

		fmt.Print("Confirm API key: ")
		second, err := term.ReadPassword(fd)
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		fmt.Println()

		if string(first) != string(second) {
			return fmt.Errorf("keys do not match")
		}
		key = string(first)
	}

	if key == "" {
		return fmt.Errorf("key must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}
	fmt.Println(string(hash))
	return nil
}
