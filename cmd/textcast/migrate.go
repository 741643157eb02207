package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxzi/textcast/internal/config"
	"github.com/foxzi/textcast/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Migrations completed successfully")
	return nil
}

// openStore opens and migrates the contact database
func openStore(cfg *config.Config) (*store.DB, error) {
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
