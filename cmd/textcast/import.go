package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/foxzi/textcast/internal/app"
	"github.com/foxzi/textcast/internal/config"
	"github.com/foxzi/textcast/internal/importer"
	"github.com/foxzi/textcast/internal/store"
)

var (
	importCommit bool
	importFormat string
	importActor  string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import contacts from a CSV or line-per-contact file",
	Long:  `Validate and deduplicate contacts from a file. Without --commit nothing is written.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importCommit, "commit", false, "Write new contacts (default is a dry run)")
	importCmd.Flags().StringVar(&importFormat, "format", "csv", "Input format: csv or lines")
	importCmd.Flags().StringVar(&importActor, "actor", "cli", "Actor recorded on inserted contacts")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	format, err := importer.ParseFormat(importFormat)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := app.SetupLogger(cfg.Logging)
	contacts := store.NewContactRepository(db.DB)
	pipeline := importer.NewPipeline(contacts, importer.Limits{
		MaxRows:     cfg.Import.MaxRows,
		MaxBytes:    cfg.Import.MaxBytes,
		ErrorSample: cfg.Import.ErrorSample,
	}, logger)
	pipeline.SetRecorder(store.NewImportRepository(db.DB))

	res, err := pipeline.Import(cmd.Context(), importActor, filepath.Base(args[0]), f, format, importCommit)
	if err != nil {
		return err
	}

	printImportResult(res)
	return nil
}

func printImportResult(res *importer.Result) {
	if res.Committed {
		fmt.Println("Import committed")
	} else {
		fmt.Println("Dry run (use --commit to write)")
	}
	fmt.Printf("  Total rows:          %d\n", res.Total)
	fmt.Printf("  New contacts:        %d\n", res.Inserted)
	fmt.Printf("  Already existing:    %d\n", res.SkippedExisting)
	fmt.Printf("  Duplicates in file:  %d\n", res.DuplicatesInBatch)
	fmt.Printf("  Invalid:             %d\n", res.Invalid)
	for _, e := range res.Errors {
		fmt.Printf("    %s\n", e)
	}
}
