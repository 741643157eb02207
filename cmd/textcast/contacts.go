package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foxzi/textcast/internal/config"
	"github.com/foxzi/textcast/internal/models"
	"github.com/foxzi/textcast/internal/store"
)

var (
	contactsStatus string
	contactsRegion string
	contactsLimit  int
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Contact commands",
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts",
	RunE:  runContactsList,
}

func init() {
	contactsListCmd.Flags().StringVar(&contactsStatus, "status", "", "Filter by status (active, inactive)")
	contactsListCmd.Flags().StringVar(&contactsRegion, "region", "", "Filter by 2-letter region")
	contactsListCmd.Flags().IntVar(&contactsLimit, "limit", 50, "Maximum contacts to list")
	contactsCmd.AddCommand(contactsListCmd)
}

func runContactsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	filter := models.ContactFilter{
		Status: models.ContactStatus(contactsStatus),
		Region: strings.ToUpper(contactsRegion),
		Limit:  contactsLimit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return fmt.Errorf("invalid status %q", contactsStatus)
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	contacts, total, err := store.NewContactRepository(db.DB).ListContacts(cmd.Context(), filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHONE\tNAME\tREGION\tSTATUS\tTAGS")
	for _, c := range contacts {
		name := strings.TrimSpace(c.FirstName + " " + c.LastName)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Phone, name, c.Region, c.Status, strings.Join(c.Tags, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d of %d contacts\n", len(contacts), total)
	return nil
}
