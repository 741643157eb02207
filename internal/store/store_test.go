package store

import (
	"context"
	"errors"
	"testing"

	"github.com/foxzi/textcast/internal/models"
)

// setupTestDB creates an in-memory SQLite database with all migrations applied
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedContacts(t *testing.T, repo *ContactRepository, contacts ...models.NewContact) []models.Contact {
	t.Helper()
	res, err := repo.InsertContacts(context.Background(), "seed", contacts)
	if err != nil {
		t.Fatalf("InsertContacts() error = %v", err)
	}
	return res.Inserted
}

func TestContactRepository_InsertAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContactRepository(db.DB)
	ctx := context.Background()

	inserted := seedContacts(t, repo,
		models.NewContact{Phone: "+12125550100", FirstName: "Ann", Region: "NY", Tags: []string{"vip", "vip"}},
		models.NewContact{Phone: "+14155550199", FirstName: "Bob", Region: "CA"},
	)
	if len(inserted) != 2 {
		t.Fatalf("inserted = %d, want 2", len(inserted))
	}
	if inserted[0].CreatedBy != "seed" {
		t.Errorf("CreatedBy = %q, want seed", inserted[0].CreatedBy)
	}

	got, err := repo.FindContactByPhone(ctx, "+12125550100")
	if err != nil {
		t.Fatalf("FindContactByPhone() error = %v", err)
	}
	if got == nil || got.FirstName != "Ann" {
		t.Fatalf("FindContactByPhone() = %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "vip" {
		t.Errorf("Tags = %v, want [vip]", got.Tags)
	}
	if got.Status != models.StatusActive {
		t.Errorf("Status = %q, want active", got.Status)
	}

	missing, err := repo.FindContactByPhone(ctx, "+19995550000")
	if err != nil {
		t.Fatalf("FindContactByPhone() error = %v", err)
	}
	if missing != nil {
		t.Error("FindContactByPhone() should return nil for unknown phone")
	}

	found, err := repo.FindContactsByPhones(ctx, []string{"+12125550100", "+14155550199", "+19995550000"})
	if err != nil {
		t.Fatalf("FindContactsByPhones() error = %v", err)
	}
	if len(found) != 2 {
		t.Errorf("FindContactsByPhones() len = %d, want 2", len(found))
	}
}

func TestContactRepository_InsertConflicts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContactRepository(db.DB)

	seedContacts(t, repo, models.NewContact{Phone: "+12125550100"})

	res, err := repo.InsertContacts(context.Background(), "op", []models.NewContact{
		{Phone: "+12125550100"},
		{Phone: "+13125550142"},
	})
	if err != nil {
		t.Fatalf("InsertContacts() error = %v", err)
	}
	if len(res.Inserted) != 1 {
		t.Errorf("Inserted = %d, want 1", len(res.Inserted))
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0] != "+12125550100" {
		t.Errorf("Conflicts = %v", res.Conflicts)
	}

	_, total, err := repo.ListContacts(context.Background(), models.ContactFilter{})
	if err != nil {
		t.Fatalf("ListContacts() error = %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestContactRepository_InsertIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContactRepository(db.DB)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.InsertContacts(ctx, "op", []models.NewContact{{Phone: "+12125550100"}})
	if err == nil {
		t.Fatal("InsertContacts() with cancelled context should fail")
	}

	_, total, err := repo.ListContacts(context.Background(), models.ContactFilter{})
	if err != nil {
		t.Fatalf("ListContacts() error = %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0 after failed batch", total)
	}
}

func TestContactRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContactRepository(db.DB)
	ctx := context.Background()

	inserted := seedContacts(t, repo,
		models.NewContact{Phone: "+12125550100", FirstName: "Ann", Region: "NY", Tags: []string{"vip"}},
		models.NewContact{Phone: "+12125550101", FirstName: "Bea", Region: "NY"},
		models.NewContact{Phone: "+14155550199", FirstName: "Cal", Region: "CA"},
	)

	inactive := inserted[1]
	inactive.Status = models.StatusInactive
	if err := repo.UpdateContact(ctx, "op", &inactive); err != nil {
		t.Fatalf("UpdateContact() error = %v", err)
	}

	tests := []struct {
		name   string
		filter models.ContactFilter
		want   int
	}{
		{"all", models.ContactFilter{}, 3},
		{"active", models.ContactFilter{Status: models.StatusActive}, 2},
		{"inactive", models.ContactFilter{Status: models.StatusInactive}, 1},
		{"region", models.ContactFilter{Region: "NY"}, 2},
		{"tag", models.ContactFilter{Tag: "vip"}, 1},
		{"search", models.ContactFilter{Search: "Cal"}, 1},
		{"limit", models.ContactFilter{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, _, err := repo.ListContacts(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListContacts() error = %v", err)
			}
			if len(list) != tt.want {
				t.Errorf("ListContacts() len = %d, want %d", len(list), tt.want)
			}
		})
	}

	regions, err := repo.Regions(ctx)
	if err != nil {
		t.Fatalf("Regions() error = %v", err)
	}
	if regions["NY"] != 2 || regions["CA"] != 1 {
		t.Errorf("Regions() = %v", regions)
	}
}

func TestContactRepository_CreateUpdateDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContactRepository(db.DB)
	ctx := context.Background()

	c := &models.Contact{Phone: "+12125550100", FirstName: "Ann"}
	if err := repo.CreateContact(ctx, "op", c); err != nil {
		t.Fatalf("CreateContact() error = %v", err)
	}
	if c.ID == "" || c.Status != models.StatusActive {
		t.Errorf("CreateContact() = %+v", c)
	}

	dup := &models.Contact{Phone: "+12125550100"}
	if err := repo.CreateContact(ctx, "op", dup); !errors.Is(err, ErrDuplicatePhone) {
		t.Errorf("CreateContact() duplicate error = %v, want ErrDuplicatePhone", err)
	}

	c.LastName = "Lee"
	if err := repo.UpdateContact(ctx, "op", c); err != nil {
		t.Fatalf("UpdateContact() error = %v", err)
	}
	got, err := repo.GetContact(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetContact() error = %v", err)
	}
	if got == nil || got.LastName != "Lee" {
		t.Errorf("GetContact() = %+v", got)
	}

	if err := repo.DeleteContact(ctx, "op", c.ID); err != nil {
		t.Fatalf("DeleteContact() error = %v", err)
	}
	if err := repo.DeleteContact(ctx, "op", c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteContact() twice error = %v, want ErrNotFound", err)
	}
	if got, _ := repo.GetContact(ctx, c.ID); got != nil {
		t.Error("GetContact() should not return deleted contact")
	}

	// The deleted contact releases its phone number
	again := &models.Contact{Phone: "+12125550100"}
	if err := repo.CreateContact(ctx, "op", again); err != nil {
		t.Errorf("CreateContact() after delete error = %v", err)
	}

	ghost := &models.Contact{ID: "missing", Phone: "+13125550142", Status: models.StatusActive}
	if err := repo.UpdateContact(ctx, "op", ghost); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateContact() missing error = %v, want ErrNotFound", err)
	}
}

func TestImportRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewImportRepository(db.DB)
	ctx := context.Background()

	rec := &models.ImportRecord{Actor: "op", Source: "csv", Total: 3, Inserted: 1, DuplicatesInBatch: 1, Invalid: 1}
	if err := repo.Record(ctx, rec); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	list, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].Inserted != 1 || list[0].Actor != "op" {
		t.Errorf("List() = %+v", list)
	}
}
