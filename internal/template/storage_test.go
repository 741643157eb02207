package template

import (
	"context"
	"errors"
	"os"
	"testing"

	bolt "go.etcd.io/bbolt"
)

func setupTestDB(t *testing.T) (*bolt.DB, func()) {
	tmpfile, err := os.CreateTemp("", "template_test_*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpfile.Close()

	db, err := bolt.Open(tmpfile.Name(), 0600, nil)
	if err != nil {
		os.Remove(tmpfile.Name())
		t.Fatalf("failed to open db: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(tmpfile.Name())
	}

	return db, cleanup
}

func newTestStorage(t *testing.T) (*Storage, func()) {
	db, cleanup := setupTestDB(t)
	storage, err := NewStorage(db)
	if err != nil {
		cleanup()
		t.Fatalf("NewStorage() error = %v", err)
	}
	return storage, cleanup
}

func TestStorage_Create(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	tmpl := &Template{
		Name: "welcome",
		Body: "Hi {firstName}! {optOut}",
	}

	if err := storage.Create(ctx, tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tmpl.ID == "" {
		t.Error("Create() did not set ID")
	}
	if tmpl.Version != 1 {
		t.Errorf("Create() version = %d, want 1", tmpl.Version)
	}
	if tmpl.Category != CategoryGeneral {
		t.Errorf("Create() category = %q, want general", tmpl.Category)
	}
	if tmpl.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}
}

func TestStorage_CreateValidation(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	tests := []struct {
		name string
		tmpl *Template
	}{
		{"missing name", &Template{Body: "x"}},
		{"missing body", &Template{Name: "x"}},
		{"bad category", &Template{Name: "x", Body: "x", Category: "promo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := storage.Create(ctx, tt.tmpl); !errors.Is(err, ErrInvalid) {
				t.Errorf("Create() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestStorage_CreateDuplicateName(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	if err := storage.Create(ctx, &Template{Name: "welcome", Body: "Hello"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := storage.Create(ctx, &Template{Name: "welcome", Body: "Hi"}); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Create() error = %v, want ErrDuplicateName", err)
	}
}

func TestStorage_GetAndGetByName(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	tmpl := &Template{Name: "reminder", Body: "Your visit is tomorrow", Category: CategoryReminders}
	if err := storage.Create(ctx, tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := storage.Get(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.Name != "reminder" {
		t.Fatalf("Get() = %+v", got)
	}

	byName, err := storage.GetByName(ctx, "reminder")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if byName == nil || byName.ID != tmpl.ID {
		t.Errorf("GetByName() = %+v", byName)
	}

	missing, err := storage.Get(ctx, "non-existent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if missing != nil {
		t.Error("Get() should return nil for non-existent")
	}
}

func TestStorage_List(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	fixtures := []*Template{
		{Name: "welcome", Body: "Welcome aboard", Category: CategoryGeneral, IsPublic: true},
		{Name: "sale", Body: "50% off today", Category: CategoryMarketing, IsPublic: true},
		{Name: "outage", Body: "Service outage", Category: CategoryAlerts},
	}
	for _, tmpl := range fixtures {
		if err := storage.Create(ctx, tmpl); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter ListFilter
		want   int
	}{
		{"all", ListFilter{}, 3},
		{"limit", ListFilter{Limit: 2}, 2},
		{"offset", ListFilter{Offset: 2}, 1},
		{"search body", ListFilter{Search: "OFF"}, 1},
		{"category", ListFilter{Category: CategoryAlerts}, 1},
		{"public only", ListFilter{PublicOnly: true}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := storage.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(list) != tt.want {
				t.Errorf("List() len = %d, want %d", len(list), tt.want)
			}
		})
	}
}

func TestStorage_Update(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	tmpl := &Template{Name: "welcome", Body: "Hello"}
	if err := storage.Create(ctx, tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tmpl.Body = "Hi there"
	tmpl.Name = "greeting"
	if err := storage.Update(ctx, tmpl); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if tmpl.Version != 2 {
		t.Errorf("Update() version = %d, want 2", tmpl.Version)
	}

	got, err := storage.GetByName(ctx, "greeting")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if got == nil || got.Body != "Hi there" {
		t.Errorf("GetByName() = %+v", got)
	}
	old, _ := storage.GetByName(ctx, "welcome")
	if old != nil {
		t.Error("Update() did not remove old name index")
	}

	missing := &Template{ID: "nope", Name: "x", Body: "x"}
	if err := storage.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() missing error = %v, want ErrNotFound", err)
	}
}

func TestStorage_DeleteAndStats(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	a := &Template{Name: "a", Body: "a", Category: CategoryAlerts}
	b := &Template{Name: "b", Body: "b", Category: CategoryAlerts}
	for _, tmpl := range []*Template{a, b} {
		if err := storage.Create(ctx, tmpl); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if err := storage.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := storage.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() twice error = %v", err)
	}
	if got, _ := storage.GetByName(ctx, "a"); got != nil {
		t.Error("Delete() did not remove name index")
	}

	stats, err := storage.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 1 || stats.ByCategory[CategoryAlerts] != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}
