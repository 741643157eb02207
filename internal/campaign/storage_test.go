package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/textcast/internal/audience"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "drafts.db"), 0600, nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage, err := NewStorage(db)
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	return storage
}

func TestStorage_CreateGet(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	at := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)
	d := NewDraft("summer", "Hi {firstName} {optOut}", audience.ByRegion("TX"), ScheduleAt(at))
	if err := storage.Create(ctx, "alice", d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.ID == "" {
		t.Fatal("Create() did not set ID")
	}

	got, err := storage.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil")
	}
	if got.Name != "summer" || got.CreatedBy != "alice" || got.State != StateEditing {
		t.Errorf("draft = %+v", got)
	}
	if got.Targeting != audience.ByRegion("TX") {
		t.Errorf("Targeting = %+v", got.Targeting)
	}
	if got.Schedule.At == nil || !got.Schedule.At.Equal(at) {
		t.Errorf("Schedule = %+v", got.Schedule)
	}

	missing, err := storage.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestStorage_PersistsOnlyAuthoritativeFields(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	d := NewDraft("n", "b", audience.AllContacts(), ScheduleNow())
	if err := storage.Create(ctx, "alice", d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var raw map[string]any
	err := storage.db.View(func(tx *bolt.Tx) error {
		return json.Unmarshal(tx.Bucket(bucketDrafts).Get([]byte(d.ID)), &raw)
	})
	if err != nil {
		t.Fatalf("read raw draft: %v", err)
	}
	for _, key := range []string{"estimate", "recipient_count", "total_cost", "segments"} {
		if _, ok := raw[key]; ok {
			t.Errorf("derived field %q persisted", key)
		}
	}
}

func TestStorage_Update(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	d := NewDraft("n", "b", audience.AllContacts(), ScheduleNow())
	if err := storage.Create(ctx, "alice", d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	created := d.CreatedAt

	body := "new body"
	if err := d.Edit(Changes{Body: &body}); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	d.CreatedBy = "mallory"
	if err := storage.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := storage.Get(ctx, d.ID)
	if got.Body != "new body" {
		t.Errorf("Body = %q", got.Body)
	}
	if got.CreatedBy != "alice" || !got.CreatedAt.Equal(created) {
		t.Errorf("creation fields changed: %+v", got)
	}

	err := storage.Update(ctx, &Draft{ID: "missing"})
	if !errors.Is(err, ErrDraftNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrDraftNotFound", err)
	}
}

func TestStorage_SubmitOnce(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	d := NewDraft("n", "b", audience.AllContacts(), ScheduleNow())
	if err := storage.Create(ctx, "alice", d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	d.State = StateValid
	if err := storage.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := storage.Submit(ctx, d, now)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, ErrInvalidTransition):
			t.Errorf("Submit() error = %v, want ErrInvalidTransition", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d callers submitted, want exactly 1", succeeded)
	}

	got, _ := storage.Get(ctx, d.ID)
	if got.State != StateSubmitted || got.SubmittedAt == nil || !got.SubmittedAt.Equal(now) {
		t.Errorf("stored draft = %+v", got)
	}

	// a stale copy cannot overwrite the submitted draft
	d.State = StateValid
	if err := storage.Update(ctx, d); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Update(submitted) error = %v, want ErrInvalidTransition", err)
	}

	if _, err := storage.Submit(ctx, &Draft{ID: "missing"}, now); !errors.Is(err, ErrDraftNotFound) {
		t.Errorf("Submit(missing) error = %v, want ErrDraftNotFound", err)
	}
}

func TestStorage_Reopen(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	d := NewDraft("n", "b", audience.AllContacts(), ScheduleNow())
	if err := storage.Create(ctx, "alice", d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := storage.Reopen(ctx, d.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Reopen(editing) error = %v, want ErrInvalidTransition", err)
	}

	d.State = StateValid
	if err := storage.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := storage.Submit(ctx, d, time.Now()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	got, err := storage.Reopen(ctx, d.ID)
	if err != nil {
		t.Fatalf("Reopen() error = %v", err)
	}
	if got.State != StateValid || got.SubmittedAt != nil {
		t.Errorf("reopened draft = %+v", got)
	}

	// a copy read before the reopen is stale
	if _, err := storage.Submit(ctx, d, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Submit(stale) error = %v, want ErrInvalidTransition", err)
	}
	// reopened drafts can be submitted again
	if _, err := storage.Submit(ctx, got, time.Now()); err != nil {
		t.Errorf("Submit() after Reopen error = %v", err)
	}
}

func TestStorage_ListDelete(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		d := NewDraft(name, "body", audience.AllContacts(), ScheduleNow())
		if err := storage.Create(ctx, "alice", d); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if name == "c" {
			d.State = StateValid
			if err := storage.Update(ctx, d); err != nil {
				t.Fatalf("Update() error = %v", err)
			}
		}
	}

	all, err := storage.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(List) = %d, want 3", len(all))
	}

	valid, _ := storage.List(ctx, StateValid)
	if len(valid) != 1 || valid[0].Name != "c" {
		t.Errorf("List(valid) = %+v", valid)
	}

	if err := storage.Delete(ctx, valid[0].ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	all, _ = storage.List(ctx, "")
	if len(all) != 2 {
		t.Errorf("len(List) after delete = %d, want 2", len(all))
	}
}
