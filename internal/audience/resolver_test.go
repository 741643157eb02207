package audience

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/foxzi/textcast/internal/models"
)

func testContacts() []models.Contact {
	deleted := time.Now()
	return []models.Contact{
		{ID: "c1", Phone: "+12125550100", Region: "NY", Status: models.StatusActive},
		{ID: "c2", Phone: "+13105550101", Region: "CA", Status: models.StatusInactive},
		{ID: "c3", Phone: "+17185550102", Region: "NY", Status: models.StatusInactive},
		{ID: "c4", Phone: "+14155550103", Region: "CA", Status: models.StatusActive},
		{ID: "c5", Phone: "+12125550104", Region: "NY", Status: models.StatusActive, DeletedAt: &deleted},
	}
}

func TestResolve(t *testing.T) {
	contacts := testContacts()

	tests := []struct {
		name    string
		rule    Rule
		wantIDs []string
	}{
		{"all contacts", AllContacts(), []string{"c1", "c2", "c3", "c4"}},
		{"active only", ActiveOnly(), []string{"c1", "c4"}},
		{"by region", ByRegion("NY"), []string{"c1", "c3"}},
		{"by region lower case", ByRegion(" ca "), []string{"c2", "c4"}},
		{"by unknown region", ByRegion("ZZ"), []string{}},
		{"single stored number", SingleNumber("(212) 555-0100"), []string{"c1"}},
		{"single ad-hoc number", SingleNumber("646-555-0199"), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aud, err := Resolve(tt.rule, contacts)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			ids := aud.MemberIDs()
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("MemberIDs() = %v, want %v", ids, tt.wantIDs)
			}
			for i := range ids {
				if ids[i] != tt.wantIDs[i] {
					t.Errorf("MemberIDs()[%d] = %s, want %s", i, ids[i], tt.wantIDs[i])
				}
			}
			if aud.Count != len(aud.Recipients) {
				t.Errorf("Count = %d, recipients = %d", aud.Count, len(aud.Recipients))
			}
		})
	}
}

func TestResolve_ActiveOnlyNeverInactive(t *testing.T) {
	aud, err := Resolve(ActiveOnly(), testContacts())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	for _, r := range aud.Recipients {
		if r.Contact.Status != models.StatusActive {
			t.Errorf("recipient %s has status %s", r.ContactID, r.Contact.Status)
		}
		if r.Contact.DeletedAt != nil {
			t.Errorf("recipient %s is deleted", r.ContactID)
		}
	}
}

func TestResolve_SingleNumber(t *testing.T) {
	aud, err := Resolve(SingleNumber("646.555.0199"), nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if aud.Count != 1 {
		t.Fatalf("Count = %d, want 1", aud.Count)
	}
	if aud.Recipients[0].Phone != "+16465550199" {
		t.Errorf("Phone = %s, want +16465550199", aud.Recipients[0].Phone)
	}
	if aud.Recipients[0].ContactID != "" {
		t.Errorf("ContactID = %s, want empty", aud.Recipients[0].ContactID)
	}

	// Deleted contacts never match
	aud, err = Resolve(SingleNumber("2125550104"), testContacts())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if aud.Recipients[0].ContactID != "" {
		t.Errorf("matched deleted contact %s", aud.Recipients[0].ContactID)
	}
}

func TestResolve_InvalidRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"invalid number", SingleNumber("12345")},
		{"invalid prefix", SingleNumber("0125550100")},
		{"empty number", SingleNumber("  ")},
		{"empty region", ByRegion("")},
		{"missing kind", Rule{}},
		{"unknown kind", Rule{Kind: "by_tag"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aud, err := Resolve(tt.rule, testContacts())
			if err == nil {
				t.Fatal("expected error")
			}
			var ruleErr *RuleError
			if !errors.As(err, &ruleErr) {
				t.Fatalf("error = %T, want *RuleError", err)
			}
			if aud.Count != 0 || len(aud.Recipients) != 0 {
				t.Errorf("audience = %+v, want empty", aud)
			}
		})
	}
}

func TestRule_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input string
		want  Rule
	}{
		{`"active_only"`, ActiveOnly()},
		{`{"kind":"by_region","value":"TX"}`, ByRegion("TX")},
		{`{"kind":"single_number","value":"5551234567"}`, SingleNumber("5551234567")},
	}
	for _, tt := range tests {
		var r Rule
		if err := json.Unmarshal([]byte(tt.input), &r); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", tt.input, err)
		}
		if r != tt.want {
			t.Errorf("Unmarshal(%s) = %+v, want %+v", tt.input, r, tt.want)
		}
	}
}

type fakeLister struct {
	contacts []models.Contact
	filters  []models.ContactFilter
	err      error
}

func (f *fakeLister) ListContacts(ctx context.Context, filter models.ContactFilter) ([]models.Contact, int, error) {
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.contacts, len(f.contacts), nil
}

func TestResolver_Resolve(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lister := &fakeLister{contacts: testContacts()}
	r := NewResolver(lister, logger)
	ctx := context.Background()

	aud, err := r.Resolve(ctx, ByRegion("ny"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if aud.Count != 2 {
		t.Errorf("Count = %d, want 2", aud.Count)
	}
	if got := lister.filters[0].Region; got != "NY" {
		t.Errorf("filter region = %q, want NY", got)
	}

	if _, err := r.Resolve(ctx, ActiveOnly()); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := lister.filters[1].Status; got != models.StatusActive {
		t.Errorf("filter status = %q, want active", got)
	}

	// A new contact is visible on the next resolution
	lister.contacts = append(lister.contacts, models.Contact{ID: "c6", Phone: "+15125550105", Region: "TX", Status: models.StatusActive})
	aud, err = r.Resolve(ctx, AllContacts())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if aud.Count != 5 {
		t.Errorf("Count = %d, want 5", aud.Count)
	}
}

func TestResolver_InvalidNumberSkipsStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lister := &fakeLister{}
	r := NewResolver(lister, logger)

	if _, err := r.Resolve(context.Background(), SingleNumber("abc")); err == nil {
		t.Fatal("expected error")
	}
	if len(lister.filters) != 0 {
		t.Errorf("store was queried %d times", len(lister.filters))
	}
}

func TestResolver_StoreError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	storeErr := errors.New("database is locked")
	r := NewResolver(&fakeLister{err: storeErr}, logger)

	_, err := r.Resolve(context.Background(), AllContacts())
	if !errors.Is(err, storeErr) {
		t.Errorf("error = %v, want wrapped store error", err)
	}
}
