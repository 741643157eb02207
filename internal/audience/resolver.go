package audience

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foxzi/textcast/internal/metrics"
	"github.com/foxzi/textcast/internal/models"
	"github.com/foxzi/textcast/internal/phone"
)

// Recipient is one resolved destination. ContactID is empty for an ad-hoc
// number that is not stored as a contact.
type Recipient struct {
	ContactID string          `json:"contact_id,omitempty"`
	Phone     string          `json:"phone"`
	Contact   *models.Contact `json:"-"`
}

// Audience is a resolved recipient set
type Audience struct {
	Count      int         `json:"count"`
	Recipients []Recipient `json:"recipients"`
}

// MemberIDs returns the contact IDs of stored members, in resolution order
func (a Audience) MemberIDs() []string {
	ids := make([]string, 0, len(a.Recipients))
	for _, r := range a.Recipients {
		if r.ContactID != "" {
			ids = append(ids, r.ContactID)
		}
	}
	return ids
}

// Phones returns every recipient phone, in resolution order
func (a Audience) Phones() []string {
	phones := make([]string, len(a.Recipients))
	for i, r := range a.Recipients {
		phones[i] = r.Phone
	}
	return phones
}

// Resolve applies rule to an in-memory contact collection. Soft-deleted
// contacts are never members. An invalid SingleNumber yields an empty
// audience and a *RuleError.
func Resolve(rule Rule, contacts []models.Contact) (Audience, error) {
	if err := rule.Validate(); err != nil {
		return Audience{Recipients: []Recipient{}}, err
	}

	if rule.Kind == KindSingleNumber {
		n, err := phone.Parse(rule.Value)
		if err != nil {
			return Audience{Recipients: []Recipient{}}, &RuleError{Rule: rule, Reason: err.Error(), Err: err}
		}
		r := Recipient{Phone: n.Formatted}
		for i := range contacts {
			c := &contacts[i]
			if c.DeletedAt == nil && c.Phone == n.Formatted {
				r.ContactID = c.ID
				r.Contact = c
				break
			}
		}
		return Audience{Count: 1, Recipients: []Recipient{r}}, nil
	}

	region := phone.NormalizeRegion(rule.Value)
	recipients := []Recipient{}
	for i := range contacts {
		c := &contacts[i]
		if c.DeletedAt != nil {
			continue
		}
		switch rule.Kind {
		case KindActiveOnly:
			if c.Status != models.StatusActive {
				continue
			}
		case KindByRegion:
			if c.Region != region {
				continue
			}
		}
		recipients = append(recipients, Recipient{ContactID: c.ID, Phone: c.Phone, Contact: c})
	}

	return Audience{Count: len(recipients), Recipients: recipients}, nil
}

// ContactLister reads the live contact collection
type ContactLister interface {
	ListContacts(ctx context.Context, filter models.ContactFilter) ([]models.Contact, int, error)
}

// Resolver resolves rules against a store. Nothing is cached: every call
// reads the store so counts reflect the latest mutation.
type Resolver struct {
	contacts ContactLister
	logger   *slog.Logger
}

// NewResolver creates a resolver
func NewResolver(contacts ContactLister, logger *slog.Logger) *Resolver {
	return &Resolver{contacts: contacts, logger: logger}
}

// Resolve resolves rule against the current store contents
func (r *Resolver) Resolve(ctx context.Context, rule Rule) (Audience, error) {
	if err := rule.Validate(); err != nil {
		recordResolution(rule, "invalid")
		return Audience{Recipients: []Recipient{}}, err
	}

	filter := models.ContactFilter{}
	switch rule.Kind {
	case KindActiveOnly:
		filter.Status = models.StatusActive
	case KindByRegion:
		filter.Region = phone.NormalizeRegion(rule.Value)
	case KindSingleNumber:
		n, err := phone.Parse(rule.Value)
		if err != nil {
			recordResolution(rule, "invalid")
			return Audience{Recipients: []Recipient{}}, &RuleError{Rule: rule, Reason: err.Error(), Err: err}
		}
		// Only the matching stored contact, if any, is needed.
		filter.Search = n.Formatted
	}

	contacts, _, err := r.contacts.ListContacts(ctx, filter)
	if err != nil {
		recordResolution(rule, "error")
		return Audience{Recipients: []Recipient{}}, fmt.Errorf("failed to list contacts: %w", err)
	}

	aud, err := Resolve(rule, contacts)
	if err != nil {
		recordResolution(rule, "invalid")
		return aud, err
	}

	recordResolution(rule, "ok")
	r.logger.Debug("audience resolved", "rule", rule.String(), "count", aud.Count)
	return aud, nil
}

func recordResolution(rule Rule, result string) {
	m := metrics.Global()
	if m == nil {
		return
	}
	kind := string(rule.Kind)
	switch rule.Kind {
	case KindAllContacts, KindActiveOnly, KindSingleNumber, KindByRegion:
	default:
		kind = "unknown"
	}
	m.AudienceResolutionsTotal.WithLabelValues(kind, result).Inc()
}
