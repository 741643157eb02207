package models

import (
	"sort"
	"strings"
	"time"
)

// ContactStatus is the targeting status of a contact
type ContactStatus string

const (
	StatusActive   ContactStatus = "active"
	StatusInactive ContactStatus = "inactive"
)

// Valid reports whether s is a known status
func (s ContactStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Contact represents a single SMS recipient
type Contact struct {
	ID        string        `json:"id"`
	Phone     string        `json:"phone"` // canonical E.164
	FirstName string        `json:"first_name,omitempty"`
	LastName  string        `json:"last_name,omitempty"`
	Email     string        `json:"email,omitempty"`
	Company   string        `json:"company,omitempty"`
	Region    string        `json:"region,omitempty"` // 2-letter code
	Status    ContactStatus `json:"status"`
	Tags      []string      `json:"tags"`
	CreatedBy string        `json:"created_by,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	DeletedAt *time.Time    `json:"deleted_at,omitempty"`
}

// ContactFilter for filtering contacts
type ContactFilter struct {
	Status ContactStatus
	Region string
	Tag    string
	Search string
	Limit  int
	Offset int
}

// NewContact holds the fields of a contact about to be inserted.
// Phone must already be canonical.
type NewContact struct {
	Phone     string
	FirstName string
	LastName  string
	Email     string
	Company   string
	Region    string
	Tags      []string
}

// InsertResult reports the outcome of an atomic batch insert
type InsertResult struct {
	Inserted []Contact
	// Conflicts lists phones rejected by the uniqueness constraint,
	// e.g. inserted by a concurrent import after the caller's lookup.
	Conflicts []string
}

// NormalizeTags trims, deduplicates and sorts tags
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := []string{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// HasTag reports whether the contact carries tag
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
