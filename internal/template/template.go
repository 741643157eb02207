package template

import (
	"fmt"
	"time"
)

// Category groups message templates
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryMarketing     Category = "marketing"
	CategoryReminders     Category = "reminders"
	CategoryAlerts        Category = "alerts"
	CategoryAnnouncements Category = "announcements"
)

var categories = []Category{
	CategoryGeneral,
	CategoryMarketing,
	CategoryReminders,
	CategoryAlerts,
	CategoryAnnouncements,
}

// Categories returns all known categories
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory validates a category name; empty means general
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryGeneral, nil
	}
	for _, c := range categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown template category %q", s)
}

// Template represents a reusable SMS message body.
// Drafts copy Body when a template is applied; they never reference it.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Body      string    `json:"body"`
	IsPublic  bool      `json:"is_public"`
	Version   int       `json:"version"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilter contains filters for listing templates
type ListFilter struct {
	Limit      int
	Offset     int
	Search     string
	Category   Category
	PublicOnly bool
}

// Stats contains template statistics
type Stats struct {
	Total      int64              `json:"total"`
	ByCategory map[Category]int64 `json:"by_category"`
}
