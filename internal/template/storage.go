package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Templates are stored as JSON under their ID; a second bucket maps the
// unique name to the ID.
var (
	bucketTemplates     = []byte("sms_templates")
	bucketTemplateNames = []byte("sms_template_names")
)

var (
	// ErrNotFound is returned when updating a template that does not exist
	ErrNotFound      = errors.New("template not found")
	ErrDuplicateName = errors.New("template name already exists")
	ErrInvalid       = errors.New("invalid template")
)

// Storage keeps reusable message bodies in bbolt
type Storage struct {
	db *bolt.DB
}

// buckets is the pair of buckets every write touches
type buckets struct {
	byID   *bolt.Bucket
	byName *bolt.Bucket
}

func openBuckets(tx *bolt.Tx) buckets {
	return buckets{
		byID:   tx.Bucket(bucketTemplates),
		byName: tx.Bucket(bucketTemplateNames),
	}
}

func NewStorage(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketTemplates, bucketTemplateNames} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create template buckets: %w", err)
	}
	return &Storage{db: db}, nil
}

// Create assigns an ID and stores tmpl as version 1. Names are unique.
func (s *Storage) Create(ctx context.Context, tmpl *Template) error {
	if err := normalizeTemplate(tmpl); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bk := openBuckets(tx)
		if bk.byName.Get([]byte(tmpl.Name)) != nil {
			return fmt.Errorf("%w: %q", ErrDuplicateName, tmpl.Name)
		}

		tmpl.ID = uuid.New().String()
		tmpl.Version = 1
		tmpl.CreatedAt = time.Now().UTC()
		tmpl.UpdatedAt = tmpl.CreatedAt

		if err := bk.put(tmpl); err != nil {
			return err
		}
		return bk.byName.Put([]byte(tmpl.Name), []byte(tmpl.ID))
	})
}

// Get returns the template with the given ID, or nil
func (s *Storage) Get(ctx context.Context, id string) (*Template, error) {
	return s.lookup(func(bk buckets) []byte { return []byte(id) })
}

// GetByName returns the template with the given name, or nil
func (s *Storage) GetByName(ctx context.Context, name string) (*Template, error) {
	return s.lookup(func(bk buckets) []byte { return bk.byName.Get([]byte(name)) })
}

func (s *Storage) lookup(idOf func(buckets) []byte) (*Template, error) {
	var tmpl *Template
	err := s.db.View(func(tx *bolt.Tx) error {
		bk := openBuckets(tx)
		id := idOf(bk)
		if id == nil {
			return nil
		}
		var err error
		tmpl, err = bk.get(id)
		return err
	})
	return tmpl, err
}

// List walks templates in ID order, applying filter before paging
func (s *Storage) List(ctx context.Context, filter ListFilter) ([]*Template, error) {
	out := []*Template{}
	search := strings.ToLower(filter.Search)
	offset := filter.Offset

	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachTemplate(tx, func(tmpl *Template) bool {
			if !filter.matches(tmpl, search) {
				return true
			}
			if offset > 0 {
				offset--
				return true
			}
			out = append(out, tmpl)
			return filter.Limit <= 0 || len(out) < filter.Limit
		})
	})
	return out, err
}

func (f ListFilter) matches(tmpl *Template, search string) bool {
	switch {
	case f.Category != "" && tmpl.Category != f.Category:
		return false
	case f.PublicOnly && !tmpl.IsPublic:
		return false
	case search == "":
		return true
	}
	return strings.Contains(strings.ToLower(tmpl.Name), search) ||
		strings.Contains(strings.ToLower(tmpl.Body), search)
}

// Update replaces a stored template, moving its name index entry on rename.
// The version is bumped and creation fields are preserved.
func (s *Storage) Update(ctx context.Context, tmpl *Template) error {
	if err := normalizeTemplate(tmpl); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bk := openBuckets(tx)
		prev, err := bk.get([]byte(tmpl.ID))
		if err != nil {
			return err
		}
		if prev == nil {
			return ErrNotFound
		}

		if prev.Name != tmpl.Name {
			if err := bk.rename(prev.Name, tmpl.Name, tmpl.ID); err != nil {
				return err
			}
		}

		tmpl.Version = prev.Version + 1
		tmpl.CreatedBy = prev.CreatedBy
		tmpl.CreatedAt = prev.CreatedAt
		tmpl.UpdatedAt = time.Now().UTC()
		return bk.put(tmpl)
	})
}

// Delete removes a template and frees its name. Missing IDs are not an error.
func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bk := openBuckets(tx)
		tmpl, err := bk.get([]byte(id))
		if err != nil || tmpl == nil {
			return err
		}
		if err := bk.byName.Delete([]byte(tmpl.Name)); err != nil {
			return err
		}
		return bk.byID.Delete([]byte(id))
	})
}

// Stats counts templates per category
func (s *Storage) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByCategory: map[Category]int64{}}
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachTemplate(tx, func(tmpl *Template) bool {
			stats.Total++
			stats.ByCategory[tmpl.Category]++
			return true
		})
	})
	return stats, err
}

func (bk buckets) get(id []byte) (*Template, error) {
	data := bk.byID.Get(id)
	if data == nil {
		return nil, nil
	}
	tmpl := &Template{}
	if err := json.Unmarshal(data, tmpl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template: %w", err)
	}
	return tmpl, nil
}

func (bk buckets) put(tmpl *Template) error {
	data, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}
	return bk.byID.Put([]byte(tmpl.ID), data)
}

func (bk buckets) rename(from, to, id string) error {
	if bk.byName.Get([]byte(to)) != nil {
		return fmt.Errorf("%w: %q", ErrDuplicateName, to)
	}
	if err := bk.byName.Delete([]byte(from)); err != nil {
		return err
	}
	return bk.byName.Put([]byte(to), []byte(id))
}

// forEachTemplate calls fn for every decodable template until fn returns false
func forEachTemplate(tx *bolt.Tx, fn func(*Template) bool) error {
	c := tx.Bucket(bucketTemplates).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		tmpl := &Template{}
		if json.Unmarshal(v, tmpl) != nil {
			continue
		}
		if !fn(tmpl) {
			break
		}
	}
	return nil
}

// normalizeTemplate trims the name and canonicalizes the category
func normalizeTemplate(tmpl *Template) error {
	tmpl.Name = strings.TrimSpace(tmpl.Name)
	switch {
	case tmpl.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case strings.TrimSpace(tmpl.Body) == "":
		return fmt.Errorf("%w: body is required", ErrInvalid)
	}

	category, err := ParseCategory(string(tmpl.Category))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	tmpl.Category = category
	return nil
}
