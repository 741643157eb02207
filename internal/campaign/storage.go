package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var bucketDrafts = []byte("sms_drafts")

// ErrDraftNotFound is returned when updating a draft that does not exist
var ErrDraftNotFound = errors.New("draft not found")

// Storage persists drafts in bbolt. Only authoritative fields are stored.
type Storage struct {
	db *bolt.DB
}

// NewStorage creates a new draft storage
func NewStorage(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDrafts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create draft bucket: %w", err)
	}
	return &Storage{db: db}, nil
}

// Create stores a new draft
func (s *Storage) Create(ctx context.Context, actor string, d *Draft) error {
	d.ID = uuid.New().String()
	d.CreatedBy = actor
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	if d.State == "" {
		d.State = StateEditing
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return putDraft(tx.Bucket(bucketDrafts), d)
	})
}

// Get returns a draft by ID; nil if absent
func (s *Storage) Get(ctx context.Context, id string) (*Draft, error) {
	var d *Draft

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDrafts).Get([]byte(id))
		if data == nil {
			return nil
		}
		d = &Draft{}
		return json.Unmarshal(data, d)
	})

	return d, err
}

// Update overwrites an existing draft
func (s *Storage) Update(ctx context.Context, d *Draft) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDrafts)

		data := b.Get([]byte(d.ID))
		if data == nil {
			return ErrDraftNotFound
		}
		var existing Draft
		if err := json.Unmarshal(data, &existing); err != nil {
			return err
		}
		if existing.State == StateSubmitted {
			return fmt.Errorf("%w: draft %s is already submitted", ErrInvalidTransition, d.ID)
		}

		d.CreatedBy = existing.CreatedBy
		d.CreatedAt = existing.CreatedAt
		d.UpdatedAt = time.Now().UTC()
		return putDraft(b, d)
	})
}

// Submit moves the stored copy of a validated draft to submitted in one
// transaction. It fails with ErrInvalidTransition when the stored draft is
// no longer valid or was changed after d was read, so of several concurrent
// callers only one succeeds.
func (s *Storage) Submit(ctx context.Context, d *Draft, now time.Time) (*Draft, error) {
	var submitted *Draft
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDrafts)

		stored, err := getDraft(b, d.ID)
		if err != nil {
			return err
		}
		if !stored.UpdatedAt.Equal(d.UpdatedAt) {
			return fmt.Errorf("%w: draft %s changed since it was validated", ErrInvalidTransition, d.ID)
		}
		if err := stored.Submit(now); err != nil {
			return err
		}
		stored.UpdatedAt = time.Now().UTC()
		submitted = stored
		return putDraft(b, stored)
	})
	if err != nil {
		return nil, err
	}
	return submitted, nil
}

// Reopen puts a submitted draft back to valid after its hand-off failed
func (s *Storage) Reopen(ctx context.Context, id string) (*Draft, error) {
	var d *Draft
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDrafts)

		stored, err := getDraft(b, id)
		if err != nil {
			return err
		}
		if stored.State != StateSubmitted {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, stored.State, StateValid)
		}
		stored.State = StateValid
		stored.SubmittedAt = nil
		stored.UpdatedAt = time.Now().UTC()
		d = stored
		return putDraft(b, stored)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// List returns drafts, newest first, optionally limited to one state
func (s *Storage) List(ctx context.Context, state State) ([]*Draft, error) {
	drafts := []*Draft{}

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDrafts).ForEach(func(k, v []byte) error {
			var d Draft
			if err := json.Unmarshal(v, &d); err != nil {
				return nil
			}
			if state != "" && d.State != state {
				return nil
			}
			drafts = append(drafts, &d)
			return nil
		})
	})

	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.After(drafts[j].CreatedAt)
	})
	return drafts, err
}

// Delete removes a draft by ID
func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDrafts).Delete([]byte(id))
	})
}

func putDraft(b *bolt.Bucket, d *Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	return b.Put([]byte(d.ID), data)
}

func getDraft(b *bolt.Bucket, id string) (*Draft, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return nil, ErrDraftNotFound
	}
	d := &Draft{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return d, nil
}
