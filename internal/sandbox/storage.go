package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/textcast/internal/campaign"
)

var bucketSandbox = []byte("sandbox_payloads")

// Capture is a campaign payload held instead of being transmitted
type Capture struct {
	ID           string             `json:"id"`
	DraftID      string             `json:"draft_id"`
	Name         string             `json:"name"`
	Schedule     campaign.Schedule  `json:"schedule"`
	Messages     []campaign.Message `json:"messages,omitempty"`
	Recipients   int                `json:"recipients"`
	Segments     int                `json:"segments"`
	CapturedAt   time.Time          `json:"captured_at"`
	SimulatedErr string             `json:"simulated_error,omitempty"`
}

// Storage keeps captured payloads in BoltDB, keyed by capture time
type Storage struct {
	db *bolt.DB
}

// NewStorage creates a new sandbox storage using the provided BoltDB instance
func NewStorage(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSandbox)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox bucket: %w", err)
	}

	return &Storage{db: db}, nil
}

// Save stores a capture
func (s *Storage) Save(ctx context.Context, c *Capture) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal capture: %w", err)
		}
		return tx.Bucket(bucketSandbox).Put(makeIndexKey(c.CapturedAt, c.ID), data)
	})
}

// Get retrieves a capture by ID, nil when absent
func (s *Storage) Get(ctx context.Context, id string) (*Capture, error) {
	var found *Capture

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSandbox).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var capture Capture
			if err := json.Unmarshal(v, &capture); err != nil {
				continue
			}
			if capture.ID == id {
				found = &capture
				return nil
			}
		}
		return nil
	})

	return found, err
}

// ListFilter contains filters for listing captures
type ListFilter struct {
	DraftID string
	Limit   int
	Offset  int
}

// List returns captures newest first, without their messages
func (s *Storage) List(ctx context.Context, filter ListFilter) ([]*Capture, error) {
	captures := []*Capture{}

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSandbox).Cursor()

		skipped := 0
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var capture Capture
			if err := json.Unmarshal(v, &capture); err != nil {
				continue
			}
			if filter.DraftID != "" && capture.DraftID != filter.DraftID {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}

			capture.Messages = nil
			captures = append(captures, &capture)

			if filter.Limit > 0 && len(captures) >= filter.Limit {
				break
			}
		}
		return nil
	})

	return captures, err
}

// Clear removes captures older than olderThan; zero removes all
func (s *Storage) Clear(ctx context.Context, olderThan time.Duration) (int, error) {
	var count int
	cutoff := time.Now().Add(-olderThan)

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSandbox)
		c := bucket.Cursor()

		var keys [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var capture Capture
			if err := json.Unmarshal(v, &capture); err != nil {
				continue
			}
			if olderThan > 0 && capture.CapturedAt.After(cutoff) {
				continue
			}
			keys = append(keys, k)
		}

		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			count++
		}
		return nil
	})

	return count, err
}

// Stats summarizes the sandbox
type Stats struct {
	Captures   int64     `json:"captures"`
	Recipients int64     `json:"recipients"`
	Segments   int64     `json:"segments"`
	OldestAt   time.Time `json:"oldest_at,omitempty"`
	NewestAt   time.Time `json:"newest_at,omitempty"`
}

// Stats returns sandbox statistics
func (s *Storage) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSandbox).ForEach(func(k, v []byte) error {
			var capture Capture
			if err := json.Unmarshal(v, &capture); err != nil {
				return nil
			}
			stats.Captures++
			stats.Recipients += int64(capture.Recipients)
			stats.Segments += int64(capture.Segments)
			if stats.OldestAt.IsZero() || capture.CapturedAt.Before(stats.OldestAt) {
				stats.OldestAt = capture.CapturedAt
			}
			if capture.CapturedAt.After(stats.NewestAt) {
				stats.NewestAt = capture.CapturedAt
			}
			return nil
		})
	})

	return stats, err
}

func makeIndexKey(t time.Time, id string) []byte {
	return []byte(t.UTC().Format(time.RFC3339Nano) + ":" + id)
}
