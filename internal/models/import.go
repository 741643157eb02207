package models

import "time"

// ImportRecord is the persisted summary of a committed import batch
type ImportRecord struct {
	ID                string    `json:"id"`
	Actor             string    `json:"actor"`
	Source            string    `json:"source"`
	Total             int       `json:"total"`
	Inserted          int       `json:"inserted"`
	SkippedExisting   int       `json:"skipped_existing"`
	DuplicatesInBatch int       `json:"duplicates_in_batch"`
	Invalid           int       `json:"invalid"`
	CreatedAt         time.Time `json:"created_at"`
}
