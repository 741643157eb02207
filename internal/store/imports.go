package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foxzi/textcast/internal/models"
)

type ImportRepository struct {
	db *sql.DB
}

func NewImportRepository(db *sql.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

// Record stores an import summary
func (r *ImportRepository) Record(ctx context.Context, rec *models.ImportRecord) error {
	rec.ID = uuid.New().String()
	rec.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO import_batches (id, actor, source, total, inserted, skipped_existing, duplicates_in_batch, invalid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Actor, rec.Source, rec.Total, rec.Inserted, rec.SkippedExisting, rec.DuplicatesInBatch, rec.Invalid, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}
	return nil
}

// List returns the most recent import summaries first
func (r *ImportRepository) List(ctx context.Context, limit int) ([]models.ImportRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor, source, total, inserted, skipped_existing, duplicates_in_batch, invalid, created_at
		FROM import_batches ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.ImportRecord{}
	for rows.Next() {
		var rec models.ImportRecord
		if err := rows.Scan(&rec.ID, &rec.Actor, &rec.Source, &rec.Total, &rec.Inserted,
			&rec.SkippedExisting, &rec.DuplicatesInBatch, &rec.Invalid, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
