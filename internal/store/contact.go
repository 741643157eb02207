package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/foxzi/textcast/internal/models"
)

var (
	ErrNotFound       = errors.New("contact not found")
	ErrDuplicatePhone = errors.New("a contact with this phone number already exists")
)

// lookupChunk bounds the number of placeholders in one IN (...) query
const lookupChunk = 500

const contactColumns = `id, phone, first_name, last_name, email, company, region, status, tags, created_by, created_at, updated_at, deleted_at`

type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// FindContactByPhone returns the live contact with the canonical phone, or nil
func (r *ContactRepository) FindContactByPhone(ctx context.Context, phone string) (*models.Contact, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE phone = ? AND deleted_at IS NULL`, phone)

	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact by phone: %w", err)
	}
	return c, nil
}

// FindContactsByPhones returns the live contacts among phones, keyed by phone
func (r *ContactRepository) FindContactsByPhones(ctx context.Context, phones []string) (map[string]*models.Contact, error) {
	found := make(map[string]*models.Contact, len(phones))

	for start := 0; start < len(phones); start += lookupChunk {
		end := start + lookupChunk
		if end > len(phones) {
			end = len(phones)
		}
		chunk := phones[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, p := range chunk {
			args[i] = p
		}

		rows, err := r.db.QueryContext(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE deleted_at IS NULL AND phone IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to look up phones: %w", err)
		}

		for rows.Next() {
			c, err := scanContact(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan contact: %w", err)
			}
			found[c.Phone] = c
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return found, nil
}

// GetContact returns a live contact by ID, or nil
func (r *ContactRepository) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ? AND deleted_at IS NULL`, id)

	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListContacts returns live contacts matching filter and the total match count
func (r *ContactRepository) ListContacts(ctx context.Context, filter models.ContactFilter) ([]models.Contact, int, error) {
	where, args := buildContactWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contacts"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + contactColumns + ` FROM contacts` + where + ` ORDER BY created_at, id`

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	contacts := []models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, *c)
	}

	return contacts, total, rows.Err()
}

// InsertContacts inserts all contacts in one transaction. Rows whose phone is
// already live are skipped by the unique index and reported as conflicts; any
// other failure rolls the whole batch back.
func (r *ContactRepository) InsertContacts(ctx context.Context, actor string, contacts []models.NewContact) (*models.InsertResult, error) {
	result := &models.InsertResult{Inserted: []models.Contact{}}
	if len(contacts) == 0 {
		return result, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO contacts (id, phone, first_name, last_name, email, company, region, status, tags, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, nc := range contacts {
		c := models.Contact{
			ID:        uuid.New().String(),
			Phone:     nc.Phone,
			FirstName: nc.FirstName,
			LastName:  nc.LastName,
			Email:     nc.Email,
			Company:   nc.Company,
			Region:    nc.Region,
			Status:    models.StatusActive,
			Tags:      models.NormalizeTags(nc.Tags),
			CreatedBy: actor,
			CreatedAt: now,
			UpdatedAt: now,
		}

		tags, err := json.Marshal(c.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tags: %w", err)
		}

		res, err := stmt.ExecContext(ctx,
			c.ID, c.Phone, c.FirstName, c.LastName, c.Email, c.Company, c.Region, c.Status, string(tags), actor, actor, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert contact: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			result.Conflicts = append(result.Conflicts, c.Phone)
			continue
		}
		result.Inserted = append(result.Inserted, c)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit contacts: %w", err)
	}
	return result, nil
}

// CreateContact inserts a single contact
func (r *ContactRepository) CreateContact(ctx context.Context, actor string, c *models.Contact) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	c.CreatedBy = actor
	c.Tags = models.NormalizeTags(c.Tags)
	if c.Status == "" {
		c.Status = models.StatusActive
	}

	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, phone, first_name, last_name, email, company, region, status, tags, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Phone, c.FirstName, c.LastName, c.Email, c.Company, c.Region, c.Status, string(tags), actor, actor, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicatePhone
	}
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// UpdateContact updates a live contact's mutable fields
func (r *ContactRepository) UpdateContact(ctx context.Context, actor string, c *models.Contact) error {
	c.UpdatedAt = time.Now().UTC()
	c.Tags = models.NormalizeTags(c.Tags)

	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET phone = ?, first_name = ?, last_name = ?, email = ?, company = ?, region = ?, status = ?, tags = ?, updated_by = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		c.Phone, c.FirstName, c.LastName, c.Email, c.Company, c.Region, c.Status, string(tags), actor, c.UpdatedAt, c.ID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicatePhone
	}
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return requireAffected(res)
}

// DeleteContact soft-deletes a contact: it leaves targeting but stays in history
func (r *ContactRepository) DeleteContact(ctx context.Context, actor string, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE contacts SET deleted_at = ?, updated_by = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), actor, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return requireAffected(res)
}

// Regions returns the distinct regions of live contacts with their counts
func (r *ContactRepository) Regions(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT region, COUNT(*) FROM contacts
		WHERE deleted_at IS NULL AND region != ''
		GROUP BY region`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regions := make(map[string]int)
	for rows.Next() {
		var region string
		var count int
		if err := rows.Scan(&region, &count); err != nil {
			return nil, err
		}
		regions[region] = count
	}
	return regions, rows.Err()
}

func buildContactWhere(filter models.ContactFilter) (string, []any) {
	where := " WHERE deleted_at IS NULL"
	args := []any{}

	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Region != "" {
		where += " AND region = ?"
		args = append(args, filter.Region)
	}
	if filter.Tag != "" {
		where += " AND tags LIKE ?"
		args = append(args, "%\""+filter.Tag+"\"%")
	}
	if filter.Search != "" {
		where += " AND (phone LIKE ? OR first_name LIKE ? OR last_name LIKE ? OR email LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s, s, s)
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(s rowScanner) (*models.Contact, error) {
	c := &models.Contact{}
	var tags string
	var deletedAt sql.NullTime

	err := s.Scan(&c.ID, &c.Phone, &c.FirstName, &c.LastName, &c.Email, &c.Company, &c.Region,
		&c.Status, &tags, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	c.Tags = []string{}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return nil, fmt.Errorf("invalid tags for contact %s: %w", c.ID, err)
		}
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		c.DeletedAt = &t
	}
	return c, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
