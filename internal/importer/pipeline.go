package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/foxzi/textcast/internal/metrics"
	"github.com/foxzi/textcast/internal/models"
	"github.com/foxzi/textcast/internal/phone"
)

// PhoneLookup finds live contacts by canonical phone
type PhoneLookup interface {
	FindContactsByPhones(ctx context.Context, phones []string) (map[string]*models.Contact, error)
}

// ContactWriter inserts a batch atomically. Phones rejected by the store's
// uniqueness constraint come back as conflicts.
type ContactWriter interface {
	InsertContacts(ctx context.Context, actor string, contacts []models.NewContact) (*models.InsertResult, error)
}

// Store is the contact storage the pipeline needs
type Store interface {
	PhoneLookup
	ContactWriter
}

// Recorder persists a summary of committed batches
type Recorder interface {
	Record(ctx context.Context, rec *models.ImportRecord) error
}

// CommitPlan partitions a batch. Every input row is in exactly one bucket.
type CommitPlan struct {
	ToInsert          []ValidatedRow `json:"to_insert"`
	SkippedExisting   []ValidatedRow `json:"skipped_existing"`
	DuplicatesInBatch []ValidatedRow `json:"duplicates_in_batch"`
	Invalid           []ValidatedRow `json:"invalid"`
}

// Total returns the number of rows the plan covers
func (p *CommitPlan) Total() int {
	return len(p.ToInsert) + len(p.SkippedExisting) + len(p.DuplicatesInBatch) + len(p.Invalid)
}

// Result summarises a batch. Inserted counts rows written, or for a dry run
// rows that would be written. Total always equals the sum of the four buckets.
type Result struct {
	Total             int      `json:"total"`
	Inserted          int      `json:"inserted"`
	SkippedExisting   int      `json:"skipped_existing"`
	DuplicatesInBatch int      `json:"duplicates_in_batch"`
	Invalid           int      `json:"invalid"`
	Committed         bool     `json:"committed"`
	Errors            []string `json:"errors"`
}

// Pipeline runs import batches against a contact store
type Pipeline struct {
	store    Store
	recorder Recorder
	limits   Limits
	logger   *slog.Logger
}

// NewPipeline creates an import pipeline
func NewPipeline(st Store, limits Limits, logger *slog.Logger) *Pipeline {
	if limits.ErrorSample <= 0 {
		limits.ErrorSample = DefaultLimits().ErrorSample
	}
	return &Pipeline{
		store:  st,
		limits: limits,
		logger: logger,
	}
}

// SetRecorder enables persisting summaries of committed batches
func (p *Pipeline) SetRecorder(r Recorder) {
	p.recorder = r
}

// Limits returns the batch limits in effect
func (p *Pipeline) Limits() Limits {
	return p.limits
}

// Validate normalizes every row's phone and flags in-batch duplicates.
// The first occurrence of a phone wins.
func Validate(rows []RawContactRow) []ValidatedRow {
	out := make([]ValidatedRow, len(rows))
	seen := make(map[string]int, len(rows))

	for i, raw := range rows {
		v := ValidatedRow{RawContactRow: raw}

		switch {
		case raw.parseErr != "":
			v.Error = "unreadable record: " + raw.parseErr
		case strings.TrimSpace(raw.Phone) == "":
			v.Error = (&MissingRequiredFieldError{Line: raw.Line, Field: "phone"}).Error()
		default:
			n, err := phone.Parse(raw.Phone)
			metrics.IncPhoneNormalization(err == nil)
			if err != nil {
				v.Error = err.Error()
				break
			}
			v.Valid = true
			v.FormattedPhone = n.Formatted
			v.Region = n.Region
			if first, dup := seen[n.Formatted]; dup {
				v.DuplicateInBatch = true
				v.Error = fmt.Sprintf("duplicate of line %d", rows[first].Line)
			} else {
				seen[n.Formatted] = i
			}
		}

		out[i] = v
	}
	return out
}

// Plan validates rows and checks survivors against the store
func (p *Pipeline) Plan(ctx context.Context, rows []RawContactRow) (*CommitPlan, error) {
	if p.limits.MaxRows > 0 && len(rows) > p.limits.MaxRows {
		return nil, &SizeLimitError{Limit: "rows", Max: int64(p.limits.MaxRows), Actual: int64(len(rows))}
	}

	plan := &CommitPlan{
		ToInsert:          []ValidatedRow{},
		SkippedExisting:   []ValidatedRow{},
		DuplicatesInBatch: []ValidatedRow{},
		Invalid:           []ValidatedRow{},
	}

	var candidates []ValidatedRow
	for _, v := range Validate(rows) {
		switch {
		case !v.Valid:
			plan.Invalid = append(plan.Invalid, v)
		case v.DuplicateInBatch:
			plan.DuplicatesInBatch = append(plan.DuplicatesInBatch, v)
		default:
			candidates = append(candidates, v)
		}
	}

	if len(candidates) == 0 {
		return plan, nil
	}

	phones := make([]string, len(candidates))
	for i, c := range candidates {
		phones[i] = c.FormattedPhone
	}
	existing, err := p.store.FindContactsByPhones(ctx, phones)
	if err != nil {
		return nil, &StoreUnavailableError{Op: "lookup", Err: err}
	}

	for _, c := range candidates {
		if _, ok := existing[c.FormattedPhone]; ok {
			plan.SkippedExisting = append(plan.SkippedExisting, c)
			continue
		}
		plan.ToInsert = append(plan.ToInsert, c)
	}

	return plan, nil
}

// Commit writes plan.ToInsert in one atomic call. Rows that lost a race to
// a concurrent import move to SkippedExisting.
func (p *Pipeline) Commit(ctx context.Context, actor string, plan *CommitPlan) error {
	if len(plan.ToInsert) == 0 {
		return nil
	}

	contacts := make([]models.NewContact, len(plan.ToInsert))
	for i, v := range plan.ToInsert {
		contacts[i] = v.NewContact()
	}

	res, err := p.store.InsertContacts(ctx, actor, contacts)
	if err != nil {
		return &StoreUnavailableError{Op: "insert", Err: err}
	}

	if len(res.Conflicts) > 0 {
		conflicts := make(map[string]struct{}, len(res.Conflicts))
		for _, ph := range res.Conflicts {
			conflicts[ph] = struct{}{}
		}
		inserted := plan.ToInsert[:0:0]
		for _, v := range plan.ToInsert {
			if _, ok := conflicts[v.FormattedPhone]; ok {
				plan.SkippedExisting = append(plan.SkippedExisting, v)
				continue
			}
			inserted = append(inserted, v)
		}
		plan.ToInsert = inserted
		p.logger.Info("import rows skipped by concurrent insert", "count", len(res.Conflicts))
	}

	return nil
}

// Run plans a batch and, when commit is set, writes it
func (p *Pipeline) Run(ctx context.Context, actor string, rows []RawContactRow, commit bool) (*Result, error) {
	plan, err := p.Plan(ctx, rows)
	if err != nil {
		p.observeFailure(err, len(rows))
		return nil, err
	}

	if commit {
		if err := p.Commit(ctx, actor, plan); err != nil {
			p.observeFailure(err, len(rows))
			return nil, err
		}
	}

	res := p.summarize(plan, commit)

	result := "dry_run"
	if commit {
		result = "committed"
	}
	metrics.ObserveImport(result, res.Total, map[string]int{
		"inserted":           res.Inserted,
		"skipped_existing":   res.SkippedExisting,
		"duplicate_in_batch": res.DuplicatesInBatch,
		"invalid":            res.Invalid,
	})

	p.logger.Info("import processed",
		"actor", actor,
		"committed", commit,
		"total", res.Total,
		"inserted", res.Inserted,
		"skipped_existing", res.SkippedExisting,
		"duplicates_in_batch", res.DuplicatesInBatch,
		"invalid", res.Invalid,
	)

	return res, nil
}

// Import reads a batch from r, runs it and records committed batches
func (p *Pipeline) Import(ctx context.Context, actor, source string, r io.Reader, format Format, commit bool) (*Result, error) {
	rows, err := ReadBatch(r, format, p.limits)
	if err != nil {
		p.observeFailure(err, 0)
		return nil, err
	}

	res, err := p.Run(ctx, actor, rows, commit)
	if err != nil {
		return nil, err
	}

	if commit && p.recorder != nil {
		rec := &models.ImportRecord{
			Actor:             actor,
			Source:            source,
			Total:             res.Total,
			Inserted:          res.Inserted,
			SkippedExisting:   res.SkippedExisting,
			DuplicatesInBatch: res.DuplicatesInBatch,
			Invalid:           res.Invalid,
		}
		if err := p.recorder.Record(ctx, rec); err != nil {
			// The contacts are already committed; losing the summary is not fatal.
			p.logger.Warn("failed to record import", "error", err)
		}
	}

	return res, nil
}

func (p *Pipeline) summarize(plan *CommitPlan, committed bool) *Result {
	res := &Result{
		Total:             plan.Total(),
		Inserted:          len(plan.ToInsert),
		SkippedExisting:   len(plan.SkippedExisting),
		DuplicatesInBatch: len(plan.DuplicatesInBatch),
		Invalid:           len(plan.Invalid),
		Committed:         committed,
		Errors:            []string{},
	}

	for _, v := range plan.Invalid {
		if len(res.Errors) >= p.limits.ErrorSample {
			break
		}
		res.Errors = append(res.Errors, fmt.Sprintf("line %d: %s", v.Line, v.Error))
	}
	return res
}

func (p *Pipeline) observeFailure(err error, rows int) {
	result := "failed"
	var sizeErr *SizeLimitError
	if errors.As(err, &sizeErr) {
		result = "rejected"
	}
	metrics.ObserveImport(result, rows, nil)
	p.logger.Warn("import failed", "result", result, "error", err)
}
