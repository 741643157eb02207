package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foxzi/textcast/internal/audience"
	"github.com/foxzi/textcast/internal/metrics"
	"github.com/foxzi/textcast/internal/segment"
	"github.com/foxzi/textcast/internal/template"
)

// optOutPhrases are matched case-insensitively against the sample preview
var optOutPhrases = []string{"stop", "unsubscribe", "opt out"}

// AudienceResolver resolves a targeting rule against the live contact store
type AudienceResolver interface {
	Resolve(ctx context.Context, rule audience.Rule) (audience.Audience, error)
}

// Options tune composer behaviour
type Options struct {
	// BlockOverLimit turns the over_limit band into a validation problem
	BlockOverLimit bool
	// LinkBase is the short-link prefix substituted for {link}
	LinkBase string
}

// Composer derives campaign numbers from a draft
type Composer struct {
	estimator *segment.Estimator
	engine    *template.Engine
	resolver  AudienceResolver
	opts      Options
	logger    *slog.Logger
}

// NewComposer creates a composer
func NewComposer(estimator *segment.Estimator, engine *template.Engine, resolver AudienceResolver, opts Options, logger *slog.Logger) *Composer {
	return &Composer{
		estimator: estimator,
		engine:    engine,
		resolver:  resolver,
		opts:      opts,
		logger:    logger,
	}
}

// Composition holds the derived fields of a draft at one instant
type Composition struct {
	Estimate       segment.Estimate `json:"estimate"`
	RecipientCount int              `json:"recipient_count"`
	TotalCost      segment.Money    `json:"total_cost"`
	Preview        string           `json:"preview"`
	UnknownTokens  []string         `json:"unknown_tokens,omitempty"`
	TargetingError string           `json:"targeting_error,omitempty"`

	targetingErr error
}

// Compose recomputes estimate, audience and preview. A bad targeting rule
// is reported in the composition; only store failures are returned.
func (c *Composer) Compose(ctx context.Context, d *Draft) (*Composition, error) {
	preview := c.engine.Preview(d.Body)
	_, unknown := c.engine.Tokens(d.Body)

	comp := &Composition{
		Estimate:      c.estimator.Estimate(preview),
		Preview:       preview,
		UnknownTokens: unknown,
	}

	aud, err := c.resolver.Resolve(ctx, d.Targeting)
	if err != nil {
		var ruleErr *audience.RuleError
		if !errors.As(err, &ruleErr) {
			return nil, fmt.Errorf("failed to resolve audience: %w", err)
		}
		comp.targetingErr = ruleErr
		comp.TargetingError = ruleErr.Error()
	}

	comp.RecipientCount = aud.Count
	comp.TotalCost = comp.Estimate.Total(aud.Count)
	return comp, nil
}

// Problem is one reason a draft cannot be submitted
type Problem struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a draft
type ValidationError struct {
	Problems []Problem `json:"problems"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return "draft is not valid: " + strings.Join(msgs, "; ")
}

// Has reports whether a problem with code is present
func (e *ValidationError) Has(code string) bool {
	for _, p := range e.Problems {
		if p.Code == code {
			return true
		}
	}
	return false
}

// Problem codes
const (
	CodeNameRequired     = "name_required"
	CodeBodyRequired     = "body_required"
	CodeOptOutMissing    = "opt_out_missing"
	CodeNoRecipients     = "no_recipients"
	CodeTargetingInvalid = "targeting_invalid"
	CodeScheduleInPast   = "schedule_in_past"
	CodeOverLimit        = "over_limit"
)

// Validate moves d through validating to valid or invalid. All problems are
// collected into a *ValidationError. On a store failure d returns to editing.
func (c *Composer) Validate(ctx context.Context, d *Draft, now time.Time) (*Composition, error) {
	if err := d.transition(StateValidating); err != nil {
		return nil, err
	}

	comp, err := c.Compose(ctx, d)
	if err != nil {
		d.State = StateEditing
		return nil, err
	}

	problems := c.check(d, comp, now)
	metrics.ObserveDraftValidation(len(problems) == 0, comp.RecipientCount)

	if len(problems) > 0 {
		d.State = StateInvalid
		c.logger.Debug("draft invalid", "draft_id", d.ID, "problems", len(problems))
		return comp, &ValidationError{Problems: problems}
	}

	d.State = StateValid
	return comp, nil
}

func (c *Composer) check(d *Draft, comp *Composition, now time.Time) []Problem {
	var problems []Problem
	add := func(field, code, msg string) {
		problems = append(problems, Problem{Field: field, Code: code, Message: msg})
	}

	if strings.TrimSpace(d.Name) == "" {
		add("name", CodeNameRequired, "campaign name is required")
	}
	if strings.TrimSpace(d.Body) == "" {
		add("body", CodeBodyRequired, "message body is required")
	} else if !hasOptOut(comp.Preview) {
		add("body", CodeOptOutMissing, "message must include opt-out language such as \"Reply STOP to opt out\"")
	}

	if comp.targetingErr != nil {
		add("targeting", CodeTargetingInvalid, comp.TargetingError)
	} else if comp.RecipientCount == 0 {
		add("targeting", CodeNoRecipients, "targeting matches no recipients")
	}

	if d.Schedule.At != nil && !d.Schedule.At.After(now) {
		add("schedule", CodeScheduleInPast, "scheduled time must be in the future")
	}

	if c.opts.BlockOverLimit && comp.Estimate.Band == segment.OverLimit {
		add("body", CodeOverLimit, fmt.Sprintf("message is %d segments long", comp.Estimate.Segments))
	}

	return problems
}

func hasOptOut(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range optOutPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
