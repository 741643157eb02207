// Package campaign composes SMS campaign drafts: it recomputes cost and
// audience on every read, validates drafts before submission and builds the
// finished payload handed to the transmission collaborator.
package campaign

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foxzi/textcast/internal/audience"
	"github.com/foxzi/textcast/internal/template"
)

// State is the lifecycle state of a draft
type State string

const (
	StateEditing    State = "editing"
	StateValidating State = "validating"
	StateValid      State = "valid"
	StateInvalid    State = "invalid"
	StateSubmitted  State = "submitted"
)

// ErrInvalidTransition is returned for a state change the lifecycle forbids
var ErrInvalidTransition = errors.New("invalid draft state transition")

var transitions = map[State][]State{
	StateEditing:    {StateEditing, StateValidating},
	StateValidating: {StateValid, StateInvalid, StateEditing},
	StateValid:      {StateSubmitted, StateEditing, StateValidating},
	StateInvalid:    {StateEditing, StateValidating},
	StateSubmitted:  {},
}

// CanTransition reports whether from → to is allowed
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Schedule is either immediate (At nil) or a fixed future time
type Schedule struct {
	At *time.Time `json:"at,omitempty"`
}

func ScheduleNow() Schedule { return Schedule{} }

func ScheduleAt(t time.Time) Schedule {
	t = t.UTC()
	return Schedule{At: &t}
}

// IsNow reports whether the campaign is sent on submission
func (s Schedule) IsNow() bool {
	return s.At == nil
}

func (s Schedule) String() string {
	if s.At == nil {
		return "now"
	}
	return s.At.Format(time.RFC3339)
}

// Draft holds the authoritative fields of a campaign. Segment count, cost
// and recipient count are never stored; see Composer.Compose.
type Draft struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Body        string        `json:"body"`
	Targeting   audience.Rule `json:"targeting"`
	Schedule    Schedule      `json:"schedule"`
	State       State         `json:"state"`
	TemplateID  string        `json:"template_id,omitempty"`
	CreatedBy   string        `json:"created_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
}

// NewDraft creates a draft in the editing state
func NewDraft(name, body string, targeting audience.Rule, schedule Schedule) *Draft {
	return &Draft{
		Name:      strings.TrimSpace(name),
		Body:      body,
		Targeting: targeting,
		Schedule:  schedule,
		State:     StateEditing,
	}
}

// Changes is a partial edit; nil fields are left alone
type Changes struct {
	Name      *string        `json:"name,omitempty"`
	Body      *string        `json:"body,omitempty"`
	Targeting *audience.Rule `json:"targeting,omitempty"`
	Schedule  *Schedule      `json:"schedule,omitempty"`
}

// Empty reports whether c changes nothing
func (c Changes) Empty() bool {
	return c.Name == nil && c.Body == nil && c.Targeting == nil && c.Schedule == nil
}

// Edit applies changes. Any change sends a validated draft back to editing.
func (d *Draft) Edit(c Changes) error {
	if c.Empty() {
		return nil
	}
	if err := d.transition(StateEditing); err != nil {
		return err
	}
	if c.Name != nil {
		d.Name = strings.TrimSpace(*c.Name)
	}
	if c.Body != nil {
		d.Body = *c.Body
	}
	if c.Targeting != nil {
		d.Targeting = *c.Targeting
	}
	if c.Schedule != nil {
		d.Schedule = *c.Schedule
	}
	return nil
}

// ApplyTemplate copies the template body into the draft. The draft keeps
// its own copy; later template edits do not reach it.
func (d *Draft) ApplyTemplate(t *template.Template) error {
	body := t.Body
	if err := d.Edit(Changes{Body: &body}); err != nil {
		return err
	}
	d.TemplateID = t.ID
	return nil
}

// Submit marks a valid draft as submitted
func (d *Draft) Submit(now time.Time) error {
	if err := d.transition(StateSubmitted); err != nil {
		return err
	}
	now = now.UTC()
	d.SubmittedAt = &now
	return nil
}

func (d *Draft) transition(to State) error {
	if !CanTransition(d.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.State, to)
	}
	d.State = to
	return nil
}
