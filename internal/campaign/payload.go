package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/foxzi/textcast/internal/segment"
	"github.com/foxzi/textcast/internal/template"
)

// ErrNotValid is returned when preparing a draft that has not passed validation
var ErrNotValid = errors.New("draft must be validated before it can be prepared")

// Message is the final text for one recipient
type Message struct {
	ContactID string `json:"contact_id,omitempty"`
	Phone     string `json:"phone"`
	Text      string `json:"text"`
	Segments  int    `json:"segments"`
}

// Payload is everything the transmission collaborator needs for one campaign
type Payload struct {
	DraftID       string        `json:"draft_id"`
	Name          string        `json:"name"`
	Schedule      Schedule      `json:"schedule"`
	Messages      []Message     `json:"messages"`
	TotalSegments int           `json:"total_segments"`
	TotalCost     segment.Money `json:"total_cost"`
}

// Receipt acknowledges a payload accepted for transmission
type Receipt struct {
	ID       string `json:"id"`
	Accepted int    `json:"accepted"`
}

// Sender transmits a finished payload. Implementations live outside this package.
type Sender interface {
	Send(ctx context.Context, p *Payload) (*Receipt, error)
}

// Prepare personalizes the body for every current recipient of a valid draft
func (c *Composer) Prepare(ctx context.Context, d *Draft) (*Payload, error) {
	if d.State != StateValid {
		return nil, fmt.Errorf("%w (state %s)", ErrNotValid, d.State)
	}

	aud, err := c.resolver.Resolve(ctx, d.Targeting)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audience: %w", err)
	}

	link := c.link(d)
	p := &Payload{
		DraftID:  d.ID,
		Name:     d.Name,
		Schedule: d.Schedule,
		Messages: make([]Message, 0, aud.Count),
	}

	for _, r := range aud.Recipients {
		values := template.Values{Link: link}
		if r.Contact != nil {
			values = template.ValuesFor(*r.Contact, link)
		}

		text := c.engine.Personalize(d.Body, values)
		est := c.estimator.Estimate(text)

		p.Messages = append(p.Messages, Message{
			ContactID: r.ContactID,
			Phone:     r.Phone,
			Text:      text,
			Segments:  est.Segments,
		})
		p.TotalSegments += est.Segments
		p.TotalCost += est.CostPerMessage
	}

	return p, nil
}

// link builds the tracked short link for a draft
func (c *Composer) link(d *Draft) string {
	base := strings.TrimRight(c.opts.LinkBase, "/")
	if base == "" {
		return ""
	}
	code := strings.ReplaceAll(d.ID, "-", "")
	if len(code) > 8 {
		code = code[:8]
	}
	return base + "/" + code
}
