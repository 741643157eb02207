// Package template stores reusable SMS message templates and substitutes
// personalization tokens of the form {tokenName}.
package template

import (
	"strings"

	"github.com/foxzi/textcast/internal/models"
)

// Recognized personalization tokens
const (
	TokenFirstName = "firstName"
	TokenLastName  = "lastName"
	TokenLink      = "link"
	TokenOptOut    = "optOut"
)

// DefaultOptOutText is substituted for {optOut} when no text is configured
const DefaultOptOutText = "Reply STOP to opt out"

var recognized = map[string]bool{
	TokenFirstName: true,
	TokenLastName:  true,
	TokenLink:      true,
	TokenOptOut:    true,
}

// Values supplies field values for substitution. Empty fields substitute "".
type Values struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Link      string `json:"link"`
}

// SampleValues is the fixed record used for authoring previews
func SampleValues() Values {
	return Values{
		FirstName: "John",
		LastName:  "Smith",
		Link:      "https://sms.link/abc123",
	}
}

// ValuesFor builds substitution values from a stored contact
func ValuesFor(c models.Contact, link string) Values {
	return Values{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Link:      link,
	}
}

// Engine substitutes personalization tokens. It holds only configuration and
// is safe for concurrent use.
type Engine struct {
	optOutText string
}

// NewEngine creates a new engine; empty optOutText uses DefaultOptOutText
func NewEngine(optOutText string) *Engine {
	if optOutText == "" {
		optOutText = DefaultOptOutText
	}
	return &Engine{optOutText: optOutText}
}

// OptOutText returns the literal substituted for {optOut}
func (e *Engine) OptOutText() string {
	return e.optOutText
}

// Personalize replaces every recognized token in body. Unknown tokens and
// unbalanced braces are copied through unchanged.
func (e *Engine) Personalize(body string, v Values) string {
	if !strings.Contains(body, "{") {
		return body
	}

	var b strings.Builder
	b.Grow(len(body))

	rest := body
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open+1:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += open + 1

		name := rest[open+1 : end]
		if value, ok := e.lookup(name, v); ok {
			b.WriteString(rest[:open])
			b.WriteString(value)
			rest = rest[end+1:]
			continue
		}

		// Not a recognized token: emit up to and including '{' and rescan,
		// so "{{firstName}" still resolves its inner token.
		b.WriteString(rest[:open+1])
		rest = rest[open+1:]
	}

	return b.String()
}

// Preview personalizes body with SampleValues
func (e *Engine) Preview(body string) string {
	return e.Personalize(body, SampleValues())
}

// Tokens lists the distinct {name} tokens in body in order of first appearance
// and reports which of them are not recognized.
func (e *Engine) Tokens(body string) (all []string, unknown []string) {
	seen := make(map[string]bool)
	rest := body
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open+1:], '}')
		if end < 0 {
			break
		}
		name := rest[open+1 : open+1+end]
		if isTokenName(name) && !seen[name] {
			seen[name] = true
			all = append(all, name)
			if !recognized[name] {
				unknown = append(unknown, name)
			}
			rest = rest[open+end+2:]
			continue
		}
		rest = rest[open+1:]
	}
	return all, unknown
}

func (e *Engine) lookup(name string, v Values) (string, bool) {
	switch name {
	case TokenFirstName:
		return v.FirstName, true
	case TokenLastName:
		return v.LastName, true
	case TokenLink:
		return v.Link, true
	case TokenOptOut:
		return e.optOutText, true
	}
	return "", false
}

func isTokenName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
