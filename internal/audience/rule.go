// Package audience turns a targeting rule into a concrete, countable set of
// recipients. Resolution always reads the live contact collection.
package audience

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind names a targeting rule variant
type Kind string

const (
	KindAllContacts  Kind = "all_contacts"
	KindActiveOnly   Kind = "active_only"
	KindSingleNumber Kind = "single_number"
	KindByRegion     Kind = "by_region"
)

// Rule is a targeting rule. Value carries the raw phone text for
// SingleNumber and the region code for ByRegion.
type Rule struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value,omitempty"`
}

func AllContacts() Rule            { return Rule{Kind: KindAllContacts} }
func ActiveOnly() Rule             { return Rule{Kind: KindActiveOnly} }
func SingleNumber(raw string) Rule { return Rule{Kind: KindSingleNumber, Value: raw} }
func ByRegion(region string) Rule  { return Rule{Kind: KindByRegion, Value: region} }

// Validate checks the rule shape; it does not parse SingleNumber values
func (r Rule) Validate() error {
	switch r.Kind {
	case KindAllContacts, KindActiveOnly:
		return nil
	case KindSingleNumber:
		if strings.TrimSpace(r.Value) == "" {
			return &RuleError{Rule: r, Reason: "a phone number is required"}
		}
		return nil
	case KindByRegion:
		if strings.TrimSpace(r.Value) == "" {
			return &RuleError{Rule: r, Reason: "a region is required"}
		}
		return nil
	case "":
		return &RuleError{Rule: r, Reason: "targeting kind is required"}
	default:
		return &RuleError{Rule: r, Reason: fmt.Sprintf("unknown targeting kind %q", r.Kind)}
	}
}

func (r Rule) String() string {
	if r.Value == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s(%s)", r.Kind, r.Value)
}

// UnmarshalJSON accepts the canonical object form and the bare kind string
func (r *Rule) UnmarshalJSON(data []byte) error {
	var kind string
	if err := json.Unmarshal(data, &kind); err == nil {
		*r = Rule{Kind: Kind(kind)}
		return nil
	}
	type plain Rule
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Rule(p)
	return nil
}

// RuleError reports a targeting rule that cannot be resolved
type RuleError struct {
	Rule   Rule
	Reason string
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid targeting %s: %s", e.Rule.Kind, e.Reason)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}
