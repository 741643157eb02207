// Package importer validates, deduplicates and commits batches of contact
// records. Per-row problems are reported in the result; only batch-level
// failures (size limits, store outages) are returned as errors.
package importer

import (
	"strings"

	"github.com/foxzi/textcast/internal/models"
)

// RawContactRow is one record as it came from the source, untouched
type RawContactRow struct {
	Line      int    `json:"line"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Company   string `json:"company,omitempty"`
	Tags      string `json:"tags,omitempty"`

	// parseErr is set when the source record itself could not be read
	parseErr string
}

// ValidatedRow is a raw row plus the validation outcome
type ValidatedRow struct {
	RawContactRow
	Valid            bool   `json:"valid"`
	FormattedPhone   string `json:"formatted_phone,omitempty"`
	Region           string `json:"region,omitempty"`
	Error            string `json:"error,omitempty"`
	DuplicateInBatch bool   `json:"duplicate_in_batch,omitempty"`
}

// NewContact converts a valid row into an insertable contact
func (r ValidatedRow) NewContact() models.NewContact {
	return models.NewContact{
		Phone:     r.FormattedPhone,
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		Email:     strings.TrimSpace(r.Email),
		Company:   strings.TrimSpace(r.Company),
		Region:    r.Region,
		Tags:      splitTags(r.Tags),
	}
}

func splitTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == '|'
	})
	return models.NormalizeTags(fields)
}
