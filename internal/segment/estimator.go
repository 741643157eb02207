// Package segment computes character counts, carrier segment counts and cost
// for SMS message text.
package segment

import "unicode/utf8"

// DefaultSize is the conventional number of characters per segment
const DefaultSize = 160

// Band is an advisory length classification for authoring UIs
type Band string

const (
	WithinSingleSegment Band = "within_single_segment"
	MultiSegmentWarning Band = "multi_segment_warning"
	OverLimit           Band = "over_limit"
)

// Estimate is the segmentation and cost of a single message
type Estimate struct {
	Characters     int   `json:"characters"`
	Segments       int   `json:"segments"`
	Band           Band  `json:"band"`
	CostPerMessage Money `json:"cost_per_message"`
}

// Total returns the cost of sending the message to n recipients
func (e Estimate) Total(recipients int) Money {
	if recipients < 0 {
		recipients = 0
	}
	return e.CostPerMessage.Mul(recipients)
}

// Estimator computes estimates for a fixed segment size and price.
// It holds no state and is safe for concurrent use.
type Estimator struct {
	SegmentSize int
	Price       Money
}

// NewEstimator creates an estimator; a non-positive size falls back to DefaultSize
func NewEstimator(segmentSize int, price Money) *Estimator {
	if segmentSize <= 0 {
		segmentSize = DefaultSize
	}
	return &Estimator{SegmentSize: segmentSize, Price: price}
}

// Estimate computes the estimate for text.
// The empty message counts as one segment.
func (e *Estimator) Estimate(text string) Estimate {
	size := e.SegmentSize
	if size <= 0 {
		size = DefaultSize
	}

	chars := utf8.RuneCountInString(text)
	segments := Segments(chars, size)

	return Estimate{
		Characters:     chars,
		Segments:       segments,
		Band:           Classify(chars, size),
		CostPerMessage: e.Price.Mul(segments),
	}
}

// Segments returns ceil(chars/size) with a floor of 1
func Segments(chars, size int) int {
	if chars <= 0 {
		return 1
	}
	return (chars + size - 1) / size
}

// Classify returns the advisory band for a character count
func Classify(chars, size int) Band {
	switch {
	case chars <= size:
		return WithinSingleSegment
	case chars <= 2*size:
		return MultiSegmentWarning
	default:
		return OverLimit
	}
}
