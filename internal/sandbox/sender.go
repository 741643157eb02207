// Package sandbox captures finished campaign payloads in BoltDB instead of
// handing them to a carrier, so submissions can be inspected end to end.
package sandbox

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foxzi/textcast/internal/campaign"
)

var simulatedErrors = []string{
	"429 throttled by carrier",
	"451 temporary upstream failure",
	"503 carrier unavailable",
	"550 sender number not provisioned",
}

// Sender is a campaign.Sender that stores payloads
type Sender struct {
	storage          *Storage
	logger           *slog.Logger
	now              func() time.Time
	simulateErrors   bool
	errorProbability float64 // 0.0 to 1.0
}

// NewSender creates a new sandbox sender
func NewSender(storage *Storage, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sender{
		storage:          storage,
		logger:           logger,
		now:              time.Now,
		errorProbability: 0.1,
	}
}

// SetErrorSimulation enables/disables error simulation
func (s *Sender) SetErrorSimulation(enabled bool, probability float64) {
	s.simulateErrors = enabled
	if probability > 0 && probability <= 1 {
		s.errorProbability = probability
	}
}

// Send captures the payload and acknowledges every message
func (s *Sender) Send(ctx context.Context, p *campaign.Payload) (*campaign.Receipt, error) {
	capture := &Capture{
		ID:         uuid.New().String(),
		DraftID:    p.DraftID,
		Name:       p.Name,
		Schedule:   p.Schedule,
		Messages:   p.Messages,
		Recipients: len(p.Messages),
		Segments:   p.TotalSegments,
		CapturedAt: s.now(),
	}

	if s.simulateErrors && rand.Float64() < s.errorProbability {
		capture.SimulatedErr = simulatedErrors[rand.Intn(len(simulatedErrors))]
		if err := s.storage.Save(ctx, capture); err != nil {
			s.logger.Error("sandbox: failed to save payload", "error", err)
		}
		return nil, &SimulatedError{
			Message:   capture.SimulatedErr,
			Temporary: strings.HasPrefix(capture.SimulatedErr, "4"),
		}
	}

	if err := s.storage.Save(ctx, capture); err != nil {
		return nil, err
	}

	s.logger.Info("sandbox: payload captured",
		"id", capture.ID,
		"draft_id", p.DraftID,
		"recipients", capture.Recipients,
		"segments", capture.Segments,
		"schedule", p.Schedule.String(),
	)

	return &campaign.Receipt{ID: capture.ID, Accepted: capture.Recipients}, nil
}

// SimulatedError represents a simulated transmission failure
type SimulatedError struct {
	Message   string
	Temporary bool
}

func (e *SimulatedError) Error() string {
	return e.Message
}
