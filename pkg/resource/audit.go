package resource

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Event is one structured audit record for a resolution attempt.
type Event struct {
	RequestID string
	Kind      string
	URI       string
	Outcome   string // "success" or the failure code
	Status    int
	CacheHit  bool
	Duration  time.Duration
}

// Auditor receives resolution events. Implementations must never influence
// control flow; handlers ignore anything an auditor does.
type Auditor interface {
	Record(ctx context.Context, event Event)
}

// LogAuditor writes audit events through zerolog.
type LogAuditor struct {
	logger zerolog.Logger
}

// NewLogAuditor creates an auditor logging at info level.
func NewLogAuditor(logger zerolog.Logger) *LogAuditor {
	return &LogAuditor{logger: logger.With().Str("component", "audit").Logger()}
}

// Record implements Auditor.
func (a *LogAuditor) Record(_ context.Context, event Event) {
	a.logger.Info().
		Str("request_id", event.RequestID).
		Str("kind", event.Kind).
		Str("uri", event.URI).
		Str("outcome", event.Outcome).
		Int("status", event.Status).
		Bool("cache_hit", event.CacheHit).
		Dur("duration", event.Duration).
		Msg("Resource resolution")
}

// NopAuditor discards all events.
type NopAuditor struct{}

// Record implements Auditor.
func (NopAuditor) Record(context.Context, Event) {}
