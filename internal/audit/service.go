// Package audit is the single entry point other subsystems use to record
// events on the tamper-evident ledger. It owns timestamp assignment and
// severity defaulting; the chain linkage itself lives in the ledger store.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quantrail/tradecore/internal/ledger"
	"github.com/quantrail/tradecore/internal/metrics"
)

// Clock supplies occurred-at timestamps. Injected so tests can pin time.
type Clock func() time.Time

// Service wraps the hash-chain engine and ledger store behind one facade.
type Service struct {
	store   *ledger.Store
	logger  *zap.Logger
	clock   Clock
	metrics *metrics.Metrics
}

// NewService creates the audit facade. A nil clock falls back to time.Now.
func NewService(store *ledger.Store, logger *zap.Logger, m *metrics.Metrics, clock Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, logger: logger, clock: clock, metrics: m}
}

// Record appends one event to the ledger. Actor and target are optional; a
// nil actor means the event was system-initiated. Severity defaults to info.
func (s *Service) Record(ctx context.Context, eventType ledger.EventType, actor *ledger.Actor, target *ledger.Target, description string, severity ledger.Severity) (*ledger.Entry, error) {
	if severity == "" {
		severity = ledger.SeverityInfo
	}

	entry := &ledger.Entry{
		EventType:   eventType,
		Description: description,
		Severity:    severity,
		OccurredAt:  s.clock(),
	}
	if actor != nil {
		id := actor.ID
		entry.ActorID = &id
		entry.ActorName = actor.Name
		entry.ActorRole = actor.Role
	}
	if target != nil {
		entry.TargetType = target.Type
		entry.TargetID = target.ID
		entry.TargetName = target.Name
	}

	appended, err := s.store.Append(ctx, entry)
	if err != nil {
		s.logger.Error("failed to record audit event",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.LedgerAppends.WithLabelValues(string(eventType)).Inc()
	}
	return appended, nil
}

// List returns ledger entries matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ledger.Filter, page ledger.Pagination) ([]ledger.Entry, error) {
	return s.store.List(ctx, filter, page)
}

// Timeline returns all entries since the given time, oldest first.
func (s *Service) Timeline(ctx context.Context, since time.Time) ([]ledger.Entry, error) {
	return s.store.Timeline(ctx, since)
}

// Stats aggregates one UTC day of ledger activity.
func (s *Service) Stats(ctx context.Context, day time.Time) (ledger.DayStats, error) {
	return s.store.Stats(ctx, day)
}

// VerifyChain runs an integrity audit over the given id range.
func (s *Service) VerifyChain(ctx context.Context, fromID, toID int64) (ledger.VerificationResult, error) {
	result, err := s.store.VerifyChain(ctx, fromID, toID)
	if err != nil {
		return result, err
	}
	if s.metrics != nil && !result.OK {
		s.metrics.VerificationFailures.Inc()
	}
	if !result.OK {
		s.logger.Error("ledger chain verification failed",
			zap.Int64p("first_failing_id", result.FirstFailingID),
			zap.String("reason", result.Reason))
	}
	return result, nil
}
