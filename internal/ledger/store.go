package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quantrail/tradecore/internal/errs"
)

const defaultListLimit = 100
const maxListLimit = 1000

// Store is the durable append-only ledger. The append path is globally
// serialized: the head read, hash computation, insert and head advance happen
// inside one critical section and one database transaction, so no two entries
// can ever compute against the same previous head. Readers run concurrently
// with writers and never observe a partially written entry.
//
// There is no update or delete operation, and the Entry model rejects both at
// the ORM layer as well.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger

	// mu serializes writers; the transaction alone is not enough on sqlite,
	// and a single in-process writer keeps head advancement trivially linear.
	mu sync.Mutex
}

// NewStore creates the ledger store and migrates its schema.
func NewStore(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Append links the candidate entry onto the chain head and persists it as one
// atomic unit. The candidate must carry event type, description, severity and
// occurred-at; id, hash and previous hash are assigned here. Append fails only
// on invalid input or storage I/O errors; storage failures are propagated to
// the caller, never swallowed.
func (s *Store) Append(ctx context.Context, candidate *Entry) (*Entry, error) {
	if candidate == nil {
		return nil, errs.NewValidation("entry", "entry is required")
	}
	if candidate.EventType == "" {
		return nil, errs.NewValidation("event_type", "event type is required")
	}
	if candidate.Description == "" {
		return nil, errs.NewValidation("description", "description is required")
	}
	if !candidate.Severity.Valid() {
		return nil, errs.NewValidation("severity", "unknown severity %q", candidate.Severity)
	}
	if candidate.OccurredAt.IsZero() {
		return nil, errs.NewValidation("occurred_at", "timestamp is required")
	}
	candidate.ID = 0
	candidate.OccurredAt = normalizeTime(candidate.OccurredAt)

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		head, err := chainHead(tx)
		if err != nil {
			return err
		}
		candidate.PreviousHash = head
		candidate.Hash = computeHash(candidate)
		return tx.Create(candidate).Error
	})
	if err != nil {
		return nil, errs.Storage("append", err)
	}

	s.logger.Debug("ledger entry appended",
		zap.Int64("id", candidate.ID),
		zap.String("event_type", string(candidate.EventType)),
		zap.String("hash", candidate.Hash))
	return candidate, nil
}

// Head returns the hash of the most recently appended entry, or the genesis
// sentinel if the ledger is empty.
func (s *Store) Head(ctx context.Context) (string, error) {
	head, err := chainHead(s.db.WithContext(ctx))
	if err != nil {
		return "", errs.Storage("head", err)
	}
	return head, nil
}

func chainHead(tx *gorm.DB) (string, error) {
	var last Entry
	err := tx.Order("id DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return GenesisHash, nil
	}
	if err != nil {
		return "", err
	}
	return last.Hash, nil
}

// VerifyChain recomputes every entry's hash in [fromID, toID] and confirms
// linkage across the whole range. A fromID of zero starts at the first entry;
// a toID of zero runs to the current head. The first corrupted or reordered
// entry is reported by id; a clean range returns OK.
func (s *Store) VerifyChain(ctx context.Context, fromID, toID int64) (VerificationResult, error) {
	if fromID <= 0 {
		fromID = 1
	}

	q := s.db.WithContext(ctx).Where("id >= ?", fromID).Order("id ASC")
	if toID > 0 {
		q = q.Where("id <= ?", toID)
	}
	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return VerificationResult{}, errs.Storage("verify_chain", err)
	}

	result := VerificationResult{OK: true}
	if len(entries) == 0 {
		return result, nil
	}

	expectedPrev := GenesisHash
	if fromID > 1 {
		var pred Entry
		err := s.db.WithContext(ctx).First(&pred, "id = ?", fromID-1).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(result, entries[0].ID, "predecessor entry missing"), nil
		}
		if err != nil {
			return VerificationResult{}, errs.Storage("verify_chain", err)
		}
		expectedPrev = pred.Hash
	}

	expectedID := entries[0].ID
	if fromID > 0 && entries[0].ID != fromID {
		// The range starts past a hole: entries were removed out from under us.
		return fail(result, entries[0].ID, fmt.Sprintf("expected entry %d, found %d", fromID, entries[0].ID)), nil
	}
	for i := range entries {
		e := &entries[i]
		result.Checked++
		if e.ID != expectedID {
			return fail(result, e.ID, fmt.Sprintf("entry sequence gap: expected id %d", expectedID)), nil
		}
		if e.PreviousHash != expectedPrev {
			return fail(result, e.ID, "previous hash does not match preceding entry"), nil
		}
		if recomputed := computeHash(e); recomputed != e.Hash {
			return fail(result, e.ID, "stored hash does not match entry content"), nil
		}
		expectedPrev = e.Hash
		expectedID++
	}
	return result, nil
}

func fail(r VerificationResult, id int64, reason string) VerificationResult {
	r.OK = false
	r.FirstFailingID = &id
	r.Reason = reason
	return r
}

// Err converts a failed verification into an IntegrityError. It returns nil
// for a clean result so operators can distinguish "missing record" from
// "tampered record".
func (r VerificationResult) Err() error {
	if r.OK {
		return nil
	}
	var id int64
	if r.FirstFailingID != nil {
		id = *r.FirstFailingID
	}
	return &errs.IntegrityError{FirstFailingID: id, Reason: r.Reason}
}

// List returns entries matching the filter in reverse-chronological order.
// Listing is a read-only projection and never affects the chain.
func (s *Store) List(ctx context.Context, filter Filter, page Pagination) ([]Entry, error) {
	q := s.db.WithContext(ctx).Model(&Entry{})
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.ActorID != nil {
		q = q.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}
	if !filter.From.IsZero() {
		q = q.Where("occurred_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("occurred_at <= ?", filter.To)
	}

	limit := page.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	q = q.Limit(limit)
	if page.Offset > 0 {
		q = q.Offset(page.Offset)
	}
	q = q.Order("occurred_at DESC").Order("id DESC")

	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, errs.Storage("list", err)
	}
	return entries, nil
}

// Timeline returns all entries with occurred-at >= since, oldest first.
func (s *Store) Timeline(ctx context.Context, since time.Time) ([]Entry, error) {
	var entries []Entry
	err := s.db.WithContext(ctx).
		Where("occurred_at >= ?", since).
		Order("occurred_at ASC").Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, errs.Storage("timeline", err)
	}
	return entries, nil
}

// Stats aggregates per-event-type counts and the critical-severity count for
// the UTC day containing the given time.
func (s *Store) Stats(ctx context.Context, day time.Time) (DayStats, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	var rows []struct {
		EventType EventType
		Count     int64
	}
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Select("event_type, count(*) as count").
		Where("occurred_at >= ? AND occurred_at < ?", start, end).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return DayStats{}, errs.Storage("stats", err)
	}

	stats := DayStats{
		Day:          start.Format("2006-01-02"),
		PerEventType: make(map[EventType]int64, len(rows)),
	}
	for _, row := range rows {
		stats.PerEventType[row.EventType] = row.Count
		stats.Total += row.Count
	}

	err = s.db.WithContext(ctx).Model(&Entry{}).
		Where("occurred_at >= ? AND occurred_at < ? AND severity = ?", start, end, SeverityCritical).
		Count(&stats.CriticalCount).Error
	if err != nil {
		return DayStats{}, errs.Storage("stats", err)
	}
	return stats, nil
}
