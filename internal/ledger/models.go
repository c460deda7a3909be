// Package ledger implements the append-only, hash-chained audit ledger.
// Every state-changing action on the platform produces exactly one entry;
// entries are tamper-evident and can never be updated or deleted.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quantrail/tradecore/internal/errs"
)

// EventType tags what kind of system event an entry records.
type EventType string

const (
	EventLogin               EventType = "login"
	EventOrderPlaced         EventType = "order_placed"
	EventOrderExecuted       EventType = "order_executed"
	EventOrderPartialFill    EventType = "order_partial_fill"
	EventOrderRejected       EventType = "order_rejected"
	EventOrderCancelled      EventType = "order_cancelled"
	EventStrategyCertified   EventType = "strategy_certified"
	EventKillSwitchActivated EventType = "kill_switch_activated"
	EventAccountPaused       EventType = "account_paused"
	EventAccountResumed      EventType = "account_resumed"
)

// Severity classifies how serious an entry is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Actor identifies the acting principal. A nil actor on an entry means the
// event was system-initiated.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

// Target identifies the entity an event acted on.
type Target struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entry is one immutable audit record. ID is assigned by insertion order and
// doubles as the chain position.
type Entry struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventType    EventType  `gorm:"type:varchar(64);not null;index" json:"event_type"`
	ActorID      *uuid.UUID `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	ActorName    string     `gorm:"type:varchar(255)" json:"actor_name,omitempty"`
	ActorRole    string     `gorm:"type:varchar(64)" json:"actor_role,omitempty"`
	TargetType   string     `gorm:"type:varchar(64);index" json:"target_type,omitempty"`
	TargetID     string     `gorm:"type:varchar(255);index" json:"target_id,omitempty"`
	TargetName   string     `gorm:"type:varchar(255)" json:"target_name,omitempty"`
	Description  string     `gorm:"type:text;not null" json:"description"`
	Severity     Severity   `gorm:"type:varchar(16);not null;index" json:"severity"`
	OccurredAt   time.Time  `gorm:"not null;index" json:"occurred_at"`
	Hash         string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"hash"`
	PreviousHash string     `gorm:"type:varchar(64);not null" json:"previous_hash"`
}

// TableName returns the table name for GORM.
func (Entry) TableName() string {
	return "ledger_entries"
}

// BeforeUpdate rejects every mutation of a persisted entry.
func (Entry) BeforeUpdate(*gorm.DB) error {
	return errs.ErrImmutableLedger
}

// BeforeDelete rejects every deletion of a persisted entry.
func (Entry) BeforeDelete(*gorm.DB) error {
	return errs.ErrImmutableLedger
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	EventType EventType
	ActorID   *uuid.UUID
	Severity  Severity
	From      time.Time
	To        time.Time
}

// Pagination bounds a List query. Limit falls back to a store default when
// zero or out of range.
type Pagination struct {
	Limit  int
	Offset int
}

// DayStats aggregates a single day of ledger activity.
type DayStats struct {
	Day           string              `json:"day"`
	PerEventType  map[EventType]int64 `json:"per_event_type"`
	CriticalCount int64               `json:"critical_count"`
	Total         int64               `json:"total"`
}

// VerificationResult reports the outcome of a chain integrity audit.
type VerificationResult struct {
	OK             bool   `json:"ok"`
	Checked        int64  `json:"checked"`
	FirstFailingID *int64 `json:"first_failing_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
}
