// Package accounts supplies the account risk state the compliance gate
// evaluates against: pause flags, per-order notional ceilings, daily order
// rate limits and the platform kill switch.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quantrail/tradecore/internal/audit"
	"github.com/quantrail/tradecore/internal/errs"
	"github.com/quantrail/tradecore/internal/ledger"
)

// RiskSettings is the persisted per-account risk configuration. Accounts
// without a row fall back to the service defaults.
type RiskSettings struct {
	AccountID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"account_id"`
	Paused           bool            `gorm:"not null;default:false" json:"paused"`
	MaxOrderNotional decimal.Decimal `gorm:"type:decimal(24,8)" json:"max_order_notional"`
	DailyOrderLimit  int             `gorm:"not null;default:0" json:"daily_order_limit"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (RiskSettings) TableName() string {
	return "account_risk_settings"
}

// DailyOrderCount tracks admitted orders per account per UTC day.
type DailyOrderCount struct {
	AccountID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Day       string    `gorm:"type:varchar(10);primaryKey"`
	Count     int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM.
func (DailyOrderCount) TableName() string {
	return "account_daily_order_counts"
}

// State is the snapshot the compliance gate evaluates an order against.
type State struct {
	AccountID        uuid.UUID
	Paused           bool
	TradingHalted    bool
	MaxOrderNotional decimal.Decimal
	DailyOrderLimit  int
	OrdersToday      int
}

// Defaults configure accounts with no explicit risk settings row.
type Defaults struct {
	MaxOrderNotional decimal.Decimal
	DailyOrderLimit  int
}

// Service looks up and maintains account risk state. The kill switch is a
// process-wide halt consulted on every gate evaluation.
type Service struct {
	db       *gorm.DB
	logger   *zap.Logger
	audit    *audit.Service
	defaults Defaults
	clock    audit.Clock

	mu         sync.RWMutex
	killSwitch bool
}

// NewService creates the accounts service and migrates its schema.
func NewService(db *gorm.DB, logger *zap.Logger, auditSvc *audit.Service, defaults Defaults, clock audit.Clock) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if clock == nil {
		clock = time.Now
	}
	if err := db.AutoMigrate(&RiskSettings{}, &DailyOrderCount{}); err != nil {
		return nil, fmt.Errorf("failed to migrate accounts schema: %w", err)
	}
	return &Service{db: db, logger: logger, audit: auditSvc, defaults: defaults, clock: clock}, nil
}

// State returns the current risk snapshot for an account.
func (s *Service) State(ctx context.Context, accountID uuid.UUID) (State, error) {
	state := State{
		AccountID:        accountID,
		MaxOrderNotional: s.defaults.MaxOrderNotional,
		DailyOrderLimit:  s.defaults.DailyOrderLimit,
		TradingHalted:    s.KillSwitchActive(),
	}

	var settings RiskSettings
	err := s.db.WithContext(ctx).First(&settings, "account_id = ?", accountID).Error
	switch {
	case err == nil:
		state.Paused = settings.Paused
		if !settings.MaxOrderNotional.IsZero() {
			state.MaxOrderNotional = settings.MaxOrderNotional
		}
		if settings.DailyOrderLimit > 0 {
			state.DailyOrderLimit = settings.DailyOrderLimit
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No explicit settings, defaults apply.
	default:
		return State{}, errs.Storage("account_state", err)
	}

	var count DailyOrderCount
	err = s.db.WithContext(ctx).
		First(&count, "account_id = ? AND day = ?", accountID, s.today()).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return State{}, errs.Storage("account_state", err)
	}
	state.OrdersToday = count.Count
	return state, nil
}

// IncrementDailyOrders bumps the admitted-order counter for today. Called
// once per order the gate admits.
func (s *Service) IncrementDailyOrders(ctx context.Context, accountID uuid.UUID) error {
	row := DailyOrderCount{AccountID: accountID, Day: s.today(), Count: 1}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1")}),
	}).Create(&row).Error
	return errs.Storage("increment_daily_orders", err)
}

// UpdateSettings upserts an account's risk configuration.
func (s *Service) UpdateSettings(ctx context.Context, settings RiskSettings) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		UpdateAll: true,
	}).Create(&settings).Error
	return errs.Storage("update_settings", err)
}

// Pause suspends trading for one account and records it on the ledger.
func (s *Service) Pause(ctx context.Context, accountID uuid.UUID, actor *ledger.Actor) error {
	if err := s.setPaused(ctx, accountID, true); err != nil {
		return err
	}
	_, err := s.audit.Record(ctx, ledger.EventAccountPaused, actor,
		&ledger.Target{Type: "account", ID: accountID.String()},
		fmt.Sprintf("trading paused for account %s", accountID), ledger.SeverityWarning)
	return err
}

// Resume lifts an account pause and records it on the ledger.
func (s *Service) Resume(ctx context.Context, accountID uuid.UUID, actor *ledger.Actor) error {
	if err := s.setPaused(ctx, accountID, false); err != nil {
		return err
	}
	_, err := s.audit.Record(ctx, ledger.EventAccountResumed, actor,
		&ledger.Target{Type: "account", ID: accountID.String()},
		fmt.Sprintf("trading resumed for account %s", accountID), ledger.SeverityInfo)
	return err
}

func (s *Service) setPaused(ctx context.Context, accountID uuid.UUID, paused bool) error {
	row := RiskSettings{AccountID: accountID, Paused: paused}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"paused": paused}),
	}).Create(&row).Error
	return errs.Storage("set_paused", err)
}

// ActivateKillSwitch halts all order admission platform-wide. The toggle is
// itself an auditable critical event.
func (s *Service) ActivateKillSwitch(ctx context.Context, actor *ledger.Actor, reason string) error {
	s.mu.Lock()
	s.killSwitch = true
	s.mu.Unlock()

	s.logger.Warn("kill switch activated", zap.String("reason", reason))
	_, err := s.audit.Record(ctx, ledger.EventKillSwitchActivated, actor,
		&ledger.Target{Type: "platform", ID: "kill_switch"},
		fmt.Sprintf("kill switch activated: %s", reason), ledger.SeverityCritical)
	return err
}

// DeactivateKillSwitch re-enables order admission.
func (s *Service) DeactivateKillSwitch() {
	s.mu.Lock()
	s.killSwitch = false
	s.mu.Unlock()
	s.logger.Info("kill switch deactivated")
}

// KillSwitchActive reports whether the platform halt is engaged.
func (s *Service) KillSwitchActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.killSwitch
}

func (s *Service) today() string {
	return s.clock().UTC().Format("2006-01-02")
}
