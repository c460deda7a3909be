// Package model holds the order domain model and its lifecycle state machine.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantrail/tradecore/internal/errs"
)

// Order sides.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Order types.
type OrderType string

const (
	TypeMarket    OrderType = "MARKET"
	TypeLimit     OrderType = "LIMIT"
	TypeStopLoss  OrderType = "SL"
	TypeStopLossM OrderType = "SL-M"
)

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	switch t {
	case TypeMarket, TypeLimit, TypeStopLoss, TypeStopLossM:
		return true
	}
	return false
}

// RiskCheck records the outcome of one compliance rule at admission time.
type RiskCheck struct {
	Rule   string `json:"rule"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Order is a single trading intent and its execution lifecycle. Terminal
// orders are never mutated again; the fill fields are written exactly once at
// the executed transition.
type Order struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"order_id"`
	OwnerID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"owner_id"`
	Symbol           string          `gorm:"type:varchar(32);not null;index" json:"symbol"`
	Side             Side            `gorm:"type:varchar(8);not null" json:"side"`
	Quantity         int64           `gorm:"not null" json:"quantity"`
	Price            decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"price"`
	Type             OrderType       `gorm:"type:varchar(8);not null" json:"order_type"`
	Status           Status          `gorm:"type:varchar(16);not null;index" json:"status"`
	RiskChecks       []RiskCheck     `gorm:"serializer:json" json:"risk_checks,omitempty"`
	FilledQuantity   int64           `json:"filled_quantity"`
	AverageFillPrice decimal.Decimal `gorm:"type:decimal(24,8)" json:"average_fill_price"`
	QueuedAt         *time.Time      `json:"queued_at,omitempty"`
	ExecutedAt       *time.Time      `json:"executed_at,omitempty"`
	ExecutionLatency time.Duration   `json:"execution_latency,omitempty"`
	RejectionReason  string          `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Order) TableName() string {
	return "orders"
}

// Validate rejects malformed intents before any state mutation. A validation
// failure means the submission never happened: no order row, no ledger entry.
func (o *Order) Validate() error {
	if o.Symbol == "" {
		return errs.NewValidation("symbol", "symbol is required")
	}
	if !o.Side.Valid() {
		return errs.NewValidation("side", "side must be BUY or SELL")
	}
	if o.Quantity < 1 {
		return errs.NewValidation("quantity", "quantity must be a positive integer")
	}
	if !o.Type.Valid() {
		return errs.NewValidation("order_type", "unknown order type %q", o.Type)
	}
	if o.Price.IsNegative() {
		return errs.NewValidation("price", "price must not be negative")
	}
	if o.Type != TypeMarket && o.Price.IsZero() {
		return errs.NewValidation("price", "%s orders require a price", o.Type)
	}
	return nil
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() int64 {
	return o.Quantity - o.FilledQuantity
}

// Notional values the order for ceiling checks. Market orders carry no price,
// so they are valued at the supplied reference price.
func (o *Order) Notional(referencePrice decimal.Decimal) decimal.Decimal {
	price := o.Price
	if o.Price.IsZero() {
		price = referencePrice
	}
	return price.Mul(decimal.NewFromInt(o.Quantity))
}
