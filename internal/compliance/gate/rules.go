package gate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantrail/tradecore/internal/accounts"
	"github.com/quantrail/tradecore/internal/trading/model"
)

// Rule codes for the built-in chain.
const (
	CodeMinQuantity    = "ORDER_QTY_MIN"
	CodeTradingHalted  = "PLATFORM_HALTED"
	CodeAccountPaused  = "ACCOUNT_PAUSED"
	CodeOrderCeiling   = "ORDER_VALUE_CEILING"
	CodeDailyRateLimit = "DAILY_ORDER_LIMIT"
)

// Builtin returns the standard rule chain. Margin and VaR style predicates
// are deployment concerns and plug in through the same Rule interface.
// referencePrice values market orders for the notional ceiling check.
func Builtin(referencePrice decimal.Decimal) []Rule {
	return []Rule{
		&MinQuantityRule{Min: 1},
		&TradingHaltedRule{},
		&AccountPausedRule{},
		&OrderCeilingRule{ReferencePrice: referencePrice},
		&DailyRateLimitRule{},
	}
}

// MinQuantityRule rejects orders below a minimum quantity.
type MinQuantityRule struct {
	Min int64
}

func (r *MinQuantityRule) Code() string  { return CodeMinQuantity }
func (r *MinQuantityRule) Priority() int { return 10 }

func (r *MinQuantityRule) Evaluate(order *model.Order, _ accounts.State) (bool, string) {
	if order.Quantity < r.Min {
		return false, fmt.Sprintf("quantity %d is below the minimum of %d", order.Quantity, r.Min)
	}
	return true, ""
}

// TradingHaltedRule rejects every order while the platform kill switch is
// engaged.
type TradingHaltedRule struct{}

func (r *TradingHaltedRule) Code() string  { return CodeTradingHalted }
func (r *TradingHaltedRule) Priority() int { return 15 }

func (r *TradingHaltedRule) Evaluate(_ *model.Order, state accounts.State) (bool, string) {
	if state.TradingHalted {
		return false, "trading is halted platform-wide"
	}
	return true, ""
}

// AccountPausedRule rejects orders from paused accounts.
type AccountPausedRule struct{}

func (r *AccountPausedRule) Code() string  { return CodeAccountPaused }
func (r *AccountPausedRule) Priority() int { return 20 }

func (r *AccountPausedRule) Evaluate(_ *model.Order, state accounts.State) (bool, string) {
	if state.Paused {
		return false, fmt.Sprintf("account %s is paused", state.AccountID)
	}
	return true, ""
}

// OrderCeilingRule rejects orders whose notional value exceeds the account's
// per-order ceiling. A zero ceiling means no limit is configured.
type OrderCeilingRule struct {
	ReferencePrice decimal.Decimal
}

func (r *OrderCeilingRule) Code() string  { return CodeOrderCeiling }
func (r *OrderCeilingRule) Priority() int { return 30 }

func (r *OrderCeilingRule) Evaluate(order *model.Order, state accounts.State) (bool, string) {
	if state.MaxOrderNotional.IsZero() {
		return true, ""
	}
	notional := order.Notional(r.ReferencePrice)
	if notional.GreaterThan(state.MaxOrderNotional) {
		return false, fmt.Sprintf("order value %s exceeds per-order ceiling %s",
			notional.StringFixed(2), state.MaxOrderNotional.StringFixed(2))
	}
	return true, ""
}

// DailyRateLimitRule rejects orders once the account's daily admitted-order
// count is exhausted. A zero limit means no limit is configured.
type DailyRateLimitRule struct{}

func (r *DailyRateLimitRule) Code() string  { return CodeDailyRateLimit }
func (r *DailyRateLimitRule) Priority() int { return 40 }

func (r *DailyRateLimitRule) Evaluate(_ *model.Order, state accounts.State) (bool, string) {
	if state.DailyOrderLimit <= 0 {
		return true, ""
	}
	if state.OrdersToday >= state.DailyOrderLimit {
		return false, fmt.Sprintf("daily order limit of %d reached", state.DailyOrderLimit)
	}
	return true, ""
}
