// Package gate runs the pre-trade compliance rule chain. Rules form a closed,
// explicitly ordered set; evaluation is deterministic and fail-fast so a
// rejection is always attributable to exactly one rule, the lowest-priority
// rule that actually fails.
//
// The gate is pure with respect to the ledger: it never writes audit entries.
// The order state machine records the outcome.
package gate

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/quantrail/tradecore/internal/accounts"
	"github.com/quantrail/tradecore/internal/trading/model"
)

// Rule is one named, ordered compliance predicate. Evaluate must be a pure
// function of the order and account state.
type Rule interface {
	Code() string
	Priority() int
	Evaluate(order *model.Order, state accounts.State) (passed bool, reason string)
}

// Result is the gate verdict. Checks records every rule that ran, including
// the failing one, for the order's risk-check record.
type Result struct {
	Admitted   bool
	FailedRule string
	Reason     string
	Checks     []model.RiskCheck
}

// Gate is an ordered chain of compliance rules.
type Gate struct {
	rules  []Rule
	logger *zap.Logger
}

// New builds a gate from the given rules, sorted by ascending priority.
// Duplicate rule codes are a wiring bug and rejected up front.
func New(logger *zap.Logger, rules ...Rule) (*Gate, error) {
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if _, dup := seen[r.Code()]; dup {
			return nil, fmt.Errorf("duplicate compliance rule code %q", r.Code())
		}
		seen[r.Code()] = struct{}{}
	}

	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})
	return &Gate{rules: ordered, logger: logger}, nil
}

// Evaluate runs the chain against (order, account state) and short-circuits on
// the first failing rule.
func (g *Gate) Evaluate(order *model.Order, state accounts.State) Result {
	result := Result{Admitted: true}
	for _, rule := range g.rules {
		passed, reason := rule.Evaluate(order, state)
		result.Checks = append(result.Checks, model.RiskCheck{
			Rule:   rule.Code(),
			Passed: passed,
			Reason: reason,
		})
		if !passed {
			result.Admitted = false
			result.FailedRule = rule.Code()
			result.Reason = reason
			g.logger.Info("order rejected by compliance gate",
				zap.String("order_id", order.ID.String()),
				zap.String("rule", rule.Code()),
				zap.String("reason", reason))
			return result
		}
	}
	return result
}
