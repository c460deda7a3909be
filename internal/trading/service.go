// Package trading implements the order lifecycle state machine. Every
// successful transition is recorded on the audit ledger; failed attempts are
// surfaced as typed errors and deliberately leave no ledger trace.
package trading

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

	"github.com/quantrail/tradecore/internal/accounts"
	"github.com/quantrail/tradecore/internal/audit"
	"github.com/quantrail/tradecore/internal/compliance/gate"
	"github.com/quantrail/tradecore/internal/errs"
	"github.com/quantrail/tradecore/internal/ledger"
	"github.com/quantrail/tradecore/internal/metrics"
	"github.com/quantrail/tradecore/internal/trading/model"
)

// SubmitRequest is a trading intent prior to admission.
type SubmitRequest struct {
	OwnerID  uuid.UUID
	Symbol   string
	Side     model.Side
	Quantity int64
	Price    decimal.Decimal
	Type     model.OrderType
}

// FillDetails is a broker completion event for an order. A quantity below the
// order's remaining quantity is a partial fill.
type FillDetails struct {
	Quantity int64
	Price    decimal.Decimal
}

// Service drives orders through the lifecycle state machine with at-most-one
// in-flight transition per order. The broker adapter re-enters through
// CompleteExecution on the same locked path, so tests can trigger execution
// synchronously.
type Service struct {
	db       *gorm.DB
	gate     *gate.Gate
	accounts *accounts.Service
	audit    *audit.Service
	logger   *zap.Logger
	metrics  *metrics.Metrics
	clock    audit.Clock

	// locks holds one mutex per order id. Entries are never evicted; the
	// registry grows with distinct in-process orders, which is acceptable for
	// the single-node deployment this service targets.
	locks sync.Map
}

// NewService creates the order state machine and migrates the orders schema.
func NewService(db *gorm.DB, logger *zap.Logger, g *gate.Gate, accts *accounts.Service, auditSvc *audit.Service, m *metrics.Metrics, clock audit.Clock) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if clock == nil {
		clock = time.Now
	}
	if err := db.AutoMigrate(&model.Order{}); err != nil {
		return nil, fmt.Errorf("failed to migrate orders schema: %w", err)
	}
	return &Service{
		db:       db,
		gate:     g,
		accounts: accts,
		audit:    auditSvc,
		logger:   logger,
		metrics:  m,
		clock:    clock,
	}, nil
}

// Submit validates a trading intent, runs the compliance gate and admits the
// order to the queue or rejects it. Validation failures happen before any
// state mutation: no order row, no ledger entry. A gate failure persists the
// rejected order, records exactly one order_rejected entry and returns a
// ComplianceRejection alongside the order.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*model.Order, error) {
	order := &model.Order{
		ID:               uuid.New(),
		OwnerID:          req.OwnerID,
		Symbol:           req.Symbol,
		Side:             req.Side,
		Quantity:         req.Quantity,
		Price:            req.Price,
		Type:             req.Type,
		Status:           model.StatusCreated,
		AverageFillPrice: decimal.Zero,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	state, err := s.accounts.State(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	actor := &ledger.Actor{ID: req.OwnerID, Role: "trader"}
	target := &ledger.Target{Type: "order", ID: order.ID.String(), Name: order.Symbol}

	verdict := s.gate.Evaluate(order, state)
	order.RiskChecks = verdict.Checks

	if !verdict.Admitted {
		next, _ := model.Next(order.Status, model.EventReject)
		order.Status = next
		order.RejectionReason = verdict.Reason
		if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
			return nil, errs.Storage("create_order", err)
		}
		if _, err := s.audit.Record(ctx, ledger.EventOrderRejected, actor, target,
			fmt.Sprintf("order rejected by rule %s: %s", verdict.FailedRule, verdict.Reason),
			ledger.SeverityWarning); err != nil {
			return nil, err
		}
		s.countTransition(order.Status)
		if s.metrics != nil {
			s.metrics.GateRejections.WithLabelValues(verdict.FailedRule).Inc()
		}
		return order, &errs.ComplianceRejection{RuleCode: verdict.FailedRule, Reason: verdict.Reason}
	}

	next, _ := model.Next(order.Status, model.EventAdmit)
	order.Status = next
	now := s.clock()
	order.QueuedAt = &now
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, errs.Storage("create_order", err)
	}
	if err := s.accounts.IncrementDailyOrders(ctx, req.OwnerID); err != nil {
		return nil, err
	}
	if _, err := s.audit.Record(ctx, ledger.EventOrderPlaced, actor, target,
		fmt.Sprintf("%s %s %d %s queued", order.Side, order.Type, order.Quantity, order.Symbol),
		ledger.SeverityInfo); err != nil {
		return nil, err
	}
	s.countTransition(order.Status)

	s.logger.Info("order queued",
		zap.String("order_id", order.ID.String()),
		zap.String("symbol", order.Symbol),
		zap.Int64("quantity", order.Quantity))
	return order, nil
}

// Cancel withdraws an order that is still waiting in the queue. Orders
// already processing or terminal yield a ConflictError carrying the actual
// current state; cancellation is not a queue-jump and the failed attempt is
// not a system event.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID, requester *ledger.Actor) (*model.Order, error) {
	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	prev := order.Status
	next, ok := model.Next(order.Status, model.EventCancel)
	if !ok {
		return nil, &errs.ConflictError{
			OrderID:       orderID.String(),
			CurrentStatus: string(order.Status),
			Attempted:     "cancel",
		}
	}
	order.Status = next
	if err := s.db.WithContext(ctx).Save(order).Error; err != nil {
		return nil, errs.Storage("save_order", err)
	}

	if _, err := s.audit.Record(ctx, ledger.EventOrderCancelled, requester,
		&ledger.Target{Type: "order", ID: order.ID.String(), Name: order.Symbol},
		fmt.Sprintf("order cancelled while %s", prev),
		ledger.SeverityInfo); err != nil {
		return nil, err
	}
	s.countTransition(order.Status)
	return order, nil
}

// CompleteExecution applies a broker completion event. A full fill finalizes
// the order: filled quantity and average fill price are written exactly once,
// the queued-to-executed latency is recorded, and one order_executed ledger
// entry is emitted. A partial fill leaves the remainder open under the same
// order id with no double counting across fills.
func (s *Service) CompleteExecution(ctx context.Context, orderID uuid.UUID, fill FillDetails) (*model.Order, error) {
	if fill.Quantity < 1 {
		return nil, errs.NewValidation("quantity", "fill quantity must be a positive integer")
	}
	if fill.Price.IsNegative() {
		return nil, errs.NewValidation("price", "fill price must not be negative")
	}

	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	next, ok := model.Next(order.Status, model.EventStartProcessing)
	if !ok {
		return nil, &errs.ConflictError{
			OrderID:       orderID.String(),
			CurrentStatus: string(order.Status),
			Attempted:     "execute",
		}
	}
	order.Status = next

	remaining := order.Remaining()
	if fill.Quantity > remaining {
		return nil, errs.NewValidation("quantity",
			"fill quantity %d exceeds remaining quantity %d", fill.Quantity, remaining)
	}

	// Volume-weighted average across all fills for this order.
	prevNotional := order.AverageFillPrice.Mul(decimal.NewFromInt(order.FilledQuantity))
	fillNotional := fill.Price.Mul(decimal.NewFromInt(fill.Quantity))
	order.FilledQuantity += fill.Quantity
	order.AverageFillPrice = prevNotional.Add(fillNotional).
		Div(decimal.NewFromInt(order.FilledQuantity))

	target := &ledger.Target{Type: "order", ID: order.ID.String(), Name: order.Symbol}
	if order.Remaining() == 0 {
		next, _ = model.Next(order.Status, model.EventExecute)
		order.Status = next
		now := s.clock()
		order.ExecutedAt = &now
		if order.QueuedAt != nil {
			order.ExecutionLatency = now.Sub(*order.QueuedAt)
			if s.metrics != nil {
				s.metrics.ExecutionLatency.Observe(order.ExecutionLatency.Seconds())
			}
		}
		if err := s.db.WithContext(ctx).Save(order).Error; err != nil {
			return nil, errs.Storage("save_order", err)
		}
		if _, err := s.audit.Record(ctx, ledger.EventOrderExecuted, nil, target,
			fmt.Sprintf("order executed: %d @ %s", order.FilledQuantity, order.AverageFillPrice.StringFixed(2)),
			ledger.SeverityInfo); err != nil {
			return nil, err
		}
	} else {
		next, _ = model.Next(order.Status, model.EventPartialFill)
		order.Status = next
		if err := s.db.WithContext(ctx).Save(order).Error; err != nil {
			return nil, errs.Storage("save_order", err)
		}
		if _, err := s.audit.Record(ctx, ledger.EventOrderPartialFill, nil, target,
			fmt.Sprintf("partial fill: %d of %d @ %s", order.FilledQuantity, order.Quantity, fill.Price.StringFixed(2)),
			ledger.SeverityInfo); err != nil {
			return nil, err
		}
	}
	s.countTransition(order.Status)
	return order, nil
}

// Get returns a single order by id.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	return s.getOrder(ctx, orderID)
}

func (s *Service) getOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %s: %w", orderID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, errs.Storage("get_order", err)
	}
	return &order, nil
}

// lockOrder guarantees at-most-one in-flight transition per order id. Of two
// concurrent conflicting requests, the loser re-reads the new state and
// observes a ConflictError rather than corrupting the order.
func (s *Service) lockOrder(orderID uuid.UUID) func() {
	v, _ := s.locks.LoadOrStore(orderID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) countTransition(status model.Status) {
	if s.metrics != nil {
		s.metrics.OrderTransitions.WithLabelValues(string(status)).Inc()
	}
}
