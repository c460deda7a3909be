package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantrail/tradecore/internal/errs"
	"github.com/quantrail/tradecore/internal/ledger"
	"github.com/quantrail/tradecore/internal/trading"
	"github.com/quantrail/tradecore/internal/trading/model"
)

// SubmitOrderRequest is the order submission payload. Quantity and price are
// revalidated by the core; binding only guards shape.
type SubmitOrderRequest struct {
	OwnerID   string `json:"owner_id" binding:"required,uuid"`
	Symbol    string `json:"symbol" binding:"required"`
	Side      string `json:"side" binding:"required"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price"`
	OrderType string `json:"order_type" binding:"required"`
}

// SubmitOrder handles POST /api/v1/orders.
func (s *Server) SubmitOrder(c *gin.Context) {
	var req SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "owner_id must be a valid UUID"})
		return
	}
	price := decimal.Zero
	if req.Price != "" {
		price, err = decimal.NewFromString(req.Price)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "price must be a decimal string"})
			return
		}
	}

	order, err := s.orders.Submit(c.Request.Context(), trading.SubmitRequest{
		OwnerID:  ownerID,
		Symbol:   req.Symbol,
		Side:     model.Side(req.Side),
		Quantity: req.Quantity,
		Price:    price,
		Type:     model.OrderType(req.OrderType),
	})
	if err != nil {
		var rejection *errs.ComplianceRejection
		if errors.As(err, &rejection) {
			// The order exists in rejected state; return it with the verdict.
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "compliance_rejected",
				"rule":  rejection.RuleCode,
				"order": order,
			})
			return
		}
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetOrder handles GET /api/v1/orders/:id.
func (s *Server) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "order id must be a valid UUID"})
		return
	}
	order, err := s.orders.Get(c.Request.Context(), orderID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrderRequest optionally identifies the requesting principal.
type CancelOrderRequest struct {
	RequesterID string `json:"requester_id"`
}

// CancelOrder handles POST /api/v1/orders/:id/cancel.
func (s *Server) CancelOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "order id must be a valid UUID"})
		return
	}

	var req CancelOrderRequest
	_ = c.ShouldBindJSON(&req)
	var requester *ledger.Actor
	if req.RequesterID != "" {
		id, err := uuid.Parse(req.RequesterID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "requester_id must be a valid UUID"})
			return
		}
		requester = &ledger.Actor{ID: id, Role: "trader"}
	}

	order, err := s.orders.Cancel(c.Request.Context(), orderID, requester)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// FillRequest is a broker completion event payload.
type FillRequest struct {
	Quantity int64  `json:"quantity" binding:"required"`
	Price    string `json:"price" binding:"required"`
}

// CompleteExecution handles POST /api/v1/orders/:id/fills, the re-entry point
// for the external broker adapter.
func (s *Server) CompleteExecution(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "order id must be a valid UUID"})
		return
	}
	var req FillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "price must be a decimal string"})
		return
	}

	order, err := s.orders.CompleteExecution(c.Request.Context(), orderID, trading.FillDetails{
		Quantity: req.Quantity,
		Price:    price,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
