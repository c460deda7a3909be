package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantrail/tradecore/internal/accounts"
	"github.com/quantrail/tradecore/internal/ledger"
)

func adminActor(c *gin.Context) *ledger.Actor {
	raw := c.GetHeader("X-Actor-ID")
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &ledger.Actor{ID: id, Role: "admin"}
}

// PauseAccount handles POST /api/v1/admin/accounts/:id/pause.
func (s *Server) PauseAccount(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "account id must be a valid UUID"})
		return
	}
	if err := s.accounts.Pause(c.Request.Context(), accountID, adminActor(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": accountID, "paused": true})
}

// ResumeAccount handles POST /api/v1/admin/accounts/:id/resume.
func (s *Server) ResumeAccount(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "account id must be a valid UUID"})
		return
	}
	if err := s.accounts.Resume(c.Request.Context(), accountID, adminActor(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": accountID, "paused": false})
}

// AccountLimitsRequest updates per-account risk settings.
type AccountLimitsRequest struct {
	MaxOrderNotional string `json:"max_order_notional"`
	DailyOrderLimit  int    `json:"daily_order_limit"`
}

// UpdateAccountLimits handles PUT /api/v1/admin/accounts/:id/limits.
func (s *Server) UpdateAccountLimits(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "account id must be a valid UUID"})
		return
	}
	var req AccountLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	ceiling := decimal.Zero
	if req.MaxOrderNotional != "" {
		ceiling, err = decimal.NewFromString(req.MaxOrderNotional)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "max_order_notional must be a decimal string"})
			return
		}
	}

	settings := accounts.RiskSettings{
		AccountID:        accountID,
		MaxOrderNotional: ceiling,
		DailyOrderLimit:  req.DailyOrderLimit,
	}
	if err := s.accounts.UpdateSettings(c.Request.Context(), settings); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// KillSwitchRequest toggles the platform-wide trading halt.
type KillSwitchRequest struct {
	Active bool   `json:"active"`
	Reason string `json:"reason"`
}

// ToggleKillSwitch handles POST /api/v1/admin/kill-switch.
func (s *Server) ToggleKillSwitch(c *gin.Context) {
	var req KillSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if req.Active {
		if err := s.accounts.ActivateKillSwitch(c.Request.Context(), adminActor(c), req.Reason); err != nil {
			s.writeError(c, err)
			return
		}
	} else {
		s.accounts.DeactivateKillSwitch()
	}
	c.JSON(http.StatusOK, gin.H{"kill_switch_active": req.Active})
}

// CertifyStrategyRequest names the strategy being certified.
type CertifyStrategyRequest struct {
	Name string `json:"name" binding:"required"`
}

// CertifyStrategy handles POST /api/v1/admin/strategies/:id/certify.
// Certification itself is an external workflow; the certified fact is what
// lands on the ledger.
func (s *Server) CertifyStrategy(c *gin.Context) {
	strategyID := c.Param("id")
	var req CertifyStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	entry, err := s.audit.Record(c.Request.Context(), ledger.EventStrategyCertified, adminActor(c),
		&ledger.Target{Type: "strategy", ID: strategyID, Name: req.Name},
		fmt.Sprintf("strategy %q certified", req.Name), ledger.SeverityInfo)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}
