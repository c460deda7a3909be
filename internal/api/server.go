// Package api exposes the core over HTTP. Handlers are thin wrappers: all
// lifecycle and ledger semantics live in the services underneath.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quantrail/tradecore/internal/accounts"
	"github.com/quantrail/tradecore/internal/audit"
	"github.com/quantrail/tradecore/internal/errs"
	"github.com/quantrail/tradecore/internal/metrics"
	"github.com/quantrail/tradecore/internal/trading"
)

// Server bundles the HTTP handlers and their dependencies.
type Server struct {
	logger   *zap.Logger
	audit    *audit.Service
	orders   *trading.Service
	accounts *accounts.Service
	metrics  *metrics.Metrics
}

// NewServer creates the HTTP server facade.
func NewServer(logger *zap.Logger, auditSvc *audit.Service, orders *trading.Service, accts *accounts.Service, m *metrics.Metrics) *Server {
	return &Server{
		logger:   logger,
		audit:    auditSvc,
		orders:   orders,
		accounts: accts,
		metrics:  m,
	}
}

// Router builds the gin engine with logging, recovery and all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(s.logger, true))
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	{
		ordersGroup := v1.Group("/orders")
		{
			ordersGroup.POST("", s.SubmitOrder)
			ordersGroup.GET("/:id", s.GetOrder)
			ordersGroup.POST("/:id/cancel", s.CancelOrder)
			ordersGroup.POST("/:id/fills", s.CompleteExecution)
		}

		auditGroup := v1.Group("/audit")
		{
			auditGroup.GET("/events", s.ListEvents)
			auditGroup.POST("/events", s.RecordEvent)
			auditGroup.GET("/timeline", s.Timeline)
			auditGroup.GET("/stats", s.Stats)
			auditGroup.POST("/verify", s.VerifyChain)
		}

		adminGroup := v1.Group("/admin")
		{
			adminGroup.POST("/accounts/:id/pause", s.PauseAccount)
			adminGroup.POST("/accounts/:id/resume", s.ResumeAccount)
			adminGroup.PUT("/accounts/:id/limits", s.UpdateAccountLimits)
			adminGroup.POST("/kill-switch", s.ToggleKillSwitch)
			adminGroup.POST("/strategies/:id/certify", s.CertifyStrategy)
		}
	}
	return r
}

// writeError maps the core error taxonomy to HTTP responses. Integrity
// failures get an operator-facing payload; routine users never see them.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		validation *errs.ValidationError
		rejection  *errs.ComplianceRejection
		conflict   *errs.ConflictError
		integrity  *errs.IntegrityError
		storage    *errs.StorageError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"field":   validation.Field,
			"message": validation.Message,
		})
	case errors.As(err, &rejection):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "compliance_rejected",
			"rule":    rejection.RuleCode,
			"message": rejection.Reason,
		})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":          "conflict",
			"current_status": conflict.CurrentStatus,
			"message":        conflict.Error(),
		})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	case errors.Is(err, errs.ErrImmutableLedger):
		c.JSON(http.StatusForbidden, gin.H{"error": "immutable_ledger", "message": err.Error()})
	case errors.As(err, &integrity):
		s.logger.Error("chain integrity failure surfaced", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":            "integrity_failure",
			"first_failing_id": integrity.FirstFailingID,
		})
	case errors.As(err, &storage):
		s.logger.Error("storage failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failure"})
	default:
		s.logger.Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
