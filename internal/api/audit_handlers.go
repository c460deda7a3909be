package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quantrail/tradecore/internal/ledger"
)

var recordableEvents = map[ledger.EventType]bool{
	ledger.EventLogin:             true,
	ledger.EventStrategyCertified: true,
}

// RecordEventRequest lets trusted collaborators (auth routes, admin tooling)
// record their events through the facade.
type RecordEventRequest struct {
	EventType   string `json:"event_type" binding:"required"`
	ActorID     string `json:"actor_id"`
	ActorName   string `json:"actor_name"`
	ActorRole   string `json:"actor_role"`
	TargetType  string `json:"target_type"`
	TargetID    string `json:"target_id"`
	TargetName  string `json:"target_name"`
	Description string `json:"description" binding:"required"`
	Severity    string `json:"severity"`
}

// RecordEvent handles POST /api/v1/audit/events. Order lifecycle events are
// emitted by the state machine only and cannot be recorded here.
func (s *Server) RecordEvent(c *gin.Context) {
	var req RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	eventType := ledger.EventType(req.EventType)
	if !recordableEvents[eventType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "event type cannot be recorded through this endpoint"})
		return
	}

	var actor *ledger.Actor
	if req.ActorID != "" {
		id, err := uuid.Parse(req.ActorID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "actor_id must be a valid UUID"})
			return
		}
		actor = &ledger.Actor{ID: id, Name: req.ActorName, Role: req.ActorRole}
	}
	var target *ledger.Target
	if req.TargetID != "" || req.TargetType != "" {
		target = &ledger.Target{Type: req.TargetType, ID: req.TargetID, Name: req.TargetName}
	}

	entry, err := s.audit.Record(c.Request.Context(), eventType, actor, target, req.Description, ledger.Severity(req.Severity))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ListEvents handles GET /api/v1/audit/events with filter and pagination
// query parameters.
func (s *Server) ListEvents(c *gin.Context) {
	filter := ledger.Filter{
		EventType: ledger.EventType(c.Query("event_type")),
		Severity:  ledger.Severity(c.Query("severity")),
	}
	if raw := c.Query("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "actor_id must be a valid UUID"})
			return
		}
		filter.ActorID = &id
	}
	var err error
	if filter.From, err = parseTimeParam(c, "from"); err != nil {
		return
	}
	if filter.To, err = parseTimeParam(c, "to"); err != nil {
		return
	}

	page := ledger.Pagination{
		Limit:  queryInt(c, "limit"),
		Offset: queryInt(c, "offset"),
	}

	entries, err := s.audit.List(c.Request.Context(), filter, page)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": entries, "count": len(entries)})
}

// Timeline handles GET /api/v1/audit/timeline?since=RFC3339.
func (s *Server) Timeline(c *gin.Context) {
	since, err := time.Parse(time.RFC3339, c.Query("since"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "since must be an RFC3339 timestamp"})
		return
	}
	entries, err := s.audit.Timeline(c.Request.Context(), since)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": entries, "count": len(entries)})
}

// Stats handles GET /api/v1/audit/stats?day=2006-01-02. Day defaults to today.
func (s *Server) Stats(c *gin.Context) {
	day := time.Now().UTC()
	if raw := c.Query("day"); raw != "" {
		var err error
		day, err = time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "day must be formatted as 2006-01-02"})
			return
		}
	}
	stats, err := s.audit.Stats(c.Request.Context(), day)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// VerifyRequest bounds a chain integrity audit. Zero values cover the whole
// ledger.
type VerifyRequest struct {
	FromID int64 `json:"from_id"`
	ToID   int64 `json:"to_id"`
}

// VerifyChain handles POST /api/v1/audit/verify. The result is operator
// facing: a failed verification reports the first failing entry id.
func (s *Server) VerifyChain(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	result, err := s.audit.VerifyChain(c.Request.Context(), req.FromID, req.ToID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseTimeParam(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": name + " must be an RFC3339 timestamp"})
		return time.Time{}, err
	}
	return t, nil
}

func queryInt(c *gin.Context, name string) int {
	raw := c.Query(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
