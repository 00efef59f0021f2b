package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"chinese-srs/internal/orchestrator"
	"chinese-srs/internal/scheduler"
	"chinese-srs/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SchedulerHandler exposes the orchestrator facade (component K) over HTTP,
// mapping spec §6's request/response operations onto the REST surface the
// rest of this API uses.
type SchedulerHandler struct {
	facade *orchestrator.Facade
}

// NewSchedulerHandler creates a SchedulerHandler around a built Facade.
func NewSchedulerHandler(facade *orchestrator.Facade) *SchedulerHandler {
	return &SchedulerHandler{facade: facade}
}

// startSessionRequest is the POST /learn/sessions body.
type startSessionRequest struct {
	ItemCount     int    `json:"item_count" binding:"required"`
	Strategy      string `json:"strategy"`
	TimeLimitSecs *int   `json:"time_limit_seconds"`
	HSKLevel      *int   `json:"hsk_level"`
}

// StartSession handles POST /api/v1/learn/sessions.
func (h *SchedulerHandler) StartSession(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	var timeLimit *time.Duration
	if req.TimeLimitSecs != nil {
		d := time.Duration(*req.TimeLimitSecs) * time.Second
		timeLimit = &d
	}

	out, err := h.facade.StartSession(c.Request.Context(), orchestrator.StartSessionInput{
		UserID: userID, ItemCount: req.ItemCount, Strategy: req.Strategy, TimeLimit: timeLimit, HSKLevel: req.HSKLevel,
	})
	if err != nil {
		writeSchedulerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": out.SessionID,
		"items":      out.Items,
	})
}

// GetActiveSession handles GET /api/v1/learn/sessions/active.
func (h *SchedulerHandler) GetActiveSession(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	sess, err := h.facade.GetActiveSession(c.Request.Context(), userID)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	if sess == nil {
		c.JSON(http.StatusOK, gin.H{"session": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// NextItem handles GET /api/v1/learn/sessions/:id/next.
func (h *SchedulerHandler) NextItem(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	item, err := h.facade.NextItem(c.Request.Context(), sessionID)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// revealRequest is the POST .../reveal body.
type revealRequest struct {
	ItemID uuid.UUID `json:"item_id" binding:"required"`
}

// RevealAnswer handles POST /api/v1/learn/sessions/:id/reveal.
func (h *SchedulerHandler) RevealAnswer(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var req revealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	if err := h.facade.RevealAnswer(c.Request.Context(), sessionID, req.ItemID); err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revealed": true})
}

// judgeRequest is the POST .../judge body.
type judgeRequest struct {
	ItemID         uuid.UUID `json:"item_id" binding:"required"`
	IsCorrect      bool      `json:"is_correct"`
	NearMiss       bool      `json:"near_miss"`
	ResponseTimeMs uint32    `json:"response_time_ms"`
}

// Judge handles POST /api/v1/learn/sessions/:id/judge.
func (h *SchedulerHandler) Judge(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var req judgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	out, err := h.facade.Judge(c.Request.Context(), orchestrator.JudgeInput{
		SessionID: sessionID, ItemID: req.ItemID, IsCorrect: req.IsCorrect, NearMiss: req.NearMiss, ResponseTimeMs: req.ResponseTimeMs,
	})
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"quality":          out.Quality,
		"easiness_factor":  out.EasinessFactor,
		"interval_days":    out.IntervalDays,
		"next_review_date": out.NextReviewDate,
	})
}

// CompleteSession handles POST /api/v1/learn/sessions/:id/complete.
func (h *SchedulerHandler) CompleteSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	if err := h.facade.CompleteSession(c.Request.Context(), sessionID); err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": true})
}

// abandonRequest is the POST .../abandon body.
type abandonRequest struct {
	Reason string `json:"reason"`
}

// AbandonSession handles POST /api/v1/learn/sessions/:id/abandon.
func (h *SchedulerHandler) AbandonSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var req abandonRequest
	_ = c.ShouldBindJSON(&req)
	reason := session.AbandonReasonUserRequested
	if req.Reason == string(session.AbandonReasonTimedOut) {
		reason = session.AbandonReasonTimedOut
	}

	if err := h.facade.AbandonSession(c.Request.Context(), sessionID, reason); err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"abandoned": true})
}

// GetDueItems handles GET /api/v1/learn/due.
func (h *SchedulerHandler) GetDueItems(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	var asOf *time.Time
	if s := c.Query("as_of"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			asOf = &t
		}
	}

	records, err := h.facade.GetDueItems(c.Request.Context(), userID, limit, asOf)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records, "count": len(records)})
}

// writeSchedulerError maps the scheduler's error-kind taxonomy (spec §7) to
// HTTP status codes.
func writeSchedulerError(c *gin.Context, err error) {
	var sessErr *session.StateError
	if errors.As(err, &sessErr) {
		c.JSON(http.StatusConflict, gin.H{"error": sessErr.Error(), "kind": sessErr.Kind})
		return
	}

	kind := scheduler.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case scheduler.KindNotFound:
		status = http.StatusNotFound
	case scheduler.KindInvalidInput:
		status = http.StatusBadRequest
	case scheduler.KindInvalidState, scheduler.KindAlreadyJudged, scheduler.KindVersionConflict, scheduler.KindSessionAlreadyActive:
		status = http.StatusConflict
	case scheduler.KindInsufficientItems:
		status = http.StatusUnprocessableEntity
	case scheduler.KindUnavailable, scheduler.KindTimeout:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}
