package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vitalis-care/plantao/pkg/database"
	"github.com/vitalis-care/plantao/pkg/engine"
)

// idempotencyKeyHeader carries the caller-chosen dedupe key; absent, the
// gateway message id takes its place.
const idempotencyKeyHeader = "X-Idempotency-Key"

// IngestRequest is one inbound WhatsApp message, as delivered by the
// messaging gateway.
type IngestRequest struct {
	PhoneNumber string            `json:"phoneNumber" binding:"required"`
	Text        string            `json:"text"`
	MessageID   string            `json:"message_id"`
	Meta        map[string]string `json:"meta"`
}

// IngestResponse carries the consolidated reply back to the gateway.
type IngestResponse struct {
	Reply       string `json:"reply"`
	SessionID   string `json:"sessionId"`
	OutcomeCode string `json:"outcomeCode"`
	Status      string `json:"status"`
	Replayed    bool   `json:"replayed,omitempty"`
}

// TemplateFiredRequest signals that the gateway sent a proactive template
// to the caregiver.
type TemplateFiredRequest struct {
	PhoneNumber string                 `json:"phoneNumber" binding:"required"`
	Template    string                 `json:"template"`
	Metadata    *TemplateFiredMetadata `json:"metadata"`
}

// TemplateFiredMetadata is the optional template context merged into the
// session.
type TemplateFiredMetadata struct {
	MissingFieldsHint  []string `json:"hint_campos_faltantes"`
	FinishReminderSent bool     `json:"finishReminderSent"`
	ShiftDay           string   `json:"shiftDay"`
}

func (s *Server) ingestHandler(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	key := c.GetHeader(idempotencyKeyHeader)
	if key == "" {
		key = req.MessageID
	}

	result, err := s.engine.Handle(c.Request.Context(), engine.Inbound{
		PhoneNumber:    req.PhoneNumber,
		Text:           req.Text,
		MessageID:      req.MessageID,
		IdempotencyKey: key,
		Meta:           req.Meta,
	})
	if err != nil {
		status, body := mapEngineError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, IngestResponse{
		Reply:       result.Reply,
		SessionID:   result.SessionID,
		OutcomeCode: result.OutcomeCode,
		Status:      "success",
		Replayed:    result.Replayed,
	})
}

func (s *Server) templateFiredHandler(c *gin.Context) {
	var req TemplateFiredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	event := engine.TemplateEvent{Template: req.Template}
	if req.Metadata != nil {
		event.FinishReminderSent = req.Metadata.FinishReminderSent
		event.ShiftDay = req.Metadata.ShiftDay
		event.MissingFieldsHint = req.Metadata.MissingFieldsHint
	}

	if err := s.engine.ApplyTemplateEvent(c.Request.Context(), req.PhoneNumber, event); err != nil {
		status, body := mapEngineError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// healthHandler answers liveness checks: the process is up.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readyHandler answers readiness checks: the stores must answer.
func (s *Server) readyHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if s.db != nil {
		if _, err := database.Health(ctx, s.db.DB()); err != nil {
			healthy = false
			checks["database"] = err.Error()
		} else {
			checks["database"] = "ok"
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			healthy = false
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}
