package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reze-chat/internal/domain"
	"reze-chat/internal/service"
)

var quickSuggestions = []string{
	"What can you help me with?",
	"How do you work?",
	"What are your capabilities?",
	"Can you help me with coding?",
	"Tell me about yourself",
	"What makes you different?",
}

// ChatHandler expone la conversación a la capa de presentación.
type ChatHandler struct {
	logger    *zap.Logger
	registry  *service.ConversationRegistry
	maxLength int
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(logger *zap.Logger, registry *service.ConversationRegistry, maxLength int) *ChatHandler {
	return &ChatHandler{
		logger:    logger,
		registry:  registry,
		maxLength: maxLength,
	}
}

type exchangeResponse struct {
	Outcome string                   `json:"outcome"`
	Applied bool                     `json:"applied"`
	Message *domain.Message          `json:"message,omitempty"`
	State   domain.ConversationState `json:"state"`
}

// Suggestions maneja GET /api/chat/suggestions.
func (h *ChatHandler) Suggestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suggestions": quickSuggestions})
}

// CreateSession maneja POST /api/chat/sessions.
func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create session request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	conv, err := h.registry.Open(c.Request.Context(), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": conv.SessionID(),
		"state":      conv.State(),
	})
}

// GetSession maneja GET /api/chat/sessions/:id.
func (h *ChatHandler) GetSession(c *gin.Context) {
	conv, ok := h.conversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": conv.State()})
}

// DeleteSession maneja DELETE /api/chat/sessions/:id.
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	if err := h.registry.Remove(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PostMessage maneja POST /api/chat/sessions/:id/messages.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	conv, ok := h.conversation(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	outcome, err := conv.Send(c.Request.Context(), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exchangeResponse{
		Outcome: outcome.Kind.String(),
		Applied: outcome.Message != nil,
		Message: outcome.Message,
		State:   conv.State(),
	})
}

// Regenerate maneja POST /api/chat/sessions/:id/regenerate.
func (h *ChatHandler) Regenerate(c *gin.Context) {
	conv, ok := h.conversation(c)
	if !ok {
		return
	}
	var req struct {
		Index *int `json:"index" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid regenerate request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	outcome, err := conv.Regenerate(c.Request.Context(), *req.Index)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exchangeResponse{
		Outcome: outcome.Kind.String(),
		Applied: outcome.Message != nil,
		Message: outcome.Message,
		State:   conv.State(),
	})
}

// CopyMessage maneja GET /api/chat/sessions/:id/messages/:index/copy.
func (h *ChatHandler) CopyMessage(c *gin.Context) {
	conv, ok := h.conversation(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}
	text, err := conv.CopyText(index)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

func (h *ChatHandler) conversation(c *gin.Context) (*service.ConversationService, bool) {
	conv, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return conv, true
}

func (h *ChatHandler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("chat request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": service.UserMessage(err, h.maxLength)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrNameTooShort),
		errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrContentTooLong),
		errors.Is(err, service.ErrInvalidRegenerateIndex):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrInvalidMessageIndex):
		return http.StatusNotFound
	case errors.Is(err, service.ErrExchangeInFlight),
		errors.Is(err, service.ErrNoSession):
		return http.StatusConflict
	case errors.Is(err, service.ErrSessionCreateFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
