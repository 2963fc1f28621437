package gateway

import (
	"encoding/json"

	"reze-chat/internal/domain"
)

// SendMessageRequest es un turno a enviar al gateway.
type SendMessageRequest struct {
	Message   string
	SessionID string
	History   []domain.Message
}

type CreateSessionResponse struct {
	Success   bool             `json:"success"`
	SessionID string           `json:"session_id"`
	History   []domain.Message `json:"history,omitempty"`
}

// SendMessageResponse mantiene message crudo: el gateway no garantiza que sea string.
type SendMessageResponse struct {
	Success   bool            `json:"success"`
	Message   json.RawMessage `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// wireMessage omite el id local, que nunca viaja al gateway.
type wireMessage struct {
	Role      domain.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp,omitempty"`
}

type createSessionRequest struct {
	History []wireMessage `json:"history,omitempty"`
}

type sendMessageRequest struct {
	Message   string        `json:"message"`
	SessionID string        `json:"session_id"`
	History   []wireMessage `json:"history"`
}

type updateSessionRequest struct {
	History []wireMessage `json:"history"`
}

func toWire(msgs []domain.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, wireMessage{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp})
	}
	return out
}
