package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reze-chat/internal/domain"
	"reze-chat/internal/gateway"
	"reze-chat/internal/repository"
)

const minNameLength = 2

// SessionService crea la sesión en el gateway y siembra la conversación.
type SessionService struct {
	gateway  gateway.Client
	exchange *ExchangeService
	logger   *zap.Logger
}

func NewSessionService(gw gateway.Client, exchange *ExchangeService, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{gateway: gw, exchange: exchange, logger: logger}
}

// ValidateName devuelve el nombre recortado o el error de validación correspondiente.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrNameRequired
	}
	if utf8.RuneCountInString(trimmed) < minNameLength {
		return "", ErrNameTooShort
	}
	return trimmed, nil
}

func greetingFor(name string) string {
	return fmt.Sprintf("Hello, my name is %s", name)
}

// CreateSession pide una sesión al gateway y obtiene la bienvenida con un turno real.
// Nunca devuelve error: cualquier fallo se registra y se traduce a false.
func (s *SessionService) CreateSession(ctx context.Context, store repository.ConversationStore, name string) bool {
	greeting := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   greetingFor(name),
		Timestamp: domain.Now(),
	}

	resp, err := s.gateway.CreateSession(ctx, []domain.Message{greeting})
	if err != nil {
		s.logger.Error("create session failed", zap.Error(err))
		return false
	}
	sessionID := strings.TrimSpace(resp.SessionID)
	if !resp.Success || sessionID == "" {
		s.logger.Warn("gateway rejected session create", zap.Bool("success", resp.Success))
		return false
	}

	history := resp.History
	if history == nil {
		history = []domain.Message{}
	}
	store.SetSession(domain.Session{ID: sessionID, History: history})
	s.logger.Info("session created", zap.String("session_id", sessionID))

	outcome := s.exchange.Exchange(ctx, greeting, sessionID, []domain.Message{})
	if outcome.Message != nil {
		store.SetMessages([]domain.Message{greeting, *outcome.Message})
	} else {
		store.SetMessages([]domain.Message{greeting})
	}
	return true
}
