package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reze-chat/internal/domain"
	"reze-chat/internal/gateway"
)

const (
	DefaultExchangeTimeout    = 45 * time.Second
	DefaultHistoryPushTimeout = 15 * time.Second
	DefaultMaxContentLength   = 2000
)

// OutcomeKind clasifica el resultado de un turno con el gateway.
type OutcomeKind int

const (
	OutcomeReply OutcomeKind = iota
	OutcomeTimeout
	OutcomeTransportFailure
	OutcomeEmpty
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeReply:
		return "reply"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeTransportFailure:
		return "transport_failure"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Outcome es el resultado determinado de un Exchange. Message es nil sólo en OutcomeEmpty.
type Outcome struct {
	Kind    OutcomeKind
	Message *domain.Message
}

// ExchangeService ejecuta un turno de conversación con tiempo de espera acotado.
type ExchangeService struct {
	gateway     gateway.Client
	logger      *zap.Logger
	timeout     time.Duration
	pushTimeout time.Duration
	maxLength   int
	now         func() time.Time
	pushes      sync.WaitGroup
}

func NewExchangeService(gw gateway.Client, logger *zap.Logger, timeout, pushTimeout time.Duration, maxLength int) *ExchangeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultExchangeTimeout
	}
	if pushTimeout <= 0 {
		pushTimeout = DefaultHistoryPushTimeout
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxContentLength
	}
	return &ExchangeService{
		gateway:     gw,
		logger:      logger,
		timeout:     timeout,
		pushTimeout: pushTimeout,
		maxLength:   maxLength,
		now:         time.Now,
	}
}

func (s *ExchangeService) MaxContentLength() int {
	return s.maxLength
}

// CheckContent recorta el texto y aplica el límite de longitud en runas.
func (s *ExchangeService) CheckContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyContent
	}
	if n := utf8.RuneCountInString(trimmed); n > s.maxLength {
		return "", fmt.Errorf("%w: %d > %d", ErrContentTooLong, n, s.maxLength)
	}
	return trimmed, nil
}

type exchangeResult struct {
	resp gateway.SendMessageResponse
	err  error
}

// Exchange envía msg con el historial previo y siempre devuelve un Outcome.
// Gana el primero entre la respuesta y el timeout; el perdedor se descarta.
func (s *ExchangeService) Exchange(ctx context.Context, msg domain.Message, sessionID string, history []domain.Message) Outcome {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan exchangeResult, 1)
	req := gateway.SendMessageRequest{
		Message:   msg.Content,
		SessionID: sessionID,
		History:   domain.CloneMessages(history),
	}
	go func() {
		resp, err := s.gateway.SendMessage(reqCtx, req)
		results <- exchangeResult{resp: resp, err: err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		s.logger.Warn("exchange timed out",
			zap.String("session_id", sessionID),
			zap.Duration("timeout", s.timeout),
		)
		return s.synthesize(OutcomeTimeout, TimeoutReplyText)
	case res := <-results:
		return s.settle(sessionID, res)
	}
}

func (s *ExchangeService) settle(sessionID string, res exchangeResult) Outcome {
	if res.err != nil {
		s.logger.Error("exchange failed", zap.Error(res.err), zap.String("session_id", sessionID))
		return s.synthesize(OutcomeTransportFailure, TransportFailureText)
	}
	if !res.resp.Success {
		s.logger.Warn("gateway returned success=false", zap.String("session_id", sessionID))
		return Outcome{Kind: OutcomeEmpty}
	}
	raw, ok := contentText(res.resp.Message)
	if !ok {
		s.logger.Warn("gateway response without message", zap.String("session_id", sessionID))
		return Outcome{Kind: OutcomeEmpty}
	}
	content := NormalizeContent(raw)
	if content == "" {
		return Outcome{Kind: OutcomeEmpty}
	}

	timestamp := res.resp.Timestamp
	if timestamp == "" {
		timestamp = domain.FormatTimestamp(s.now())
	}
	return Outcome{
		Kind: OutcomeReply,
		Message: &domain.Message{
			ID:        uuid.NewString(),
			Role:      domain.RoleAssistant,
			Content:   content,
			Timestamp: timestamp,
		},
	}
}

func (s *ExchangeService) synthesize(kind OutcomeKind, text string) Outcome {
	return Outcome{Kind: kind, Message: s.assistantMessage(text)}
}

func (s *ExchangeService) assistantMessage(text string) *domain.Message {
	return &domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   text,
		Timestamp: domain.FormatTimestamp(s.now()),
	}
}

// PushHistory envía el historial completo al gateway sin esperar el resultado.
// Los fallos sólo se registran; no hay reintentos.
func (s *ExchangeService) PushHistory(sessionID string, history []domain.Message) {
	snapshot := domain.CloneMessages(history)
	s.pushes.Add(1)
	go func() {
		defer s.pushes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.pushTimeout)
		defer cancel()
		if err := s.gateway.UpdateHistory(ctx, sessionID, snapshot); err != nil {
			s.logger.Warn("history push failed", zap.Error(err), zap.String("session_id", sessionID))
		}
	}()
}

// WaitPushes bloquea hasta que terminen los PushHistory pendientes.
func (s *ExchangeService) WaitPushes() {
	s.pushes.Wait()
}
