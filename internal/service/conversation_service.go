package service

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reze-chat/internal/domain"
	"reze-chat/internal/repository"
)

// ConversationService coordina un chat: es el único llamador del motor de intercambio
// y garantiza como mucho un turno en vuelo.
type ConversationService struct {
	store      repository.ConversationStore
	sessions   *SessionService
	exchange   *ExchangeService
	logger     *zap.Logger
	inflight   atomic.Bool
	retired    atomic.Bool
	generation atomic.Uint64
}

func NewConversationService(
	store repository.ConversationStore,
	sessions *SessionService,
	exchange *ExchangeService,
	logger *zap.Logger,
) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		store:    store,
		sessions: sessions,
		exchange: exchange,
		logger:   logger,
	}
}

// acquire toma el único turno disponible. Una conversación retirada no acepta turnos.
func (c *ConversationService) acquire() error {
	if !c.inflight.CompareAndSwap(false, true) {
		return ErrExchangeInFlight
	}
	if c.retired.Load() {
		c.inflight.Store(false)
		return ErrConversationNotFound
	}
	return nil
}

func (c *ConversationService) release() {
	c.inflight.Store(false)
}

// retire limpia y cierra la conversación si no hay un turno en vuelo.
// Devuelve false si el turno está tomado; en ese caso no toca nada.
func (c *ConversationService) retire() bool {
	if !c.inflight.CompareAndSwap(false, true) {
		return false
	}
	defer c.inflight.Store(false)
	c.close()
	return true
}

// close retira la conversación aunque haya un turno en vuelo; ese turno se descarta.
func (c *ConversationService) close() {
	c.retired.Store(true)
	c.Clear()
}

// OpenNameDialog muestra el diálogo de nombre si todavía no hay sesión.
func (c *ConversationService) OpenNameDialog() {
	if _, ok := c.store.Session(); !ok {
		c.store.SetNameDialogVisible(true)
	}
}

// Start valida el nombre y crea la sesión. Los errores de validación no tocan la red.
func (c *ConversationService) Start(ctx context.Context, name string) error {
	trimmed, err := ValidateName(name)
	if err != nil {
		return err
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	c.store.SetUserName(trimmed)
	c.store.SetLoading(true)
	defer c.store.SetLoading(false)

	if !c.sessions.CreateSession(ctx, c.store, trimmed) {
		return ErrSessionCreateFailed
	}
	c.store.SetNameDialogVisible(false)
	c.store.SetChatOpen(true)
	return nil
}

// Send agrega el mensaje del usuario, ejecuta el turno y agrega exactamente una respuesta.
// El Outcome devuelto lleva el mensaje que quedó en el store, incluido el fallback de OutcomeEmpty;
// Message es nil si la conversación se limpió durante el turno.
func (c *ConversationService) Send(ctx context.Context, text string) (Outcome, error) {
	content, err := c.exchange.CheckContent(text)
	if err != nil {
		return Outcome{}, err
	}
	if err := c.acquire(); err != nil {
		return Outcome{}, err
	}
	defer c.release()
	session, ok := c.store.Session()
	if !ok {
		return Outcome{}, ErrNoSession
	}

	c.store.SetLoading(true)
	defer c.store.SetLoading(false)

	gen := c.generation.Load()
	userMsg := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   content,
		Timestamp: domain.Now(),
	}
	c.store.Append(userMsg)

	outcome := c.exchange.Exchange(ctx, userMsg, session.ID, c.store.Messages())
	if c.generation.Load() != gen {
		c.logger.Info("conversation cleared during exchange, reply discarded", zap.String("session_id", session.ID))
		return Outcome{Kind: outcome.Kind}, nil
	}

	// timeout y fallo de transporte también son respuestas y viajan al historial;
	// el fallback de una respuesta vacía queda sólo local
	if outcome.Kind == OutcomeEmpty {
		outcome.Message = c.exchange.assistantMessage(EmptyReplyText)
		c.store.Append(*outcome.Message)
		return outcome, nil
	}
	c.store.Append(*outcome.Message)
	c.syncHistory(session)
	return outcome, nil
}

// Regenerate repite el turno del mensaje de usuario anterior a index.
// Cualquier resultado con mensaje (respuesta, timeout o fallo de transporte) reemplaza la cola;
// una respuesta vacía deja el estado intacto.
func (c *ConversationService) Regenerate(ctx context.Context, index int) (Outcome, error) {
	if err := c.acquire(); err != nil {
		return Outcome{}, err
	}
	defer c.release()
	session, ok := c.store.Session()
	if !ok {
		return Outcome{}, ErrNoSession
	}

	msgs := c.store.Messages()
	if index <= 0 || index >= len(msgs) ||
		msgs[index].Role != domain.RoleAssistant ||
		msgs[index-1].Role != domain.RoleUser {
		return Outcome{}, ErrInvalidRegenerateIndex
	}

	c.store.SetLoading(true)
	defer c.store.SetLoading(false)

	gen := c.generation.Load()
	userMsg := msgs[index-1]
	prior := msgs[:index-1]

	outcome := c.exchange.Exchange(ctx, userMsg, session.ID, prior)
	if outcome.Message == nil {
		c.logger.Warn("regenerate produced no reply", zap.Stringer("outcome", outcome.Kind), zap.Int("index", index))
		return outcome, nil
	}
	if c.generation.Load() != gen {
		c.logger.Info("conversation cleared during regenerate, reply discarded", zap.String("session_id", session.ID))
		return Outcome{Kind: outcome.Kind}, nil
	}
	if err := c.store.ReplaceFrom(index-1, []domain.Message{userMsg, *outcome.Message}); err != nil {
		return Outcome{}, err
	}
	c.syncHistory(session)
	return outcome, nil
}

// syncHistory refleja los mensajes en el historial de la sesión y lo empuja al gateway.
func (c *ConversationService) syncHistory(session domain.Session) {
	history := c.store.Messages()
	session.History = history
	c.store.SetSession(session)
	c.exchange.PushHistory(session.ID, history)
}

// CopyText devuelve el contenido copiable del mensaje en index.
func (c *ConversationService) CopyText(index int) (string, error) {
	msgs := c.store.Messages()
	if index < 0 || index >= len(msgs) {
		return "", ErrInvalidMessageIndex
	}
	return copyText(msgs[index].Content), nil
}

func (c *ConversationService) State() domain.ConversationState {
	return c.store.Snapshot()
}

func (c *ConversationService) SessionID() string {
	session, ok := c.store.Session()
	if !ok {
		return ""
	}
	return session.ID
}

// Clear abandona la conversación; una respuesta tardía en vuelo se descarta.
func (c *ConversationService) Clear() {
	c.generation.Add(1)
	c.store.Clear()
}
