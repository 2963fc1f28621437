package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"reze-chat/internal/repository"
)

const DefaultConversationTTL = 2 * time.Hour

var ErrConversationNotFound = errors.New("conversation not found")

type registryEntry struct {
	conv     *ConversationService
	lastSeen time.Time
}

// ConversationRegistry mantiene las conversaciones activas por session id del gateway.
// Nada se persiste: una conversación abandonada se desaloja por inactividad.
type ConversationRegistry struct {
	sessions *SessionService
	exchange *ExchangeService
	logger   *zap.Logger
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	items map[string]*registryEntry
}

func NewConversationRegistry(sessions *SessionService, exchange *ExchangeService, logger *zap.Logger, ttl time.Duration) *ConversationRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultConversationTTL
	}
	return &ConversationRegistry{
		sessions: sessions,
		exchange: exchange,
		logger:   logger,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*registryEntry),
	}
}

// NewConversation construye una conversación con su propio store en memoria.
func (r *ConversationRegistry) NewConversation() *ConversationService {
	return NewConversationService(repository.NewMemoryConversationStore(), r.sessions, r.exchange, r.logger)
}

// Open inicia una conversación para name y la registra bajo el session id emitido.
func (r *ConversationRegistry) Open(ctx context.Context, name string) (*ConversationService, error) {
	conv := r.NewConversation()
	conv.OpenNameDialog()
	if err := conv.Start(ctx, name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.items[conv.SessionID()] = &registryEntry{conv: conv, lastSeen: r.now()}
	r.mu.Unlock()
	return conv, nil
}

func (r *ConversationRegistry) Get(sessionID string) (*ConversationService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.items[sessionID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	entry.lastSeen = r.now()
	return entry.conv, nil
}

// Remove limpia la conversación y la olvida. No hay llamada de borrado al gateway.
func (r *ConversationRegistry) Remove(sessionID string) error {
	r.mu.Lock()
	entry, ok := r.items[sessionID]
	delete(r.items, sessionID)
	r.mu.Unlock()
	if !ok {
		return ErrConversationNotFound
	}
	entry.conv.close()
	return nil
}

func (r *ConversationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// EvictIdle desaloja conversaciones inactivas que no tengan un turno en vuelo.
// Una conversación desalojada rechaza los turnos posteriores con ErrConversationNotFound,
// aunque el llamador la haya obtenido con Get antes del desalojo.
func (r *ConversationRegistry) EvictIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for id, entry := range r.items {
		if now.Sub(entry.lastSeen) <= r.ttl {
			continue
		}
		if !entry.conv.retire() {
			continue
		}
		delete(r.items, id)
		removed++
	}
	return removed
}

// Run ejecuta EvictIdle periódicamente hasta que ctx termine.
func (r *ConversationRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(); n > 0 {
				r.logger.Info("idle conversations evicted", zap.Int("count", n))
			}
		}
	}
}
