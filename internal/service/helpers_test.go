package service

import (
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"reze-chat/internal/domain"
	"reze-chat/internal/gateway"
	"reze-chat/internal/repository"
)

func replyResponse(text string) gateway.SendMessageResponse {
	raw, _ := json.Marshal(text)
	return gateway.SendMessageResponse{Success: true, Message: raw, Timestamp: "2025-01-01T10:00:00.000Z"}
}

func newTestExchange(gw gateway.Client, timeout time.Duration) *ExchangeService {
	return NewExchangeService(gw, zap.NewNop(), timeout, time.Second, DefaultMaxContentLength)
}

// newReadyConversation devuelve una conversación con sesión s1 y sin mensajes.
func newReadyConversation(gw *gateway.MockClient, timeout time.Duration) (*ConversationService, *repository.MemoryConversationStore) {
	exchange := newTestExchange(gw, timeout)
	sessions := NewSessionService(gw, exchange, zap.NewNop())
	store := repository.NewMemoryConversationStore()
	store.SetSession(domain.Session{ID: "s1", History: []domain.Message{}})
	return NewConversationService(store, sessions, exchange, zap.NewNop()), store
}

func waitUpdate(t *testing.T, ch chan gateway.UpdateCall) gateway.UpdateCall {
	t.Helper()
	select {
	case call := <-ch:
		return call
	case <-time.After(2 * time.Second):
		t.Fatalf("expected history push")
	}
	return gateway.UpdateCall{}
}

func expectNoUpdate(t *testing.T, ch chan gateway.UpdateCall) {
	t.Helper()
	select {
	case call := <-ch:
		t.Fatalf("unexpected history push %+v", call)
	case <-time.After(50 * time.Millisecond):
	}
}
