package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"reze-chat/internal/gateway"
)

func newTestRegistry(gw *gateway.MockClient, ttl time.Duration) *ConversationRegistry {
	exchange := newTestExchange(gw, time.Second)
	return NewConversationRegistry(NewSessionService(gw, exchange, nil), exchange, zap.NewNop(), ttl)
}

func TestConversationRegistry_OpenGetRemove(t *testing.T) {
	gw := &gateway.MockClient{
		CreateResponse: gateway.CreateSessionResponse{Success: true, SessionID: "abc"},
		SendResponse:   replyResponse("welcome"),
	}
	reg := newTestRegistry(gw, time.Hour)

	conv, err := reg.Open(context.Background(), "Al")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got, err := reg.Get("abc")
	if err != nil || got != conv {
		t.Fatalf("expected registered conversation, got %v, %v", got, err)
	}
	if err := reg.Remove("abc"); err != nil {
		t.Fatalf("expected remove ok, got %v", err)
	}
	if _, err := reg.Get("abc"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
	if len(conv.State().Messages) != 0 {
		t.Fatalf("removed conversation must be cleared")
	}
	if err := reg.Remove("abc"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
}

func TestConversationRegistry_OpenFailureNotRegistered(t *testing.T) {
	gw := &gateway.MockClient{CreateResponse: gateway.CreateSessionResponse{Success: false}}
	reg := newTestRegistry(gw, time.Hour)

	if _, err := reg.Open(context.Background(), "Al"); !errors.Is(err, ErrSessionCreateFailed) {
		t.Fatalf("expected ErrSessionCreateFailed, got %v", err)
	}
	if _, err := reg.Open(context.Background(), "A"); !errors.Is(err, ErrNameTooShort) {
		t.Fatalf("expected ErrNameTooShort, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
}

func TestConversationRegistry_EvictIdle(t *testing.T) {
	gw := &gateway.MockClient{
		CreateResponse: gateway.CreateSessionResponse{Success: true, SessionID: "abc"},
		SendResponse:   replyResponse("welcome"),
	}
	reg := newTestRegistry(gw, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	if _, err := reg.Open(context.Background(), "Al"); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	now = now.Add(30 * time.Second)
	if n := reg.EvictIdle(); n != 0 {
		t.Fatalf("expected nothing evicted inside ttl, got %d", n)
	}

	now = now.Add(2 * time.Minute)
	if n := reg.EvictIdle(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestConversationRegistry_EvictedConversationRejectsTurns(t *testing.T) {
	gw := &gateway.MockClient{
		CreateResponse: gateway.CreateSessionResponse{Success: true, SessionID: "abc"},
		SendResponse:   replyResponse("welcome"),
	}
	reg := newTestRegistry(gw, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	if _, err := reg.Open(context.Background(), "Al"); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	conv, err := reg.Get("abc")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	sendsBefore := len(gw.Sends())

	now = now.Add(2 * time.Minute)
	if n := reg.EvictIdle(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}

	if _, err := conv.Send(context.Background(), "hola"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	if _, err := conv.Regenerate(context.Background(), 1); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound for regenerate, got %v", err)
	}
	if len(gw.Sends()) != sendsBefore {
		t.Fatalf("evicted conversation must not reach the gateway")
	}
}

func TestConversationRegistry_EvictIdleSkipsInFlight(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	calls := 0
	gw := &gateway.MockClient{
		CreateResponse: gateway.CreateSessionResponse{Success: true, SessionID: "abc"},
		SendFunc: func(_ context.Context, _ gateway.SendMessageRequest) (gateway.SendMessageResponse, error) {
			calls++
			if calls > 1 {
				started <- struct{}{}
				<-release
			}
			return replyResponse("ok"), nil
		},
	}
	reg := newTestRegistry(gw, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	conv, err := reg.Open(context.Background(), "Al")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := conv.Send(context.Background(), "hola")
		done <- err
	}()
	<-started

	now = now.Add(2 * time.Minute)
	if n := reg.EvictIdle(); n != 0 {
		t.Fatalf("conversation with a turn in flight must not be evicted, got %d", n)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(conv.State().Messages) != 4 {
		t.Fatalf("expected reply applied, got %+v", conv.State().Messages)
	}
}
