package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"reze-chat/internal/domain"
	"reze-chat/internal/gateway"
	"reze-chat/internal/repository"
)

func TestConversationStart_ValidationSkipsNetwork(t *testing.T) {
	gw := &gateway.MockClient{}
	conv, _ := newReadyConversation(gw, time.Second)

	if err := conv.Start(context.Background(), "A"); !errors.Is(err, ErrNameTooShort) {
		t.Fatalf("expected ErrNameTooShort, got %v", err)
	}
	if err := conv.Start(context.Background(), ""); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if len(gw.CreateSeeds()) != 0 {
		t.Fatalf("validation failure must not reach the gateway")
	}
}

func TestConversationStart_Success(t *testing.T) {
	gw := &gateway.MockClient{
		CreateResponse: gateway.CreateSessionResponse{Success: true, SessionID: "abc"},
		SendResponse:   replyResponse("welcome"),
	}
	exchange := newTestExchange(gw, time.Second)
	store := repository.NewMemoryConversationStore()
	conv := NewConversationService(store, NewSessionService(gw, exchange, nil), exchange, nil)
	conv.OpenNameDialog()

	if !store.Snapshot().NameDialogVisible {
		t.Fatalf("expected name dialog visible before start")
	}
	if err := conv.Start(context.Background(), "Al"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	state := conv.State()
	if state.NameDialogVisible || !state.ChatOpen || state.IsLoading {
		t.Fatalf("unexpected state after start %+v", state)
	}
	if state.UserName != "Al" || conv.SessionID() != "abc" || len(state.Messages) != 2 {
		t.Fatalf("unexpected state after start %+v", state)
	}
}

func TestConversationStart_Failure(t *testing.T) {
	gw := &gateway.MockClient{CreateErr: errors.New("boom")}
	exchange := newTestExchange(gw, time.Second)
	store := repository.NewMemoryConversationStore()
	conv := NewConversationService(store, NewSessionService(gw, exchange, nil), exchange, nil)

	err := conv.Start(context.Background(), "Al")
	if !errors.Is(err, ErrSessionCreateFailed) {
		t.Fatalf("expected ErrSessionCreateFailed, got %v", err)
	}
	if UserMessage(err, 0) != "Failed to create session. Please try again." {
		t.Fatalf("unexpected user text %q", UserMessage(err, 0))
	}
	if store.Loading() {
		t.Fatalf("loading must be cleared after failure")
	}
}

func TestConversationSend_TwoTurnsAppendFour(t *testing.T) {
	updated := make(chan gateway.UpdateCall, 4)
	gw := &gateway.MockClient{SendResponse: replyResponse("reply"), Updated: updated}
	conv, store := newReadyConversation(gw, time.Second)

	for _, text := range []string{"first", "second"} {
		out, err := conv.Send(context.Background(), text)
		if err != nil || out.Kind != OutcomeReply {
			t.Fatalf("send %q: expected reply, got %+v, %v", text, out, err)
		}
	}

	msgs := store.Messages()
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	wantRoles := []domain.Role{domain.RoleUser, domain.RoleAssistant, domain.RoleUser, domain.RoleAssistant}
	for i, role := range wantRoles {
		if msgs[i].Role != role {
			t.Fatalf("message %d: expected %s, got %s", i, role, msgs[i].Role)
		}
	}
	if msgs[0].Content != "first" || msgs[2].Content != "second" {
		t.Fatalf("unexpected send order %+v", msgs)
	}

	sends := gw.Sends()
	if len(sends[1].History) != 3 || sends[1].History[2].Content != "second" {
		t.Fatalf("expected history including the new user message, got %+v", sends[1].History)
	}

	// los push son asíncronos y pueden llegar en cualquier orden
	first, second := waitUpdate(t, updated), waitUpdate(t, updated)
	if len(first.History)+len(second.History) != 6 {
		t.Fatalf("expected pushes of 2 and 4 messages, got %d and %d", len(first.History), len(second.History))
	}
	session, _ := store.Session()
	if len(session.History) != 4 {
		t.Fatalf("expected session mirror updated, got %d", len(session.History))
	}
}

func TestConversationSend_EmptyOutcomeAppendsFallback(t *testing.T) {
	updated := make(chan gateway.UpdateCall, 1)
	gw := &gateway.MockClient{SendResponse: gateway.SendMessageResponse{Success: true}, Updated: updated}
	conv, store := newReadyConversation(gw, time.Second)

	out, err := conv.Send(context.Background(), "hola")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Kind != OutcomeEmpty || out.Message == nil || out.Message.Content != EmptyReplyText {
		t.Fatalf("expected empty outcome with fallback, got %+v", out)
	}
	msgs := store.Messages()
	if len(msgs) != 2 || msgs[1].Content != "Sorry, I could not process your message. Please try again." {
		t.Fatalf("expected user + fallback, got %+v", msgs)
	}
	expectNoUpdate(t, updated)
}

func TestConversationSend_TimeoutClearsLoading(t *testing.T) {
	gw := &gateway.MockClient{
		SendFunc: func(ctx context.Context, _ gateway.SendMessageRequest) (gateway.SendMessageResponse, error) {
			select {
			case <-ctx.Done():
				return gateway.SendMessageResponse{}, ctx.Err()
			case <-time.After(time.Second):
				return replyResponse("late"), nil
			}
		},
	}
	conv, store := newReadyConversation(gw, 20*time.Millisecond)

	out, err := conv.Send(context.Background(), "a long question")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Kind != OutcomeTimeout || out.Message.Content != TimeoutReplyText {
		t.Fatalf("expected timeout apology, got %+v", out)
	}
	if store.Loading() {
		t.Fatalf("loading must be false after timeout")
	}
	msgs := store.Messages()
	if len(msgs) != 2 || msgs[1].Content != TimeoutReplyText {
		t.Fatalf("expected user + timeout apology, got %+v", msgs)
	}
}

func TestConversationSend_LoadingSpansExchangeAndGuardsConcurrency(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	gw := &gateway.MockClient{
		SendFunc: func(_ context.Context, _ gateway.SendMessageRequest) (gateway.SendMessageResponse, error) {
			started <- struct{}{}
			<-release
			return replyResponse("ok"), nil
		},
	}
	conv, store := newReadyConversation(gw, time.Second)

	if store.Loading() {
		t.Fatalf("loading must start false")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = conv.Send(context.Background(), "first")
	}()

	<-started
	if !store.Loading() {
		t.Fatalf("loading must be true while exchange is in flight")
	}
	if _, err := conv.Send(context.Background(), "second"); !errors.Is(err, ErrExchangeInFlight) {
		t.Fatalf("expected ErrExchangeInFlight, got %v", err)
	}
	if _, err := conv.Regenerate(context.Background(), 1); !errors.Is(err, ErrExchangeInFlight) {
		t.Fatalf("expected ErrExchangeInFlight for regenerate, got %v", err)
	}

	close(release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first send failed: %v", firstErr)
	}
	if store.Loading() {
		t.Fatalf("loading must be false after settlement")
	}
	if len(store.Messages()) != 2 {
		t.Fatalf("rejected send must not touch the store, got %+v", store.Messages())
	}
}

func TestConversationSend_Validation(t *testing.T) {
	gw := &gateway.MockClient{SendResponse: replyResponse("ok")}
	conv, store := newReadyConversation(gw, time.Second)

	if _, err := conv.Send(context.Background(), strings.Repeat("x", 2001)); !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("expected ErrContentTooLong, got %v", err)
	}
	if _, err := conv.Send(context.Background(), "  "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if len(store.Messages()) != 0 || len(gw.Sends()) != 0 {
		t.Fatalf("validation failures must not touch store or gateway")
	}

	noSession := NewConversationService(repository.NewMemoryConversationStore(), nil, newTestExchange(gw, time.Second), nil)
	if _, err := noSession.Send(context.Background(), "hola"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func seedConversation(store *repository.MemoryConversationStore) {
	store.SetMessages([]domain.Message{
		{ID: "u0", Role: domain.RoleUser, Content: "q0"},
		{ID: "a0", Role: domain.RoleAssistant, Content: "r0"},
		{ID: "u1", Role: domain.RoleUser, Content: "q1"},
		{ID: "a1", Role: domain.RoleAssistant, Content: "r1"},
	})
}

func TestConversationRegenerate_ReplacesTail(t *testing.T) {
	updated := make(chan gateway.UpdateCall, 1)
	gw := &gateway.MockClient{SendResponse: replyResponse("r1 again"), Updated: updated}
	conv, store := newReadyConversation(gw, time.Second)
	seedConversation(store)

	out, err := conv.Regenerate(context.Background(), 3)
	if err != nil || out.Kind != OutcomeReply {
		t.Fatalf("expected reply, got %+v, %v", out, err)
	}

	msgs := store.Messages()
	if len(msgs) != 4 || msgs[0].ID != "u0" || msgs[1].ID != "a0" {
		t.Fatalf("prefix must be untouched, got %+v", msgs)
	}
	if msgs[2].ID != "u1" || msgs[3].Content != "r1 again" {
		t.Fatalf("unexpected tail %+v", msgs[2:])
	}

	sends := gw.Sends()
	if sends[0].Message != "q1" || len(sends[0].History) != 2 || sends[0].History[1].ID != "a0" {
		t.Fatalf("expected truncated history before the user message, got %+v", sends[0])
	}
	call := waitUpdate(t, updated)
	if len(call.History) != 4 || call.History[3].Content != "r1 again" {
		t.Fatalf("expected updated history pushed, got %+v", call.History)
	}
}

func TestConversationRegenerate_DropsLaterMessages(t *testing.T) {
	gw := &gateway.MockClient{SendResponse: replyResponse("r0 again")}
	conv, store := newReadyConversation(gw, time.Second)
	seedConversation(store)

	if _, err := conv.Regenerate(context.Background(), 1); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	msgs := store.Messages()
	if len(msgs) != 2 || msgs[0].ID != "u0" || msgs[1].Content != "r0 again" {
		t.Fatalf("expected tail from index 0 replaced, got %+v", msgs)
	}
}

func TestConversationRegenerate_InvalidIndex(t *testing.T) {
	gw := &gateway.MockClient{SendResponse: replyResponse("x")}
	conv, store := newReadyConversation(gw, time.Second)
	seedConversation(store)

	for _, idx := range []int{0, 2, 4, -1} {
		if _, err := conv.Regenerate(context.Background(), idx); !errors.Is(err, ErrInvalidRegenerateIndex) {
			t.Fatalf("index %d: expected ErrInvalidRegenerateIndex, got %v", idx, err)
		}
	}
	if len(gw.Sends()) != 0 {
		t.Fatalf("invalid regenerate must not reach the gateway")
	}
}

func TestConversationRegenerate_TransportFailureReplacesTail(t *testing.T) {
	updated := make(chan gateway.UpdateCall, 1)
	gw := &gateway.MockClient{SendErr: errors.New("down"), Updated: updated}
	conv, store := newReadyConversation(gw, time.Second)
	seedConversation(store)

	out, err := conv.Regenerate(context.Background(), 3)
	if err != nil || out.Kind != OutcomeTransportFailure {
		t.Fatalf("expected transport failure outcome, got %+v, %v", out, err)
	}
	msgs := store.Messages()
	if len(msgs) != 4 || msgs[2].ID != "u1" || msgs[3].Content != TransportFailureText {
		t.Fatalf("expected apology in place of the regenerated reply, got %+v", msgs)
	}
	if store.Loading() {
		t.Fatalf("loading must be cleared")
	}
	call := waitUpdate(t, updated)
	if len(call.History) != 4 || call.History[3].Content != TransportFailureText {
		t.Fatalf("expected apology pushed to history, got %+v", call.History)
	}
}

func TestConversationRegenerate_TimeoutReplacesTail(t *testing.T) {
	updated := make(chan gateway.UpdateCall, 2)
	calls := 0
	gw := &gateway.MockClient{
		Updated: updated,
		SendFunc: func(ctx context.Context, _ gateway.SendMessageRequest) (gateway.SendMessageResponse, error) {
			calls++
			if calls == 1 {
				return replyResponse("first"), nil
			}
			<-ctx.Done()
			return gateway.SendMessageResponse{}, ctx.Err()
		},
	}
	conv, store := newReadyConversation(gw, 20*time.Millisecond)

	if _, err := conv.Send(context.Background(), "hola"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	waitUpdate(t, updated)

	out, err := conv.Regenerate(context.Background(), 1)
	if err != nil || out.Kind != OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %+v, %v", out, err)
	}
	msgs := store.Messages()
	if len(msgs) != 2 || msgs[0].Content != "hola" || msgs[1].Content != TimeoutReplyText {
		t.Fatalf("expected timeout apology replacing the reply, got %+v", msgs)
	}
	call := waitUpdate(t, updated)
	if len(call.History) != 2 || call.History[1].Content != TimeoutReplyText {
		t.Fatalf("expected timeout apology pushed, got %+v", call.History)
	}
	session, _ := store.Session()
	if len(session.History) != 2 || session.History[1].Content != TimeoutReplyText {
		t.Fatalf("expected session mirror updated, got %+v", session.History)
	}
}

func TestConversationRegenerate_EmptyLeavesStateUntouched(t *testing.T) {
	updated := make(chan gateway.UpdateCall, 1)
	gw := &gateway.MockClient{SendResponse: gateway.SendMessageResponse{Success: false}, Updated: updated}
	conv, store := newReadyConversation(gw, time.Second)
	seedConversation(store)
	before := store.Messages()

	out, err := conv.Regenerate(context.Background(), 3)
	if err != nil || out.Kind != OutcomeEmpty || out.Message != nil {
		t.Fatalf("expected empty outcome, got %+v, %v", out, err)
	}
	after := store.Messages()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("state changed at %d: %+v -> %+v", i, before[i], after[i])
		}
	}
	expectNoUpdate(t, updated)
}

func TestConversationSend_FallbackKeepsHistoryInSync(t *testing.T) {
	updated := make(chan gateway.UpdateCall, 2)
	calls := 0
	gw := &gateway.MockClient{
		Updated: updated,
		SendFunc: func(_ context.Context, _ gateway.SendMessageRequest) (gateway.SendMessageResponse, error) {
			calls++
			if calls == 1 {
				return replyResponse("first"), nil
			}
			return gateway.SendMessageResponse{}, errors.New("connection reset")
		},
	}
	conv, store := newReadyConversation(gw, time.Second)

	if _, err := conv.Send(context.Background(), "hola"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	waitUpdate(t, updated)

	out, err := conv.Send(context.Background(), "otra")
	if err != nil || out.Kind != OutcomeTransportFailure {
		t.Fatalf("expected transport failure, got %+v, %v", out, err)
	}
	call := waitUpdate(t, updated)
	if len(call.History) != 4 || call.History[3].Content != TransportFailureText {
		t.Fatalf("expected apology pushed, got %+v", call.History)
	}
	session, _ := store.Session()
	if len(session.History) != len(store.Messages()) {
		t.Fatalf("session mirror drifted: %d vs %d", len(session.History), len(store.Messages()))
	}
}

func TestConversationClear_DiscardsInFlightReply(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	gw := &gateway.MockClient{
		SendFunc: func(_ context.Context, _ gateway.SendMessageRequest) (gateway.SendMessageResponse, error) {
			started <- struct{}{}
			<-release
			return replyResponse("ok"), nil
		},
	}
	conv, store := newReadyConversation(gw, time.Second)

	done := make(chan struct{})
	var out Outcome
	go func() {
		defer close(done)
		out, _ = conv.Send(context.Background(), "hola")
	}()
	<-started
	conv.Clear()
	close(release)
	<-done

	if out.Message != nil {
		t.Fatalf("discarded reply must not be reported, got %+v", out.Message)
	}
	if len(store.Messages()) != 0 {
		t.Fatalf("reply must be discarded after clear, got %+v", store.Messages())
	}
	if _, ok := store.Session(); ok {
		t.Fatalf("expected no session after clear")
	}
}

func TestConversationCopyText(t *testing.T) {
	conv, store := newReadyConversation(&gateway.MockClient{}, time.Second)
	store.Append(domain.Message{Role: domain.RoleAssistant, Content: " line one\n\nline   two "})

	got, err := conv.CopyText(0)
	if err != nil || got != "line one line two" {
		t.Fatalf("unexpected copy text %q, %v", got, err)
	}
	if _, err := conv.CopyText(1); !errors.Is(err, ErrInvalidMessageIndex) {
		t.Fatalf("expected ErrInvalidMessageIndex, got %v", err)
	}
}
