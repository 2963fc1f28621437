package gateway

import (
	"context"
	"sync"

	"reze-chat/internal/domain"
)

// UpdateCall registra una llamada a UpdateHistory.
type UpdateCall struct {
	SessionID string
	History   []domain.Message
}

// MockClient permite tests sin llamar al gateway real.
type MockClient struct {
	CreateResponse CreateSessionResponse
	CreateErr      error
	// SendFunc decide la respuesta de cada turno; si es nil responde SendResponse/SendErr.
	SendFunc     func(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error)
	SendResponse SendMessageResponse
	SendErr      error
	UpdateErr    error
	// Updated recibe una señal por cada UpdateHistory, si no es nil.
	Updated chan UpdateCall

	mu          sync.Mutex
	createSeeds [][]domain.Message
	sends       []SendMessageRequest
	updates     []UpdateCall
}

func (m *MockClient) CreateSession(_ context.Context, seed []domain.Message) (CreateSessionResponse, error) {
	m.mu.Lock()
	m.createSeeds = append(m.createSeeds, domain.CloneMessages(seed))
	m.mu.Unlock()
	return m.CreateResponse, m.CreateErr
}

func (m *MockClient) SendMessage(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error) {
	req.History = domain.CloneMessages(req.History)
	m.mu.Lock()
	m.sends = append(m.sends, req)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, req)
	}
	return m.SendResponse, m.SendErr
}

func (m *MockClient) UpdateHistory(_ context.Context, sessionID string, history []domain.Message) error {
	call := UpdateCall{SessionID: sessionID, History: domain.CloneMessages(history)}
	m.mu.Lock()
	m.updates = append(m.updates, call)
	m.mu.Unlock()
	if m.Updated != nil {
		m.Updated <- call
	}
	return m.UpdateErr
}

func (m *MockClient) CreateSeeds() [][]domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]domain.Message(nil), m.createSeeds...)
}

func (m *MockClient) Sends() []SendMessageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SendMessageRequest(nil), m.sends...)
}

func (m *MockClient) Updates() []UpdateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]UpdateCall(nil), m.updates...)
}
