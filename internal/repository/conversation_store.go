package repository

import (
	"errors"
	"sync"

	"reze-chat/internal/domain"
)

var ErrIndexOutOfRange = errors.New("message index out of range")

// ConversationStore es la única vía para mutar el estado que ve la capa de presentación.
type ConversationStore interface {
	Append(msg domain.Message)
	ReplaceFrom(index int, msgs []domain.Message) error
	SetMessages(msgs []domain.Message)
	Messages() []domain.Message
	SetLoading(loading bool)
	Loading() bool
	SetSession(session domain.Session)
	Session() (domain.Session, bool)
	SetUserName(name string)
	SetNameDialogVisible(visible bool)
	SetChatOpen(open bool)
	Snapshot() domain.ConversationState
	Clear()
}

type MemoryConversationStore struct {
	mu    sync.RWMutex
	state domain.ConversationState
}

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		state: domain.ConversationState{Messages: []domain.Message{}},
	}
}

func (s *MemoryConversationStore) Append(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Messages = append(s.state.Messages, msg)
}

// ReplaceFrom sustituye atómicamente la cola a partir de index.
func (s *MemoryConversationStore) ReplaceFrom(index int, msgs []domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index > len(s.state.Messages) {
		return ErrIndexOutOfRange
	}
	next := make([]domain.Message, 0, index+len(msgs))
	next = append(next, s.state.Messages[:index]...)
	next = append(next, msgs...)
	s.state.Messages = next
	return nil
}

func (s *MemoryConversationStore) SetMessages(msgs []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Messages = domain.CloneMessages(msgs)
}

func (s *MemoryConversationStore) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneMessages(s.state.Messages)
}

func (s *MemoryConversationStore) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsLoading = loading
}

func (s *MemoryConversationStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsLoading
}

func (s *MemoryConversationStore) SetSession(session domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.History = domain.CloneMessages(session.History)
	s.state.Session = &session
}

func (s *MemoryConversationStore) Session() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Session == nil {
		return domain.Session{}, false
	}
	out := *s.state.Session
	out.History = domain.CloneMessages(out.History)
	return out, true
}

func (s *MemoryConversationStore) SetUserName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.UserName = name
}

func (s *MemoryConversationStore) SetNameDialogVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.NameDialogVisible = visible
}

func (s *MemoryConversationStore) SetChatOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ChatOpen = open
}

// Snapshot devuelve una copia profunda del estado actual.
func (s *MemoryConversationStore) Snapshot() domain.ConversationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Messages = domain.CloneMessages(s.state.Messages)
	if s.state.Session != nil {
		sess := *s.state.Session
		sess.History = domain.CloneMessages(sess.History)
		out.Session = &sess
	}
	return out
}

func (s *MemoryConversationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.ConversationState{Messages: []domain.Message{}}
}
