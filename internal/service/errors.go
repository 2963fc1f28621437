package service

import (
	"errors"
	"fmt"
)

var (
	ErrNameRequired           = errors.New("name required")
	ErrNameTooShort           = errors.New("name too short")
	ErrSessionCreateFailed    = errors.New("session create failed")
	ErrEmptyContent           = errors.New("message content empty")
	ErrContentTooLong         = errors.New("message content too long")
	ErrNoSession              = errors.New("conversation has no session")
	ErrExchangeInFlight       = errors.New("exchange already in flight")
	ErrInvalidRegenerateIndex = errors.New("invalid regenerate index")
	ErrInvalidMessageIndex    = errors.New("invalid message index")
)

// Textos visibles para el usuario.
const (
	NameRequiredText        = "Name is required to start chatting"
	NameTooShortText        = "Name must be at least 2 characters long"
	SessionCreateFailedText = "Failed to create session. Please try again."
	TimeoutReplyText        = "Sorry, the request took too long to process. This might happen with complex questions. Please try again with a shorter message."
	TransportFailureText    = "Sorry, I encountered an error while processing your message. Please try again."
	EmptyReplyText          = "Sorry, I could not process your message. Please try again."
)

// UserMessage traduce un error del servicio al texto que muestra la UI.
func UserMessage(err error, maxLength int) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNameRequired):
		return NameRequiredText
	case errors.Is(err, ErrNameTooShort):
		return NameTooShortText
	case errors.Is(err, ErrSessionCreateFailed):
		return SessionCreateFailedText
	case errors.Is(err, ErrEmptyContent):
		return "Message cannot be empty"
	case errors.Is(err, ErrContentTooLong):
		return fmt.Sprintf("Message must be at most %d characters", maxLength)
	case errors.Is(err, ErrNoSession):
		return "Start a chat before sending messages"
	case errors.Is(err, ErrExchangeInFlight):
		return "Please wait for the current reply"
	case errors.Is(err, ErrInvalidRegenerateIndex):
		return "Only assistant replies can be regenerated"
	case errors.Is(err, ErrInvalidMessageIndex):
		return "Message not found"
	case errors.Is(err, ErrConversationNotFound):
		return "Chat session not found. Please start a new chat."
	default:
		return "Something went wrong. Please try again."
	}
}
