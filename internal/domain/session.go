package domain

// Session es la sesión emitida por el gateway; ID nunca se genera localmente.
type Session struct {
	ID      string    `json:"session_id"`
	History []Message `json:"history"`
}
