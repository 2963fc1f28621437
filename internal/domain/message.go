package domain

import "time"

// Role identifica al autor de un mensaje dentro de la conversación.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TimestampLayout es el formato ISO-8601 con milisegundos usado para timestamps locales.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type Message struct {
	ID        string `json:"id,omitempty"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Now devuelve el instante actual formateado como timestamp de mensaje.
func Now() string {
	return FormatTimestamp(time.Now())
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// CloneMessages copia un slice de mensajes para que el llamador no comparta el array subyacente.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
