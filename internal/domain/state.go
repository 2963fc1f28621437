package domain

// ConversationState es la vista que consume la capa de presentación.
type ConversationState struct {
	UserName          string    `json:"user_name,omitempty"`
	Session           *Session  `json:"session,omitempty"`
	Messages          []Message `json:"messages"`
	IsLoading         bool      `json:"is_loading"`
	NameDialogVisible bool      `json:"name_dialog_visible"`
	ChatOpen          bool      `json:"chat_open"`
}
