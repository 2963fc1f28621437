package service

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	reExcessNewlines = regexp.MustCompile(`\n{3,}`)
	reExcessSpaces   = regexp.MustCompile(` {2,}`)
)

// NormalizeContent limpia la respuesta del asistente. Es idempotente.
func NormalizeContent(raw string) string {
	s := strings.TrimSpace(raw)
	s = reExcessNewlines.ReplaceAllString(s, "\n\n")
	s = reExcessSpaces.ReplaceAllString(s, " ")
	return s
}

// contentText extrae el texto del campo message; los valores no string se usan en su forma JSON.
func contentText(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s, s != ""
	}
	return string(trimmed), true
}

// copyText es el texto que se copia al portapapeles: espacios colapsados a uno.
func copyText(content string) string {
	return strings.Join(strings.Fields(content), " ")
}
