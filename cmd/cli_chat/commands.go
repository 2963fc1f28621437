package main

import (
	"fmt"
	"strconv"
	"strings"
)

type commandKind int

const (
	commandNone commandKind = iota
	commandSend
	commandRegenerate
	commandCopy
	commandClear
	commandExit
)

type command struct {
	kind  commandKind
	text  string
	index int
}

// parseCommand interpreta una línea del prompt. Lo que no empieza con "/" es un mensaje.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: commandNone}, nil
	}
	if isExit(line) {
		return command{kind: commandExit}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: commandSend, text: line}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/clear":
		return command{kind: commandClear}, nil
	case "/regen", "/copy":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("uso: %s N", fields[0])
		}
		index, err := strconv.Atoi(fields[1])
		if err != nil || index < 0 {
			return command{}, fmt.Errorf("índice inválido: %q", fields[1])
		}
		kind := commandCopy
		if fields[0] == "/regen" {
			kind = commandRegenerate
		}
		return command{kind: kind, index: index}, nil
	default:
		return command{}, fmt.Errorf("comando desconocido: %s", fields[0])
	}
}
