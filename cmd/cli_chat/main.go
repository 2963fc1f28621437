package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.design/x/clipboard"

	"reze-chat/internal/config"
	"reze-chat/internal/domain"
	"reze-chat/internal/gateway"
	"reze-chat/internal/service"
)

var (
	userColor      = color.New(color.Bold)
	assistantColor = color.New(color.FgCyan)
	systemColor    = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed)
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	gw := gateway.NewHTTPClient(cfg.GatewayBaseURL, nil, logger)
	exchangeSvc := service.NewExchangeService(gw, logger, cfg.ExchangeTimeout, cfg.HistoryPushTimeout, cfg.MaxMessageLength)
	sessionSvc := service.NewSessionService(gw, exchangeSvc, logger)
	registry := service.NewConversationRegistry(sessionSvc, exchangeSvc, logger, cfg.ConversationTTL)
	defer exchangeSvc.WaitPushes()

	// sin display (ssh, contenedores) /copy sólo imprime el texto
	clipboardReady := clipboard.Init() == nil
	if !clipboardReady {
		logger.Info("clipboard unavailable, /copy will print only")
	}

	for {
		conv := registry.NewConversation()
		conv.OpenNameDialog()
		if !startFlow(ctx, reader, conv, cfg.MaxMessageLength) {
			return
		}
		if !chatFlow(ctx, reader, conv, cfg.MaxMessageLength, clipboardReady) {
			return
		}
	}
}

// startFlow pide el nombre hasta crear la sesión. Devuelve false si el usuario sale.
func startFlow(ctx context.Context, reader *bufio.Reader, conv *service.ConversationService, maxLength int) bool {
	for {
		fmt.Print("Tu nombre: ")
		name, err := readLine(reader)
		if err != nil || isExit(name) {
			return false
		}
		if err := conv.Start(ctx, name); err != nil {
			errorColor.Println(service.UserMessage(err, maxLength))
			continue
		}
		printMessages(conv.State().Messages, 0)
		return true
	}
}

// chatFlow corre el loop de conversación. Devuelve false si el usuario sale, true tras /clear.
func chatFlow(ctx context.Context, reader *bufio.Reader, conv *service.ConversationService, maxLength int, clipboardReady bool) bool {
	systemColor.Println("---- escribe 'exit' para salir, /regen N, /copy N o /clear ----")
	for {
		userColor.Print("Tu > ")
		line, err := readLine(reader)
		if err != nil {
			return false
		}

		cmd, err := parseCommand(line)
		if err != nil {
			errorColor.Println(err)
			continue
		}

		switch cmd.kind {
		case commandNone:
			continue
		case commandExit:
			systemColor.Println("Saliendo del chat...")
			return false
		case commandClear:
			conv.Clear()
			systemColor.Println("Conversación descartada.")
			return true
		case commandCopy:
			text, err := conv.CopyText(cmd.index)
			if err != nil {
				errorColor.Println(service.UserMessage(err, maxLength))
				continue
			}
			fmt.Println(text)
			if clipboardReady {
				clipboard.Write(clipboard.FmtText, []byte(text))
				systemColor.Println("Copiado al portapapeles.")
			}
		case commandRegenerate:
			before := len(conv.State().Messages)
			outcome, err := conv.Regenerate(ctx, cmd.index)
			if err != nil {
				errorColor.Println(service.UserMessage(err, maxLength))
				continue
			}
			if outcome.Message == nil {
				errorColor.Printf("No se pudo regenerar (%s)\n", outcome.Kind)
				continue
			}
			msgs := conv.State().Messages
			printMessages(msgs, len(msgs)-1)
			if len(msgs) < before {
				systemColor.Printf("%d mensajes posteriores descartados\n", before-len(msgs))
			}
		case commandSend:
			before := len(conv.State().Messages)
			if _, err := conv.Send(ctx, cmd.text); err != nil {
				errorColor.Println(service.UserMessage(err, maxLength))
				continue
			}
			// el mensaje del usuario ya se vio al tipearlo
			printMessages(conv.State().Messages, before+1)
		}
	}
}

func printMessages(msgs []domain.Message, from int) {
	for i := from; i < len(msgs); i++ {
		msg := msgs[i]
		if msg.Role == domain.RoleUser {
			userColor.Printf("[%d] Tu > %s\n", i, msg.Content)
			continue
		}
		assistantColor.Printf("[%d] Reze > %s\n", i, msg.Content)
	}
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func isExit(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "exit" || s == "salir"
}
