package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"reze-chat/internal/domain"
)

// DefaultBaseURL apunta al gateway público del asistente.
const DefaultBaseURL = "https://api.team-ax.top/reze-ai"

const (
	createSessionPath = "/sessionID.php?action=create"
	sendMessagePath   = "/"
	updateSessionPath = "/sessionID.php?action=update&session_id="
)

// Client define el contrato consumido del gateway remoto.
type Client interface {
	CreateSession(ctx context.Context, seed []domain.Message) (CreateSessionResponse, error)
	SendMessage(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error)
	UpdateHistory(ctx context.Context, sessionID string, history []domain.Message) error
}

// StatusError representa una respuesta no exitosa del gateway.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway http error: status=%d", e.StatusCode)
}

// HTTPClient implementa Client sobre HTTP/JSON.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye un cliente apuntando a baseURL.
func NewHTTPClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		logger:  logger,
	}
}

func (c *HTTPClient) CreateSession(ctx context.Context, seed []domain.Message) (CreateSessionResponse, error) {
	var out CreateSessionResponse
	body := createSessionRequest{History: toWire(seed)}
	if err := c.postJSON(ctx, c.baseURL+createSessionPath, body, &out); err != nil {
		return CreateSessionResponse{}, fmt.Errorf("create session: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error) {
	var out SendMessageResponse
	body := sendMessageRequest{
		Message:   req.Message,
		SessionID: req.SessionID,
		History:   toWire(req.History),
	}
	if err := c.postJSON(ctx, c.baseURL+sendMessagePath, body, &out); err != nil {
		return SendMessageResponse{}, fmt.Errorf("send message: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) UpdateHistory(ctx context.Context, sessionID string, history []domain.Message) error {
	body := updateSessionRequest{History: toWire(history)}
	endpoint := c.baseURL + updateSessionPath + url.QueryEscape(sessionID)
	if err := c.postJSON(ctx, endpoint, body, nil); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (c *HTTPClient) postJSON(ctx context.Context, endpoint string, in any, out any) error {
	bodyBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Charset", "utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("gateway error status",
			zap.Int("status", resp.StatusCode),
			zap.String("endpoint", endpoint),
		)
		return &StatusError{StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
