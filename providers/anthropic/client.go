// Package anthropic kapselt den Zugriff auf die Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"words-record/config"

	"go.uber.org/zap"
)

const apiVersion = "2023-06-01"

var httpClient = &http.Client{Timeout: 120 * time.Second}

// ErrNoAPIKey signalisiert, dass kein API-Key konfiguriert ist. Aufrufer
// degradieren dann still (z.B. leere Relationship-Liste).
var ErrNoAPIKey = errors.New("anthropic: api key not configured")

// Client kapselt die Logik für die Messages API.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt einen neuen Anthropic-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// Enabled meldet, ob ein API-Key konfiguriert ist.
func (c *Client) Enabled() bool {
	return strings.TrimSpace(c.Config.AnthropicAPIKey) != ""
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete schickt einen User-Prompt an die Messages API und gibt den Text
// des ersten Content-Blocks zurück.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrNoAPIKey
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.Config.AnthropicModel,
		MaxTokens: c.Config.AnthropicMaxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: encode request: %w", err)
	}

	endpoint := strings.TrimRight(c.Config.AnthropicBaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anthropic: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.Config.AnthropicAPIKey)
	req.Header.Set("anthropic-version", apiVersion)

	c.Logger.Debug("Rufe Anthropic Messages API auf",
		zap.String("model", c.Config.AnthropicModel),
		zap.Int("prompt_length", len(prompt)))

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var mr messagesResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	if mr.Error != nil {
		return "", fmt.Errorf("anthropic: api error: %s", mr.Error.Message)
	}
	if len(mr.Content) == 0 || strings.TrimSpace(mr.Content[0].Text) == "" {
		return "", errors.New("anthropic: empty content in response")
	}

	return mr.Content[0].Text, nil
}
