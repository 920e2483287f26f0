package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/linktum-io/linktum/config"
)

// WhatsAppSender delivers outbound text messages to account phones.
type WhatsAppSender interface {
	SendText(ctx context.Context, phone, message string) error
}

// WhatsAppClient talks to the WhatsApp Business cloud API over HTTP.
type WhatsAppClient struct {
	apiURL      string
	accessToken string
	senderPhone string
	httpClient  *http.Client
}

// NewWhatsAppClient creates a WhatsApp API client from configuration.
func NewWhatsAppClient(cfg config.WhatsAppConfig) *WhatsAppClient {
	return &WhatsAppClient{
		apiURL:      cfg.APIURL,
		accessToken: cfg.AccessToken,
		senderPhone: cfg.SenderPhone,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

type whatsAppTextPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// SendText sends a plain text message to the given phone number.
func (c *WhatsAppClient) SendText(ctx context.Context, phone, message string) error {
	payload := whatsAppTextPayload{
		From: c.senderPhone,
		To:   phone,
		Type: "text",
	}
	payload.Text.Body = message

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp API returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// NoopWhatsAppSender logs instead of sending. Used when no API URL is
// configured and in tests.
type NoopWhatsAppSender struct{}

func (NoopWhatsAppSender) SendText(_ context.Context, _, _ string) error { return nil }
