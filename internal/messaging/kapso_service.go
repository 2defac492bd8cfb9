package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/my21staff/SarahEngine/internal/models"
)

// DefaultKapsoTimeout bounds each gateway request.
const DefaultKapsoTimeout = 15 * time.Second

// KapsoService implements Service using the Kapso WhatsApp gateway HTTP API.
// Outbound messages are POSTed to the gateway; inbound messages arrive through
// the webhook endpoint, which feeds HandleInboundMessage.
type KapsoService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	receipts   chan models.Receipt
	responses  chan models.Response
	mu         sync.RWMutex
	stopped    bool
}

// KapsoOpts holds configuration options for the Kapso gateway client.
type KapsoOpts struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// KapsoOption defines a configuration option for the Kapso gateway client.
type KapsoOption func(*KapsoOpts)

// WithKapsoBaseURL sets the gateway base URL.
func WithKapsoBaseURL(baseURL string) KapsoOption {
	return func(o *KapsoOpts) { o.BaseURL = strings.TrimRight(baseURL, "/") }
}

// WithKapsoAPIKey sets the gateway API key.
func WithKapsoAPIKey(key string) KapsoOption {
	return func(o *KapsoOpts) { o.APIKey = key }
}

// WithKapsoHTTPClient overrides the HTTP client.
func WithKapsoHTTPClient(client *http.Client) KapsoOption {
	return func(o *KapsoOpts) { o.HTTPClient = client }
}

// NewKapsoService creates a Kapso-backed messaging service. Base URL and API
// key are required.
func NewKapsoService(opts ...KapsoOption) (*KapsoService, error) {
	var cfg KapsoOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("kapso base URL not set")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("kapso API key not set")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultKapsoTimeout}
	}
	slog.Debug("KapsoService created", "base_url", cfg.BaseURL)
	return &KapsoService{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		receipts:   make(chan models.Receipt, DefaultChannelBufferSize),
		responses:  make(chan models.Response, DefaultChannelBufferSize),
	}, nil
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a phone number.
func (s *KapsoService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// SendMessage sends a WhatsApp message through the gateway and emits a sent receipt.
func (s *KapsoService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("KapsoService SendMessage invalid recipient", "error", err, "to", to)
		return err
	}

	payload, err := json.Marshal(map[string]string{
		"phone_number": canonicalTo,
		"message":      body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/whatsapp/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("KapsoService SendMessage request failed", "error", err, "to", canonicalTo)
		return fmt.Errorf("gateway send failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("KapsoService SendMessage non-OK response", "status", resp.StatusCode, "to", canonicalTo)
		s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusFailed, Time: time.Now().Unix()})
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	slog.Info("KapsoService message sent", "to", canonicalTo, "body_length", len(body))
	return nil
}

// HandleInboundMessage feeds a webhook-delivered inbound message into the
// responses channel. Invalid senders are dropped with a log line.
func (s *KapsoService) HandleInboundMessage(from, body string, msgType models.MessageType, timestamp int64) {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	canonicalFrom, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("KapsoService dropping inbound message with invalid sender", "error", err, "from", from)
		return
	}

	response := models.Response{
		From: canonicalFrom,
		Body: body,
		Type: msgType,
		Time: models.Timestamp(timestamp),
	}
	select {
	case s.responses <- response:
		slog.Debug("KapsoService inbound message queued", "from", canonicalFrom, "body_length", len(body))
	default:
		slog.Warn("KapsoService responses channel full, dropping message", "from", canonicalFrom)
	}
}

func (s *KapsoService) emitReceipt(r models.Receipt) {
	select {
	case s.receipts <- r:
	default:
		slog.Warn("KapsoService receipts channel full, dropping receipt", "to", r.To)
	}
}

// Start is a no-op; inbound traffic arrives via webhook.
func (s *KapsoService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channels.
func (s *KapsoService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.receipts)
	close(s.responses)
	return nil
}

// Receipts returns a channel of delivery status events.
func (s *KapsoService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns a channel of incoming contact messages.
func (s *KapsoService) Responses() <-chan models.Response {
	return s.responses
}
