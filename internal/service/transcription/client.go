package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"lotto-service/internal/config"
	"lotto-service/pkg/logger"

	"go.uber.org/zap"
)

// ConfigError means the provider is not usable with the current settings.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// ProviderError is an upstream failure mapped onto the status this service
// should answer with.
type ProviderError struct {
	Message    string
	StatusCode int
	Retryable  bool
}

func (e *ProviderError) Error() string { return e.Message }

type Audio struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Result struct {
	Text            string   `json:"text"`
	Language        *string  `json:"language"`
	DurationSeconds *float64 `json:"duration_seconds"`
	Provider        string   `json:"provider"`
}

// Client speaks the OpenAI-compatible audio transcription API.
type Client struct {
	cfg  config.TranscriptionConfig
	http *http.Client
}

func NewClient(cfg config.TranscriptionConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

func (c *Client) Transcribe(ctx context.Context, audio Audio) (*Result, error) {
	provider := strings.ToLower(strings.TrimSpace(c.cfg.Provider))
	if provider == "" {
		provider = "openai"
	}
	if provider != "openai" {
		return nil, &ConfigError{Message: "unsupported transcription provider: " + provider}
	}
	if c.cfg.APIKey == "" {
		return nil, &ConfigError{Message: "transcription api key is not configured"}
	}

	body, contentType, err := encodeForm(c.cfg.Model, audio)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Log.Warn("transcription provider unreachable", zap.Error(err))
		return nil, &ProviderError{
			Message:    fmt.Sprintf("transcription provider unavailable: %v", err),
			StatusCode: http.StatusServiceUnavailable,
			Retryable:  true,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{
			Message:    fmt.Sprintf("read transcription response: %v", err),
			StatusCode: http.StatusServiceUnavailable,
			Retryable:  true,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		perr := providerError(resp.StatusCode, raw)
		logger.Log.Warn("transcription provider error",
			zap.Int("upstreamStatus", resp.StatusCode),
			zap.Bool("retryable", perr.Retryable),
			zap.String("message", perr.Message),
		)
		return nil, perr
	}

	var payload struct {
		Text     string   `json:"text"`
		Language *string  `json:"language"`
		Duration *float64 `json:"duration"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &ProviderError{
			Message:    "transcription provider returned invalid json",
			StatusCode: http.StatusBadGateway,
		}
	}
	return &Result{
		Text:            payload.Text,
		Language:        payload.Language,
		DurationSeconds: payload.Duration,
		Provider:        "openai",
	}, nil
}

func providerError(status int, raw []byte) *ProviderError {
	msg := extractErrorMessage(raw)
	if msg == "" {
		msg = "transcription provider request failed"
	}
	switch {
	case status == http.StatusTooManyRequests:
		return &ProviderError{Message: msg, StatusCode: http.StatusBadGateway, Retryable: true}
	case status >= http.StatusInternalServerError:
		return &ProviderError{Message: msg, StatusCode: http.StatusServiceUnavailable, Retryable: true}
	default:
		return &ProviderError{Message: msg, StatusCode: http.StatusBadGateway}
	}
}

// extractErrorMessage reads {"error":{"message":...}} and falls back to
// the raw body when it is not JSON.
func extractErrorMessage(raw []byte) string {
	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return string(raw)
	}
	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return ""
	}
	errObj, ok := obj["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	msg, _ := errObj["message"].(string)
	return msg
}

func encodeForm(model string, audio Audio) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("model", model); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", err
	}

	filename := audio.Filename
	if filename == "" {
		filename = "recording.webm"
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
