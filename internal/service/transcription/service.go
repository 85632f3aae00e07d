package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lotto-service/internal/metrics"
	appErr "lotto-service/pkg/errors"
	"lotto-service/pkg/logger"

	"go.uber.org/zap"
)

var allowedContentTypes = map[string]struct{}{
	"audio/webm": {},
	"audio/wav":  {},
	"audio/mpeg": {},
	"audio/mp4":  {},
}

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (*Result, error)
}

// Service validates uploads and falls back to a canned transcript when the
// provider is not configured, so local setups keep working.
type Service struct {
	provider Transcriber
}

func NewService(provider Transcriber) *Service {
	return &Service{provider: provider}
}

func mockResult() *Result {
	lang := "ru"
	return &Result{
		Text:     "тестовая транскрипция",
		Language: &lang,
		Provider: "mock-media-recorder",
	}
}

func (s *Service) Transcribe(ctx context.Context, audio Audio) (*Result, error) {
	contentType := strings.ToLower(strings.TrimSpace(audio.ContentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if _, ok := allowedContentTypes[contentType]; !ok {
		return nil, fmt.Errorf("%w: %s", appErr.ErrUnsupportedAudio, audio.ContentType)
	}
	if len(audio.Data) == 0 {
		return nil, appErr.ErrEmptyAudio
	}
	audio.ContentType = contentType

	res, err := s.provider.Transcribe(ctx, audio)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			metrics.Transcriptions.WithLabelValues("mock").Inc()
			logger.Log.Info("transcription provider not configured, using mock", zap.String("reason", cfgErr.Message))
			return mockResult(), nil
		}
		metrics.Transcriptions.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.Transcriptions.WithLabelValues("ok").Inc()
	return res, nil
}
