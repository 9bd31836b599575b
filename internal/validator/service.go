package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/koshkarov/crucible/internal/domain"
)

const defaultServiceTimeout = 60 * time.Second

// Service — валидатор поверх внешнего compile-сервиса.
//
// Запрос: POST <URL> с JSON {"language": ..., "code": ...}.
// Ответ: 200 OK с JSON {"valid": bool, "error": string, "size_bytes": int}.
// Любой другой статус — инфраструктурный сбой.
type Service struct {
	url      string
	language string
	client   *http.Client
}

// ServiceConfig — конфигурация Service.
type ServiceConfig struct {
	// URL — полный адрес compile-сервиса (обязательно).
	URL string

	// Language — целевой язык, передаётся сервису как есть.
	Language string

	// Timeout — таймаут одного запроса (по умолчанию 60s).
	Timeout time.Duration
}

// NewService создаёт валидатор compile-сервиса.
func NewService(cfg ServiceConfig) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultServiceTimeout
	}
	return &Service{
		url:      cfg.URL,
		language: cfg.Language,
		client:   &http.Client{Timeout: timeout},
	}
}

// compileRequest — тело запроса к compile-сервису.
type compileRequest struct {
	Language string `json:"language,omitempty"`
	Code     string `json:"code"`
}

// compileResponse — тело ответа compile-сервиса.
type compileResponse struct {
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// Validate реализует интерфейс Validator.
func (s *Service) Validate(ctx context.Context, code string) (domain.Outcome, error) {
	body, err := json.Marshal(compileRequest{Language: s.language, Code: code})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("%w: marshal request: %v", ErrCompileService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("%w: create request: %v", ErrCompileService, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("%w: %v", ErrCompileService, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("%w: read response: %v", ErrCompileService, err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.Outcome{}, fmt.Errorf("%w: HTTP %d: %s",
			ErrCompileService, resp.StatusCode, truncate(string(respBody), 200))
	}

	var cr compileResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return domain.Outcome{}, fmt.Errorf("%w: decode response: %v", ErrCompileService, err)
	}

	return domain.Outcome{
		Valid:     cr.Valid,
		Error:     cr.Error,
		SizeBytes: cr.SizeBytes,
	}, nil
}

// truncate обрезает строку до maxLen символов.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
