package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/koshkarov/crucible/internal/domain"
)

// LLM — генератор поверх OpenAI-совместимого chat-completions API.
type LLM struct {
	client *chatClient
	logger *slog.Logger
}

// Config — конфигурация LLM-генератора.
type Config struct {
	// BaseURL — адрес API (по умолчанию http://localhost:1234/v1).
	BaseURL string

	// APIKey — ключ API; пустой ключ не отправляется.
	APIKey string

	// Model — имя модели.
	Model string

	// Temperature — температура сэмплирования.
	Temperature float32

	// MaxTokens — лимит токенов ответа (0 — без лимита).
	MaxTokens int

	// Timeout — таймаут одного запроса (по умолчанию 180s).
	Timeout time.Duration

	// Logger — логгер (по умолчанию slog.Default()).
	Logger *slog.Logger
}

// NewLLM создаёт LLM-генератор.
func NewLLM(cfg Config) *LLM {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{
		client: newChatClient(cfg),
		logger: logger,
	}
}

// Generate реализует интерфейс Generator.
func (g *LLM) Generate(ctx context.Context, spec domain.Spec) (domain.Batch, error) {
	content, err := g.client.chat(ctx, buildGenerateMessages(spec))
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	g.logger.Debug("generator responded", "response_len", len(content))

	batch, err := normalizeBatch(content)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return batch, nil
}

// Repair реализует интерфейс Generator.
func (g *LLM) Repair(ctx context.Context, failed []domain.Artifact) (domain.Batch, error) {
	content, err := g.client.chat(ctx, buildRepairMessages(failed))
	if err != nil {
		return nil, fmt.Errorf("repair: %w", err)
	}
	g.logger.Debug("generator responded to repair",
		"failed", len(failed), "response_len", len(content))

	batch, err := normalizeBatch(content)
	if err != nil {
		return nil, fmt.Errorf("repair: %w", err)
	}
	return batch, nil
}
