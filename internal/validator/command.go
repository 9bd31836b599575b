package validator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/koshkarov/crucible/internal/domain"
)

const defaultCommandTimeout = 120 * time.Second

// Заполнители в аргументах команды.
const (
	// PlaceholderFile заменяется путём к файлу с кодом артефакта.
	PlaceholderFile = "{file}"

	// PlaceholderOut заменяется путём для скомпилированного результата;
	// после успешной компиляции его размер попадает в Outcome.SizeBytes.
	PlaceholderOut = "{out}"
)

// Command — валидатор поверх локального тулчейна.
//
// Код артефакта пишется во временный файл, затем запускается команда
// компилятора с подставленными путями. Нулевой exit-код — код валиден;
// ненулевой — невалиден, stdout+stderr компилятора становятся
// диагностикой. Сбои запуска самой команды — инфраструктурная ошибка.
type Command struct {
	name    string
	args    []string
	ext     string
	timeout time.Duration
}

// CommandConfig — конфигурация Command.
type CommandConfig struct {
	// Name — имя или путь бинаря компилятора (обязательно).
	Name string

	// Args — аргументы; вхождения {file} и {out} заменяются путями.
	Args []string

	// Ext — расширение временного файла с кодом (по умолчанию ".src").
	Ext string

	// Timeout — лимит на одну компиляцию (по умолчанию 120s).
	Timeout time.Duration
}

// NewCommand создаёт валидатор локального тулчейна.
func NewCommand(cfg CommandConfig) (*Command, error) {
	if cfg.Name == "" {
		return nil, ErrEmptyCommand
	}
	ext := cfg.Ext
	if ext == "" {
		ext = ".src"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &Command{
		name:    cfg.Name,
		args:    cfg.Args,
		ext:     ext,
		timeout: timeout,
	}, nil
}

// Validate реализует интерфейс Validator.
func (c *Command) Validate(ctx context.Context, code string) (domain.Outcome, error) {
	dir, err := os.MkdirTemp("", "crucible-validate-")
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "artifact"+c.ext)
	if err := os.WriteFile(srcPath, []byte(code), 0o600); err != nil {
		return domain.Outcome{}, fmt.Errorf("write artifact: %w", err)
	}
	outPath := filepath.Join(dir, "artifact.out")

	args := make([]string, len(c.args))
	usesOut := false
	for i, a := range c.args {
		a = strings.ReplaceAll(a, PlaceholderFile, srcPath)
		if strings.Contains(a, PlaceholderOut) {
			a = strings.ReplaceAll(a, PlaceholderOut, outPath)
			usesOut = true
		}
		args[i] = a
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.name, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			// Компилятор отработал и отверг код
			diag := strings.TrimSpace(string(output))
			if diag == "" {
				diag = fmt.Sprintf("compiler exited with code %d", exitErr.ExitCode())
			}
			return domain.Outcome{Valid: false, Error: diag}, nil
		}
		return domain.Outcome{}, fmt.Errorf("run %s: %w", c.name, err)
	}

	outcome := domain.Outcome{Valid: true}
	if usesOut {
		if info, statErr := os.Stat(outPath); statErr == nil {
			outcome.SizeBytes = info.Size()
		}
	}
	return outcome, nil
}
