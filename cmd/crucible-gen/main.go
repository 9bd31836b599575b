// Crucible Gen — одноразовый локальный прогон без HTTP-слоя.
//
// Использование:
//
//	crucible-gen --spec spec.yaml --output ./out [--max-rounds N] [--sse]
//
// Адаптеры собираются из окружения (LLM_*, VALIDATOR_*). Прогресс
// пишется в stdout строками или, с флагом --sse, сырыми SSE-блоками.
// При успехе артефакты записываются в --output; при исчерпании лимита
// раундов — частичный набор плюс файлы *.failed с диагностикой,
// выход с ненулевым кодом.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koshkarov/crucible/internal/cli"
	"github.com/koshkarov/crucible/internal/domain"
	"github.com/koshkarov/crucible/internal/generator"
	"github.com/koshkarov/crucible/internal/orchestrator"
	"github.com/koshkarov/crucible/internal/progress"
	"github.com/koshkarov/crucible/internal/telemetry"
	"github.com/koshkarov/crucible/internal/validator"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var specPath string
	var outputDir string
	var maxRounds int
	var rawSSE bool

	rootCmd := &cobra.Command{
		Use:           "crucible-gen",
		Short:         "Run a single generation locally, without the API server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), specPath, outputDir, maxRounds, rawSSE)
		},
	}

	rootCmd.Flags().StringVar(&specPath, "spec", "", "YAML or JSON spec document (required)")
	rootCmd.MarkFlagRequired("spec")
	rootCmd.Flags().StringVar(&outputDir, "output", "out", "Directory to write artifacts to")
	rootCmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "Validation round limit")
	rootCmd.Flags().BoolVar(&rawSSE, "sse", false, "Emit raw SSE blocks instead of progress lines")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, specPath, outputDir string, maxRounds int, rawSSE bool) error {
	logger := telemetry.SetupLogger()

	doc, err := cli.LoadSpecFile(specPath)
	if err != nil {
		return err
	}
	if maxRounds == 0 {
		maxRounds = doc.MaxRounds
	}

	gen := generator.NewLLM(generator.Config{
		BaseURL: os.Getenv("LLM_BASE_URL"),
		APIKey:  os.Getenv("LLM_API_KEY"),
		Model:   os.Getenv("LLM_MODEL"),
		Logger:  logger,
	})

	val, err := buildValidator()
	if err != nil {
		return err
	}

	var sink progress.Sink
	if rawSSE {
		sink = progress.NewSSEWriter(os.Stdout)
	} else {
		sink = lineSink{out: cli.NewOutput(false)}
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Generator: gen,
		Validator: val,
		Sink:      sink,
		MaxRounds: maxRounds,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	res, err := orch.Execute(ctx, domain.NewRun(domain.Spec{
		Prompt:   doc.Prompt,
		Language: doc.Language,
		Name:     doc.Name,
	}))

	switch {
	case err == nil:
		if err := writeArtifacts(outputDir, res.Artifacts); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %d artifact(s) to %s\n", len(res.Artifacts), outputDir)
		return nil

	case errors.Is(err, domain.ErrExhausted):
		// Частичный результат всё равно полезен: валидные артефакты
		// плюс последние версии невалидных с диагностикой рядом.
		if werr := writeArtifacts(outputDir, res.Artifacts); werr != nil {
			return werr
		}
		if werr := writeFailed(outputDir, res.Remaining); werr != nil {
			return werr
		}
		fmt.Fprintf(os.Stderr, "Wrote %d valid and %d failed artifact(s) to %s\n",
			len(res.Artifacts), len(res.Remaining), outputDir)
		return err

	default:
		return err
	}
}

// buildValidator собирает валидатор из окружения: VALIDATOR_URL —
// compile-сервис, иначе VALIDATOR_CMD — локальный тулчейн.
func buildValidator() (validator.Validator, error) {
	if url := os.Getenv("VALIDATOR_URL"); url != "" {
		return validator.NewService(validator.ServiceConfig{
			URL:      url,
			Language: os.Getenv("VALIDATOR_LANGUAGE"),
		}), nil
	}
	if cmdline := os.Getenv("VALIDATOR_CMD"); cmdline != "" {
		fields := strings.Fields(cmdline)
		return validator.NewCommand(validator.CommandConfig{
			Name: fields[0],
			Args: fields[1:],
			Ext:  os.Getenv("VALIDATOR_EXT"),
		})
	}
	return nil, errors.New("set VALIDATOR_URL or VALIDATOR_CMD")
}

// lineSink печатает события строками прогресса через cli.Output.
type lineSink struct {
	out *cli.Output
}

func (s lineSink) Emit(ev progress.Event) error {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", ev.Kind, err)
	}
	s.out.Event(string(ev.Kind), data)
	return nil
}

// writeArtifacts записывает артефакты в каталог, создавая
// промежуточные каталоги для имён с путями.
func writeArtifacts(dir string, artifacts []domain.Artifact) error {
	root := filepath.Clean(dir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, a := range artifacts {
		path, err := artifactPath(root, a.Name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", a.Name, err)
		}
		if err := os.WriteFile(path, []byte(a.Code), 0o644); err != nil {
			return fmt.Errorf("write artifact %s: %w", a.Name, err)
		}
	}
	return nil
}

// writeFailed записывает последние версии невалидных артефактов и
// файлы NAME.failed с диагностикой рядом.
func writeFailed(dir string, artifacts []domain.Artifact) error {
	root := filepath.Clean(dir)

	for _, a := range artifacts {
		path, err := artifactPath(root, a.Name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", a.Name, err)
		}
		if err := os.WriteFile(path, []byte(a.Code), 0o644); err != nil {
			return fmt.Errorf("write artifact %s: %w", a.Name, err)
		}
		if err := os.WriteFile(path+".failed", []byte(a.ValidationError+"\n"), 0o644); err != nil {
			return fmt.Errorf("write diagnostics for %s: %w", a.Name, err)
		}
	}
	return nil
}

// artifactPath строит путь внутри каталога и отвергает имена,
// выходящие за его пределы.
func artifactPath(root, name string) (string, error) {
	path := filepath.Join(root, filepath.Clean(name))
	if path != root && !strings.HasPrefix(path, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("artifact name escapes output dir: %q", name)
	}
	return path, nil
}
