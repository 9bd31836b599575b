package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/koshkarov/crucible/internal/mq"
)

// NewRunCmd создаёт группу команд для управления прогонами.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage generation runs",
	}

	cmd.AddCommand(
		newRunStartCmd(clientFn, outputFn),
		newRunListCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunWatchCmd(outputFn),
	)

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var prompt string
	var language string
	var name string
	var specFile string
	var maxRounds int
	var outputDir string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a run and stream its progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := StartRunRequest{}
			if specFile != "" {
				doc, err := LoadSpecFile(specFile)
				if err != nil {
					return err
				}
				req = StartRunRequest{
					Prompt:    doc.Prompt,
					Language:  doc.Language,
					Name:      doc.Name,
					MaxRounds: doc.MaxRounds,
				}
			}

			// Явные флаги сильнее значений из файла.
			if prompt != "" {
				req.Prompt = prompt
			}
			if language != "" {
				req.Language = language
			}
			if name != "" {
				req.Name = name
			}
			if cmd.Flags().Changed("max-rounds") {
				req.MaxRounds = maxRounds
			}

			if strings.TrimSpace(req.Prompt) == "" {
				return fmt.Errorf("prompt is required: pass --prompt or --spec-file")
			}

			stream, err := client.StartRun(cmd.Context(), req)
			if err != nil {
				return err
			}
			defer stream.Close()

			out.Success("Run started: " + stream.RunID())

			var final []ArtifactResponse
			var terminalKind, terminalMsg string

			for {
				ev, err := stream.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return fmt.Errorf("read event stream: %w", err)
				}

				out.Event(ev.Kind, ev.Data)

				switch ev.Kind {
				case kindComplete:
					terminalKind = ev.Kind
					var p completeEvent
					if err := json.Unmarshal(ev.Data, &p); err != nil {
						return fmt.Errorf("decode complete event: %w", err)
					}
					final = p.Artifacts
				case kindMaxRetriesExceeded:
					terminalKind = ev.Kind
					var p maxRetriesExceededEvent
					if json.Unmarshal(ev.Data, &p) == nil {
						terminalMsg = firstLine(p.LastError)
					}
				case kindError:
					terminalKind = ev.Kind
					var p errorEvent
					if json.Unmarshal(ev.Data, &p) == nil {
						terminalMsg = p.Message
					}
				}
			}

			switch terminalKind {
			case kindComplete:
				if outputDir != "" {
					if err := writeArtifacts(outputDir, final); err != nil {
						return err
					}
					out.Success(fmt.Sprintf("Wrote %d artifact(s) to %s", len(final), outputDir))
				}
				return nil
			case kindMaxRetriesExceeded:
				return fmt.Errorf("run exhausted: %s", terminalMsg)
			case kindError:
				return fmt.Errorf("run failed: %s", terminalMsg)
			default:
				return fmt.Errorf("event stream ended without a terminal event")
			}
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "What to generate")
	cmd.Flags().StringVar(&language, "language", "", "Target language hint")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable run name")
	cmd.Flags().StringVar(&specFile, "spec-file", "", "YAML or JSON spec document")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "Validation round limit for this run")
	cmd.Flags().StringVar(&outputDir, "output", "", "Directory to write completed artifacts to")

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				Status: status,
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "STATUS", "ROUNDS", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.Name, r.Status, strconv.Itoa(r.Rounds), r.CreatedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (GENERATING, VALIDATING, RETRYING, COMPLETE, EXHAUSTED, ERROR, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of results to skip")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "STATUS", "ROUNDS", "ERROR", "CREATED"},
				[][]string{{run.ID, run.Name, run.Status, strconv.Itoa(run.Rounds), firstLine(run.Error), run.CreatedAt}},
				run,
			)
			out.Artifacts(run.Artifacts)
			out.Rounds(run.RoundHistory)
			return nil
		},
	}
}

// newRunWatchCmd подключается к прогону, запущенному в другом месте,
// через обменник прогресса — это потребитель очереди, ему не нужен API.
func newRunWatchCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "watch ID",
		Short: "Attach to an in-flight run via the progress exchange",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))

			url := os.Getenv("RABBITMQ_URL")
			if url == "" {
				url = mq.DefaultURL()
			}

			conn, err := mq.NewConnection(mq.ConnectionConfig{URL: url, Logger: logger})
			if err != nil {
				return fmt.Errorf("connect to broker: %w", err)
			}
			defer conn.Close()

			if err := mq.SetupTopology(conn); err != nil {
				return fmt.Errorf("declare topology: %w", err)
			}

			out.Success("Watching run " + runID.String())

			var terminalKind, terminalMsg string
			sub := mq.NewSubscriber(conn, logger, mq.PatternForRun(runID))
			err = sub.Listen(ctx, func(_ context.Context, msg *mq.Message) error {
				data, err := json.Marshal(msg.Payload)
				if err != nil {
					return fmt.Errorf("encode payload: %w", err)
				}
				out.Event(string(msg.Kind), data)
				if !isTerminalKind(string(msg.Kind)) {
					return nil
				}
				terminalKind = string(msg.Kind)
				switch terminalKind {
				case kindMaxRetriesExceeded:
					if p, perr := mq.ParsePayload[maxRetriesExceededEvent](msg); perr == nil {
						terminalMsg = firstLine(p.LastError)
					}
				case kindError:
					if p, perr := mq.ParsePayload[errorEvent](msg); perr == nil {
						terminalMsg = p.Message
					}
				}
				return mq.ErrStop
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return err
			}

			switch terminalKind {
			case kindMaxRetriesExceeded:
				return fmt.Errorf("run exhausted: %s", terminalMsg)
			case kindError:
				return fmt.Errorf("run failed: %s", terminalMsg)
			default:
				return nil
			}
		},
	}
}

// writeArtifacts записывает артефакты в каталог, создавая
// промежуточные каталоги для имён с путями.
func writeArtifacts(dir string, artifacts []ArtifactResponse) error {
	root := filepath.Clean(dir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, a := range artifacts {
		path := filepath.Join(root, filepath.Clean(a.Name))
		if path != root && !strings.HasPrefix(path, root+string(os.PathSeparator)) {
			return fmt.Errorf("artifact name escapes output dir: %q", a.Name)
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
