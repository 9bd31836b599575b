package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxEventSize — предел одной строки "data:" в SSE-потоке: событие
// complete несёт код всех артефактов разом.
const maxEventSize = 16 * 1024 * 1024

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// RunResponse — запуск из API.
type RunResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Prompt     string `json:"prompt"`
	Language   string `json:"language,omitempty"`
	Status     string `json:"status"`
	Rounds     int    `json:"rounds"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// RunDetailResponse — запуск с артефактами и историей раундов.
type RunDetailResponse struct {
	RunResponse
	Artifacts    []ArtifactResponse `json:"artifacts,omitempty"`
	RoundHistory []RoundResponse    `json:"round_history,omitempty"`
}

// ArtifactResponse — артефакт на проводе (события и история
// используют одни и те же camelCase-имена полей).
type ArtifactResponse struct {
	Name            string `json:"name"`
	Code            string `json:"code"`
	Role            string `json:"role,omitempty"`
	Purpose         string `json:"purpose,omitempty"`
	Validated       bool   `json:"validated"`
	ValidationError string `json:"validationError,omitempty"`
	SizeBytes       int64  `json:"sizeBytes,omitempty"`
	Round           int    `json:"roundProduced"`
}

// RoundResponse — счётчики одного раунда валидации.
type RoundResponse struct {
	Round       int    `json:"round"`
	ValidCount  int    `json:"valid_count"`
	FailedCount int    `json:"failed_count"`
	RecordedAt  string `json:"recorded_at"`
}

// --- Request types ---

// StartRunRequest — запрос на запуск прогона.
type StartRunRequest struct {
	Prompt    string `json:"prompt"`
	Language  string `json:"language,omitempty"`
	Name      string `json:"name,omitempty"`
	MaxRounds int    `json:"max_rounds,omitempty"`
}

// ListRunsOpts — параметры фильтрации запусков.
type ListRunsOpts struct {
	Status string
	Limit  int
	Offset int
}

// --- Event payload types (формы полезных нагрузок потока прогресса) ---

type validationStartEvent struct {
	TotalExpected int `json:"totalExpected"`
}

type validationProgressEvent struct {
	Round       int `json:"round"`
	ValidCount  int `json:"validCount"`
	FailedCount int `json:"failedCount"`
}

type artifactReadyEvent struct {
	Artifact      ArtifactResponse `json:"artifact"`
	IsUpdate      bool             `json:"isUpdate"`
	ReadySoFar    int              `json:"readySoFar"`
	TotalExpected int              `json:"totalExpected"`
}

type retryingEvent struct {
	Round       int      `json:"round"`
	FailedNames []string `json:"failedNames"`
}

type completeEvent struct {
	Artifacts []ArtifactResponse `json:"artifacts"`
}

type maxRetriesExceededEvent struct {
	LastError string `json:"lastError"`
}

type errorEvent struct {
	Message string `json:"message"`
}

// Виды событий потока прогресса.
const (
	kindValidationStart    = "validation_start"
	kindValidationProgress = "validation_progress"
	kindArtifactReady      = "artifact_ready"
	kindRetrying           = "retrying"
	kindComplete           = "complete"
	kindMaxRetriesExceeded = "max_retries_exceeded"
	kindError              = "error"
)

func isTerminalKind(kind string) bool {
	switch kind {
	case kindComplete, kindMaxRetriesExceeded, kindError:
		return true
	default:
		return false
	}
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Crucible API.
//
// Обычные запросы ходят с таймаутом; StartRun использует отдельный
// клиент без таймаута — SSE-поток живёт столько, сколько идёт прогон.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
	}
}

// --- Runs ---

// StartRun запускает прогон и возвращает поток его событий.
func (c *Client) StartRun(ctx context.Context, req StartRunRequest) (*RunStream, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/runs", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		if err := c.checkError(resp); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), maxEventSize)

	return &RunStream{
		runID: resp.Header.Get("X-Run-Id"),
		body:  resp.Body,
		sc:    sc,
	}, nil
}

// ListRuns возвращает список запусков с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// GetRun возвращает запуск по ID вместе с артефактами и раундами.
func (c *Client) GetRun(id string) (*RunDetailResponse, error) {
	var run RunDetailResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// --- Event stream ---

// RunStream — поток SSE-событий запущенного прогона.
type RunStream struct {
	runID string
	body  io.ReadCloser
	sc    *bufio.Scanner
}

// StreamEvent — одно событие из потока.
type StreamEvent struct {
	Kind string
	Data json.RawMessage
}

// RunID возвращает идентификатор запуска из заголовка ответа.
func (s *RunStream) RunID() string { return s.runID }

// Close закрывает поток. Закрытие до терминального события обрывает
// соединение и тем самым отменяет прогон на сервере.
func (s *RunStream) Close() error { return s.body.Close() }

// Next возвращает следующее событие; io.EOF в конце потока.
func (s *RunStream) Next() (*StreamEvent, error) {
	var ev StreamEvent
	for s.sc.Scan() {
		line := s.sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.Kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
		case line == "" && ev.Kind != "":
			return &ev, nil
		}
	}
	if err := s.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(dr.Data, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(lr.Data, result)
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
