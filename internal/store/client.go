package store

import (
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

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/domain"
)

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

// ClientConfig — конфигурация HTTP клиента.
type ClientConfig struct {
	// BaseURL — адрес Conduit API (например, http://localhost:8080).
	BaseURL string

	// Token — bearer токен. Пустой — без авторизации.
	Token string

	// Timeout — таймаут одного запроса.
	// По умолчанию: 30s
	Timeout time.Duration

	// ProjectID — проект, в котором создаются runs.
	ProjectID uuid.UUID
}

// Client — Store поверх HTTP+JSON API.
//
// Клиент не делает повторов: каждая ошибка транспорта или API
// возвращается вызывающему как есть.
type Client struct {
	baseURL    string
	token      string
	projectID  uuid.UUID
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		projectID: cfg.ProjectID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// --- Pipeline runs ---

// GetOrCreateRun создаёт pipeline run или возвращает существующий.
// Сервер отвечает 201 на создание и 200, если run уже был.
func (c *Client) GetOrCreateRun(ctx context.Context, run *domain.PipelineRun) (*domain.PipelineRun, bool, error) {
	projectID := run.ProjectID
	if projectID == uuid.Nil {
		projectID = c.projectID
	}

	var stored domain.PipelineRun
	status, err := c.doData(ctx, http.MethodPost,
		"/api/v1/projects/"+projectID.String()+"/runs?get_if_exists=true", run, &stored)
	if err != nil {
		return nil, false, err
	}
	return &stored, status == http.StatusCreated, nil
}

// GetRun возвращает pipeline run по ID.
func (c *Client) GetRun(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	if _, err := c.doData(ctx, http.MethodGet, "/api/v1/runs/"+id.String(), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns возвращает pipeline runs с фильтрацией.
func (c *Client) ListRuns(ctx context.Context, filter domain.PipelineRunFilter) ([]domain.PipelineRun, error) {
	params := url.Values{}
	if filter.ProjectID != uuid.Nil {
		params.Set("project_id", filter.ProjectID.String())
	}
	if filter.PipelineID != uuid.Nil {
		params.Set("pipeline_id", filter.PipelineID.String())
	}
	if filter.Status != "" {
		params.Set("status", string(filter.Status))
	}
	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		params.Set("offset", strconv.Itoa(filter.Offset))
	}

	var runs []domain.PipelineRun
	err := c.list(ctx, "/api/v1/runs", params, &runs)
	return runs, err
}

// UpdateRun обновляет pipeline run.
func (c *Client) UpdateRun(ctx context.Context, id uuid.UUID, update domain.PipelineRunUpdate) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	if _, err := c.doData(ctx, http.MethodPut, "/api/v1/runs/"+id.String(), update, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// --- Step runs ---

// CreateRunStep регистрирует step run.
func (c *Client) CreateRunStep(ctx context.Context, step *domain.StepRun) (*domain.StepRun, error) {
	var created domain.StepRun
	if _, err := c.doData(ctx, http.MethodPost, "/api/v1/steps", step, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetRunStep возвращает step run по ID.
func (c *Client) GetRunStep(ctx context.Context, id uuid.UUID) (*domain.StepRun, error) {
	var step domain.StepRun
	if _, err := c.doData(ctx, http.MethodGet, "/api/v1/steps/"+id.String(), nil, &step); err != nil {
		return nil, err
	}
	return &step, nil
}

// ListRunSteps возвращает step runs с фильтрацией.
func (c *Client) ListRunSteps(ctx context.Context, filter domain.StepRunFilter) ([]domain.StepRun, error) {
	params := url.Values{}
	if filter.RunID != uuid.Nil {
		params.Set("run_id", filter.RunID.String())
	}
	if filter.Name != "" {
		params.Set("name", filter.Name)
	}
	if filter.CacheKey != "" {
		params.Set("cache_key", filter.CacheKey)
	}
	for _, s := range filter.Statuses {
		params.Add("status", string(s))
	}

	var steps []domain.StepRun
	err := c.list(ctx, "/api/v1/steps", params, &steps)
	return steps, err
}

// UpdateRunStep обновляет step run.
func (c *Client) UpdateRunStep(ctx context.Context, id uuid.UUID, update domain.StepRunUpdate) (*domain.StepRun, error) {
	var step domain.StepRun
	if _, err := c.doData(ctx, http.MethodPut, "/api/v1/steps/"+id.String(), update, &step); err != nil {
		return nil, err
	}
	return &step, nil
}

// --- Artifacts ---

// CreateArtifact регистрирует артефакт.
func (c *Client) CreateArtifact(ctx context.Context, artifact *domain.Artifact) (*domain.Artifact, error) {
	var created domain.Artifact
	if _, err := c.doData(ctx, http.MethodPost, "/api/v1/artifacts", artifact, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetArtifact возвращает артефакт по ID.
func (c *Client) GetArtifact(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	var artifact domain.Artifact
	if _, err := c.doData(ctx, http.MethodGet, "/api/v1/artifacts/"+id.String(), nil, &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// ListArtifacts возвращает артефакты с фильтрацией.
func (c *Client) ListArtifacts(ctx context.Context, filter domain.ArtifactFilter) ([]domain.Artifact, error) {
	params := url.Values{}
	if filter.ParentStepID != uuid.Nil {
		params.Set("parent_step_id", filter.ParentStepID.String())
	}
	if filter.URI != "" {
		params.Set("uri", filter.URI)
	}

	var artifacts []domain.Artifact
	err := c.list(ctx, "/api/v1/artifacts", params, &artifacts)
	return artifacts, err
}

// --- HTTP helpers ---

func (c *Client) list(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
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

func (c *Client) doData(ctx context.Context, method, path string, body any, result any) (int, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return resp.StatusCode, err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return resp.StatusCode, json.Unmarshal(dr.Data, result)
	}
	return resp.StatusCode, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// checkError переводит HTTP статус ошибки в ошибку store.
func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return &APIError{Status: resp.StatusCode}
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = ErrInvalidRequest
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ErrForbidden
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusConflict:
		sentinel = ErrAlreadyExists
	case http.StatusUnprocessableEntity:
		sentinel = ErrInvalidState
	default:
		return &APIError{Status: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
	}
	return fmt.Errorf("%w: %s", sentinel, er.Error.Message)
}
