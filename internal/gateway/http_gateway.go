package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"aether-service/internal/domain"
	"aether-service/internal/dto"
	"aether-service/internal/metrics"
	"aether-service/internal/response"
)

// HTTPGateway talks to the workspace REST API
type HTTPGateway struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewHTTPGateway creates a gateway for the API rooted at baseURL (e.g. http://localhost:8080)
func NewHTTPGateway(baseURL string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *HTTPGateway {
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    m,
	}
}

type envelope struct {
	Success bool               `json:"success"`
	Data    json.RawMessage    `json:"data"`
	Error   response.ErrorBody `json:"error"`
}

func (g *HTTPGateway) List(ctx context.Context) ([]dto.WorkspaceResponse, error) {
	var out []dto.WorkspaceResponse
	if err := g.do(ctx, http.MethodGet, "/api/workspaces", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *HTTPGateway) Get(ctx context.Context, id string) (*dto.WorkspaceResponse, error) {
	var out dto.WorkspaceResponse
	if err := g.do(ctx, http.MethodGet, workspacePath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) Create(ctx context.Context, name string, state domain.WindowsState) (*dto.WorkspaceResponse, error) {
	req := dto.CreateWorkspaceRequest{Name: name, WindowsState: &state}
	var out dto.WorkspaceResponse
	if err := g.do(ctx, http.MethodPost, "/api/workspaces", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) Update(ctx context.Context, id string, patch dto.UpdateWorkspaceRequest) (*dto.WorkspaceResponse, error) {
	var out dto.WorkspaceResponse
	if err := g.do(ctx, http.MethodPatch, workspacePath(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) Delete(ctx context.Context, id string) (bool, error) {
	err := g.do(ctx, http.MethodDelete, workspacePath(id), nil, nil)
	if errors.Is(err, ErrWorkspaceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func workspacePath(id string) string {
	return "/api/workspaces/" + url.PathEscape(id)
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	g.metrics.RecordExternalAPICall(path, method, statusCode, time.Since(start), err)

	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrWorkspaceNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		g.logger.Debug("Persistence API error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("code", env.Error.Code),
		)
		return &APIError{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: failed to decode data: %w", method, path, err)
		}
	}
	return nil
}
