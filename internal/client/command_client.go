package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"aether-service/internal/dto"
	"aether-service/internal/metrics"
)

// CommandClient forwards commands to an upstream interpreter service
type CommandClient struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewCommandClient creates a client posting {"message"} to url
func NewCommandClient(url string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *CommandClient {
	return &CommandClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    m,
	}
}

// Interpret sends one message and decodes the interpreted action
func (c *CommandClient) Interpret(ctx context.Context, message string) (*dto.CommandResponse, error) {
	body, err := json.Marshal(dto.CommandRequest{Message: message})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	c.metrics.RecordExternalAPICall(c.url, http.MethodPost, statusCode, time.Since(start), err)

	if err != nil {
		c.logger.Error("Command upstream unreachable", zap.String("url", c.url), zap.Error(err))
		return nil, fmt.Errorf("failed to call command upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("Command upstream returned error",
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(raw)),
		)
		var failure dto.CommandErrorResponse
		if json.Unmarshal(raw, &failure) == nil && failure.Error != "" {
			return nil, fmt.Errorf("command upstream returned status %d: %s", resp.StatusCode, failure.Error)
		}
		return nil, fmt.Errorf("command upstream returned status %d", resp.StatusCode)
	}

	var result dto.CommandResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode command response: %w", err)
	}
	return &result, nil
}
