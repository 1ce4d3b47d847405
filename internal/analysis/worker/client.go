package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/strikesense/analysis-backend/internal/analysis"
	"github.com/strikesense/analysis-backend/internal/config"
	"github.com/strikesense/analysis-backend/internal/models"
	"github.com/strikesense/analysis-backend/pkg/logger"
)

const defaultRequestTimeout = 30

// client talks to the serverless compute endpoint over its /run and
// /status/:id API.
type client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

func NewClient(cfg *config.Config, log logger.Logger) analysis.WorkerClient {
	timeout := cfg.Worker.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &client{
		endpoint: cfg.Worker.Endpoint,
		apiKey:   cfg.Worker.APIKey,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		logger: log,
	}
}

func (c *client) Run(ctx context.Context, req *models.WorkerRequest) (*models.WorkerAck, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal worker request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build worker request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("worker unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("worker rejected run request: %d %s", resp.StatusCode, string(respBody))
	}

	ack := &models.WorkerAck{}
	if err = json.NewDecoder(resp.Body).Decode(ack); err != nil {
		return nil, fmt.Errorf("failed to decode worker ack: %w", err)
	}
	if ack.ID == "" {
		return nil, fmt.Errorf("worker ack missing job id")
	}
	c.logger.Infof("worker accepted job, handle: %s, status: %s", ack.ID, ack.Status)
	return ack, nil
}

func (c *client) Status(ctx context.Context, workerJobID string) (*models.WorkerStatusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/status/"+workerJobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("worker unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("worker status request failed: %d %s", resp.StatusCode, string(respBody))
	}

	status := &models.WorkerStatusResponse{}
	if err = json.NewDecoder(resp.Body).Decode(status); err != nil {
		return nil, fmt.Errorf("failed to decode worker status: %w", err)
	}
	return status, nil
}

func (c *client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
