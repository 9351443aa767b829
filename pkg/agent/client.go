package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ops-console/pkg/retry"
	"ops-console/pkg/types"

	"github.com/rs/zerolog"
)

const (
	requestTimeout  = 15 * time.Second
	requestAttempts = 3
	retryDelay      = time.Second
	maxResponseSize = 1 << 20
)

// APIError 控制台返回的错误响应
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("console returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("console returned HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client 控制台 HTTP 客户端
//
// 每次请求附带 bearer token；仅在网络层失败时按固定间隔重试，
// HTTP 错误响应直接以 *APIError 返回。
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retry   retry.Config
	logger  zerolog.Logger
}

func NewClient(baseURL, token string, logger zerolog.Logger) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
	c.retry = retry.Config{
		MaxAttempts: requestAttempts,
		Delay:       retryDelay,
		OnRetry: func(attempt int, err error) {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Console request failed, retrying")
		},
	}
	return c
}

// Register POST /api/nodes/register
func (c *Client) Register(ctx context.Context, req *types.RegisterRequest) (*types.RegisterResponse, error) {
	var resp types.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/api/nodes/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Heartbeat POST /api/nodes/{node_id}/heartbeat
func (c *Client) Heartbeat(ctx context.Context, nodeID, status string) error {
	path := "/api/nodes/" + url.PathEscape(nodeID) + "/heartbeat"
	return c.do(ctx, http.MethodPost, path, &types.HeartbeatRequest{Status: status}, &types.OKResponse{})
}

// PullTasks GET /api/nodes/{node_id}/tasks?state=
func (c *Client) PullTasks(ctx context.Context, nodeID string, state types.TaskState) ([]*types.Task, error) {
	path := "/api/nodes/" + url.PathEscape(nodeID) + "/tasks?" + url.Values{"state": {string(state)}}.Encode()

	var resp types.PullTasksResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// ReportTask POST /api/tasks/{task_id}/report
func (c *Client) ReportTask(ctx context.Context, taskID string, result *types.TaskResult) error {
	path := "/api/tasks/" + url.PathEscape(taskID) + "/report"
	req := &types.ReportTaskRequest{Status: string(result.State), Result: result.Result}
	return c.do(ctx, http.MethodPost, path, req, &types.OKResponse{})
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	cfg := c.retry
	cfg.Retryable = func(error) bool { return ctx.Err() == nil }

	var resp *http.Response
	err := retry.Do(ctx, cfg, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err = c.http.Do(req)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope types.ErrorResponse
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Code = envelope.ErrorCode
			apiErr.Message = envelope.Message
		}
		return apiErr
	}

	var ack types.OKResponse
	if err := json.Unmarshal(data, &ack); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !ack.OK {
		return &APIError{StatusCode: resp.StatusCode, Message: "response not ok"}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
