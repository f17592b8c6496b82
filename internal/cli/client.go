package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
)

// APIError is a non-2xx reply from the workflow API
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Message)
}

// Client talks to the e-filing workflow API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an API client authenticating with token
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do sends body as JSON and decodes a successful reply into out. A nil out
// discards the reply.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		return &APIError{Status: resp.StatusCode, Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	return &APIError{Status: resp.StatusCode, Message: string(raw)}
}

// StartWorkflow puts a file into a template
func (c *Client) StartWorkflow(ctx context.Context, fileID, templateID uuid.UUID, assigneeID *uuid.UUID, remarks string) (*models.WorkflowInstance, error) {
	body := map[string]interface{}{
		"file_id":     fileID,
		"template_id": templateID,
	}
	if assigneeID != nil {
		body["assignee_id"] = assigneeID
	}
	if remarks != "" {
		body["remarks"] = remarks
	}

	var wf models.WorkflowInstance
	if err := c.do(ctx, http.MethodPost, "/api/v1/workflows", body, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// GetWorkflow retrieves a workflow with its stage visits and actions
func (c *Client) GetWorkflow(ctx context.Context, id uuid.UUID) (*models.WorkflowDetail, error) {
	var detail models.WorkflowDetail
	if err := c.do(ctx, http.MethodGet, "/api/v1/workflows/"+id.String(), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// PerformAction applies an action to a workflow's current stage
func (c *Client) PerformAction(ctx context.Context, workflowID, stageID uuid.UUID, action models.ActionType, details models.JSONB) (*engine.ActionResult, error) {
	body := map[string]interface{}{
		"action_type": action,
		"details":     details,
	}
	path := fmt.Sprintf("/api/v1/workflows/%s/stages/%s/actions", workflowID, stageID)

	var res engine.ActionResult
	if err := c.do(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FileHistory returns a file's movement log, oldest first
func (c *Client) FileHistory(ctx context.Context, fileID uuid.UUID) ([]models.FileMovement, error) {
	var out struct {
		Movements []models.FileMovement `json:"movements"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/files/"+fileID.String()+"/movements", nil, &out); err != nil {
		return nil, err
	}
	return out.Movements, nil
}

// FileWorkflows returns every workflow instance of a file
func (c *Client) FileWorkflows(ctx context.Context, fileID uuid.UUID) ([]models.WorkflowInstance, error) {
	var out struct {
		Workflows []models.WorkflowInstance `json:"workflows"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/files/"+fileID.String()+"/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out.Workflows, nil
}

// SignFile records the caller's e-signature on a file
func (c *Client) SignFile(ctx context.Context, fileID uuid.UUID, signatureData string) (*models.Signature, error) {
	var sig models.Signature
	body := map[string]string{"signature_data": signatureData}
	if err := c.do(ctx, http.MethodPost, "/api/v1/files/"+fileID.String()+"/signatures", body, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

// Signatures lists a file's signatures, oldest first
func (c *Client) Signatures(ctx context.Context, fileID uuid.UUID) ([]models.Signature, error) {
	var out struct {
		Signatures []models.Signature `json:"signatures"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/files/"+fileID.String()+"/signatures", nil, &out); err != nil {
		return nil, err
	}
	return out.Signatures, nil
}

// Notifications lists the caller's notifications
func (c *Client) Notifications(ctx context.Context, unreadOnly bool, limit int) ([]models.Notification, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread", "true")
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/notifications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// MarkNotificationRead marks one of the caller's notifications read
func (c *Client) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/api/v1/notifications/"+id.String()+"/read", nil, nil)
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
