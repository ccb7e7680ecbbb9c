// Package remote implements the REST client for the hosted TimeStitch
// backend (database, object storage, auth).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/timestitch/timestitch/internal/domain"
)

const defaultTimeout = 15 * time.Second

// Client implements domain.Remote over HTTP. Connectivity failures and
// timeouts come back as domain.ErrRemoteUnavailable so callers can decide
// to queue; 4xx responses come back as *domain.RemoteRejectedError.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a backend client. timeout <= 0 selects the default
// per-call timeout.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SetToken replaces the session token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// doRequest performs an authenticated HTTP request against the backend.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload interface{}) ([]byte, error) {
	reqURL := c.baseURL + path
	if query != nil {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("backend request", "method", method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failure or client timeout: the backend never confirmed
		// anything, so this is queueable.
		c.logger.Warn("backend unreachable", "method", method, "path", path, "error", err)
		return nil, domain.ErrRemoteUnavailable
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, domain.ErrAuthFailed
	case resp.StatusCode >= 500:
		// The backend answered but is unhealthy; treated like
		// unreachability so the fixed sync cadence retries it.
		c.logger.Warn("backend server error", "status", resp.StatusCode, "path", path)
		return nil, domain.ErrRemoteUnavailable
	default:
		var errResp errorResponse
		_ = json.Unmarshal(respBody, &errResp)
		c.logger.Error("backend rejected request", "status", resp.StatusCode, "path", path, "reason", errResp.Message)
		return nil, &domain.RemoteRejectedError{StatusCode: resp.StatusCode, Reason: errResp.Message}
	}
}

// Authenticate exchanges credentials for a session token.
func (c *Client) Authenticate(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	respBody, err := c.doRequest(ctx, http.MethodPost, "/auth/token", nil, body)
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse auth response: %w", err)
	}

	c.token = resp.AccessToken
	return &domain.AuthResult{
		Token:  resp.AccessToken,
		UserID: resp.User.ID,
		Email:  resp.User.Email,
	}, nil
}

// CurrentUser returns the identity behind the configured token.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/auth/user", nil, nil)
	if err != nil {
		return nil, err
	}

	var dto userDTO
	if err := json.Unmarshal(respBody, &dto); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	return &domain.User{ID: dto.ID, Email: dto.Email, Name: dto.Name}, nil
}

// ListProjects returns all projects for the current user.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/projects", nil, nil)
	if err != nil {
		return nil, err
	}

	var dtos []projectDTO
	if err := json.Unmarshal(respBody, &dtos); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return mapProjects(dtos), nil
}

// CreateProject creates a project, honoring the client-assigned ID.
func (c *Client) CreateProject(ctx context.Context, p domain.Project) (*domain.Project, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/projects", nil, toProjectDTO(p))
	if err != nil {
		return nil, err
	}

	var dto projectDTO
	if err := json.Unmarshal(respBody, &dto); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	created := mapProject(dto)
	return &created, nil
}

// UpdateProject applies a partial update to a project.
func (c *Client) UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch) (*domain.Project, error) {
	respBody, err := c.doRequest(ctx, http.MethodPatch, "/api/projects/"+url.PathEscape(id), nil, patch)
	if err != nil {
		return nil, err
	}

	var dto projectDTO
	if err := json.Unmarshal(respBody, &dto); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	updated := mapProject(dto)
	return &updated, nil
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil)
	return err
}

// ListMemories returns memories, optionally filtered to one project.
func (c *Client) ListMemories(ctx context.Context, projectID string) ([]domain.Memory, error) {
	var query url.Values
	if projectID != "" {
		query = url.Values{}
		query.Set("project_id", projectID)
	}

	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/memories", query, nil)
	if err != nil {
		return nil, err
	}

	var dtos []memoryDTO
	if err := json.Unmarshal(respBody, &dtos); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return mapMemories(dtos), nil
}

// CreateMemory creates a memory, honoring the client-assigned ID.
func (c *Client) CreateMemory(ctx context.Context, m domain.Memory) (*domain.Memory, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/memories", nil, toMemoryDTO(m))
	if err != nil {
		return nil, err
	}

	var dto memoryDTO
	if err := json.Unmarshal(respBody, &dto); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	created := mapMemory(dto)
	return &created, nil
}

// UpdateMemory applies a partial update to a memory.
func (c *Client) UpdateMemory(ctx context.Context, id string, patch domain.MemoryPatch) (*domain.Memory, error) {
	respBody, err := c.doRequest(ctx, http.MethodPatch, "/api/memories/"+url.PathEscape(id), nil, patch)
	if err != nil {
		return nil, err
	}

	var dto memoryDTO
	if err := json.Unmarshal(respBody, &dto); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	updated := mapMemory(dto)
	return &updated, nil
}

// DeleteMemory removes a memory.
func (c *Client) DeleteMemory(ctx context.Context, id string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/api/memories/"+url.PathEscape(id), nil, nil)
	return err
}

// UploadImage stores image bytes in the backend's bucket and returns a
// retrievable URL.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	reqURL := c.baseURL + "/api/storage/images"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Filename", filename)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("image upload failed, backend unreachable", "error", err)
		return "", domain.ErrRemoteUnavailable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return "", domain.ErrAuthFailed
	}
	if resp.StatusCode >= 500 {
		c.logger.Warn("backend server error during upload", "status", resp.StatusCode)
		return "", domain.ErrRemoteUnavailable
	}
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.Unmarshal(respBody, &errResp)
		return "", &domain.RemoteRejectedError{StatusCode: resp.StatusCode, Reason: errResp.Message}
	}

	var upload uploadResponse
	if err := json.Unmarshal(respBody, &upload); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	return upload.URL, nil
}

// Probe reports whether the backend answers its health endpoint. It
// satisfies connectivity.Prober.
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
