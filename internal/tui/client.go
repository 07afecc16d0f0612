package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fentz26/designboard/internal/controlplane"
	"github.com/fentz26/designboard/internal/feed"
	"github.com/fentz26/designboard/internal/models"
	"github.com/fentz26/designboard/internal/store"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status   int
	Response controlplane.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Response.Kind != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.Status, e.Response.Kind, e.Response.Error)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Response.Error)
}

// Unwrap lets callers match store.ErrConcurrentModification on a strict
// write conflict and store.ErrTerminalStatus on a rejected reopen.
func (e *APIError) Unwrap() error {
	switch e.Response.Kind {
	case "concurrent_modification":
		return store.ErrConcurrentModification
	case "terminal_status":
		return store.ErrTerminalStatus
	}
	return nil
}

// Client wraps HTTP calls to the designboard API. It satisfies
// session.Store, so a board session can run against a remote daemon.
type Client struct {
	baseURL    string
	actorID    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL, actorID string) *Client {
	return &Client{
		baseURL: baseURL,
		actorID: actorID,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// ActorID returns the id sent with every request.
func (c *Client) ActorID() string { return c.actorID }

// Feed returns the daemon's change feed. Its HTTP client has no timeout.
func (c *Client) Feed() *feed.Remote {
	return &feed.Remote{URL: c.baseURL + "/events", Client: &http.Client{}}
}

func (c *Client) do(ctx context.Context, method, path, actorID string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(controlplane.ActorHeader, actorID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr.Response) != nil || apiErr.Response.Error == "" {
			apiErr.Response.Error = string(bytes.TrimSpace(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func taskPath(id, suffix string) string {
	return "/tasks/" + url.PathEscape(id) + suffix
}

// Me fetches the configured actor for this client.
func (c *Client) Me(ctx context.Context) (models.Actor, error) {
	var actor models.Actor
	err := c.do(ctx, http.MethodGet, "/me", c.actorID, nil, &actor)
	return actor, err
}

// Snapshot fetches every live task and open change request.
func (c *Client) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := c.do(ctx, http.MethodGet, "/snapshot", c.actorID, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// UpdateStatus writes a transition the session has already guarded.
func (c *Client) UpdateStatus(ctx context.Context, taskID string, change models.StatusChange) error {
	return c.do(ctx, http.MethodPut, taskPath(taskID, "/status"), c.actorID, change, nil)
}

// AcceptTask assigns the task to actorID.
func (c *Client) AcceptTask(ctx context.Context, taskID, actorID string) error {
	return c.do(ctx, http.MethodPost, taskPath(taskID, "/accept"), actorID, nil, nil)
}

// UpdateOrderNumber sets the production order code.
func (c *Client) UpdateOrderNumber(ctx context.Context, taskID, orderNumber string) error {
	return c.do(ctx, http.MethodPut, taskPath(taskID, "/order-number"), c.actorID,
		map[string]string{"order_number": orderNumber}, nil)
}

// SendToDesigner marks the client's logo as sent.
func (c *Client) SendToDesigner(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodPost, taskPath(taskID, "/send-to-designer"), c.actorID, nil, nil)
}

// CreateTask creates a Pending task.
func (c *Client) CreateTask(ctx context.Context, in store.NewTask) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", c.actorID, in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// RequestChange opens a change request on a task.
func (c *Client) RequestChange(ctx context.Context, taskID, description string) (*models.ChangeRequest, error) {
	var cr models.ChangeRequest
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "/change-requests"), c.actorID,
		map[string]string{"description": description}, &cr)
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

// History fetches the decision records for a task.
func (c *Client) History(ctx context.Context, taskID string) ([]models.PDREntry, error) {
	var entries []models.PDREntry
	err := c.do(ctx, http.MethodGet, taskPath(taskID, "/history"), c.actorID, nil, &entries)
	return entries, err
}
