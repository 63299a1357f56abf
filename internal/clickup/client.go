// Package clickup is a typed client for the remote workspace REST API
// (base path /api/v2). It covers exactly the surface the deployment engine
// and template registry need.
package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.clickup.com/api/v2"

const callTimeout = 30 * time.Second

// Client talks to the remote workspace API with a raw API token.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	guard   timeout.Timeout[[]byte]
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// New returns a client for the given API token. Transient network failures
// and 5xx responses are retried by the transport; 429 is never retried here
// because the deployment pacing policy owns rate-limit cooldowns.
func New(token string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = callTimeout
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		http:    rc,
		guard: timeout.New[[]byte](timeout.Config{
			DefaultTimeout: callTimeout,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	return c.guard.Execute(ctx, callTimeout, func(ctx context.Context) ([]byte, error) {
		var bodyReader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(data)
		}

		req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return nil, &APIError{Status: resp.StatusCode, Endpoint: path, Body: string(respBody)}
		}
		return respBody, nil
	})
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// AuthorizedUser verifies the API token by fetching the current user.
func (c *Client) AuthorizedUser(ctx context.Context) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.get(ctx, "/user", &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Teams lists the workspaces the token can reach, members included.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var resp struct {
		Teams []Team `json:"teams"`
	}
	if err := c.get(ctx, "/team", &resp); err != nil {
		return nil, err
	}
	return resp.Teams, nil
}

// Spaces lists the spaces of a team.
func (c *Client) Spaces(ctx context.Context, teamID string) ([]Space, error) {
	var resp struct {
		Spaces []Space `json:"spaces"`
	}
	if err := c.get(ctx, "/team/"+url.PathEscape(teamID)+"/space", &resp); err != nil {
		return nil, err
	}
	return resp.Spaces, nil
}

// Folders lists the folders of a space.
func (c *Client) Folders(ctx context.Context, spaceID string) ([]Folder, error) {
	var resp struct {
		Folders []Folder `json:"folders"`
	}
	if err := c.get(ctx, "/space/"+url.PathEscape(spaceID)+"/folder", &resp); err != nil {
		return nil, err
	}
	return resp.Folders, nil
}

// Lists lists the lists of a folder.
func (c *Client) Lists(ctx context.Context, folderID string) ([]List, error) {
	var resp struct {
		Lists []List `json:"lists"`
	}
	if err := c.get(ctx, "/folder/"+url.PathEscape(folderID)+"/list", &resp); err != nil {
		return nil, err
	}
	return resp.Lists, nil
}

// FolderlessLists lists the lists attached directly to a space.
func (c *Client) FolderlessLists(ctx context.Context, spaceID string) ([]List, error) {
	var resp struct {
		Lists []List `json:"lists"`
	}
	if err := c.get(ctx, "/space/"+url.PathEscape(spaceID)+"/list", &resp); err != nil {
		return nil, err
	}
	return resp.Lists, nil
}

// CreateList creates a list inside a folder.
func (c *Client) CreateList(ctx context.Context, folderID string, req CreateListRequest) (*List, error) {
	var list List
	if err := c.post(ctx, "/folder/"+url.PathEscape(folderID)+"/list", req, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateFolderlessList creates a list directly inside a space.
func (c *Client) CreateFolderlessList(ctx context.Context, spaceID string, req CreateListRequest) (*List, error) {
	var list List
	if err := c.post(ctx, "/space/"+url.PathEscape(spaceID)+"/list", req, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// AddListStatus appends one status to a list's scheme. Used as the fallback
// when the status template on list creation is rejected.
func (c *Client) AddListStatus(ctx context.Context, listID string, status Status) error {
	return c.post(ctx, "/list/"+url.PathEscape(listID)+"/status", status, nil)
}

// ListFields returns the custom fields live on a list.
func (c *Client) ListFields(ctx context.Context, listID string) ([]Field, error) {
	var resp struct {
		Fields []Field `json:"fields"`
	}
	if err := c.get(ctx, "/list/"+url.PathEscape(listID)+"/field", &resp); err != nil {
		return nil, err
	}
	return resp.Fields, nil
}

// CreateTask creates a task in a list.
func (c *Client) CreateTask(ctx context.Context, listID string, req CreateTaskRequest) (*Task, error) {
	var task Task
	if err := c.post(ctx, "/list/"+url.PathEscape(listID)+"/task", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask deletes a task. Used only by rollback.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/task/"+url.PathEscape(taskID), nil)
	return err
}

// AddWatchers attaches watchers to a task additively.
func (c *Client) AddWatchers(ctx context.Context, taskID string, userIDs []int) error {
	body := map[string]any{"watchers": WatcherUpdate{Add: userIDs}}
	_, err := c.do(ctx, http.MethodPut, "/task/"+url.PathEscape(taskID), body)
	return err
}

// SetCustomField sets one custom field value on an existing task.
func (c *Client) SetCustomField(ctx context.Context, taskID, fieldID string, value any) error {
	body := map[string]any{"value": value}
	return c.post(ctx, "/task/"+url.PathEscape(taskID)+"/field/"+url.PathEscape(fieldID), body, nil)
}

// CreateChecklist creates an empty checklist on a task.
func (c *Client) CreateChecklist(ctx context.Context, taskID, name string) (*Checklist, error) {
	var resp struct {
		Checklist Checklist `json:"checklist"`
	}
	body := map[string]string{"name": name}
	if err := c.post(ctx, "/task/"+url.PathEscape(taskID)+"/checklist", body, &resp); err != nil {
		return nil, err
	}
	return &resp.Checklist, nil
}

// CreateChecklistItem appends one item to a checklist at the given position.
func (c *Client) CreateChecklistItem(ctx context.Context, checklistID, name string, orderIndex int) error {
	body := map[string]any{"name": name, "orderindex": orderIndex, "resolved": false}
	return c.post(ctx, "/checklist/"+url.PathEscape(checklistID)+"/checklist_item", body, nil)
}

// GetTask fetches one task with its attachments and custom field values.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	if err := c.get(ctx, "/task/"+url.PathEscape(taskID), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Tasks lists the tasks of a list. Used by the template registry to locate
// the task holding a template document.
func (c *Client) Tasks(ctx context.Context, listID string) ([]Task, error) {
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.get(ctx, "/list/"+url.PathEscape(listID)+"/task", &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// UploadAttachment attaches a document to a task via multipart upload.
func (c *Client) UploadAttachment(ctx context.Context, taskID, filename string, content []byte) (*Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("attachment", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("write multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	path := "/task/" + url.PathEscape(taskID) + "/attachment"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{Status: resp.StatusCode, Endpoint: path, Body: string(respBody)}
	}

	var att Attachment
	if err := json.Unmarshal(respBody, &att); err != nil {
		return nil, fmt.Errorf("decode attachment: %w", err)
	}
	return &att, nil
}

// FetchURL downloads an attachment's content from its public URL.
func (c *Client) FetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, &APIError{Status: resp.StatusCode, Endpoint: rawURL, Body: ""}
	}
	return io.ReadAll(resp.Body)
}
