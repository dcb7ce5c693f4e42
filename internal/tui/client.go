package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/area-fans/internal/aggregate"
	"github.com/nerrad567/area-fans/internal/configflow"
)

// defaultTimeout bounds every API request.
const defaultTimeout = 10 * time.Second

// ErrAborted is returned when the service refuses a setup step.
var ErrAborted = errors.New("tui: flow aborted")

// Client is a minimal REST client for the configuration endpoints.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the API rooted at baseURL, for example
// "http://localhost:8099". token may be empty when the API is open.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// apiError is the error body returned by the service.
type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// do sends a request and decodes a JSON response into out. Conflict
// responses carrying a flow result are decoded too.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) (err error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", cerr)
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusConflict {
		apiErr := &apiError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// LoadForm returns the form to edit: the setup form when no entry exists,
// otherwise the options form of the existing entry together with its id.
func (c *Client) LoadForm(ctx context.Context) (*configflow.Form, string, error) {
	var res configflow.Result
	if err := c.do(ctx, http.MethodGet, "/config/flow", nil, &res); err != nil {
		return nil, "", err
	}
	if res.Type == configflow.ResultForm {
		return res.Form, "", nil
	}

	var entries struct {
		Entries []configflow.Entry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/config/entries", nil, &entries); err != nil {
		return nil, "", err
	}
	if len(entries.Entries) == 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrAborted, res.Reason)
	}
	entryID := entries.Entries[0].ID

	if err := c.do(ctx, http.MethodGet, "/config/entries/"+entryID+"/options", nil, &res); err != nil {
		return nil, "", err
	}
	return res.Form, entryID, nil
}

// Submit sends input to the setup step, or to the options step of entryID
// when it is set.
func (c *Client) Submit(ctx context.Context, entryID string, input configflow.Input) (*configflow.Entry, error) {
	path := "/config/flow"
	if entryID != "" {
		path = "/config/entries/" + entryID + "/options"
	}

	var res configflow.Result
	if err := c.do(ctx, http.MethodPost, path, input, &res); err != nil {
		return nil, err
	}
	if res.Type == configflow.ResultAbort {
		return nil, fmt.Errorf("%w: %s", ErrAborted, res.Reason)
	}
	return res.Entry, nil
}

// Aggregates lists the current aggregates.
func (c *Client) Aggregates(ctx context.Context) ([]aggregate.Snapshot, error) {
	var out struct {
		Aggregates []aggregate.Snapshot `json:"aggregates"`
	}
	if err := c.do(ctx, http.MethodGet, "/aggregates", nil, &out); err != nil {
		return nil, err
	}
	return out.Aggregates, nil
}

// SetSwitch turns an aggregate switch on or off.
func (c *Client) SetSwitch(ctx context.Context, entityID string, on bool) (*aggregate.Snapshot, error) {
	action := "turn_off"
	if on {
		action = "turn_on"
	}
	var snap aggregate.Snapshot
	if err := c.do(ctx, http.MethodPost, "/aggregates/"+entityID+"/"+action, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
