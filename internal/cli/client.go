package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/devfleet/devfleet/internal/api"
	"github.com/devfleet/devfleet/internal/domain"
)

// Client is an HTTP client for the devfleet control API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetStatus gets orchestrator status
func (c *Client) GetStatus() (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.get("/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetServices gets all services
func (c *Client) GetServices() (*api.ServiceListResponse, error) {
	var resp api.ServiceListResponse
	if err := c.get("/api/v1/services", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetService gets a single service
func (c *Client) GetService(name string) (*api.ServiceResponse, error) {
	var resp api.ServiceResponse
	if err := c.get("/api/v1/services/"+url.PathEscape(name), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartService starts a service
func (c *Client) StartService(name string) error {
	var resp api.ServiceResponse
	return c.post("/api/v1/services/"+url.PathEscape(name)+"/start", &resp)
}

// StopService stops a service
func (c *Client) StopService(name string, force bool) error {
	path := "/api/v1/services/" + url.PathEscape(name) + "/stop"
	if force {
		path += "?force=true"
	}
	var resp api.ServiceResponse
	return c.post(path, &resp)
}

// RestartService restarts a service
func (c *Client) RestartService(name string) error {
	var resp api.ServiceResponse
	return c.post("/api/v1/services/"+url.PathEscape(name)+"/restart", &resp)
}

// LogParams contains parameters for log queries
type LogParams struct {
	Service string
	Lines   int
	Level   string
	Pattern string
	Follow  bool
}

// StreamLogs fetches log records and calls the callback for each entry. The
// response is newline-delimited JSON; in follow mode it runs until the
// connection closes.
func (c *Client) StreamLogs(params LogParams, callback func(domain.LogEntry)) error {
	query := url.Values{}
	if params.Service != "" {
		query.Set("service", params.Service)
	}
	if params.Lines > 0 {
		query.Set("lines", strconv.Itoa(params.Lines))
	}
	if params.Level != "" {
		query.Set("level", params.Level)
	}
	if params.Pattern != "" {
		query.Set("pattern", params.Pattern)
	}
	if params.Follow {
		query.Set("follow", "true")
	}

	path := "/api/v1/logs"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	// No overall timeout: followed streams are unbounded.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry domain.LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err == nil {
			callback(entry)
		}
	}
}

func (c *Client) get(path string, v any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return c.decode(resp, v)
}

func (c *Client) post(path string, v any) error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return c.decode(resp, v)
}

func (c *Client) decode(resp *http.Response, v any) error {
	if resp.StatusCode >= 400 {
		var errResp api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Code != "" {
			return fmt.Errorf("%s: %s", errResp.Code, errResp.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
