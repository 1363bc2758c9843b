package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-coursebook/pkg/notebook"
)

const (
	// DefaultTimeout is the per-notebook execution timeout sent to the backend.
	DefaultTimeout = 120 * time.Second
	// DefaultMaxRows bounds a tabular preview.
	DefaultMaxRows = 200
)

// ErrNoNotebook is returned when an execution response has no document.
var ErrNoNotebook = errors.New("execution response carried no notebook")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Detail)
}

// ExecutionResult is the answer to an execute request. Error is set when
// a cell failed; Notebook then holds the partially executed document.
type ExecutionResult struct {
	Notebook *notebook.Document `json:"notebook"`
	Error    string             `json:"error,omitempty"`
	LastCell int                `json:"last_cell"`
}

// Preview is the first rows of a tabular data file.
type Preview struct {
	Columns          []string                 `json:"columns"`
	Rows             []map[string]interface{} `json:"rows"`
	TotalPreviewRows int                      `json:"total_preview_rows"`
	Truncated        bool                     `json:"truncated"`
}

// Client talks to the notebook execution and file preview backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *logrus.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithExecutionTimeout sets the timeout the backend applies per run. The
// backend takes whole seconds, so durations under a second are ignored.
func WithExecutionTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= time.Second {
			c.timeout = d
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.WithField("component", "backend")
		}
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	l := logrus.New()
	l.SetOutput(io.Discard)
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		logger:     logrus.NewEntry(l),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health reports whether the backend answers its health probe.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.getJSON(ctx, "health", "/health", nil, &out); err != nil {
		return err
	}
	if !out.OK {
		return fmt.Errorf("health: backend not ready")
	}
	return nil
}

// FetchNotebook reads the notebook stored at virtualPath.
func (c *Client) FetchNotebook(ctx context.Context, virtualPath string) (*notebook.Document, error) {
	body, err := c.get(ctx, "fetch notebook", "/api/notebook", url.Values{"path": {virtualPath}})
	if err != nil {
		return nil, err
	}
	doc, err := notebook.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("fetch notebook %s: %w", virtualPath, err)
	}
	return doc, nil
}

// ExecutePath asks the backend to run the stored notebook at virtualPath.
func (c *Client) ExecutePath(ctx context.Context, virtualPath string) (*ExecutionResult, error) {
	req := map[string]interface{}{
		"path":    virtualPath,
		"timeout": c.timeoutSeconds(),
	}
	return c.execute(ctx, "execute", "/api/execute", req)
}

// ExecuteContent runs doc. virtualPath names the stored notebook whose
// directory is used as the working directory for the run.
func (c *Client) ExecuteContent(ctx context.Context, virtualPath string, doc *notebook.Document) (*ExecutionResult, error) {
	req := map[string]interface{}{
		"notebook": doc,
		"path":     virtualPath,
		"timeout":  c.timeoutSeconds(),
	}
	return c.execute(ctx, "execute content", "/api/execute_nb", req)
}

// DownloadRaw returns the bytes of a stored file. With executed set, the
// backend's last executed copy of the notebook is returned instead.
func (c *Client) DownloadRaw(ctx context.Context, virtualPath string, executed bool) ([]byte, error) {
	flag := "0"
	if executed {
		flag = "1"
	}
	return c.get(ctx, "download", "/api/download", url.Values{"path": {virtualPath}, "executed": {flag}})
}

// DownloadData returns the bytes of a tabular or .dat data file.
func (c *Client) DownloadData(ctx context.Context, virtualPath string) ([]byte, error) {
	return c.get(ctx, "download data", "/api/data/download", url.Values{"path": {virtualPath}})
}

// PreviewTabular returns up to maxRows rows of a CSV or spreadsheet.
func (c *Client) PreviewTabular(ctx context.Context, virtualPath string, maxRows int) (*Preview, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	var p Preview
	q := url.Values{"path": {virtualPath}, "max_rows": {strconv.Itoa(maxRows)}}
	if err := c.getJSON(ctx, "preview", "/api/data/preview", q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) timeoutSeconds() int {
	return int(c.timeout / time.Second)
}

func (c *Client) execute(ctx context.Context, op, endpoint string, payload interface{}) (*ExecutionResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}
	start := time.Now()
	resp, err := c.do(ctx, op, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var res ExecutionResult
	if err := json.Unmarshal(resp, &res); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if res.Notebook == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoNotebook)
	}
	c.logger.WithFields(logrus.Fields{
		"op":        op,
		"last_cell": res.LastCell,
		"failed":    res.Error != "",
		"duration":  time.Since(start),
	}).Debug("Execution finished")
	return &res, nil
}

func (c *Client) get(ctx context.Context, op, endpoint string, query url.Values) ([]byte, error) {
	return c.do(ctx, op, http.MethodGet, endpoint, query, nil)
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, query url.Values, out interface{}) error {
	body, err := c.get(ctx, op, endpoint, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, query url.Values, body io.Reader) ([]byte, error) {
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.WithFields(logrus.Fields{"op": op, "url": u}).Debug("Backend request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}
	return data, nil
}

// errorDetail extracts the "detail" message of a JSON error body, or
// returns the body text.
func errorDetail(body []byte) string {
	var e struct {
		Detail interface{} `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != nil {
		if s, ok := e.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(e.Detail)
		return string(b)
	}
	return strings.TrimSpace(string(body))
}
