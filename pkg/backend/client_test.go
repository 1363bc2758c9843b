package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-coursebook/pkg/notebook"
)

const storedNotebook = `{"cells": [{"cell_type": "code", "source": ["x = 1\n", "print(x)"], "outputs": [], "execution_count": null, "metadata": {}}], "metadata": {}, "nbformat": 4, "nbformat_minor": 5}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithExecutionTimeout(30*time.Second))
}

func TestFetchNotebook(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/notebook", r.URL.Path)
		assert.Equal(t, "Data/1.LCG/hist.ipynb", r.URL.Query().Get("path"))
		_, _ = io.WriteString(w, storedNotebook)
	})

	doc, err := c.FetchNotebook(context.Background(), "Data/1.LCG/hist.ipynb")
	require.NoError(t, err)
	require.Len(t, doc.Cells, 1)
	assert.Equal(t, "x = 1\nprint(x)", doc.Cells[0].Source)
}

func TestFetchNotebookUnreadable(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"not": "a notebook"}`)
	})

	_, err := c.FetchNotebook(context.Background(), "Data/x.ipynb")
	var pe *notebook.ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestStatusErrorCarriesDetail(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail": "Notebook not found"}`)
	})

	_, err := c.FetchNotebook(context.Background(), "Data/missing.ipynb")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "Notebook not found", se.Detail)
	assert.Contains(t, err.Error(), "404")
}

func TestStatusErrorPlainBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := c.DownloadData(context.Background(), "Data/a.csv")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "upstream exploded", se.Detail)
}

func TestExecutePath(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/execute", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Data/1.LCG/hist.ipynb", req["path"])
		assert.EqualValues(t, 30, req["timeout"])
		assert.NotContains(t, req, "notebook")

		_, _ = io.WriteString(w, `{"notebook": `+storedNotebook+`, "last_cell": 0}`)
	})

	res, err := c.ExecutePath(context.Background(), "Data/1.LCG/hist.ipynb")
	require.NoError(t, err)
	require.NotNil(t, res.Notebook)
	assert.Empty(t, res.Error)
	assert.Len(t, res.Notebook.Cells, 1)
}

func TestExecuteContentSendsDocument(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/execute_nb", r.URL.Path)
		var req struct {
			Notebook json.RawMessage `json:"notebook"`
			Path     string          `json:"path"`
			Timeout  int             `json:"timeout"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Data/2.GBM/sim.ipynb", req.Path)
		assert.Equal(t, 30, req.Timeout)

		sent, err := notebook.Parse(req.Notebook)
		require.NoError(t, err)
		assert.Equal(t, "y = 2", sent.Cells[0].Source)

		_, _ = io.WriteString(w, `{"notebook": `+string(req.Notebook)+`, "error": "Error in cell 0", "last_cell": 0}`)
	})

	doc := &notebook.Document{Cells: []notebook.Cell{{Kind: notebook.CellCode, Source: "y = 2"}}}
	res, err := c.ExecuteContent(context.Background(), "Data/2.GBM/sim.ipynb", doc)
	require.NoError(t, err)
	assert.Equal(t, "Error in cell 0", res.Error)
	assert.Equal(t, "y = 2", res.Notebook.Cells[0].Source)
}

func TestExecuteWithoutNotebook(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error": "kernel died"}`)
	})

	_, err := c.ExecutePath(context.Background(), "Data/x.ipynb")
	assert.ErrorIs(t, err, ErrNoNotebook)
}

func TestExecuteHonorsContext(t *testing.T) {
	release := make(chan struct{})
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ExecutePath(ctx, "Data/x.ipynb")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDownloadRawExecutedFlag(t *testing.T) {
	var (
		mu    sync.Mutex
		flags []string
	)
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/download", r.URL.Path)
		mu.Lock()
		flags = append(flags, r.URL.Query().Get("executed"))
		mu.Unlock()
		_, _ = io.WriteString(w, "bytes")
	})

	for _, executed := range []bool{false, true} {
		body, err := c.DownloadRaw(context.Background(), "Data/1.LCG/lcg.py", executed)
		require.NoError(t, err)
		assert.Equal(t, "bytes", string(body))
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"0", "1"}, flags)
}

func TestPreviewTabular(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/data/preview", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("max_rows"))
		_, _ = io.WriteString(w, `{"columns": ["a", "b"], "rows": [{"a": 1, "b": "x"}], "total_preview_rows": 1, "truncated": false}`)
	})

	p, err := c.PreviewTabular(context.Background(), "Data/table.csv", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.Columns)
	require.Len(t, p.Rows, 1)
	assert.EqualValues(t, 1, p.Rows[0]["a"])
	assert.False(t, p.Truncated)
}

func TestHealth(t *testing.T) {
	var ok atomic.Bool
	ok.Store(true)
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": ok.Load()})
	})

	assert.NoError(t, c.Health(context.Background()))
	ok.Store(false)
	assert.Error(t, c.Health(context.Background()))
}

func TestExecutionTimeoutSeconds(t *testing.T) {
	assert.Equal(t, 120, NewClient("http://backend").timeoutSeconds())
	assert.Equal(t, 300, NewClient("http://backend", WithExecutionTimeout(5*time.Minute)).timeoutSeconds())

	// Sub-second values would be sent as zero seconds.
	assert.Equal(t, 120, NewClient("http://backend", WithExecutionTimeout(300*time.Nanosecond)).timeoutSeconds())
	assert.Equal(t, 120, NewClient("http://backend", WithExecutionTimeout(0)).timeoutSeconds())
}
