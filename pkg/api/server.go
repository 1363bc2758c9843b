// Package api serves the course tree, search and file access as JSON.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-coursebook/pkg/backend"
	"github.com/mattsolo1/grove-coursebook/pkg/content"
	"github.com/mattsolo1/grove-coursebook/pkg/execcache"
	"github.com/mattsolo1/grove-coursebook/pkg/notebook"
	"github.com/mattsolo1/grove-coursebook/pkg/search"
	"github.com/mattsolo1/grove-coursebook/pkg/service"
)

// AssetPrefix is the route under which course assets are served.
const AssetPrefix = "/content"

// Handlers serves one course.
type Handlers struct {
	svc    *service.Service
	logger *logrus.Entry
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *service.Service, logger *logrus.Entry) *Handlers {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	return &Handlers{svc: svc, logger: logger.WithField("component", "api")}
}

// NewRouter returns an engine with every route registered.
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())
	RegisterRoutes(r, h)
	r.Static(AssetPrefix, h.svc.Course.Root)
	return r
}

// RegisterRoutes registers the JSON endpoints.
//
//	GET  /health
//	GET  /api/chapters?q=
//	GET  /api/search?q=&chapter=&ext=&limit=
//	GET  /api/files?path=
//	GET  /api/notebook?path=&executed=
//	GET  /api/executions
//	GET  /api/preview?path=&max_rows=
//	GET  /api/download?path=&executed=
//	POST /api/index
func RegisterRoutes(r gin.IRouter, h *Handlers) {
	r.GET("/health", h.Health)
	g := r.Group("/api")
	g.GET("/chapters", h.Chapters)
	g.GET("/search", h.Search)
	g.GET("/files", h.File)
	g.GET("/notebook", h.Notebook)
	g.GET("/executions", h.Executions)
	g.GET("/preview", h.Preview)
	g.GET("/download", h.Download)
	g.POST("/index", h.Reindex)
}

func (h *Handlers) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("Request handled")
	}
}

// Health reports the served course.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "course": h.svc.Course.Title()})
}

// Chapters returns the tree filtered by q with the keys to expand.
func (h *Handlers) Chapters(c *gin.Context) {
	res, err := h.svc.Filter(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"title":       h.svc.Course.Title(),
		"chapters":    chapterViews(res.Chapters),
		"expand_keys": res.ExpandKeys,
	})
}

// Search returns content-text hits.
func (h *Handlers) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	opts := []service.SearchOption{
		service.InChapter(c.Query("chapter")),
		service.WithExt(c.Query("ext")),
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		opts = append(opts, service.WithLimit(limit))
	}
	hits, err := h.svc.SearchContent(c.Request.Context(), q, opts...)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "hits": hits})
}

// File returns one file with its payload.
func (h *Handlers) File(c *gin.Context) {
	f, err := h.svc.File(c.Request.Context(), c.Query("path"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"file":     f,
		"label":    content.PrettyLabel(f.Name),
		"notebook": f.IsNotebook(),
		"tabular":  f.IsTabular(),
	})
}

// Notebook returns the stored or last executed notebook document.
func (h *Handlers) Notebook(c *gin.Context) {
	executed := c.Query("executed") == "1" || c.Query("executed") == "true"
	doc, err := h.svc.Notebook(c.Request.Context(), c.Query("path"), executed)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Executions lists the locally cached executions.
func (h *Handlers) Executions(c *gin.Context) {
	entries, err := h.svc.Executions.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": entries})
}

// Preview returns a table or text preview of a data file.
func (h *Handlers) Preview(c *gin.Context) {
	maxRows, _ := strconv.Atoi(c.Query("max_rows"))
	p, err := h.svc.Preview(c.Request.Context(), c.Query("path"), maxRows)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Download streams a file as an attachment.
func (h *Handlers) Download(c *gin.Context) {
	executed := c.Query("executed") == "1" || c.Query("executed") == "true"
	data, name, err := h.svc.Download(c.Request.Context(), c.Query("path"), executed)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// Reindex rebuilds the tree and content index.
func (h *Handlers) Reindex(c *gin.Context) {
	n, err := h.svc.Reindex(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexed": n})
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var se *backend.StatusError
	var pe *notebook.ParseError
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, execcache.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNotNotebook), errors.Is(err, notebook.ErrUnsupportedKind):
		status = http.StatusBadRequest
	case errors.As(err, &pe):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &se):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.Request.URL.Path).Warn("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// chapterView adds display labels to a chapter for clients.
type chapterView struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Label  string          `json:"label"`
	Key    string          `json:"key"`
	Folder *content.Folder `json:"root"`
}

func chapterViews(chapters []content.Chapter) []chapterView {
	out := make([]chapterView, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, chapterView{
			ID:     ch.ID,
			Title:  ch.Title,
			Label:  content.PrettyLabel(ch.Title),
			Key:    search.ChapterKey(ch),
			Folder: ch.Root,
		})
	}
	return out
}
