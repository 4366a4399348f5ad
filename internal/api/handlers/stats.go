package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"air-server/internal/analysis"
	"air-server/internal/api/models"
	"air-server/internal/auditlog"
	"air-server/internal/dashboard"
	"air-server/internal/version"

	"github.com/gin-gonic/gin"
)

// StatsOptions configures the dashboard.
type StatsOptions struct {
	PageSize int
	Location *time.Location
	Now      func() time.Time
}

// StatsHandler reports usage figures computed from the audit log.
type StatsHandler struct {
	store  auditlog.Store
	opts   StatsOptions
	logger *slog.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(store auditlog.Store, opts StatsOptions, logger *slog.Logger) *StatsHandler {
	if opts.PageSize < 1 {
		opts.PageSize = auditlog.DefaultPerPage
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{store: store, opts: opts, logger: logger}
}

// KPIs handles GET /api/stats
func (h *StatsHandler) KPIs(c *gin.Context) {
	recs, err := h.store.All(c.Request.Context(), nil)
	if err != nil {
		h.logger.Error("loading audit log", "error", err)
		c.JSON(http.StatusInternalServerError, models.StatusResponse{
			Status:  auditlog.StatusError,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, analysis.ComputeKPIs(recs, h.opts.Now(), h.opts.Location))
}

// Page handles GET /stats. Failures are shown on the page itself.
func (h *StatsHandler) Page(c *gin.Context) {
	page := dashboard.Page{
		Path:    c.Request.URL.Path,
		Version: version.String(),
	}
	q, err := dashboard.ParseQuery(c.Request.URL.Query(), h.opts.PageSize)
	if err != nil {
		page.Error = err.Error()
		q, _ = dashboard.ParseQuery(nil, h.opts.PageSize)
	}

	recs, err := h.store.All(c.Request.Context(), nil)
	if err != nil {
		h.logger.Error("loading audit log", "error", err)
		page.Error = err.Error()
		c.HTML(http.StatusOK, dashboard.PageTemplate, page)
		return
	}

	now := h.opts.Now()
	kpis := analysis.ComputeKPIs(recs, now, h.opts.Location)
	page.KPIs = &kpis

	table, err := dashboard.Build(recs, q, now, h.opts.Location, page.Path)
	if err != nil {
		// Show the unfiltered log next to the expression error.
		page.Error = err.Error()
		where := q.Where
		q.Where = ""
		table, _ = dashboard.Build(recs, q, now, h.opts.Location, page.Path)
		table.Query.Where = where
	}
	page.Table = table
	c.HTML(http.StatusOK, dashboard.PageTemplate, page)
}
