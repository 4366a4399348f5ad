package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"air-server/internal/api/models"
	"air-server/internal/auditlog"

	"github.com/gin-gonic/gin"
)

// CallsHandler exposes the audit log for administration.
type CallsHandler struct {
	store  auditlog.Store
	logger *slog.Logger
}

// NewCallsHandler creates a new audit log handler
func NewCallsHandler(store auditlog.Store, logger *slog.Logger) *CallsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallsHandler{store: store, logger: logger}
}

// pagingParams are query keys that are not column filters.
var pagingParams = map[string]bool{"page": true, "per_page": true}

// List handles GET /api/calls
func (h *CallsHandler) List(c *gin.Context) {
	q := c.Request.URL.Query()
	page, err := intParam(q, "page", 1)
	if err != nil {
		h.invalid(c, err)
		return
	}
	perPage, err := intParam(q, "per_page", auditlog.DefaultPerPage)
	if err != nil {
		h.invalid(c, err)
		return
	}
	p, err := h.store.Paginate(c.Request.Context(), page, perPage, filtersFrom(q))
	if err != nil {
		h.fail(c, "paginate", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// All handles GET /api/calls/all
func (h *CallsHandler) All(c *gin.Context) {
	recs, err := h.store.All(c.Request.Context(), filtersFrom(c.Request.URL.Query()))
	if err != nil {
		h.fail(c, "all", err)
		return
	}
	c.JSON(http.StatusOK, models.CallsResponse{Items: recs, Count: len(recs)})
}

// Count handles GET /api/calls/count
func (h *CallsHandler) Count(c *gin.Context) {
	n, err := h.store.CountBy(c.Request.Context(), filtersFrom(c.Request.URL.Query()))
	if err != nil {
		h.fail(c, "count", err)
		return
	}
	c.JSON(http.StatusOK, models.CountResponse{Count: n})
}

// Search handles GET /api/calls/search?q=term&fields=a,b
func (h *CallsHandler) Search(c *gin.Context) {
	var fields []string
	if raw := c.Query("fields"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}
	recs, err := h.store.Search(c.Request.Context(), c.Query("q"), fields)
	if err != nil {
		h.fail(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, models.CallsResponse{Items: recs, Count: len(recs)})
}

// Distinct handles GET /api/calls/distinct/:field
func (h *CallsHandler) Distinct(c *gin.Context) {
	field := c.Param("field")
	vals, err := h.store.DistinctValues(c.Request.Context(), field)
	if err != nil {
		h.fail(c, "distinct", err)
		return
	}
	if vals == nil {
		vals = []any{}
	}
	c.JSON(http.StatusOK, models.DistinctResponse{Field: field, Values: vals})
}

// Get handles GET /api/calls/:id
func (h *CallsHandler) Get(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	rec, err := h.store.FindByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "find", err)
		return
	}
	if rec == nil {
		notFound(c, id)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Update handles PATCH /api/calls/:id with a JSON object of column values.
func (h *CallsHandler) Update(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	var patch auditlog.Patch
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&patch); err != nil {
		h.invalid(c, err)
		return
	}
	rec, err := h.store.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, "update", err)
		return
	}
	if rec == nil {
		notFound(c, id)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Delete handles DELETE /api/calls/:id
func (h *CallsHandler) Delete(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	res, err := h.store.DeleteByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "delete", err)
		return
	}
	status := http.StatusOK
	if res.Status == auditlog.StatusNotFound {
		status = http.StatusNotFound
	}
	c.JSON(status, res)
}

// DeleteAll handles DELETE /api/calls
func (h *CallsHandler) DeleteAll(c *gin.Context) {
	res, err := h.store.DeleteAll(c.Request.Context())
	if err != nil {
		h.logger.Error("purge failed", "error", err)
		c.JSON(http.StatusInternalServerError, res)
		return
	}
	h.logger.Info("purged audit log", "rows_deleted", derefInt64(res.RowsDeleted))
	c.JSON(http.StatusOK, res)
}

func (h *CallsHandler) id(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, models.NewError(models.CodeInvalidID, "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *CallsHandler) invalid(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.NewError(models.CodeInvalidRequest, err.Error()))
}

// fail maps store errors: storage failures become an error status payload,
// anything else was a bad request.
func (h *CallsHandler) fail(c *gin.Context, op string, err error) {
	var se *auditlog.StorageError
	switch {
	case errors.As(err, &se):
		h.logger.Error("audit log read failed", "op", op, "error", err)
		c.JSON(http.StatusInternalServerError, models.StatusResponse{
			Status:  auditlog.StatusError,
			Message: err.Error(),
		})
	case errors.Is(err, auditlog.ErrUnknownField):
		c.JSON(http.StatusBadRequest, models.NewError(models.CodeUnknownField, err.Error()))
	default:
		h.invalid(c, err)
	}
}

func notFound(c *gin.Context, id int64) {
	resp := models.NewError(models.CodeNotFound, auditlog.StatusNotFound)
	resp.Error.Details = map[string]any{"id": id}
	c.JSON(http.StatusNotFound, resp)
}

func filtersFrom(q url.Values) auditlog.Filters {
	f := auditlog.Filters{}
	for key, vals := range q {
		if pagingParams[key] {
			continue
		}
		for _, v := range vals {
			f[key] = append(f[key], v)
		}
	}
	return f
}

func intParam(q url.Values, key string, fallback int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}

func derefInt64(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
