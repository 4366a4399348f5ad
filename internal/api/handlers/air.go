package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"air-server/internal/api/models"
	"air-server/internal/auditlog"
	"air-server/internal/model"
	"air-server/internal/pricing"

	"github.com/gin-gonic/gin"
)

// Unknown stands in for caller headers that were not sent.
const Unknown = "Unknown"

// AirOptions tunes how pricing calls are recorded.
type AirOptions struct {
	WriteTimeout      time.Duration
	StoreResponseBody bool
	Now               func() time.Time
}

// AirHandler serves the pricing endpoint and records every call.
type AirHandler struct {
	engine *pricing.Engine
	store  auditlog.Store
	opts   AirOptions
	logger *slog.Logger
}

// NewAirHandler creates a new pricing handler
func NewAirHandler(engine *pricing.Engine, store auditlog.Store, opts AirOptions, logger *slog.Logger) *AirHandler {
	if engine == nil {
		engine = pricing.New(nil)
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AirHandler{engine: engine, store: store, opts: opts, logger: logger}
}

// Price handles POST /api/air. The answer is always 200: failures travel
// inside the payload so spreadsheet clients can show them in a cell.
func (h *AirHandler) Price(c *gin.Context) {
	start := h.opts.Now()

	userName := rawHeader(c, "UserName")
	machine := rawHeader(c, "Machine")

	var req models.AirRequest
	resp, runErr := h.run(c, &req)

	elapsed := h.opts.Now().Sub(start)
	rec := model.AuditRecord{
		Timestamp:    start.UTC(),
		Machine:      orUnknown(machine),
		Username:     orUnknown(userName),
		ClientIP:     c.ClientIP(),
		Endpoint:     c.Request.URL.Path,
		Method:       c.Request.Method,
		Parameters:   req.Args(userName, machine).JSON(),
		ResponseTime: float64(elapsed) / float64(time.Millisecond),
		StatusCode:   http.StatusOK,
		UserAgent:    headerOr(c, "User-Agent", Unknown),
		Referrer:     headerOr(c, "Referer", Unknown),
	}
	if runErr != nil {
		rec.StatusCode = http.StatusInternalServerError
		rec.ErrorMessage = model.StringPtr(runErr.Error())
		h.logger.Warn("pricing failed",
			"user", rec.Username,
			"machine", rec.Machine,
			"error", runErr,
		)
	} else {
		h.logger.Debug("priced scenarios",
			"user", rec.Username,
			"rows", len(resp.Data),
			"elapsed", elapsed,
		)
	}
	if h.opts.StoreResponseBody {
		if body, err := json.Marshal(resp); err == nil {
			rec.ResponseBody = model.StringPtr(string(body))
		}
	}
	h.record(c.Request.Context(), rec)

	c.JSON(http.StatusOK, resp)
}

func (h *AirHandler) run(c *gin.Context, req *models.AirRequest) (model.PricingResponse, error) {
	var err error
	if strings.HasPrefix(c.ContentType(), "application/json") {
		err = c.ShouldBindJSON(req)
	} else {
		err = c.ShouldBind(req)
	}
	if err != nil {
		return model.ErrorResponse(err), err
	}
	res, err := h.engine.Run(req.PricingRequest())
	if err != nil {
		return model.ErrorResponse(err), err
	}
	return model.PricingResponse{Data: res.Rows}, nil
}

// record writes the audit entry. The write outlives a disconnecting client
// and its failure never reaches the caller.
func (h *AirHandler) record(parent context.Context, rec model.AuditRecord) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), h.opts.WriteTimeout)
	defer cancel()
	if _, err := h.store.Append(ctx, rec); err != nil {
		h.logger.Error("failed to record api call",
			"endpoint", rec.Endpoint,
			"status_code", rec.StatusCode,
			"error", err,
		)
	}
}

// rawHeader returns the header as sent, nil when absent.
func rawHeader(c *gin.Context, name string) *string {
	vals := c.Request.Header.Values(name)
	if len(vals) == 0 {
		return nil
	}
	return &vals[0]
}

func headerOr(c *gin.Context, name, fallback string) string {
	if v := c.GetHeader(name); v != "" {
		return v
	}
	return fallback
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return Unknown
	}
	return *s
}
