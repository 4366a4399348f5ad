package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"air-server/internal/auditlog"
	"air-server/internal/model"
	"air-server/internal/pricing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// stepClock returns start on the first call and advances by step on each
// later call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	t := start.Add(-step)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func newAirRouter(store auditlog.Store, opts AirOptions) *gin.Engine {
	pricer := pricing.NewStubPricer()
	pricer.NewID = func() string { return "AIR - fixed" }
	pricer.Rand = func() float64 { return 0.5 }
	pricer.Now = func() time.Time { return time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC) }

	r := gin.New()
	h := NewAirHandler(pricing.New(pricer), store, opts, quietLogger)
	r.POST("/api/air", h.Price)
	return r
}

func postForm(r http.Handler, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/air", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodePricing(t *testing.T, w *httptest.ResponseRecorder) model.PricingResponse {
	t.Helper()
	var resp model.PricingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return resp
}

func allRecords(t *testing.T, store auditlog.Store) []model.AuditRecord {
	t.Helper()
	recs, err := store.All(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

func TestPrice_Success(t *testing.T) {
	store := auditlog.NewMemoryStore()
	start := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	r := newAirRouter(store, AirOptions{Now: stepClock(start, 250*time.Millisecond)})

	w := postForm(r, url.Values{
		"parameters": {`[["strike","maturity"]]`},
		"values":     {`[[100,"1Y"],[110,"2Y"]]`},
		"option1":    {"FAST"},
	}, map[string]string{"UserName": "alice", "User-Agent": "excel"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodePricing(t, w)
	if len(resp.Data) != 2 {
		t.Fatalf("rows = %d, want 2", len(resp.Data))
	}
	for i, row := range resp.Data {
		want := []model.ItemType{model.ItemString, model.ItemFloat, model.ItemDate}
		if len(row) != len(want) {
			t.Fatalf("row %d has %d items", i, len(row))
		}
		for j, item := range row {
			if item.Type != want[j] {
				t.Errorf("row %d item %d type = %s, want %s", i, j, item.Type, want[j])
			}
		}
		if row[0].Value != "AIR - fixed" || row[1].Value != 1.5 || row[2].Value != "2026-03-04" {
			t.Errorf("row %d = %+v", i, row)
		}
	}

	recs := allRecords(t, store)
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.StatusCode != http.StatusOK || rec.ErrorMessage != nil {
		t.Errorf("status/error = %d/%v", rec.StatusCode, rec.ErrorMessage)
	}
	if rec.Username != "alice" || rec.Machine != Unknown {
		t.Errorf("user/machine = %q/%q", rec.Username, rec.Machine)
	}
	if rec.UserAgent != "excel" || rec.Referrer != Unknown {
		t.Errorf("agent/referrer = %q/%q", rec.UserAgent, rec.Referrer)
	}
	if rec.Endpoint != "/api/air" || rec.Method != http.MethodPost {
		t.Errorf("endpoint/method = %q/%q", rec.Endpoint, rec.Method)
	}
	if rec.ResponseTime != 250 {
		t.Errorf("response_time = %v, want 250", rec.ResponseTime)
	}
	if !rec.Timestamp.Equal(start) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp, start)
	}
	if rec.ResponseBody != nil {
		t.Errorf("response body stored without being enabled")
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(rec.Parameters), &args); err != nil {
		t.Fatalf("parameters %q: %v", rec.Parameters, err)
	}
	if args["UserName"] != "alice" || args["Machine"] != nil || args["option1"] != "FAST" {
		t.Errorf("args = %v", args)
	}
	if args["culture"] != nil {
		t.Errorf("absent culture recorded as %v", args["culture"])
	}
}

func TestPrice_MalformedParameters(t *testing.T) {
	store := auditlog.NewMemoryStore()
	r := newAirRouter(store, AirOptions{})

	w := postForm(r, url.Values{"parameters": {"[[not json"}}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decodePricing(t, w)
	if len(resp.Data) != 1 || len(resp.Data[0]) != 1 {
		t.Fatalf("data = %+v", resp.Data)
	}
	item := resp.Data[0][0]
	msg, _ := item.Value.(string)
	if item.Type != model.ItemString || !strings.HasPrefix(msg, model.ErrorPrefix) {
		t.Errorf("item = %+v", item)
	}

	recs := allRecords(t, store)
	if len(recs) != 1 {
		t.Fatalf("records = %d, want exactly 1", len(recs))
	}
	if recs[0].StatusCode != http.StatusInternalServerError {
		t.Errorf("status_code = %d, want 500", recs[0].StatusCode)
	}
	if recs[0].ErrorMessage == nil || !strings.Contains(msg, *recs[0].ErrorMessage) {
		t.Errorf("error_message = %v, payload %q", recs[0].ErrorMessage, msg)
	}
}

func TestPrice_TransposesTallParameters(t *testing.T) {
	store := auditlog.NewMemoryStore()
	r := newAirRouter(store, AirOptions{})

	w := postForm(r, url.Values{
		"parameters": {`[["a"],["b"],["c"]]`},
		"values":     {`[[1],[2],[3]]`},
	}, nil)

	resp := decodePricing(t, w)
	if len(resp.Data) != 1 {
		t.Errorf("rows = %d, want 1 after transposition", len(resp.Data))
	}
}

func TestPrice_JSONBody(t *testing.T) {
	store := auditlog.NewMemoryStore()
	r := newAirRouter(store, AirOptions{StoreResponseBody: true})

	body := `{"parameters": [["x","y"]], "values": "[[1,2]]", "culture": "en-GB"}`
	req := httptest.NewRequest(http.MethodPost, "/api/air", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Machine", "desk-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	resp := decodePricing(t, w)
	if len(resp.Data) != 1 || len(resp.Data[0]) != 3 {
		t.Fatalf("data = %+v", resp.Data)
	}
	recs := allRecords(t, store)
	if len(recs) != 1 {
		t.Fatalf("records = %d", len(recs))
	}
	if recs[0].Machine != "desk-7" || recs[0].Username != Unknown {
		t.Errorf("machine/user = %q/%q", recs[0].Machine, recs[0].Username)
	}
	if recs[0].ResponseBody == nil || *recs[0].ResponseBody != w.Body.String() {
		t.Errorf("response_body = %v, want %q", recs[0].ResponseBody, w.Body.String())
	}
}

func TestPrice_EmptyParametersWithValues(t *testing.T) {
	store := auditlog.NewMemoryStore()
	r := newAirRouter(store, AirOptions{})

	w := postForm(r, url.Values{"parameters": {`[[""]]`}, "values": {`[[1]]`}}, nil)

	msg, _ := decodePricing(t, w).Data[0][0].Value.(string)
	if !strings.HasPrefix(msg, model.ErrorPrefix) {
		t.Errorf("value = %q, want an embedded error", msg)
	}
	if recs := allRecords(t, store); recs[0].StatusCode != http.StatusInternalServerError {
		t.Errorf("status_code = %d", recs[0].StatusCode)
	}
}

func TestPrice_NullValues(t *testing.T) {
	store := auditlog.NewMemoryStore()
	r := newAirRouter(store, AirOptions{})

	w := postForm(r, url.Values{"parameters": {`[["Underlying"]]`}, "values": {"null"}}, nil)

	resp := decodePricing(t, w)
	if len(resp.Data) != 1 || len(resp.Data[0]) != 1 {
		t.Fatalf("data = %+v, want one error row", resp.Data)
	}
	if msg, _ := resp.Data[0][0].Value.(string); !strings.HasPrefix(msg, model.ErrorPrefix) {
		t.Errorf("value = %q, want an embedded error", msg)
	}
	recs := allRecords(t, store)
	if len(recs) != 1 || recs[0].StatusCode != http.StatusInternalServerError {
		t.Errorf("records = %+v, want one with status 500", recs)
	}
}

func TestPrice_AllZeroRowDropped(t *testing.T) {
	store := auditlog.NewMemoryStore()
	r := newAirRouter(store, AirOptions{})

	w := postForm(r, url.Values{
		"parameters": {`[["Spread","Shift"]]`},
		"values":     {`[[0,0],[1,2]]`},
	}, nil)

	if resp := decodePricing(t, w); len(resp.Data) != 1 || len(resp.Data[0]) != 3 {
		t.Errorf("data = %+v, want one priced row", resp.Data)
	}
}

type failingStore struct {
	auditlog.Store
	appends int
}

func (s *failingStore) Append(ctx context.Context, rec model.AuditRecord) (model.AuditRecord, error) {
	s.appends++
	return model.AuditRecord{}, &auditlog.StorageError{Op: "append", Err: errors.New("connection refused")}
}

func TestPrice_StoreFailureDoesNotChangeResponse(t *testing.T) {
	store := &failingStore{}
	r := newAirRouter(store, AirOptions{})

	w := postForm(r, url.Values{"parameters": {`[["a"]]`}, "values": {`[[1]]`}}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decodePricing(t, w); len(resp.Data) != 1 || len(resp.Data[0]) != 3 {
		t.Errorf("data = %+v", resp.Data)
	}
	if store.appends != 1 {
		t.Errorf("appends = %d, want 1", store.appends)
	}
}

func TestPrice_RecordSurvivesCanceledRequest(t *testing.T) {
	store := auditlog.NewMemoryStore()
	r := newAirRouter(store, AirOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/air", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if n := len(allRecords(t, store)); n != 1 {
		t.Errorf("records = %d, want 1", n)
	}
}
