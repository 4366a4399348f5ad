package dashboard

import (
	"bytes"
	"errors"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"air-server/internal/analysis"
	"air-server/internal/model"
)

var now = time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

func records() []model.AuditRecord {
	msg := "AIR Error: bad grid"
	return []model.AuditRecord{
		{ID: 1, Timestamp: now.Add(-3 * time.Hour), Username: "alice", Endpoint: "/api/air", StatusCode: 200, ResponseTime: 1234.4},
		{ID: 2, Timestamp: now.Add(-2 * time.Hour), Username: "bob", Endpoint: "/api/air", StatusCode: 500, ResponseTime: 15, ErrorMessage: &msg},
		{ID: 3, Timestamp: now.Add(-1 * time.Hour), Username: "Alicia", Endpoint: "/api/air", StatusCode: 200, ResponseTime: 300},
	}
}

func ids(t Table) []int64 {
	var out []int64
	for _, r := range t.Rows {
		out = append(out, r[model.ColID].(int64))
	}
	return out
}

func mustQuery(t *testing.T, raw string) Query {
	t.Helper()
	v, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	q, err := ParseQuery(v, 20)
	if err != nil {
		t.Fatalf("ParseQuery(%q) error: %v", raw, err)
	}
	return q
}

func TestParseQuery_Defaults(t *testing.T) {
	q := mustQuery(t, "")
	if q.SortBy != "id" || !q.Desc || q.Page != 1 || q.PageSize != 20 {
		t.Errorf("defaults = %+v", q)
	}
	if !reflect.DeepEqual(q.Hidden(), DefaultHidden) {
		t.Errorf("Hidden() = %v, want %v", q.Hidden(), DefaultHidden)
	}
}

func TestParseQuery_Errors(t *testing.T) {
	tests := []string{
		"sort=password",
		"dir=sideways",
		"page=0",
		"page_size=1000",
		"f.status_code=abc",
		"f.nope=1",
		"show=nope",
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			v, _ := url.ParseQuery(raw)
			if _, err := ParseQuery(v, 20); err == nil {
				t.Errorf("ParseQuery(%q) expected error", raw)
			}
		})
	}
}

func TestBuild_DefaultSortAndPaging(t *testing.T) {
	tbl, err := Build(records(), mustQuery(t, "page_size=2"), now, time.UTC, "/stats")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if got := ids(tbl); !reflect.DeepEqual(got, []int64{3, 2}) {
		t.Errorf("page 1 ids = %v, want [3 2]", got)
	}
	if tbl.Pages != 2 || tbl.Total != 3 || tbl.PrevURL != "" || tbl.NextURL == "" {
		t.Errorf("paging = pages %d total %d prev %q next %q", tbl.Pages, tbl.Total, tbl.PrevURL, tbl.NextURL)
	}
	if !strings.Contains(tbl.NextURL, "page=2") || !strings.Contains(tbl.NextURL, "page_size=2") {
		t.Errorf("NextURL = %q", tbl.NextURL)
	}

	// Pages past the end clamp to the last page.
	tbl, _ = Build(records(), mustQuery(t, "page_size=2&page=9"), now, time.UTC, "/stats")
	if got := ids(tbl); !reflect.DeepEqual(got, []int64{1}) || tbl.Page != 2 {
		t.Errorf("clamped page = %d ids %v", tbl.Page, got)
	}
}

func TestBuild_SortAscending(t *testing.T) {
	tbl, err := Build(records(), mustQuery(t, "sort=response_time&dir=asc"), now, time.UTC, "/stats")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if got := ids(tbl); !reflect.DeepEqual(got, []int64{2, 3, 1}) {
		t.Errorf("ids = %v, want [2 3 1]", got)
	}
	for _, h := range tbl.Headers {
		if h.ID == "response_time" && (!h.Sorted || h.Desc || !strings.Contains(h.SortURL, "dir=desc")) {
			t.Errorf("header = %+v", h)
		}
	}
}

func TestBuild_ColumnFilters(t *testing.T) {
	tests := []struct {
		raw  string
		want []int64
	}{
		{"f.username=ALI", []int64{3, 1}},
		{"f.status_code=500", []int64{2}},
		{"f.status_code=!= 500", []int64{3, 1}},
		{"f.response_time=>= 0.3", []int64{3, 1}},
		{"f.response_time=<0.1", []int64{2}},
		{"f.error_message=bad", []int64{2}},
		{"f.username=ali&f.status_code=200", []int64{3, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			tbl, err := Build(records(), mustQuery(t, tt.raw), now, time.UTC, "/stats")
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}
			if got := ids(tbl); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuild_WhereExpression(t *testing.T) {
	q := mustQuery(t, url.Values{"where": {`status_code >= 400 || username == "alice"`}}.Encode())
	tbl, err := Build(records(), q, now, time.UTC, "/stats")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if got := ids(tbl); !reflect.DeepEqual(got, []int64{2, 1}) {
		t.Errorf("ids = %v, want [2 1]", got)
	}

	q = mustQuery(t, url.Values{"where": {`timestamp > now - duration("90m")`}}.Encode())
	tbl, err = Build(records(), q, now, time.UTC, "/stats")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if got := ids(tbl); !reflect.DeepEqual(got, []int64{3}) {
		t.Errorf("ids = %v, want [3]", got)
	}
}

func TestCompileRowFilter_Now(t *testing.T) {
	rf, err := CompileRowFilter(`timestamp >= now - duration("2h") && error_message == nil`)
	if err != nil {
		t.Fatalf("CompileRowFilter() error: %v", err)
	}
	tests := []struct {
		name string
		rec  model.AuditRecord
		at   time.Time
		want bool
	}{
		{"inside window", records()[2], now, true},
		{"outside window", records()[0], now, false},
		{"window follows now", records()[0], now.Add(-time.Hour), true},
		{"has error", records()[1], now, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rf.Keep(tt.rec.Fields(), tt.at)
			if err != nil {
				t.Fatalf("Keep() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Keep() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuild_WhereErrors(t *testing.T) {
	for _, expr := range []string{"status_code >=", "username", "colour == 1", "now() > timestamp"} {
		q := mustQuery(t, url.Values{"where": {expr}}.Encode())
		_, err := Build(records(), q, now, time.UTC, "/stats")
		var ee *ExprError
		if !errors.As(err, &ee) {
			t.Errorf("where %q: error = %v, want *ExprError", expr, err)
		}
	}
}

func TestBuild_HiddenColumns(t *testing.T) {
	tbl, _ := Build(records(), mustQuery(t, ""), now, time.UTC, "/stats")
	var visible []string
	for _, h := range tbl.Headers {
		visible = append(visible, h.ID)
	}
	want := []string{"id", "timestamp", "username", "endpoint", "parameters", "response_time", "status_code"}
	if !reflect.DeepEqual(visible, want) {
		t.Errorf("visible = %v, want %v", visible, want)
	}
	if len(tbl.Toggles) != len(DefaultHidden) {
		t.Errorf("toggles = %d, want %d", len(tbl.Toggles), len(DefaultHidden))
	}

	tbl, _ = Build(records(), mustQuery(t, "show=method,client_ip"), now, time.UTC, "/stats")
	if len(tbl.Headers) != len(want)+2 {
		t.Errorf("headers with show = %d, want %d", len(tbl.Headers), len(want)+2)
	}
	for _, tg := range tbl.Toggles {
		if tg.ID == "method" && (tg.Hidden || strings.Contains(tg.URL, "method")) {
			t.Errorf("method toggle = %+v, want shown with a link that hides it", tg)
		}
	}
}

func TestDisplayRow(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	row := DisplayRow(records()[0], loc)
	if row["timestamp"] != "2024-03-02 11:00:00" {
		t.Errorf("timestamp = %v", row["timestamp"])
	}
	if row["response_time"] != 1.234 {
		t.Errorf("response_time = %v, want 1.234", row["response_time"])
	}
	if row["error_message"] != nil {
		t.Errorf("error_message = %v, want nil", row["error_message"])
	}
}

func TestTemplates_Render(t *testing.T) {
	tbl, err := Build(records(), mustQuery(t, ""), now, time.UTC, "/stats")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	k := analysis.ComputeKPIs(records(), now, time.UTC)
	var buf bytes.Buffer
	err = Templates().ExecuteTemplate(&buf, PageTemplate, Page{Path: "/stats", KPIs: &k, Table: tbl, Version: "dev"})
	if err != nil {
		t.Fatalf("ExecuteTemplate() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Unique Users", "33.33%", "Alicia", "1.234", "page 1 of 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q", want)
		}
	}

	buf.Reset()
	empty, _ := Build(nil, mustQuery(t, ""), now, time.UTC, "/stats")
	ek := analysis.ComputeKPIs(nil, now, time.UTC)
	if err := Templates().ExecuteTemplate(&buf, PageTemplate, Page{Path: "/stats", KPIs: &ek, Table: empty}); err != nil {
		t.Fatalf("ExecuteTemplate(empty) error: %v", err)
	}
	if !strings.Contains(buf.String(), "No calls recorded.") {
		t.Error("empty page missing placeholder row")
	}
}
