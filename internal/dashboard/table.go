package dashboard

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"air-server/internal/model"
)

// Column is one table column.
type Column struct {
	ID      string
	Name    string
	Numeric bool
}

// Columns lists the table columns in display order.
var Columns = []Column{
	{ID: model.ColID, Name: "ID", Numeric: true},
	{ID: model.ColTimestamp, Name: "Timestamp"},
	{ID: model.ColUsername, Name: "Username"},
	{ID: model.ColEndpoint, Name: "Endpoint"},
	{ID: model.ColParameters, Name: "Parameters"},
	{ID: model.ColResponseTime, Name: "Response Time (seconds)", Numeric: true},
	{ID: model.ColMethod, Name: "Method"},
	{ID: model.ColUserAgent, Name: "User Agent"},
	{ID: model.ColClientIP, Name: "Client IP"},
	{ID: model.ColErrorMessage, Name: "Error Message"},
	{ID: model.ColMachine, Name: "Machine"},
	{ID: model.ColReferrer, Name: "Referrer"},
	{ID: model.ColResponseBody, Name: "Response Body"},
	{ID: model.ColStatusCode, Name: "Status Code", Numeric: true},
}

// DefaultHidden are the columns hidden until the user asks for them.
var DefaultHidden = []string{
	model.ColClientIP,
	model.ColMethod,
	model.ColErrorMessage,
	model.ColMachine,
	model.ColReferrer,
	model.ColResponseBody,
	model.ColUserAgent,
}

const (
	TimestampLayout = "2006-01-02 15:04:05"
	MaxPageSize     = 100
)

func columnByID(id string) (Column, bool) {
	for _, c := range Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// Query selects, orders and pages table rows. The zero value is completed
// by ParseQuery defaults: sort by id descending, first page.
type Query struct {
	SortBy   string
	Desc     bool
	Page     int
	PageSize int
	Filters  []ColumnFilter
	Where    string
	Show     []string

	raw url.Values
}

// ParseQuery reads table parameters from a URL query:
//
//	sort=<column>  dir=asc|desc  page=N  page_size=N
//	f.<column>=<filter>  where=<expression>  show=<column>[,<column>]
func ParseQuery(v url.Values, defaultPageSize int) (Query, error) {
	q := Query{SortBy: model.ColID, Desc: true, Page: 1, PageSize: defaultPageSize, raw: v}
	if s := v.Get("sort"); s != "" {
		if _, ok := columnByID(s); !ok {
			return Query{}, fmt.Errorf("unknown sort column %q", s)
		}
		q.SortBy = s
	}
	switch v.Get("dir") {
	case "", "desc":
	case "asc":
		q.Desc = false
	default:
		return Query{}, fmt.Errorf("dir must be asc or desc, got %q", v.Get("dir"))
	}
	if p := v.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return Query{}, fmt.Errorf("page must be a positive integer, got %q", p)
		}
		q.Page = n
	}
	if p := v.Get("page_size"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > MaxPageSize {
			return Query{}, fmt.Errorf("page_size must be between 1 and %d, got %q", MaxPageSize, p)
		}
		q.PageSize = n
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}

	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		col, ok := strings.CutPrefix(k, "f.")
		if !ok || strings.TrimSpace(v.Get(k)) == "" {
			continue
		}
		f, err := ParseColumnFilter(col, v.Get(k))
		if err != nil {
			return Query{}, err
		}
		q.Filters = append(q.Filters, f)
	}

	q.Where = strings.TrimSpace(v.Get("where"))
	for _, s := range v["show"] {
		for _, id := range strings.Split(s, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := columnByID(id); !ok {
				return Query{}, fmt.Errorf("unknown column %q", id)
			}
			q.Show = append(q.Show, id)
		}
	}
	return q, nil
}

// Hidden returns the hidden column ids after applying Show.
func (q Query) Hidden() []string {
	var out []string
	for _, id := range DefaultHidden {
		if !slices.Contains(q.Show, id) {
			out = append(out, id)
		}
	}
	return out
}

// URL renders q with overrides applied, for links in the page.
func (q Query) URL(path string, overrides map[string]string) string {
	v := url.Values{}
	for k, vals := range q.raw {
		v[k] = slices.Clone(vals)
	}
	for k, val := range overrides {
		if val == "" {
			v.Del(k)
			continue
		}
		v.Set(k, val)
	}
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

// Row is one displayed record: values keyed by column id, formatted for
// display.
type Row map[string]any

// Header is a visible column with its sort link.
type Header struct {
	Column
	Sorted  bool
	Desc    bool
	SortURL string
}

// Toggle is a hidden or shown column with the link that flips it.
type Toggle struct {
	Column
	Hidden bool
	URL    string
}

// Table is one rendered page of the log.
type Table struct {
	Headers  []Header
	Toggles  []Toggle
	Rows     []Row
	Total    int
	Page     int
	Pages    int
	PageSize int
	Query    Query
	PrevURL  string
	NextURL  string
}

// Cells returns a row's values in header order.
func (t Table) Cells(r Row) []any {
	out := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		out[i] = r[h.ID]
	}
	return out
}

// Build filters, sorts and pages recs. path is used for links.
func Build(recs []model.AuditRecord, q Query, now time.Time, loc *time.Location, path string) (Table, error) {
	if loc == nil {
		loc = time.UTC
	}
	rf, err := CompileRowFilter(q.Where)
	if err != nil {
		return Table{}, err
	}

	rows := make([]Row, 0, len(recs))
	for _, r := range recs {
		keep, err := rf.Keep(r.Fields(), now)
		if err != nil {
			return Table{}, err
		}
		if !keep {
			continue
		}
		row := DisplayRow(r, loc)
		if matchAll(row, q.Filters) {
			rows = append(rows, row)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		c := model.CompareValues(rows[i][q.SortBy], rows[j][q.SortBy])
		if q.Desc {
			return c > 0
		}
		return c < 0
	})

	t := Table{Total: len(rows), PageSize: q.PageSize, Query: q}
	t.Pages = max(1, (len(rows)+q.PageSize-1)/q.PageSize)
	t.Page = min(q.Page, t.Pages)
	start := (t.Page - 1) * q.PageSize
	end := min(start+q.PageSize, len(rows))
	t.Rows = rows[start:end]

	if t.Page > 1 {
		t.PrevURL = q.URL(path, map[string]string{"page": strconv.Itoa(t.Page - 1)})
	}
	if t.Page < t.Pages {
		t.NextURL = q.URL(path, map[string]string{"page": strconv.Itoa(t.Page + 1)})
	}

	hidden := q.Hidden()
	for _, c := range Columns {
		isHidden := slices.Contains(hidden, c.ID)
		if slices.Contains(DefaultHidden, c.ID) {
			t.Toggles = append(t.Toggles, Toggle{Column: c, Hidden: isHidden, URL: q.URL(path, map[string]string{"show": toggleShow(q.Show, c.ID)})})
		}
		if isHidden {
			continue
		}
		h := Header{Column: c, Sorted: c.ID == q.SortBy, Desc: q.Desc}
		dir := "desc"
		if h.Sorted && q.Desc {
			dir = "asc"
		}
		h.SortURL = q.URL(path, map[string]string{"sort": c.ID, "dir": dir, "page": ""})
		t.Headers = append(t.Headers, h)
	}
	return t, nil
}

func toggleShow(show []string, id string) string {
	if slices.Contains(show, id) {
		show = slices.DeleteFunc(slices.Clone(show), func(s string) bool { return s == id })
	} else {
		show = append(slices.Clone(show), id)
	}
	return strings.Join(show, ",")
}

func matchAll(row Row, filters []ColumnFilter) bool {
	for _, f := range filters {
		if !f.Match(row[f.Column]) {
			return false
		}
	}
	return true
}

// DisplayRow formats a record for the table: timestamps in loc as
// "YYYY-MM-DD HH:MM:SS", response time in seconds rounded to 3 decimals.
func DisplayRow(r model.AuditRecord, loc *time.Location) Row {
	row := Row(r.Fields())
	row[model.ColTimestamp] = r.Timestamp.In(loc).Format(TimestampLayout)
	row[model.ColResponseTime] = math.Round(r.ResponseTime) / 1000
	row[model.ColStatusCode] = int64(r.StatusCode)
	return row
}
