package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"strconv"

	"air-server/internal/analysis"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageTemplate is the name of the dashboard template.
const PageTemplate = "stats.html"

// Page is the data behind the dashboard template.
type Page struct {
	Path    string
	KPIs    *analysis.KPIs
	Table   Table
	Error   string
	Version string
}

// Templates parses the embedded dashboard templates.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(FuncMap()).ParseFS(templateFS, "templates/*.html"))
}

// FuncMap holds the formatting helpers used by the templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"pct": func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
		"ms":  func(v float64) string { return fmt.Sprintf("%.2f milliseconds", v) },
		"hour": func(h *int) string {
			if h == nil {
				return analysis.NoneLabel
			}
			return strconv.Itoa(*h) + ":00"
		},
		"cell": func(v any) string {
			if v == nil {
				return ""
			}
			return fmt.Sprint(v)
		},
		"filterValue": func(q Query, id string) string {
			return q.raw.Get("f." + id)
		},
	}
}
