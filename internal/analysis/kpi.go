package analysis

import (
	"math"
	"sort"
	"time"

	"air-server/internal/model"
)

// NoneLabel stands in for modes of an empty log.
const NoneLabel = "None"

// KPIs summarizes the audit log. Rates are percentages; response times are
// milliseconds.
type KPIs struct {
	TotalCalls       int            `json:"total_calls"`
	UniqueUsers      int            `json:"unique_users"`
	CallsLast24h     int            `json:"calls_last_24h"`
	MostActiveUser   string         `json:"most_active_user"`
	ErrorRate        float64        `json:"error_rate"`
	MostUsedEndpoint string         `json:"most_used_endpoint"`
	AvgResponseTime  float64        `json:"avg_response_time"`
	PeakHour         *int           `json:"peak_hour"`
	SuccessRate      float64        `json:"success_rate"`
	MaxResponseTime  float64        `json:"max_response_time"`
	P95ResponseTime  float64        `json:"p95_response_time"`
	MethodCounts     map[string]int `json:"method_counts"`

	TopUsers []Ranked[string] `json:"top_users"`
}

const topUsers = 5

// ComputeKPIs derives the dashboard figures from recs. Hours are taken in
// loc; a nil loc means UTC.
func ComputeKPIs(recs []model.AuditRecord, now time.Time, loc *time.Location) KPIs {
	k := KPIs{
		MostActiveUser:   NoneLabel,
		MostUsedEndpoint: NoneLabel,
		MethodCounts:     map[string]int{},
		TopUsers:         []Ranked[string]{},
	}
	if len(recs) == 0 {
		return k
	}
	if loc == nil {
		loc = time.UTC
	}
	less := func(a, b string) bool { return a < b }

	var (
		users     = make([]string, 0, len(recs))
		endpoints = make([]string, 0, len(recs))
		hours     = make([]int, 0, len(recs))
		times     = make([]float64, 0, len(recs))
		distinct  = map[string]struct{}{}
		errs      int
		ok        int
		sum       float64
		maxv      = math.Inf(-1)
		since     = now.Add(-24 * time.Hour)
	)
	for _, r := range recs {
		users = append(users, r.Username)
		distinct[r.Username] = struct{}{}
		endpoints = append(endpoints, r.Endpoint)
		hours = append(hours, r.Timestamp.In(loc).Hour())
		times = append(times, r.ResponseTime)
		sum += r.ResponseTime
		maxv = max(maxv, r.ResponseTime)
		if !r.Timestamp.Before(since) {
			k.CallsLast24h++
		}
		if r.IsError() {
			errs++
		}
		if r.IsSuccess() {
			ok++
		}
		k.MethodCounts[r.Method]++
	}

	n := float64(len(recs))
	k.TotalCalls = len(recs)
	k.UniqueUsers = len(distinct)
	k.ErrorRate = float64(errs) / n * 100
	k.SuccessRate = float64(ok) / n * 100
	k.AvgResponseTime = sum / n
	k.MaxResponseTime = maxv

	k.MostActiveUser, _ = mode(users, less)
	k.MostUsedEndpoint, _ = mode(endpoints, less)
	if h, found := mode(hours, func(a, b int) bool { return a < b }); found {
		k.PeakHour = &h
	}

	ranked := RankByCount(users, less)
	k.TopUsers = ranked[:min(topUsers, len(ranked))]

	sort.Float64s(times)
	k.P95ResponseTime = percentileSorted(times, 0.95)
	return k
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
