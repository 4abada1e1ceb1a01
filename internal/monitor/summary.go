// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package monitor

import (
	"math"
	"sort"
	"time"
)

// Grade is a letter grade A through F.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Summary aggregates the metrics of one window. Response times are seconds.
type Summary struct {
	PeriodHours     float64 `json:"period_hours"`
	TotalRequests   int     `json:"total_requests"`
	AvgResponseTime float64 `json:"avg_response_time"`
	MaxResponseTime float64 `json:"max_response_time"`
	MinResponseTime float64 `json:"min_response_time"`
	ErrorRate       float64 `json:"error_rate"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	RequestsPerHour float64 `json:"requests_per_hour"`
	Score           int     `json:"performance_score"`
	Grade           Grade   `json:"performance_grade"`
}

// EndpointSummary aggregates one endpoint's metrics in a window.
type EndpointSummary struct {
	Endpoint        string  `json:"endpoint"`
	PeriodHours     float64 `json:"period_hours"`
	TotalRequests   int     `json:"total_requests"`
	AvgResponseTime float64 `json:"avg_response_time"`
	P95ResponseTime float64 `json:"p95_response_time"`
	ErrorCount      int     `json:"error_count"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
}

// Summary returns aggregates over metrics strictly newer than now-window.
// A non-positive window means 24h. ok is false when no metric falls inside.
func (r *Recorder) Summary(window time.Duration) (Summary, bool) {
	if window <= 0 {
		window = DefaultWindow
	}
	ms := r.window(window, nil)
	if len(ms) == 0 {
		return Summary{}, false
	}

	var (
		total    time.Duration
		maxRT    = ms[0].ResponseTime
		minRT    = ms[0].ResponseTime
		errCount int
		hits     int
	)
	for i := range ms {
		rt := ms[i].ResponseTime
		total += rt
		maxRT = max(maxRT, rt)
		minRT = min(minRT, rt)
		if ms[i].Error != "" {
			errCount++
		}
		if ms[i].CacheHit {
			hits++
		}
	}

	n := float64(len(ms))
	avg := total.Seconds() / n
	errRate := float64(errCount) / n
	hitRate := float64(hits) / n
	score, grade := ComputeGrade(avg, errRate, hitRate)

	return Summary{
		PeriodHours:     window.Hours(),
		TotalRequests:   len(ms),
		AvgResponseTime: round(avg, 3),
		MaxResponseTime: round(maxRT.Seconds(), 3),
		MinResponseTime: round(minRT.Seconds(), 3),
		ErrorRate:       round(errRate, 3),
		CacheHitRate:    round(hitRate, 3),
		RequestsPerHour: round(n/window.Hours(), 1),
		Score:           score,
		Grade:           grade,
	}, true
}

// EndpointSummary returns aggregates for one endpoint. ok is false when the
// endpoint has no metrics in the window.
func (r *Recorder) EndpointSummary(endpoint string, window time.Duration) (EndpointSummary, bool) {
	if window <= 0 {
		window = DefaultWindow
	}
	ms := r.window(window, func(m *Metric) bool { return m.Endpoint == endpoint })
	if len(ms) == 0 {
		return EndpointSummary{}, false
	}

	times := make([]float64, len(ms))
	var sum float64
	var errCount, hits int
	for i := range ms {
		times[i] = ms[i].ResponseTime.Seconds()
		sum += times[i]
		if ms[i].Error != "" {
			errCount++
		}
		if ms[i].CacheHit {
			hits++
		}
	}

	n := float64(len(ms))
	return EndpointSummary{
		Endpoint:        endpoint,
		PeriodHours:     window.Hours(),
		TotalRequests:   len(ms),
		AvgResponseTime: round(sum/n, 3),
		P95ResponseTime: round(percentile(times, 95), 3),
		ErrorCount:      errCount,
		CacheHitRate:    round(float64(hits)/n, 3),
	}, true
}

// ComputeGrade scores a window from 100 down by fixed penalties.
func ComputeGrade(avgResponseTime, errorRate, cacheHitRate float64) (int, Grade) {
	score := 100

	switch {
	case avgResponseTime > 1.0:
		score -= 20
	case avgResponseTime > 0.5:
		score -= 10
	}

	switch {
	case errorRate > 0.05:
		score -= 30
	case errorRate > 0.01:
		score -= 15
	}

	switch {
	case cacheHitRate < 0.7:
		score -= 20
	case cacheHitRate < 0.8:
		score -= 10
	}

	switch {
	case score >= 90:
		return score, GradeA
	case score >= 80:
		return score, GradeB
	case score >= 70:
		return score, GradeC
	case score >= 60:
		return score, GradeD
	default:
		return score, GradeF
	}
}

// percentile interpolates linearly between the closest ranks.
// values is sorted in place.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)

	rank := p / 100 * float64(len(values)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return values[lo]
	}
	return values[lo] + (values[hi]-values[lo])*(rank-float64(lo))
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
