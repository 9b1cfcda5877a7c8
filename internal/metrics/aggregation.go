package metrics

import (
	"maps"
	"sort"
	"time"
)

// DurationStats summarizes run durations in milliseconds.
type DurationStats struct {
	Count int     `json:"count"`
	AvgMs float64 `json:"avg_ms"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
}

// DetailedStats provides call statistics including latency percentiles and token breakdowns.
type DetailedStats struct {
	Count        int `json:"count"`
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`

	// Latency percentiles (seconds)
	LatencyP50 float64 `json:"latency_p50"`
	LatencyP95 float64 `json:"latency_p95"`
	LatencyP99 float64 `json:"latency_p99"`
	LatencyAvg float64 `json:"latency_avg"`
	LatencyMin float64 `json:"latency_min"`
	LatencyMax float64 `json:"latency_max"`

	TotalPromptTokens     int `json:"total_prompt_tokens"`
	TotalCompletionTokens int `json:"total_completion_tokens"`
	TotalTokens           int `json:"total_tokens"`

	AvgPromptTokens     float64 `json:"avg_prompt_tokens"`
	AvgCompletionTokens float64 `json:"avg_completion_tokens"`
}

// Snapshot is a point-in-time copy of the collector state.
type Snapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`

	ActiveExtractions   int            `json:"active_extractions"`
	TotalExtractions    int            `json:"total_extractions"`
	ExtractionsByStatus map[string]int `json:"extractions_by_status"`
	PagesProcessed      int            `json:"pages_processed"`
	AvgPagesPerRun      float64        `json:"avg_pages_per_extraction"`
	Duration            DurationStats  `json:"duration"`

	CacheHits    int     `json:"cache_hits"`
	CacheMisses  int     `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	ErrorsByType map[string]int `json:"errors_by_type"`

	ModelCalls   int                       `json:"model_calls"`
	Calls        DetailedStats             `json:"calls"`
	CallsByPage  map[int]*DetailedStats    `json:"calls_by_page,omitempty"`
	CallsByModel map[string]*DetailedStats `json:"calls_by_model,omitempty"`
}

// Snapshot returns the current statistics.
func (c *Collector) Snapshot() Snapshot {
	calls := c.Calls()

	c.mu.Lock()
	s := Snapshot{
		UptimeSeconds:       time.Since(c.started).Seconds(),
		ActiveExtractions:   c.active,
		ExtractionsByStatus: maps.Clone(c.byStatus),
		PagesProcessed:      c.pagesProcessed,
		CacheHits:           c.cacheHits,
		CacheMisses:         c.cacheMisses,
		ErrorsByType:        maps.Clone(c.errorsByType),
		ModelCalls:          c.total,
	}
	durations := append([]float64(nil), c.durations...)
	totalMs := c.totalDurationMs
	c.mu.Unlock()

	for _, n := range s.ExtractionsByStatus {
		s.TotalExtractions += n
	}
	if s.TotalExtractions > 0 {
		s.AvgPagesPerRun = float64(s.PagesProcessed) / float64(s.TotalExtractions)
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(lookups)
	}

	s.Duration = durationStats(durations)
	if s.TotalExtractions > 0 {
		// Average over every run, not just the retained window.
		s.Duration.Count = s.TotalExtractions
		s.Duration.AvgMs = totalMs / float64(s.TotalExtractions)
	}

	s.Calls = *GetDetailedStats(calls)
	s.CallsByPage = StatsByPage(calls)
	s.CallsByModel = StatsByModel(calls)
	return s
}

func durationStats(ms []float64) DurationStats {
	d := DurationStats{Count: len(ms)}
	if len(ms) == 0 {
		return d
	}
	sort.Float64s(ms)
	d.MinMs = ms[0]
	d.MaxMs = ms[len(ms)-1]
	var sum float64
	for _, v := range ms {
		sum += v
	}
	d.AvgMs = sum / float64(len(ms))
	d.P50Ms = percentile(ms, 50)
	d.P95Ms = percentile(ms, 95)
	return d
}

// GetDetailedStats computes statistics over a set of call samples.
func GetDetailedStats(metrics []Metric) *DetailedStats {
	stats := &DetailedStats{Count: len(metrics)}
	if len(metrics) == 0 {
		return stats
	}

	var latencies []float64
	for _, m := range metrics {
		if m.Success {
			stats.SuccessCount++
		} else {
			stats.ErrorCount++
		}
		stats.TotalPromptTokens += m.PromptTokens
		stats.TotalCompletionTokens += m.CompletionTokens
		stats.TotalTokens += m.TotalTokens
		if m.TotalSeconds > 0 {
			latencies = append(latencies, m.TotalSeconds)
		}
	}

	count := float64(stats.Count)
	stats.AvgPromptTokens = float64(stats.TotalPromptTokens) / count
	stats.AvgCompletionTokens = float64(stats.TotalCompletionTokens) / count

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		stats.LatencyMin = latencies[0]
		stats.LatencyMax = latencies[len(latencies)-1]
		var sum float64
		for _, l := range latencies {
			sum += l
		}
		stats.LatencyAvg = sum / float64(len(latencies))
		stats.LatencyP50 = percentile(latencies, 50)
		stats.LatencyP95 = percentile(latencies, 95)
		stats.LatencyP99 = percentile(latencies, 99)
	}
	return stats
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	// Interpolate between floor and ceil indices
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
