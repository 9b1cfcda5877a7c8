package metrics

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jackzampolin/claimdoc/internal/extract"
	"github.com/jackzampolin/claimdoc/internal/providers"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 50, 0},
		{"single", []float64{3}, 95, 3},
		{"median odd", []float64{1, 2, 3}, 50, 2},
		{"median even", []float64{1, 2, 3, 4}, 50, 2.5},
		{"max", []float64{1, 2, 3, 4}, 100, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentile(tt.sorted, tt.p); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("percentile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector(10)

	c.ExtractionStarted()
	c.ExtractionStarted()
	c.ExtractionFinished("completed", 100*time.Millisecond, 4)
	c.ExtractionFinished("needs_review", 300*time.Millisecond, 4)
	c.ExtractionStarted()
	c.CacheHit()
	c.CacheMiss()
	c.CacheMiss()
	c.Error("page_count")

	s := c.Snapshot()
	if s.ActiveExtractions != 1 {
		t.Errorf("ActiveExtractions = %d, want 1", s.ActiveExtractions)
	}
	if s.TotalExtractions != 2 {
		t.Errorf("TotalExtractions = %d, want 2", s.TotalExtractions)
	}
	if s.ExtractionsByStatus["needs_review"] != 1 {
		t.Errorf("ExtractionsByStatus = %v", s.ExtractionsByStatus)
	}
	if s.PagesProcessed != 8 || s.AvgPagesPerRun != 4 {
		t.Errorf("pages = %d avg %v, want 8 avg 4", s.PagesProcessed, s.AvgPagesPerRun)
	}
	if s.Duration.AvgMs != 200 || s.Duration.MinMs != 100 || s.Duration.MaxMs != 300 {
		t.Errorf("Duration = %+v", s.Duration)
	}
	if math.Abs(s.CacheHitRate-1.0/3.0) > 1e-9 {
		t.Errorf("CacheHitRate = %v, want 1/3", s.CacheHitRate)
	}
	if s.ErrorsByType["page_count"] != 1 {
		t.Errorf("ErrorsByType = %v", s.ErrorsByType)
	}

	// Snapshot maps are copies.
	s.ExtractionsByStatus["completed"] = 99
	if c.Snapshot().ExtractionsByStatus["completed"] != 1 {
		t.Error("Snapshot() should not share maps with the collector")
	}
}

func TestObserveCall(t *testing.T) {
	c := NewCollector(10)
	ctx := extract.WithPageInfo(context.Background(), extract.PageInfo{Page: 3})

	c.ObserveCall(ctx, &providers.ChatResult{
		Provider:         "gemini",
		ModelUsed:        "gemini-2.5-flash",
		PromptTokens:     300,
		CompletionTokens: 50,
		TotalTime:        2 * time.Second,
		Success:          true,
	})
	c.ObserveCall(ctx, &providers.ChatResult{
		Provider:  "gemini",
		ModelUsed: "gemini-2.5-flash",
		TotalTime: time.Second,
		ErrorType: "rate_limit",
	})
	c.ObserveCall(context.Background(), nil)

	s := c.Snapshot()
	if s.ModelCalls != 2 {
		t.Fatalf("ModelCalls = %d, want 2", s.ModelCalls)
	}
	if s.Calls.SuccessCount != 1 || s.Calls.ErrorCount != 1 {
		t.Errorf("Calls = %+v", s.Calls)
	}
	if s.Calls.TotalTokens != 350 {
		t.Errorf("TotalTokens = %d, want 350", s.Calls.TotalTokens)
	}
	if s.Calls.LatencyMin != 1 || s.Calls.LatencyMax != 2 {
		t.Errorf("latency min/max = %v/%v, want 1/2", s.Calls.LatencyMin, s.Calls.LatencyMax)
	}
	if page := s.CallsByPage[3]; page == nil || page.Count != 2 {
		t.Errorf("CallsByPage[3] = %+v", page)
	}
	if m := s.CallsByModel["gemini/gemini-2.5-flash"]; m == nil || m.Count != 2 {
		t.Errorf("CallsByModel = %+v", s.CallsByModel)
	}
	if s.ErrorsByType["model_rate_limit"] != 1 {
		t.Errorf("ErrorsByType = %v", s.ErrorsByType)
	}
}

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(3)
	for i := 1; i <= 5; i++ {
		c.Record(Metric{Page: i, Success: true})
	}
	calls := c.Calls()
	if len(calls) != 3 {
		t.Fatalf("Calls() = %d, want 3", len(calls))
	}
	for i, want := range []int{3, 4, 5} {
		if calls[i].Page != want {
			t.Errorf("calls[%d].Page = %d, want %d", i, calls[i].Page, want)
		}
	}
	if s := c.Snapshot(); s.ModelCalls != 5 {
		t.Errorf("ModelCalls = %d, want 5", s.ModelCalls)
	}
}
