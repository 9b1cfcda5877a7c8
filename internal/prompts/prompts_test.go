package prompts

import (
	"reflect"
	"strings"
	"testing"
)

func TestGetFallsBackToLastPage(t *testing.T) {
	want := Get(4)
	for _, n := range []int{-1, 0, 5, 99} {
		got := Get(n)
		if got.Text != want.Text {
			t.Errorf("Get(%d).Text differs from Get(4).Text", n)
		}
		if got.Key != want.Key {
			t.Errorf("Get(%d).Key = %q, want %q", n, got.Key, want.Key)
		}
		if got.PageNumber != n {
			t.Errorf("Get(%d).PageNumber = %d", n, got.PageNumber)
		}
	}
}

func TestPagesAreDistinct(t *testing.T) {
	all := All()
	if len(all) != 4 {
		t.Fatalf("len(All()) = %d, want 4", len(all))
	}
	seen := map[string]int{}
	for n, p := range all {
		if p.Text == "" {
			t.Errorf("page %d has empty text", n)
		}
		if other, ok := seen[p.Hash]; ok {
			t.Errorf("pages %d and %d share a prompt", n, other)
		}
		seen[p.Hash] = n
	}
}

func TestExpectedShape(t *testing.T) {
	tests := []struct {
		page int
		want map[string]any
	}{
		{1, map[string]any{
			"policy_details":    map[string]any{},
			"insured_info":      map[string]any{},
			"benefits_to_claim": []any{},
		}},
		{2, map[string]any{"payment_instructions": map[string]any{}}},
		{3, map[string]any{"declaration": map[string]any{}}},
		{4, map[string]any{"physician_report": map[string]any{}}},
	}
	for _, tt := range tests {
		got := Get(tt.page).ExpectedShape()
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Get(%d).ExpectedShape() = %v, want %v", tt.page, got, tt.want)
		}
	}
}

func TestPromptMentionsItsSections(t *testing.T) {
	for n, p := range All() {
		for _, s := range p.Sections {
			if !strings.Contains(p.Text, `"`+s+`"`) {
				t.Errorf("page %d prompt does not mention %q", n, s)
			}
		}
		if !strings.HasSuffix(p.Text, "Chỉ trả về JSON.") {
			t.Errorf("page %d prompt should end with the JSON-only instruction", n)
		}
	}
}

func TestGetReturnsCopies(t *testing.T) {
	p := Get(1)
	p.Sections[0] = "mutated"
	if Get(1).Sections[0] != "policy_details" {
		t.Error("Get() exposes shared section slice")
	}
}

func TestTitle(t *testing.T) {
	if got := Title(2); got != "🔵 Hướng dẫn Thanh toán" {
		t.Errorf("Title(2) = %q", got)
	}
	if Title(7) != Title(4) {
		t.Error("Title(7) should match Title(4)")
	}
}
