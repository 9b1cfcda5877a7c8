// Package prompts holds the page-specific extraction instructions for the
// four-page claim form.
//
// The instructions live in embedded .tmpl files. Each page maps to exactly one
// prompt; lookups for unknown page numbers resolve to the last page.
package prompts

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jackzampolin/claimdoc/internal/claim"
)

//go:embed page1.tmpl
var page1Text string

//go:embed page2.tmpl
var page2Text string

//go:embed page3.tmpl
var page3Text string

//go:embed page4.tmpl
var page4Text string

// PagePrompt is the extraction instruction for one form page.
type PagePrompt struct {
	PageNumber  int      `json:"page_number"`
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Text        string   `json:"instruction_text"`
	Sections    []string `json:"sections"`
	Hash        string   `json:"hash"`
}

// ExpectedShape returns the JSON skeleton the model is asked to return:
// each section name mapped to an empty object or list.
func (p PagePrompt) ExpectedShape() map[string]any {
	shape := make(map[string]any, len(p.Sections))
	for _, s := range p.Sections {
		k, _ := claim.KindOf(s)
		shape[s] = k.Empty()
	}
	return shape
}

type pageDef struct {
	text        string
	title       string
	description string
	sections    []string
}

// LastPage is the highest known page and the fallback for unknown numbers.
const LastPage = 4

var pages = map[int]pageDef{
	1: {
		text:        page1Text,
		title:       "🟢 Thông tin Cá nhân và Chính sách",
		description: "Policy & Personal Information",
		sections:    []string{claim.PolicyDetails, claim.InsuredInfo, claim.BenefitsToClaim},
	},
	2: {
		text:        page2Text,
		title:       "🔵 Hướng dẫn Thanh toán",
		description: "Payment Instructions",
		sections:    []string{claim.PaymentInstructions},
	},
	3: {
		text:        page3Text,
		title:       "🟡 Tuyên bố và Chữ ký",
		description: "Declaration & Authorization",
		sections:    []string{claim.Declaration},
	},
	4: {
		text:        page4Text,
		title:       "🔴 Báo cáo Y tế",
		description: "Physician Report",
		sections:    []string{claim.PhysicianReport},
	},
}

// Known reports whether page has its own prompt.
func Known(page int) bool {
	_, ok := pages[page]
	return ok
}

// Get returns the prompt for a page. Pages outside 1..4 get the page 4
// prompt; the returned PageNumber is the one requested.
func Get(page int) PagePrompt {
	def, ok := pages[page]
	if !ok {
		def = pages[LastPage]
	}
	text := strings.TrimSpace(def.text)
	sections := make([]string, len(def.sections))
	copy(sections, def.sections)
	return PagePrompt{
		PageNumber:  page,
		Key:         Key(page),
		Title:       def.title,
		Description: def.description,
		Text:        text,
		Sections:    sections,
		Hash:        HashText(text),
	}
}

// All returns the prompts for every known page, keyed by page number.
func All() map[int]PagePrompt {
	out := make(map[int]PagePrompt, len(pages))
	for n := range pages {
		out[n] = Get(n)
	}
	return out
}

// Title returns the display title of a page.
func Title(page int) string {
	return Get(page).Title
}

// Key returns the prompt key recorded alongside model calls.
func Key(page int) string {
	if !Known(page) {
		page = LastPage
	}
	return fmt.Sprintf("pages.%d", page)
}

// HashText returns a SHA256 hash of the text for change detection.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
