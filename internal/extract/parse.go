package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	jsonFence    = "```json"
	genericFence = "```"
)

// Keys used by failure records.
const (
	KeyError       = "error"
	KeyPage        = "page"
	KeyRawResponse = "raw_response"
	KeyNote        = "note"

	NoteUnparsed = "Failed to parse as JSON"
)

// StripFences returns the JSON candidate inside a model reply. A block marked
// ```json wins over a plain ``` block; the content runs to the next fence or
// to the end of the text. Text without fences is returned as is.
func StripFences(text string) string {
	if i := strings.Index(text, jsonFence); i >= 0 {
		return untilFence(text[i+len(jsonFence):])
	}
	if i := strings.Index(text, genericFence); i >= 0 {
		return untilFence(text[i+len(genericFence):])
	}
	return text
}

func untilFence(s string) string {
	if j := strings.Index(s, genericFence); j >= 0 {
		return s[:j]
	}
	return s
}

// DecodeStrict parses exactly one JSON value. Numbers are kept as json.Number.
func DecodeStrict(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

// ParseResponse turns a model reply into a page result: the decoded JSON value
// on success, or a raw fallback record carrying the reply text.
func ParseResponse(text string) any {
	candidate := strings.TrimSpace(StripFences(text))
	v, err := DecodeStrict(candidate)
	if err != nil {
		return RawRecord(text)
	}
	return v
}

// ErrorRecord is the page result for a failed model call.
func ErrorRecord(page int, err error) map[string]any {
	return map[string]any{
		KeyError: fmt.Sprintf("Extraction failed for page %d: %v", page, err),
		KeyPage:  page,
	}
}

// RawRecord is the page result for a reply that is not valid JSON.
func RawRecord(text string) map[string]any {
	return map[string]any{
		KeyRawResponse: text,
		KeyNote:        NoteUnparsed,
	}
}

// IsError reports whether a page result is an error record.
func IsError(result any) bool {
	m, ok := result.(map[string]any)
	if !ok {
		return false
	}
	_, has := m[KeyError]
	return has
}

// IsRaw reports whether a page result is a raw fallback record.
func IsRaw(result any) bool {
	m, ok := result.(map[string]any)
	if !ok {
		return false
	}
	_, has := m[KeyRawResponse]
	return has
}
