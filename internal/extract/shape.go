package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/claimdoc/internal/claim"
	"github.com/jackzampolin/claimdoc/internal/prompts"
)

// shapeSchema builds a JSON schema from a page's expected shape: an object
// whose known sections, when present, have the right container type.
// Extra keys are allowed; the merger drops them.
func shapeSchema(p prompts.PagePrompt) ([]byte, error) {
	props := make(map[string]any, len(p.Sections))
	for _, s := range p.Sections {
		k, _ := claim.KindOf(s)
		typ := "object"
		if k == claim.KindList {
			typ = "array"
		}
		props[s] = map[string]any{"type": typ}
	}
	return json.Marshal(map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
	})
}

// ShapeChecker validates parsed page results against the shape their prompt
// asked for. Mismatches are advisory; the result is still merged.
type ShapeChecker struct {
	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

// NewShapeChecker creates an empty checker; schemas compile on first use.
func NewShapeChecker() *ShapeChecker {
	return &ShapeChecker{schemas: make(map[string]*jsonschema.Schema)}
}

func (c *ShapeChecker) schema(p prompts.PagePrompt) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.schemas[p.Key]; ok {
		return s, nil
	}
	raw, err := shapeSchema(p)
	if err != nil {
		return nil, err
	}
	url := p.Key + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load page schema: %w", err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile page schema: %w", err)
	}
	c.schemas[p.Key] = s
	return s, nil
}

// Check returns an error describing how result deviates from the page shape.
func (c *ShapeChecker) Check(p prompts.PagePrompt, result any) error {
	s, err := c.schema(p)
	if err != nil {
		return err
	}
	if err := s.Validate(result); err != nil {
		return fmt.Errorf("page %d result does not match expected shape: %w", p.PageNumber, err)
	}
	return nil
}
