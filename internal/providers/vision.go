package providers

import (
	"context"
	"fmt"
)

// Vision adapts an LLMClient to the single-image generate capability used by
// the page extractor: one prompt and one page image in, free text out.
type Vision struct {
	Client LLMClient
	Model  string

	// Observer, when set, sees every call result including failures.
	Observer func(ctx context.Context, res *ChatResult)
}

// NewVision wraps a client. An empty model uses the client default.
func NewVision(client LLMClient, model string) *Vision {
	return &Vision{Client: client, Model: model}
}

// Generate sends the prompt with the image attached and returns the reply text.
func (v *Vision) Generate(ctx context.Context, prompt string, image []byte) (string, error) {
	if v.Client == nil {
		return "", fmt.Errorf("no model client configured")
	}
	req := &ChatRequest{
		Model: v.Model,
		Messages: []Message{{
			Role:    "user",
			Content: prompt,
			Images:  [][]byte{image},
		}},
	}
	res, err := v.Client.Chat(ctx, req)
	if v.Observer != nil && res != nil {
		v.Observer(ctx, res)
	}
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// Name returns the underlying client name.
func (v *Vision) Name() string {
	if v.Client == nil {
		return ""
	}
	return v.Client.Name()
}

// Observers fans one call result out to several observers. Nil entries are skipped.
func Observers(obs ...func(ctx context.Context, res *ChatResult)) func(ctx context.Context, res *ChatResult) {
	return func(ctx context.Context, res *ChatResult) {
		for _, o := range obs {
			if o != nil {
				o(ctx, res)
			}
		}
	}
}
