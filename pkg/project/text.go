package project

import (
	"context"
	"fmt"

	"github.com/nodeforge/livegen/pkg/gateway"
	"github.com/nodeforge/livegen/pkg/jobs"
	"github.com/nodeforge/livegen/pkg/logging"
)

// TextOutputs is the text getter's payload
type TextOutputs struct {
	Text  string
	Ready bool
}

// TextProjector extracts text from the three response shapes text jobs
// produce: direct transcription, caption, and chat completion
type TextProjector struct {
	logger *logging.Logger
}

// NewTextProjector creates the projector for text-producing jobs
func NewTextProjector(logger *logging.Logger) *TextProjector {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &TextProjector{logger: logger}
}

func (p *TextProjector) Accepts(t jobs.Type) bool {
	switch t {
	case jobs.TypeAudioToText, jobs.TypeImageToText, jobs.TypeLLM:
		return true
	}
	return false
}

func (p *TextProjector) Project(_ context.Context, rec jobs.Record) (TextOutputs, map[string]any, error) {
	text, err := extractText(rec.Result)
	if err != nil {
		return TextOutputs{}, nil, err
	}
	p.logger.Info("Projected text", map[string]interface{}{"job_id": rec.ID, "length": len(text)})
	outputs := TextOutputs{Text: text, Ready: true}
	cache := map[string]any{"text": text, "ready": true}
	return outputs, cache, nil
}

func (p *TextProjector) Restore(cache map[string]any) (TextOutputs, bool) {
	text, ok := cache["text"].(string)
	if !ok {
		return TextOutputs{}, false
	}
	ready, _ := cache["ready"].(bool)
	return TextOutputs{Text: text, Ready: ready}, true
}

// extractText pulls the text content out of whichever response shape
// the raw result holds. An empty extraction is an error: an all-blank
// transcription means the gateway returned a shape we do not know.
func extractText(raw any) (string, error) {
	switch r := raw.(type) {
	case *gateway.TextResponse:
		if r != nil && r.Text != "" {
			return r.Text, nil
		}
	case *gateway.LLMResponse:
		if r != nil && len(r.Choices) > 0 && r.Choices[0].Message.Content != "" {
			return r.Choices[0].Message.Content, nil
		}
	case string:
		if r != "" {
			return r, nil
		}
	}
	return "", fmt.Errorf("result holds %T with no extractable text", raw)
}
