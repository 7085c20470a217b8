package nodes

import (
	"context"

	"github.com/nodeforge/livegen/pkg/gateway"
	"github.com/nodeforge/livegen/pkg/jobs"
)

// TextToSpeechNode submits a speech synthesis job
type TextToSpeechNode struct {
	Params      CommonParams
	Text        string
	ModelID     string
	Description string
}

// NewTextToSpeechNode seeds widget defaults
func NewTextToSpeechNode(e *Env) *TextToSpeechNode {
	return &TextToSpeechNode{
		Params:      DefaultCommonParams(e.Config),
		ModelID:     e.Config.DefaultModel("t2s"),
		Description: "A calm, neutral voice",
	}
}

func (n *TextToSpeechNode) Execute(ctx context.Context, e *Env) (string, error) {
	if !n.Params.Enabled {
		return "", nil
	}
	client := e.client(n.Params)
	req := gateway.TextToSpeechRequest{
		Text:        n.Text,
		ModelID:     n.ModelID,
		Description: n.Description,
	}

	op := func(ctx context.Context) (any, error) {
		resp, err := client.TextToSpeech(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return e.Submitter.Submit(ctx, op, jobs.TypeTextToSpeech, n.Params.RunAsync, n.Params.retryConfig())
}
