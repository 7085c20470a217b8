package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nodeforge/livegen/pkg/gateway"
	"github.com/nodeforge/livegen/pkg/jobs"
	"github.com/nodeforge/livegen/pkg/media"
)

// ImageToTextNode submits a captioning job
type ImageToTextNode struct {
	Params  CommonParams
	Image   media.ImageBatch
	Prompt  string
	ModelID string
}

// NewImageToTextNode seeds widget defaults
func NewImageToTextNode(e *Env) *ImageToTextNode {
	return &ImageToTextNode{
		Params:  DefaultCommonParams(e.Config),
		ModelID: e.Config.DefaultModel("i2t"),
	}
}

func (n *ImageToTextNode) Execute(ctx context.Context, e *Env) (string, error) {
	if !n.Params.Enabled {
		return "", nil
	}
	png, err := e.prepareImage(n.Image)
	if err != nil {
		return "", err
	}
	client := e.client(n.Params)
	req := gateway.ImageToTextRequest{
		Image:   png,
		Prompt:  n.Prompt,
		ModelID: n.ModelID,
	}

	op := func(ctx context.Context) (any, error) {
		resp, err := client.ImageToText(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return e.Submitter.Submit(ctx, op, jobs.TypeImageToText, n.Params.RunAsync, n.Params.retryConfig())
}

// AudioToTextNode submits a transcription job. The input waveform is
// re-encoded as WAV for upload.
type AudioToTextNode struct {
	Params           CommonParams
	Audio            media.Audio
	ModelID          string
	ReturnTimestamps string
}

// NewAudioToTextNode seeds widget defaults
func NewAudioToTextNode(e *Env) *AudioToTextNode {
	return &AudioToTextNode{
		Params:  DefaultCommonParams(e.Config),
		ModelID: e.Config.DefaultModel("a2t"),
	}
}

func (n *AudioToTextNode) Execute(ctx context.Context, e *Env) (string, error) {
	if !n.Params.Enabled {
		return "", nil
	}
	wav, err := media.EncodeWAV(n.Audio)
	if err != nil {
		return "", fmt.Errorf("preparing audio: %w", err)
	}
	client := e.client(n.Params)
	req := gateway.AudioToTextRequest{
		Audio:            wav,
		AudioName:        "input_audio.wav",
		ModelID:          n.ModelID,
		ReturnTimestamps: n.ReturnTimestamps,
	}

	op := func(ctx context.Context) (any, error) {
		resp, err := client.AudioToText(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return e.Submitter.Submit(ctx, op, jobs.TypeAudioToText, n.Params.RunAsync, n.Params.retryConfig())
}

// LLMNode submits a chat completion. Messages may arrive as a JSON
// array; the system prompt and user prompt fill in whatever the array
// misses.
type LLMNode struct {
	Params           CommonParams
	Prompt           string
	ModelID          string
	Messages         string
	SystemPrompt     string
	Temperature      float64
	TopP             float64
	MaxTokens        int
	FrequencyPenalty float64
	PresencePenalty  float64
}

// NewLLMNode seeds widget defaults
func NewLLMNode(e *Env) *LLMNode {
	return &LLMNode{
		Params:      DefaultCommonParams(e.Config),
		Messages:    "[]",
		Temperature: 0.7,
		TopP:        1.0,
		MaxTokens:   1024,
	}
}

// buildMessages merges the JSON messages array, the system prompt and
// the user prompt into one conversation
func (n *LLMNode) buildMessages() ([]gateway.LLMMessage, error) {
	var msgs []gateway.LLMMessage
	if n.Messages != "" && n.Messages != "[]" {
		if err := json.Unmarshal([]byte(n.Messages), &msgs); err != nil {
			return nil, fmt.Errorf("invalid messages JSON: %w", err)
		}
	}
	if n.SystemPrompt != "" && len(msgs) == 0 {
		msgs = append(msgs, gateway.LLMMessage{Role: "system", Content: n.SystemPrompt})
	}
	hasUser := false
	for _, m := range msgs {
		if m.Role == "user" {
			hasUser = true
			break
		}
	}
	if !hasUser {
		msgs = append(msgs, gateway.LLMMessage{Role: "user", Content: n.Prompt})
	}
	return msgs, nil
}

func (n *LLMNode) Execute(ctx context.Context, e *Env) (string, error) {
	if !n.Params.Enabled {
		return "", nil
	}
	msgs, err := n.buildMessages()
	if err != nil {
		return "", err
	}
	client := e.client(n.Params)
	req := gateway.LLMRequest{
		Model:            n.ModelID,
		Messages:         msgs,
		Temperature:      n.Temperature,
		TopP:             n.TopP,
		MaxTokens:        n.MaxTokens,
		FrequencyPenalty: n.FrequencyPenalty,
		PresencePenalty:  n.PresencePenalty,
	}

	op := func(ctx context.Context) (any, error) {
		resp, err := client.LLM(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return e.Submitter.Submit(ctx, op, jobs.TypeLLM, n.Params.RunAsync, n.Params.retryConfig())
}
