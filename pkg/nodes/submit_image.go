package nodes

import (
	"context"
	"fmt"

	"github.com/nodeforge/livegen/pkg/gateway"
	"github.com/nodeforge/livegen/pkg/jobs"
	"github.com/nodeforge/livegen/pkg/media"
)

// prepareImage converts a tensor batch into PNG bytes for upload. The
// gateway takes one image per request, so batches beyond the first
// frame are trimmed with a warning.
func (e *Env) prepareImage(batch media.ImageBatch) ([]byte, error) {
	if batch.Empty() {
		return nil, fmt.Errorf("no input image provided")
	}
	if batch.B > 1 {
		e.Logger.Warn(fmt.Sprintf("Gateway accepts one image at a time, using first of batch of %d", batch.B))
	}
	return media.EncodePNG(batch, 0)
}

// TextToImageNode submits a text-to-image job
type TextToImageNode struct {
	Params             CommonParams
	Prompt             string
	NegativePrompt     string
	ModelID            string
	Loras              string
	Height             int
	Width              int
	GuidanceScale      float64
	SafetyCheck        bool
	Seed               int64
	NumInferenceSteps  int
	NumImagesPerPrompt int
}

// NewTextToImageNode seeds widget defaults
func NewTextToImageNode(e *Env) *TextToImageNode {
	return &TextToImageNode{
		Params:             DefaultCommonParams(e.Config),
		ModelID:            e.Config.DefaultModel("t2i"),
		Height:             576,
		Width:              1024,
		GuidanceScale:      7.5,
		SafetyCheck:        true,
		NumInferenceSteps:  50,
		NumImagesPerPrompt: 1,
	}
}

// Execute submits the job and returns its id. A disabled node returns
// an empty id without touching the network.
func (n *TextToImageNode) Execute(ctx context.Context, e *Env) (string, error) {
	if !n.Params.Enabled {
		return "", nil
	}
	client := e.client(n.Params)
	req := gateway.TextToImageRequest{
		Prompt:             n.Prompt,
		ModelID:            n.ModelID,
		NegativePrompt:     n.NegativePrompt,
		Loras:              n.Loras,
		Height:             n.Height,
		Width:              n.Width,
		GuidanceScale:      n.GuidanceScale,
		SafetyCheck:        boolPtr(n.SafetyCheck),
		NumInferenceSteps:  n.NumInferenceSteps,
		NumImagesPerPrompt: n.NumImagesPerPrompt,
	}
	if n.Seed != 0 {
		req.Seed = &n.Seed
	}

	e.Logger.Info("Generating image", map[string]interface{}{
		"prompt": truncate(n.Prompt, 50), "model": orDefault(n.ModelID),
	})
	op := func(ctx context.Context) (any, error) {
		resp, err := client.TextToImage(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return e.Submitter.Submit(ctx, op, jobs.TypeTextToImage, n.Params.RunAsync, n.Params.retryConfig())
}

// ImageToImageNode submits an image-to-image job
type ImageToImageNode struct {
	Params             CommonParams
	Image              media.ImageBatch
	Prompt             string
	NegativePrompt     string
	ModelID            string
	Loras              string
	Strength           float64
	GuidanceScale      float64
	ImageGuidanceScale float64
	SafetyCheck        bool
	Seed               int64
	NumInferenceSteps  int
	NumImagesPerPrompt int
}

// NewImageToImageNode seeds widget defaults
func NewImageToImageNode(e *Env) *ImageToImageNode {
	return &ImageToImageNode{
		Params:             DefaultCommonParams(e.Config),
		ModelID:            e.Config.DefaultModel("i2i"),
		Strength:           0.8,
		GuidanceScale:      7.5,
		SafetyCheck:        true,
		NumInferenceSteps:  100,
		NumImagesPerPrompt: 1,
	}
}

func (n *ImageToImageNode) Execute(ctx context.Context, e *Env) (string, error) {
	if !n.Params.Enabled {
		return "", nil
	}
	png, err := e.prepareImage(n.Image)
	if err != nil {
		return "", err
	}
	client := e.client(n.Params)
	req := gateway.ImageToImageRequest{
		Image:              png,
		Prompt:             n.Prompt,
		ModelID:            n.ModelID,
		NegativePrompt:     n.NegativePrompt,
		Loras:              n.Loras,
		Strength:           n.Strength,
		GuidanceScale:      n.GuidanceScale,
		ImageGuidanceScale: n.ImageGuidanceScale,
		SafetyCheck:        boolPtr(n.SafetyCheck),
		NumInferenceSteps:  n.NumInferenceSteps,
		NumImagesPerPrompt: n.NumImagesPerPrompt,
	}
	if n.Seed != 0 {
		req.Seed = &n.Seed
	}

	op := func(ctx context.Context) (any, error) {
		resp, err := client.ImageToImage(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return e.Submitter.Submit(ctx, op, jobs.TypeImageToImage, n.Params.RunAsync, n.Params.retryConfig())
}

// UpscaleNode submits an upscale job
type UpscaleNode struct {
	Params            CommonParams
	Image             media.ImageBatch
	Prompt            string
	ModelID           string
	SafetyCheck       bool
	Seed              int64
	NumInferenceSteps int
}

// NewUpscaleNode seeds widget defaults
func NewUpscaleNode(e *Env) *UpscaleNode {
	return &UpscaleNode{
		Params:            DefaultCommonParams(e.Config),
		ModelID:           e.Config.DefaultModel("upscale"),
		SafetyCheck:       true,
		NumInferenceSteps: 75,
	}
}

func (n *UpscaleNode) Execute(ctx context.Context, e *Env) (string, error) {
	if !n.Params.Enabled {
		return "", nil
	}
	png, err := e.prepareImage(n.Image)
	if err != nil {
		return "", err
	}
	client := e.client(n.Params)
	req := gateway.UpscaleRequest{
		Image:             png,
		Prompt:            n.Prompt,
		ModelID:           n.ModelID,
		SafetyCheck:       boolPtr(n.SafetyCheck),
		NumInferenceSteps: n.NumInferenceSteps,
	}
	if n.Seed != 0 {
		req.Seed = &n.Seed
	}

	op := func(ctx context.Context) (any, error) {
		resp, err := client.Upscale(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return e.Submitter.Submit(ctx, op, jobs.TypeUpscale, n.Params.RunAsync, n.Params.retryConfig())
}

// SegmentNode submits a segment-anything job. Coordinate inputs are
// JSON-encoded arrays passed through to the gateway verbatim.
type SegmentNode struct {
	Params          CommonParams
	Image           media.ImageBatch
	ModelID         string
	PointCoords     string
	PointLabels     string
	Box             string
	MaskInput       string
	MultimaskOutput bool
	ReturnLogits    bool
	NormalizeCoords bool
}

// NewSegmentNode seeds widget defaults
func NewSegmentNode(e *Env) *SegmentNode {
	return &SegmentNode{
		Params:          DefaultCommonParams(e.Config),
		ModelID:         e.Config.DefaultModel("segment"),
		MultimaskOutput: true,
		NormalizeCoords: true,
	}
}

func (n *SegmentNode) Execute(ctx context.Context, e *Env) (string, error) {
	if !n.Params.Enabled {
		return "", nil
	}
	png, err := e.prepareImage(n.Image)
	if err != nil {
		return "", err
	}
	client := e.client(n.Params)
	req := gateway.SegmentRequest{
		Image:           png,
		ModelID:         n.ModelID,
		PointCoords:     n.PointCoords,
		PointLabels:     n.PointLabels,
		Box:             n.Box,
		MaskInput:       n.MaskInput,
		MultimaskOutput: boolPtr(n.MultimaskOutput),
		ReturnLogits:    boolPtr(n.ReturnLogits),
		NormalizeCoords: boolPtr(n.NormalizeCoords),
	}

	op := func(ctx context.Context) (any, error) {
		resp, err := client.Segment(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return e.Submitter.Submit(ctx, op, jobs.TypeSegment, n.Params.RunAsync, n.Params.retryConfig())
}

func boolPtr(v bool) *bool { return &v }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func orDefault(model string) string {
	if model == "" {
		return "default"
	}
	return model
}
