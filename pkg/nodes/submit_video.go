package nodes

import (
	"context"

	"github.com/nodeforge/livegen/pkg/gateway"
	"github.com/nodeforge/livegen/pkg/jobs"
	"github.com/nodeforge/livegen/pkg/media"
)

// ImageToVideoNode submits an image-to-video job
type ImageToVideoNode struct {
	Params            CommonParams
	Image             media.ImageBatch
	ModelID           string
	Height            int
	Width             int
	FPS               int
	MotionBucketID    int
	NoiseAugStrength  float64
	SafetyCheck       bool
	Seed              int64
	NumInferenceSteps int
}

// NewImageToVideoNode seeds widget defaults
func NewImageToVideoNode(e *Env) *ImageToVideoNode {
	return &ImageToVideoNode{
		Params:            DefaultCommonParams(e.Config),
		ModelID:           e.Config.DefaultModel("i2v"),
		Height:            576,
		Width:             1024,
		FPS:               6,
		MotionBucketID:    127,
		NoiseAugStrength:  0.02,
		SafetyCheck:       true,
		NumInferenceSteps: 25,
	}
}

func (n *ImageToVideoNode) Execute(ctx context.Context, e *Env) (string, error) {
	if !n.Params.Enabled {
		return "", nil
	}
	png, err := e.prepareImage(n.Image)
	if err != nil {
		return "", err
	}
	client := e.client(n.Params)
	req := gateway.ImageToVideoRequest{
		Image:             png,
		ModelID:           n.ModelID,
		Height:            n.Height,
		Width:             n.Width,
		FPS:               n.FPS,
		MotionBucketID:    n.MotionBucketID,
		NoiseAugStrength:  n.NoiseAugStrength,
		SafetyCheck:       boolPtr(n.SafetyCheck),
		NumInferenceSteps: n.NumInferenceSteps,
	}
	if n.Seed != 0 {
		req.Seed = &n.Seed
	}

	op := func(ctx context.Context) (any, error) {
		resp, err := client.ImageToVideo(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return e.Submitter.Submit(ctx, op, jobs.TypeImageToVideo, n.Params.RunAsync, n.Params.retryConfig())
}

// LiveVideoToVideoNode negotiates a live restyling session. The
// response carries stream URLs rather than a downloadable artifact, so
// the video getter surfaces it URL-only.
type LiveVideoToVideoNode struct {
	Params    CommonParams
	StreamKey string
	ModelID   string
	Pipeline  map[string]any
}

// NewLiveVideoToVideoNode seeds widget defaults
func NewLiveVideoToVideoNode(e *Env) *LiveVideoToVideoNode {
	return &LiveVideoToVideoNode{
		Params: DefaultCommonParams(e.Config),
	}
}

func (n *LiveVideoToVideoNode) Execute(ctx context.Context, e *Env) (string, error) {
	if !n.Params.Enabled {
		return "", nil
	}
	client := e.client(n.Params)
	req := gateway.LiveVideoRequest{
		StreamKey: n.StreamKey,
		ModelID:   n.ModelID,
		Params:    n.Pipeline,
	}

	op := func(ctx context.Context) (any, error) {
		resp, err := client.LiveVideoToVideo(ctx, req)
		if err != nil {
			return nil, err
		}
		// Surface the subscribe URL through the video response shape
		// the getter knows how to project
		return &gateway.VideoResponse{Images: []gateway.MediaItem{{URL: resp.SubscribeURL}}}, nil
	}
	return e.Submitter.Submit(ctx, op, jobs.TypeLiveVideoToVideo, n.Params.RunAsync, n.Params.retryConfig())
}
