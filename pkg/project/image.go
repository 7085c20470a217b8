// Package project converts raw gateway responses into the host-native
// output shapes the graph runtime consumes. Each modality has one
// projector; the job getter invokes it exactly once per job and caches
// whatever the projector hands back.
package project

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nodeforge/livegen/pkg/gateway"
	"github.com/nodeforge/livegen/pkg/jobs"
	"github.com/nodeforge/livegen/pkg/logging"
	"github.com/nodeforge/livegen/pkg/media"
)

// ImageOutputs is the image getter's payload: a BHWC frame batch plus
// a readiness flag distinguishing real output from the placeholder
type ImageOutputs struct {
	Images media.ImageBatch
	Ready  bool
}

// BlankImageOutputs is substituted whenever no image is available
func BlankImageOutputs() ImageOutputs {
	return ImageOutputs{Images: media.BlankImage()}
}

// ImageProjector downloads and decodes generated images into a tensor
// batch
type ImageProjector struct {
	client *http.Client
	logger *logging.Logger
}

// NewImageProjector creates the projector for image-producing jobs
func NewImageProjector(client *http.Client, logger *logging.Logger) *ImageProjector {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &ImageProjector{client: client, logger: logger}
}

func (p *ImageProjector) Accepts(t jobs.Type) bool {
	switch t {
	case jobs.TypeTextToImage, jobs.TypeImageToImage, jobs.TypeUpscale, jobs.TypeSegment:
		return true
	}
	return false
}

func (p *ImageProjector) Project(ctx context.Context, rec jobs.Record) (ImageOutputs, map[string]any, error) {
	resp, ok := rec.Result.(*gateway.ImageResponse)
	if !ok || resp == nil {
		return BlankImageOutputs(), nil, fmt.Errorf("result holds %T, not an image response", rec.Result)
	}
	if len(resp.Images) == 0 {
		return BlankImageOutputs(), nil, fmt.Errorf("image response contains no images")
	}

	frames := make([]media.ImageBatch, 0, len(resp.Images))
	for _, item := range resp.Images {
		data, err := media.Fetch(ctx, p.client, item.URL)
		if err != nil {
			return BlankImageOutputs(), nil, err
		}
		frame, err := media.DecodeImage(data)
		if err != nil {
			return BlankImageOutputs(), nil, err
		}
		frames = append(frames, frame)
	}

	batch, err := media.StackImages(frames)
	if err != nil {
		return BlankImageOutputs(), nil, err
	}

	p.logger.Info("Projected image batch", map[string]interface{}{
		"job_id": rec.ID, "frames": batch.B, "width": batch.W, "height": batch.H,
	})
	// Ready only when the decoded frames are larger than the blank
	// placeholder, so a placeholder-sized result never reads as output
	ready := batch.B > 0 && batch.H > media.BlankSize
	outputs := ImageOutputs{Images: batch, Ready: ready}
	cache := map[string]any{"images": batch, "ready": ready}
	return outputs, cache, nil
}

func (p *ImageProjector) Restore(cache map[string]any) (ImageOutputs, bool) {
	batch, ok := cache["images"].(media.ImageBatch)
	if !ok || batch.Empty() {
		return BlankImageOutputs(), false
	}
	ready, _ := cache["ready"].(bool)
	return ImageOutputs{Images: batch, Ready: ready}, true
}
