package nodes

import (
	"context"

	"github.com/nodeforge/livegen/pkg/jobs"
	"github.com/nodeforge/livegen/pkg/media"
	"github.com/nodeforge/livegen/pkg/project"
)

// ImageGetterOutputs is the image getter's declared output tuple. The
// trailing status and message are common to every getter.
type ImageGetterOutputs struct {
	Images  media.ImageBatch
	Ready   bool
	Status  jobs.Status
	Message string
}

// ImageJobGetter polls image-producing jobs
type ImageJobGetter struct {
	getter *jobs.Getter[project.ImageOutputs]
}

// NewImageJobGetter creates a getter bound to one node instance.
// instanceID distinguishes instances for reference tracking.
func NewImageJobGetter(e *Env, instanceID string) *ImageJobGetter {
	projector := project.NewImageProjector(e.HTTP, e.Logger)
	return &ImageJobGetter{
		getter: jobs.NewGetter[project.ImageOutputs](e.Store, projector, instanceID, e.Logger),
	}
}

// Fetch triages the job and returns the output tuple. It never
// returns an error: failures surface as status plus message, with
// placeholder outputs.
func (g *ImageJobGetter) Fetch(ctx context.Context, jobID string) ImageGetterOutputs {
	res := g.getter.Fetch(ctx, jobID)
	out := ImageGetterOutputs{Status: res.Status, Message: res.Message}
	if res.Delivered {
		out.Images = res.Outputs.Images
		out.Ready = res.Outputs.Ready
	} else {
		out.Images = media.BlankImage()
	}
	return out
}

// Changed is the host's re-execution probe
func (g *ImageJobGetter) Changed(jobID string) string {
	return g.getter.Signal(jobID)
}

// Release drops the node's reference to its last delivered job
func (g *ImageJobGetter) Release() {
	g.getter.Release()
}

// VideoGetterOutputs is the video getter's declared output tuple
type VideoGetterOutputs struct {
	URL     string
	Path    string
	Frames  media.ImageBatch
	Audio   media.Audio
	Ready   bool
	Status  jobs.Status
	Message string
}

// VideoJobGetter polls video-producing jobs, downloading and decoding
// the clip on delivery
type VideoJobGetter struct {
	getter *jobs.Getter[project.VideoOutputs]
}

// NewVideoJobGetter creates a getter bound to one node instance.
// download controls whether the artifact is fetched and decoded or
// only its URL surfaced.
func NewVideoJobGetter(e *Env, instanceID string, download bool) *VideoJobGetter {
	dir, err := e.Config.OutputPath("videos")
	if err != nil {
		e.Logger.Warn("Falling back to working directory for video output", map[string]interface{}{"error": err.Error()})
		dir = "."
	}
	projector := project.NewVideoProjector(e.HTTP, dir, download, e.Logger)
	return &VideoJobGetter{
		getter: jobs.NewGetter[project.VideoOutputs](e.Store, projector, instanceID, e.Logger),
	}
}

func (g *VideoJobGetter) Fetch(ctx context.Context, jobID string) VideoGetterOutputs {
	res := g.getter.Fetch(ctx, jobID)
	out := VideoGetterOutputs{Status: res.Status, Message: res.Message}
	if res.Delivered {
		out.URL = res.Outputs.URL
		out.Path = res.Outputs.Path
		out.Frames = res.Outputs.Frames
		out.Audio = res.Outputs.Audio
		out.Ready = res.Outputs.Ready
	} else {
		out.Frames = media.BlankImage()
		out.Audio = media.SilentAudio()
	}
	return out
}

func (g *VideoJobGetter) Changed(jobID string) string {
	return g.getter.Signal(jobID)
}

func (g *VideoJobGetter) Release() {
	g.getter.Release()
}

// TextGetterOutputs is the text getter's declared output tuple
type TextGetterOutputs struct {
	Text    string
	Ready   bool
	Status  jobs.Status
	Message string
}

// TextJobGetter polls text-producing jobs
type TextJobGetter struct {
	getter *jobs.Getter[project.TextOutputs]
}

// NewTextJobGetter creates a getter bound to one node instance
func NewTextJobGetter(e *Env, instanceID string) *TextJobGetter {
	projector := project.NewTextProjector(e.Logger)
	return &TextJobGetter{
		getter: jobs.NewGetter[project.TextOutputs](e.Store, projector, instanceID, e.Logger),
	}
}

func (g *TextJobGetter) Fetch(ctx context.Context, jobID string) TextGetterOutputs {
	res := g.getter.Fetch(ctx, jobID)
	out := TextGetterOutputs{Status: res.Status, Message: res.Message}
	if res.Delivered {
		out.Text = res.Outputs.Text
		out.Ready = res.Outputs.Ready
	}
	return out
}

func (g *TextJobGetter) Changed(jobID string) string {
	return g.getter.Signal(jobID)
}

func (g *TextJobGetter) Release() {
	g.getter.Release()
}

// AudioGetterOutputs is the audio getter's declared output tuple
type AudioGetterOutputs struct {
	Audio   media.Audio
	Path    string
	Ready   bool
	Status  jobs.Status
	Message string
}

// AudioJobGetter polls speech synthesis jobs
type AudioJobGetter struct {
	getter *jobs.Getter[project.AudioOutputs]
}

// NewAudioJobGetter creates a getter bound to one node instance
func NewAudioJobGetter(e *Env, instanceID string) *AudioJobGetter {
	dir, err := e.Config.OutputPath("audio")
	if err != nil {
		e.Logger.Warn("Falling back to working directory for audio output", map[string]interface{}{"error": err.Error()})
		dir = "."
	}
	projector := project.NewAudioProjector(e.HTTP, dir, e.Logger)
	return &AudioJobGetter{
		getter: jobs.NewGetter[project.AudioOutputs](e.Store, projector, instanceID, e.Logger),
	}
}

func (g *AudioJobGetter) Fetch(ctx context.Context, jobID string) AudioGetterOutputs {
	res := g.getter.Fetch(ctx, jobID)
	out := AudioGetterOutputs{Status: res.Status, Message: res.Message}
	if res.Delivered {
		out.Audio = res.Outputs.Audio
		out.Path = res.Outputs.Path
		out.Ready = res.Outputs.Ready
	} else {
		out.Audio = media.SilentAudio()
	}
	return out
}

func (g *AudioJobGetter) Changed(jobID string) string {
	return g.getter.Signal(jobID)
}

func (g *AudioJobGetter) Release() {
	g.getter.Release()
}
