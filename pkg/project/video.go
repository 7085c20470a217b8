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

// VideoOutputs is the video getter's payload. URL always refers to the
// gateway artifact; Path, Frames and Audio are filled only when the
// projector downloads and decodes the clip.
type VideoOutputs struct {
	URL    string
	Path   string
	Frames media.ImageBatch
	Audio  media.Audio
	Ready  bool
}

// BlankVideoOutputs is substituted whenever no video is available
func BlankVideoOutputs() VideoOutputs {
	return VideoOutputs{Frames: media.BlankImage(), Audio: media.SilentAudio()}
}

// VideoProjector downloads generated clips, decodes the frames into a
// tensor batch, and demuxes the audio track
type VideoProjector struct {
	client    *http.Client
	outputDir string
	download  bool
	logger    *logging.Logger
}

// NewVideoProjector creates the projector for video-producing jobs.
// When download is false only the artifact URL is surfaced; frames and
// audio stay at their placeholders.
func NewVideoProjector(client *http.Client, outputDir string, download bool, logger *logging.Logger) *VideoProjector {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &VideoProjector{client: client, outputDir: outputDir, download: download, logger: logger}
}

func (p *VideoProjector) Accepts(t jobs.Type) bool {
	return t == jobs.TypeImageToVideo || t == jobs.TypeLiveVideoToVideo
}

func (p *VideoProjector) Project(ctx context.Context, rec jobs.Record) (VideoOutputs, map[string]any, error) {
	resp, ok := rec.Result.(*gateway.VideoResponse)
	if !ok || resp == nil {
		return BlankVideoOutputs(), nil, fmt.Errorf("result holds %T, not a video response", rec.Result)
	}
	if len(resp.Images) == 0 || resp.Images[0].URL == "" {
		return BlankVideoOutputs(), nil, fmt.Errorf("video response contains no artifact URL")
	}
	url := resp.Images[0].URL

	outputs := BlankVideoOutputs()
	outputs.URL = url

	if p.download {
		path, err := media.Download(ctx, p.client, url, p.outputDir, media.KindVideos)
		if err != nil {
			return BlankVideoOutputs(), nil, err
		}
		video, err := media.LoadVideo(ctx, path, 0, 1, true)
		if err != nil {
			return BlankVideoOutputs(), nil, err
		}
		outputs.Path = path
		outputs.Frames = video.Frames
		outputs.Audio = video.Audio
		outputs.Ready = true
		p.logger.Info("Projected video", map[string]interface{}{
			"job_id": rec.ID, "path": path, "frames": video.FrameCount, "fps": video.FPS,
		})
	}

	cache := map[string]any{
		"url":    outputs.URL,
		"path":   outputs.Path,
		"frames": outputs.Frames,
		"audio":  outputs.Audio,
		"ready":  outputs.Ready,
	}
	return outputs, cache, nil
}

func (p *VideoProjector) Restore(cache map[string]any) (VideoOutputs, bool) {
	url, ok := cache["url"].(string)
	if !ok || url == "" {
		return BlankVideoOutputs(), false
	}
	ready, _ := cache["ready"].(bool)
	out := VideoOutputs{URL: url, Ready: ready}
	out.Path, _ = cache["path"].(string)
	if frames, ok := cache["frames"].(media.ImageBatch); ok && !frames.Empty() {
		out.Frames = frames
	} else {
		out.Frames = media.BlankImage()
	}
	if audio, ok := cache["audio"].(media.Audio); ok && len(audio.Waveform) > 0 {
		out.Audio = audio
	} else {
		out.Audio = media.SilentAudio()
	}
	return out, true
}
