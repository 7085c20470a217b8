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

// AudioOutputs is the audio getter's payload
type AudioOutputs struct {
	Audio media.Audio
	Path  string
	Ready bool
}

// BlankAudioOutputs is substituted whenever no audio is available
func BlankAudioOutputs() AudioOutputs {
	return AudioOutputs{Audio: media.SilentAudio()}
}

// AudioProjector downloads synthesized speech and decodes it into a
// waveform
type AudioProjector struct {
	client    *http.Client
	outputDir string
	logger    *logging.Logger
}

// NewAudioProjector creates the projector for audio-producing jobs
func NewAudioProjector(client *http.Client, outputDir string, logger *logging.Logger) *AudioProjector {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &AudioProjector{client: client, outputDir: outputDir, logger: logger}
}

func (p *AudioProjector) Accepts(t jobs.Type) bool {
	return t == jobs.TypeTextToSpeech
}

func (p *AudioProjector) Project(ctx context.Context, rec jobs.Record) (AudioOutputs, map[string]any, error) {
	resp, ok := rec.Result.(*gateway.AudioResponse)
	if !ok || resp == nil {
		return BlankAudioOutputs(), nil, fmt.Errorf("result holds %T, not an audio response", rec.Result)
	}
	if resp.Audio.URL == "" {
		return BlankAudioOutputs(), nil, fmt.Errorf("audio response contains no artifact URL")
	}

	path, err := media.Download(ctx, p.client, resp.Audio.URL, p.outputDir, media.KindAudio)
	if err != nil {
		return BlankAudioOutputs(), nil, err
	}
	// The gateway reports the real container format separately from
	// the download URL
	path = media.FixExtension(path, resp.Format)

	audio, err := media.LoadAudio(ctx, path)
	if err != nil {
		return BlankAudioOutputs(), nil, err
	}

	p.logger.Info("Projected audio", map[string]interface{}{
		"job_id": rec.ID, "path": path, "samples": audio.Samples, "sample_rate": audio.SampleRate,
	})
	outputs := AudioOutputs{Audio: audio, Path: path, Ready: true}
	cache := map[string]any{"audio": audio, "path": path, "ready": true}
	return outputs, cache, nil
}

func (p *AudioProjector) Restore(cache map[string]any) (AudioOutputs, bool) {
	audio, ok := cache["audio"].(media.Audio)
	if !ok || len(audio.Waveform) == 0 {
		return BlankAudioOutputs(), false
	}
	ready, _ := cache["ready"].(bool)
	path, _ := cache["path"].(string)
	return AudioOutputs{Audio: audio, Path: path, Ready: ready}, true
}
