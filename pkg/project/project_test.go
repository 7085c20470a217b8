package project

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nodeforge/livegen/pkg/gateway"
	"github.com/nodeforge/livegen/pkg/jobs"
	"github.com/nodeforge/livegen/pkg/media"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func imageRecord(result any) jobs.Record {
	return jobs.Record{ID: "job-1", Type: jobs.TypeTextToImage, Status: jobs.StatusCompletedPendingDelivery, Result: result}
}

func TestImageProjectorAccepts(t *testing.T) {
	p := NewImageProjector(nil, nil)
	for _, typ := range []jobs.Type{jobs.TypeTextToImage, jobs.TypeImageToImage, jobs.TypeUpscale, jobs.TypeSegment} {
		if !p.Accepts(typ) {
			t.Errorf("should accept %s", typ)
		}
	}
	for _, typ := range []jobs.Type{jobs.TypeImageToVideo, jobs.TypeLLM, jobs.TypeTextToSpeech} {
		if p.Accepts(typ) {
			t.Errorf("should reject %s", typ)
		}
	}
}

func TestImageProjectorDownloadsAndStacks(t *testing.T) {
	payload := pngBytes(t, 128, 96)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	p := NewImageProjector(srv.Client(), nil)
	rec := imageRecord(&gateway.ImageResponse{Images: []gateway.MediaItem{
		{URL: srv.URL + "/a.png"},
		{URL: srv.URL + "/b.png"},
	}})

	out, cache, err := p.Project(context.Background(), rec)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}
	if !out.Ready {
		t.Error("expected ready output")
	}
	if out.Images.B != 2 || out.Images.H != 96 || out.Images.W != 128 {
		t.Errorf("unexpected batch shape %dx%dx%d", out.Images.B, out.Images.H, out.Images.W)
	}

	restored, ok := p.Restore(cache)
	if !ok {
		t.Fatal("cache should restore")
	}
	if restored.Images.B != 2 || !restored.Ready {
		t.Errorf("restored output mangled: %+v frames", restored.Images.B)
	}
}

func TestImageProjectorPlaceholderSizedNotReady(t *testing.T) {
	// Frames no larger than the blank placeholder decode fine but must
	// not read as real output
	payload := pngBytes(t, 32, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	p := NewImageProjector(srv.Client(), nil)
	rec := imageRecord(&gateway.ImageResponse{Images: []gateway.MediaItem{
		{URL: srv.URL + "/small.png"},
	}})

	out, cache, err := p.Project(context.Background(), rec)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}
	if out.Ready {
		t.Error("a 32x32 frame must not be marked ready")
	}
	if out.Images.B != 1 || out.Images.H != 32 {
		t.Errorf("frames should still be delivered, got %dx%d", out.Images.B, out.Images.H)
	}

	restored, ok := p.Restore(cache)
	if !ok {
		t.Fatal("cache should restore")
	}
	if restored.Ready {
		t.Error("restored cache must keep the not-ready flag")
	}
}

func TestImageProjectorFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewImageProjector(srv.Client(), nil)
	rec := imageRecord(&gateway.ImageResponse{Images: []gateway.MediaItem{{URL: srv.URL + "/a.png"}}})

	if _, _, err := p.Project(context.Background(), rec); err == nil {
		t.Fatal("expected error on fetch failure")
	}
}

func TestImageProjectorWrongShape(t *testing.T) {
	p := NewImageProjector(nil, nil)
	cases := []any{
		nil,
		"a bare string",
		&gateway.ImageResponse{},
		&gateway.VideoResponse{Images: []gateway.MediaItem{{URL: "http://x/v.mp4"}}},
	}
	for _, raw := range cases {
		if _, _, err := p.Project(context.Background(), imageRecord(raw)); err == nil {
			t.Errorf("expected error for result %T", raw)
		}
	}
}

func TestImageProjectorRestoreIncompleteCache(t *testing.T) {
	p := NewImageProjector(nil, nil)
	if _, ok := p.Restore(nil); ok {
		t.Error("nil cache must not restore")
	}
	if _, ok := p.Restore(map[string]any{"ready": true}); ok {
		t.Error("cache without images must not restore")
	}
}

func TestVideoProjectorDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewVideoProjector(srv.Client(), t.TempDir(), true, nil)
	rec := jobs.Record{ID: "job-v", Type: jobs.TypeImageToVideo, Result: &gateway.VideoResponse{
		Images: []gateway.MediaItem{{URL: srv.URL + "/clip.mp4"}},
	}}

	if _, _, err := p.Project(context.Background(), rec); err == nil {
		t.Fatal("download failure must surface as a projection error")
	}
}

func TestVideoProjectorURLOnly(t *testing.T) {
	p := NewVideoProjector(nil, t.TempDir(), false, nil)
	rec := jobs.Record{ID: "job-v", Type: jobs.TypeImageToVideo, Result: &gateway.VideoResponse{
		Images: []gateway.MediaItem{{URL: "http://cdn/clip.mp4"}},
	}}

	out, cache, err := p.Project(context.Background(), rec)
	if err != nil {
		t.Fatalf("url-only projection failed: %v", err)
	}
	if out.URL != "http://cdn/clip.mp4" || out.Ready {
		t.Errorf("expected url without readiness, got %+v", out)
	}
	// Placeholder frames and silent audio fill the gap
	if out.Frames.B != 1 || out.Frames.H != media.BlankSize {
		t.Errorf("expected blank frames, got %dx%d", out.Frames.B, out.Frames.H)
	}
	if out.Audio.Channels != 2 || out.Audio.Samples != 1 {
		t.Errorf("expected silent audio, got %+v", out.Audio)
	}

	restored, ok := p.Restore(cache)
	if !ok || restored.URL != out.URL {
		t.Errorf("restore mismatch: %+v", restored)
	}
}

func TestVideoProjectorNoArtifact(t *testing.T) {
	p := NewVideoProjector(nil, t.TempDir(), true, nil)
	rec := jobs.Record{ID: "job-v", Type: jobs.TypeImageToVideo, Result: &gateway.VideoResponse{}}
	if _, _, err := p.Project(context.Background(), rec); err == nil {
		t.Fatal("empty video response must be an error")
	}
}

func TestTextProjectorShapes(t *testing.T) {
	p := NewTextProjector(nil)
	cases := []struct {
		raw  any
		want string
	}{
		{&gateway.TextResponse{Text: "a transcript"}, "a transcript"},
		{&gateway.LLMResponse{Choices: []gateway.LLMChoice{{Message: gateway.LLMMessage{Role: "assistant", Content: "an answer"}}}}, "an answer"},
		{"a bare string", "a bare string"},
	}
	for _, tc := range cases {
		rec := jobs.Record{ID: "job-t", Type: jobs.TypeLLM, Result: tc.raw}
		out, cache, err := p.Project(context.Background(), rec)
		if err != nil {
			t.Errorf("projection of %T failed: %v", tc.raw, err)
			continue
		}
		if out.Text != tc.want || !out.Ready {
			t.Errorf("projection of %T = %+v, want %q", tc.raw, out, tc.want)
		}
		if restored, ok := p.Restore(cache); !ok || restored.Text != tc.want {
			t.Errorf("restore of %T mismatch: %+v", tc.raw, restored)
		}
	}
}

func TestTextProjectorNoExtractableText(t *testing.T) {
	p := NewTextProjector(nil)
	cases := []any{
		nil,
		&gateway.TextResponse{},
		&gateway.LLMResponse{},
		&gateway.LLMResponse{Choices: []gateway.LLMChoice{{}}},
		42,
	}
	for _, raw := range cases {
		rec := jobs.Record{ID: "job-t", Type: jobs.TypeLLM, Result: raw}
		if _, _, err := p.Project(context.Background(), rec); err == nil {
			t.Errorf("expected error for result %T", raw)
		}
	}
}

func TestAudioProjectorNoArtifact(t *testing.T) {
	p := NewAudioProjector(nil, t.TempDir(), nil)
	rec := jobs.Record{ID: "job-a", Type: jobs.TypeTextToSpeech, Result: &gateway.AudioResponse{}}
	if _, _, err := p.Project(context.Background(), rec); err == nil {
		t.Fatal("audio response without URL must be an error")
	}
}

func TestAudioProjectorRestore(t *testing.T) {
	p := NewAudioProjector(nil, t.TempDir(), nil)

	audio := media.Audio{Waveform: []float32{0.1, 0.2}, Batch: 1, Channels: 1, Samples: 2, SampleRate: 44100}
	restored, ok := p.Restore(map[string]any{"audio": audio, "path": "/tmp/a.mp3", "ready": true})
	if !ok || !restored.Ready || restored.Path != "/tmp/a.mp3" {
		t.Errorf("restore mismatch: %+v", restored)
	}
	if _, ok := p.Restore(map[string]any{"ready": true}); ok {
		t.Error("cache without waveform must not restore")
	}
}
