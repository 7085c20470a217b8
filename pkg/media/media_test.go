package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeImageNormalizes(t *testing.T) {
	data := solidPNG(t, 4, 2, color.RGBA{R: 255, G: 0, B: 127, A: 255})

	batch, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if batch.B != 1 || batch.H != 2 || batch.W != 4 || batch.C != 3 {
		t.Fatalf("unexpected shape %dx%dx%dx%d", batch.B, batch.H, batch.W, batch.C)
	}
	if got := batch.At(0, 0, 0, 0); got != 1.0 {
		t.Errorf("red channel = %f, want 1.0", got)
	}
	if got := batch.At(0, 0, 0, 1); got != 0.0 {
		t.Errorf("green channel = %f, want 0.0", got)
	}
	b := batch.At(0, 1, 3, 2)
	if b < 0.49 || b > 0.51 {
		t.Errorf("blue channel = %f, want ~0.498", b)
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, err := DecodeImage([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestStackImagesRejectsMixedSizes(t *testing.T) {
	a, _ := DecodeImage(solidPNG(t, 4, 4, color.RGBA{A: 255}))
	b, _ := DecodeImage(solidPNG(t, 8, 8, color.RGBA{A: 255}))

	if _, err := StackImages([]ImageBatch{a, b}); err == nil {
		t.Fatal("mixed frame sizes must be rejected")
	}

	stacked, err := StackImages([]ImageBatch{a, a, a})
	if err != nil {
		t.Fatalf("uniform stack failed: %v", err)
	}
	if stacked.B != 3 {
		t.Errorf("expected batch of 3, got %d", stacked.B)
	}
}

func TestEncodePNGRoundTrip(t *testing.T) {
	src, err := DecodeImage(solidPNG(t, 8, 8, color.RGBA{R: 200, G: 100, B: 50, A: 255}))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	encoded, err := EncodePNG(src, 0)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	back, err := DecodeImage(encoded)
	if err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	for c := 0; c < 3; c++ {
		diff := src.At(0, 4, 4, c) - back.At(0, 4, 4, c)
		if diff < -0.01 || diff > 0.01 {
			t.Errorf("channel %d drifted by %f", c, diff)
		}
	}
}

func TestEncodePNGClampsOutOfRange(t *testing.T) {
	batch := NewImageBatch(1, 1, 1, 3)
	batch.Set(0, 0, 0, 0, 2.5)
	batch.Set(0, 0, 0, 1, -1.0)

	encoded, err := EncodePNG(batch, 0)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	back, _ := DecodeImage(encoded)
	if got := back.At(0, 0, 0, 0); got != 1.0 {
		t.Errorf("overrange value should clamp to 1.0, got %f", got)
	}
	if got := back.At(0, 0, 0, 1); got != 0.0 {
		t.Errorf("negative value should clamp to 0.0, got %f", got)
	}
}

func TestEncodePNGIndexOutOfRange(t *testing.T) {
	if _, err := EncodePNG(BlankImage(), 1); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestBlankImageShape(t *testing.T) {
	blank := BlankImage()
	if blank.B != 1 || blank.H != 64 || blank.W != 64 || blank.C != 3 {
		t.Fatalf("unexpected placeholder shape %dx%dx%dx%d", blank.B, blank.H, blank.W, blank.C)
	}
	for _, v := range blank.Data {
		if v != 0 {
			t.Fatal("placeholder must be black")
		}
	}
}

func TestSilentAudioShape(t *testing.T) {
	a := SilentAudio()
	if a.Batch != 1 || a.Channels != 2 || a.Samples != 1 {
		t.Fatalf("unexpected placeholder shape [%d %d %d]", a.Batch, a.Channels, a.Samples)
	}
	if a.SampleRate != 44100 {
		t.Errorf("expected 44100 Hz, got %d", a.SampleRate)
	}
}

func TestDownloadWritesTimestampedFile(t *testing.T) {
	payload := []byte("fake mp4 bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := Download(context.Background(), srv.Client(), srv.URL, dir, KindVideos)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	name := filepath.Base(path)
	if !strings.HasPrefix(name, "livepeer_video_") || !strings.HasSuffix(name, ".mp4") {
		t.Errorf("unexpected filename %q", name)
	}
	got, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(got, payload) {
		t.Errorf("downloaded content mismatch: %v", err)
	}
}

func TestDownloadFailsOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	if _, err := Download(context.Background(), srv.Client(), srv.URL, dir, KindVideos); err == nil {
		t.Fatal("expected error on 404")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Error("failed download must not leave files behind")
	}
}

func TestFixExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livepeer_audio_123.mp3")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	fixed := FixExtension(path, "wav")
	if !strings.HasSuffix(fixed, ".wav") {
		t.Errorf("expected .wav suffix, got %q", fixed)
	}
	if _, err := os.Stat(fixed); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}

	if got := FixExtension(fixed, ""); got != fixed {
		t.Errorf("empty format must be a no-op, got %q", got)
	}
}

func TestParseFrameRate(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 29.97002997002997},
		{"0/0", 0},
		{"", 0},
		{"bogus", 0},
	}
	for _, tc := range cases {
		if got := parseFrameRate(tc.raw); got != tc.want {
			t.Errorf("parseFrameRate(%q) = %f, want %f", tc.raw, got, tc.want)
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	audio := Audio{
		Waveform:   []float32{0.5, -0.5, 0.25, -0.25},
		Batch:      1,
		Channels:   2,
		Samples:    2,
		SampleRate: 8000,
	}
	data, err := EncodeWAV(audio)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 8000 {
		t.Errorf("sample rate = %d, want 8000", rate)
	}
	// Sub-second input is padded with silence to one full second
	wantData := uint32(8000 * 2 * 2)
	if size := binary.LittleEndian.Uint32(data[40:44]); size != wantData {
		t.Errorf("data size = %d, want %d", size, wantData)
	}
	// First frame carries the real samples
	if s := int16(binary.LittleEndian.Uint16(data[44:46])); s < 16000 || s > 16400 {
		t.Errorf("first left sample = %d, want ~16384", s)
	}
}

func TestEncodeWAVRejectsInvalid(t *testing.T) {
	if _, err := EncodeWAV(Audio{}); err == nil {
		t.Fatal("expected error for zero-channel audio")
	}
}
