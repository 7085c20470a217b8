package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// probeResult is the subset of ffprobe's JSON output we consume
type probeResult struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	NbFrames     string `json:"nb_frames"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

// probe runs ffprobe and decodes its stream listing
func probe(ctx context.Context, path string) (*probeResult, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "stream=codec_type,width,height,nb_frames,avg_frame_rate,duration",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	var result probeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output for %s: %w", path, err)
	}
	return &result, nil
}

func (p *probeResult) videoStream() *probeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i]
		}
	}
	return nil
}

func (p *probeResult) hasAudio() bool {
	for _, s := range p.Streams {
		if s.CodecType == "audio" {
			return true
		}
	}
	return false
}

// parseFrameRate turns ffprobe's "30000/1001" rational into a float
func parseFrameRate(raw string) float64 {
	if raw == "" || raw == "0/0" {
		return 0
	}
	parts := strings.SplitN(raw, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}

// LoadVideo decodes a video file into a BHWC frame batch, demuxing the
// audio track when present. frameStep keeps every Nth frame; maxFrames
// caps the batch size (0 means unlimited). A missing or broken audio
// track yields the silent placeholder, never an error: the frames are
// the primary output.
func LoadVideo(ctx context.Context, path string, maxFrames, frameStep int, extractAudio bool) (Video, error) {
	if _, err := os.Stat(path); err != nil {
		return Video{}, fmt.Errorf("video file not found: %s", path)
	}
	if frameStep < 1 {
		frameStep = 1
	}

	info, err := probe(ctx, path)
	if err != nil {
		return Video{}, err
	}
	vs := info.videoStream()
	if vs == nil {
		return Video{}, fmt.Errorf("no video stream in %s", path)
	}
	if vs.Width <= 0 || vs.Height <= 0 {
		return Video{}, fmt.Errorf("invalid dimensions %dx%d in %s", vs.Width, vs.Height, path)
	}

	frames, err := decodeFrames(ctx, path, vs.Width, vs.Height, maxFrames, frameStep)
	if err != nil {
		return Video{}, err
	}
	if frames.Empty() {
		return Video{}, fmt.Errorf("no frames could be decoded from %s", path)
	}

	audio := SilentAudio()
	if extractAudio && info.hasAudio() {
		if extracted, err := extractAudioTrack(ctx, path); err == nil {
			audio = extracted
		}
	}

	fps := parseFrameRate(vs.AvgFrameRate)
	duration, _ := strconv.ParseFloat(vs.Duration, 64)
	return Video{
		Frames:     frames,
		FPS:        fps,
		FrameCount: frames.B,
		Duration:   duration,
		Audio:      audio,
	}, nil
}

// decodeFrames streams raw rgb24 frames out of ffmpeg and normalizes
// them into a float batch
func decodeFrames(ctx context.Context, path string, width, height, maxFrames, frameStep int) (ImageBatch, error) {
	args := []string{"-i", path}
	if frameStep > 1 {
		args = append(args, "-vf", fmt.Sprintf("select=not(mod(n\\,%d))", frameStep), "-vsync", "vfr")
	}
	if maxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(maxFrames))
	}
	args = append(args, "-f", "rawvideo", "-pix_fmt", "rgb24", "-")

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ImageBatch{}, fmt.Errorf("opening ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return ImageBatch{}, fmt.Errorf("starting ffmpeg: %w", err)
	}

	frameSize := width * height * 3
	buf := make([]byte, frameSize)
	var frames []ImageBatch

	for {
		if _, err := io.ReadFull(stdout, buf); err != nil {
			break
		}
		frame := NewImageBatch(1, height, width, 3)
		for i, b := range buf {
			frame.Data[i] = float32(b) / 255.0
		}
		frames = append(frames, frame)
	}

	if err := cmd.Wait(); err != nil && len(frames) == 0 {
		return ImageBatch{}, fmt.Errorf("ffmpeg decode of %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return StackImages(frames)
}
