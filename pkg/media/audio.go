package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
)

// LoadAudio decodes an audio file into the [batch, channels, samples]
// waveform format. Any format ffmpeg can read is accepted.
func LoadAudio(ctx context.Context, path string) (Audio, error) {
	if _, err := os.Stat(path); err != nil {
		return Audio{}, fmt.Errorf("audio file not found: %s", path)
	}

	info, err := probe(ctx, path)
	if err != nil {
		return Audio{}, err
	}
	if !info.hasAudio() {
		return Audio{}, fmt.Errorf("no audio stream in %s", path)
	}

	// Normalize everything to stereo at the default rate; the gateway
	// returns a mix of sample rates across models
	return decodePCM(ctx, path, 2, DefaultSampleRate)
}

// extractAudioTrack pulls the audio stream out of a video container
func extractAudioTrack(ctx context.Context, videoPath string) (Audio, error) {
	return decodePCM(ctx, videoPath, 2, DefaultSampleRate)
}

// decodePCM runs ffmpeg to produce interleaved signed 16-bit PCM and
// repacks it channel-major as normalized float32
func decodePCM(ctx context.Context, path string, channels, sampleRate int) (Audio, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(sampleRate),
		"-ac", fmt.Sprint(channels),
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Audio{}, fmt.Errorf("ffmpeg audio decode of %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	pcm := stdout.Bytes()
	samples := len(pcm) / 2 / channels
	if samples == 0 {
		return Audio{}, fmt.Errorf("no audio samples decoded from %s", path)
	}

	audio := Audio{
		Waveform:   make([]float32, channels*samples),
		Batch:      1,
		Channels:   channels,
		Samples:    samples,
		SampleRate: sampleRate,
	}
	// Interleaved LRLR... to channel-major [channels][samples]
	for s := 0; s < samples; s++ {
		for ch := 0; ch < channels; ch++ {
			raw := int16(binary.LittleEndian.Uint16(pcm[2*(s*channels+ch):]))
			audio.Waveform[ch*samples+s] = float32(raw) / 32768.0
		}
	}
	return audio, nil
}

// EncodeWAV serializes a waveform as a PCM WAV file for upload. Mono
// and multichannel inputs are interleaved back from the channel-major
// layout. Input shorter than one second is padded with silence, which
// some gateway pipelines require.
func EncodeWAV(audio Audio) ([]byte, error) {
	if audio.Channels == 0 || audio.SampleRate == 0 {
		return nil, fmt.Errorf("invalid audio: %d channels at %d Hz", audio.Channels, audio.SampleRate)
	}

	samples := audio.Samples
	minSamples := audio.SampleRate
	padded := samples
	if padded < minSamples {
		padded = minSamples
	}

	dataSize := padded * audio.Channels * 2
	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(audio.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(audio.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(audio.SampleRate*audio.Channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(audio.Channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))

	for s := 0; s < padded; s++ {
		for ch := 0; ch < audio.Channels; ch++ {
			var v float32
			if s < samples {
				v = audio.Sample(0, ch, s)
			}
			binary.Write(&buf, binary.LittleEndian, quantizeSample(v))
		}
	}
	return buf.Bytes(), nil
}

func quantizeSample(v float32) int16 {
	scaled := float64(v) * 32767
	if scaled > 32767 {
		scaled = 32767
	}
	if scaled < -32768 {
		scaled = -32768
	}
	return int16(math.Round(scaled))
}
