package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"
)

// DecodeImage decodes an encoded image into a single RGB frame
// normalized to [0, 1]
func DecodeImage(data []byte) (ImageBatch, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ImageBatch{}, fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	out := NewImageBatch(1, h, w, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out.Set(0, y, x, 0, float32(r)/65535.0)
			out.Set(0, y, x, 1, float32(g)/65535.0)
			out.Set(0, y, x, 2, float32(b)/65535.0)
		}
	}
	return out, nil
}

// StackImages combines single-frame batches into one batch. All frames
// must share the same dimensions; the gateway does not guarantee this
// across a multi-image response, so a mismatch is an error rather
// than a silent resize.
func StackImages(frames []ImageBatch) (ImageBatch, error) {
	if len(frames) == 0 {
		return ImageBatch{}, fmt.Errorf("no frames to stack")
	}
	h, w, c := frames[0].H, frames[0].W, frames[0].C
	for i, f := range frames {
		if f.H != h || f.W != w || f.C != c {
			return ImageBatch{}, fmt.Errorf("frame %d is %dx%d, expected %dx%d", i, f.W, f.H, w, h)
		}
	}

	out := NewImageBatch(len(frames), h, w, c)
	stride := h * w * c
	for i, f := range frames {
		copy(out.Data[i*stride:(i+1)*stride], f.Data)
	}
	return out, nil
}

// EncodePNG renders one frame of a batch as PNG bytes for upload.
// Values are clamped to [0, 1] before quantization.
func EncodePNG(batch ImageBatch, index int) ([]byte, error) {
	if index < 0 || index >= batch.B {
		return nil, fmt.Errorf("frame index %d out of range for batch of %d", index, batch.B)
	}
	if batch.C < 3 {
		return nil, fmt.Errorf("expected at least 3 channels, got %d", batch.C)
	}

	img := image.NewRGBA(image.Rect(0, 0, batch.W, batch.H))
	for y := 0; y < batch.H; y++ {
		for x := 0; x < batch.W; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: quantize(batch.At(index, y, x, 0)),
				G: quantize(batch.At(index, y, x, 1)),
				B: quantize(batch.At(index, y, x, 2)),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

func quantize(v float32) uint8 {
	scaled := v * 255
	if scaled <= 0 {
		return 0
	}
	if scaled >= 255 {
		return 255
	}
	return uint8(scaled + 0.5)
}
