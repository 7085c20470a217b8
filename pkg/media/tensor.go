package media

// ImageBatch is a batch of RGB frames in BHWC layout with float32
// values normalized to [0, 1]. Data is packed row-major:
// Data[((b*H+h)*W+w)*C+c].
type ImageBatch struct {
	Data []float32
	B    int
	H    int
	W    int
	C    int
}

// BlankSize is the edge length of placeholder frames handed to the
// host while a job has no image output yet
const BlankSize = 64

// NewImageBatch allocates a zeroed batch
func NewImageBatch(b, h, w, c int) ImageBatch {
	return ImageBatch{
		Data: make([]float32, b*h*w*c),
		B:    b,
		H:    h,
		W:    w,
		C:    c,
	}
}

// BlankImage returns the 1x64x64x3 black placeholder frame
func BlankImage() ImageBatch {
	return NewImageBatch(1, BlankSize, BlankSize, 3)
}

// At returns the value at (batch, row, col, channel)
func (ib ImageBatch) At(b, h, w, c int) float32 {
	return ib.Data[((b*ib.H+h)*ib.W+w)*ib.C+c]
}

// Set writes the value at (batch, row, col, channel)
func (ib ImageBatch) Set(b, h, w, c int, v float32) {
	ib.Data[((b*ib.H+h)*ib.W+w)*ib.C+c] = v
}

// Frame returns a one-frame copy of the batch at the given index
func (ib ImageBatch) Frame(i int) ImageBatch {
	out := NewImageBatch(1, ib.H, ib.W, ib.C)
	stride := ib.H * ib.W * ib.C
	copy(out.Data, ib.Data[i*stride:(i+1)*stride])
	return out
}

// Empty reports whether the batch holds no frames
func (ib ImageBatch) Empty() bool {
	return ib.B == 0 || len(ib.Data) == 0
}

// Audio is a waveform in [batch, channels, samples] layout with
// float32 samples in [-1, 1]. Waveform is packed channel-major:
// Waveform[(b*Channels+ch)*Samples+s].
type Audio struct {
	Waveform   []float32
	Batch      int
	Channels   int
	Samples    int
	SampleRate int
}

// DefaultSampleRate is used for placeholders and for audio extracted
// from video tracks
const DefaultSampleRate = 44100

// SilentAudio returns the single-sample stereo placeholder substituted
// when a video has no audio track or extraction fails
func SilentAudio() Audio {
	return Audio{
		Waveform:   make([]float32, 2),
		Batch:      1,
		Channels:   2,
		Samples:    1,
		SampleRate: DefaultSampleRate,
	}
}

// Sample returns the value at (batch, channel, sample)
func (a Audio) Sample(b, ch, s int) float32 {
	return a.Waveform[(b*a.Channels+ch)*a.Samples+s]
}

// Video bundles decoded frames with playback metadata and the
// demuxed audio track
type Video struct {
	Frames     ImageBatch
	FPS        float64
	FrameCount int
	Duration   float64
	Audio      Audio
}
