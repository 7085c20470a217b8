package nodes

import (
	"testing"
	"time"

	"github.com/nodeforge/livegen/pkg/media"
)

// markedBatch builds a batch whose frames are distinguishable by their
// first pixel value
func markedBatch(t *testing.T, frames int) media.ImageBatch {
	t.Helper()
	batch := media.NewImageBatch(frames, 4, 4, 3)
	for i := 0; i < frames; i++ {
		batch.Set(i, 0, 0, 0, float32(i+1)/10)
	}
	return batch
}

func frameMark(t *testing.T, frame media.ImageBatch) float32 {
	t.Helper()
	if frame.B != 1 {
		t.Fatalf("expected a single frame, got batch of %d", frame.B)
	}
	return frame.At(0, 0, 0, 0)
}

func TestBatchIteratorCycles(t *testing.T) {
	batch := markedBatch(t, 3)
	n := NewBatchIteratorNode()

	want := []float32{0.1, 0.2, 0.3, 0.1, 0.2}
	for i, mark := range want {
		frame, err := n.Next(batch)
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if got := frameMark(t, frame); got != mark {
			t.Fatalf("step %d returned frame mark %v, want %v", i, got, mark)
		}
	}
}

func TestBatchIteratorBounces(t *testing.T) {
	batch := markedBatch(t, 3)
	n := NewBatchIteratorNode()
	n.BounceMode = true

	want := []float32{0.1, 0.2, 0.3, 0.2, 0.1, 0.2}
	for i, mark := range want {
		frame, err := n.Next(batch)
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if got := frameMark(t, frame); got != mark {
			t.Fatalf("step %d returned frame mark %v, want %v", i, got, mark)
		}
	}
}

func TestBatchIteratorReset(t *testing.T) {
	batch := markedBatch(t, 3)
	n := NewBatchIteratorNode()

	n.Next(batch)
	n.Next(batch)

	n.ResetCounter = true
	frame, err := n.Next(batch)
	if err != nil {
		t.Fatalf("Next after reset: %v", err)
	}
	if got := frameMark(t, frame); got != 0.1 {
		t.Fatalf("reset should rewind to the first frame, got mark %v", got)
	}
}

func TestBatchIteratorRewindsOnBatchSizeChange(t *testing.T) {
	n := NewBatchIteratorNode()

	n.Next(markedBatch(t, 4))
	n.Next(markedBatch(t, 4))

	frame, err := n.Next(markedBatch(t, 2))
	if err != nil {
		t.Fatalf("Next with new batch: %v", err)
	}
	if got := frameMark(t, frame); got != 0.1 {
		t.Fatalf("a resized batch should rewind the cursor, got mark %v", got)
	}
}

func TestBatchIteratorEmptyBatch(t *testing.T) {
	n := NewBatchIteratorNode()
	if _, err := n.Next(media.ImageBatch{}); err == nil {
		t.Fatal("expected an error for an empty batch")
	}
}

func TestBatchIteratorChangedIsVolatile(t *testing.T) {
	n := NewBatchIteratorNode()
	first := n.Changed()
	time.Sleep(time.Millisecond)
	if first == n.Changed() {
		t.Fatal("Changed should report a fresh value each call")
	}
}

func TestBatchInfo(t *testing.T) {
	batch := media.NewImageBatch(5, 32, 48, 3)
	out := NewBatchInfoNode().Inspect(batch)

	if out.Height != 32 || out.Width != 48 || out.Count != 5 {
		t.Fatalf("Inspect = %dx%d count %d, want 32x48 count 5", out.Height, out.Width, out.Count)
	}
	if out.Images.B != 5 {
		t.Fatal("Inspect should pass the batch through unchanged")
	}
}
