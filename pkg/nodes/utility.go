package nodes

import (
	"fmt"
	"sync"
	"time"

	"github.com/nodeforge/livegen/pkg/media"
)

// BatchIteratorNode steps through an image batch one frame per
// execution. Each node instance keeps its own cursor, so two iterators
// over the same batch advance independently.
type BatchIteratorNode struct {
	// BounceMode reverses direction at the batch edges instead of
	// wrapping around
	BounceMode bool
	// ResetCounter rewinds to the first frame on the next execution
	ResetCounter bool

	mu            sync.Mutex
	index         int
	direction     int
	lastBatchSize int
}

// NewBatchIteratorNode creates an iterator starting at the first frame
func NewBatchIteratorNode() *BatchIteratorNode {
	return &BatchIteratorNode{direction: 1}
}

// Next returns the current frame and advances the cursor. A reset
// request or a change in batch size rewinds to frame zero first.
func (n *BatchIteratorNode) Next(images media.ImageBatch) (media.ImageBatch, error) {
	if images.Empty() {
		return media.ImageBatch{}, fmt.Errorf("cannot iterate an empty batch")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ResetCounter || images.B != n.lastBatchSize {
		n.index = 0
		n.direction = 1
		n.lastBatchSize = images.B
	}

	index := n.index
	if index < 0 {
		index = 0
	}
	if index > images.B-1 {
		index = images.B - 1
	}
	frame := images.Frame(index)

	if n.BounceMode {
		if index == 0 && n.direction < 0 {
			n.direction = 1
		} else if index >= images.B-1 && n.direction > 0 {
			n.direction = -1
		}
		n.index = index + n.direction
	} else {
		n.index = (index + 1) % images.B
	}

	return frame, nil
}

// Changed always reports a fresh value so the host re-executes the
// iterator every run
func (n *BatchIteratorNode) Changed() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// BatchInfoOutputs is the batch info node's declared output tuple
type BatchInfoOutputs struct {
	Images media.ImageBatch
	Height int
	Width  int
	Count  int
}

// BatchInfoNode reports the dimensions of an image batch alongside the
// unchanged images
type BatchInfoNode struct{}

// NewBatchInfoNode creates the stateless info node
func NewBatchInfoNode() *BatchInfoNode {
	return &BatchInfoNode{}
}

func (n *BatchInfoNode) Inspect(images media.ImageBatch) BatchInfoOutputs {
	return BatchInfoOutputs{
		Images: images,
		Height: images.H,
		Width:  images.W,
		Count:  images.B,
	}
}
