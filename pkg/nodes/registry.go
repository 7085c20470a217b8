package nodes

import (
	"context"
	"fmt"
	"sort"
)

// SubmitNode is the common surface of all submit wrappers: execute the
// call and return a job id
type SubmitNode interface {
	Execute(ctx context.Context, e *Env) (string, error)
}

// NodeSpec describes one registered node for the host
type NodeSpec struct {
	Name        string
	DisplayName string
	Category    string
	// JobType is empty for nodes that submit nothing (utility nodes)
	JobType string
	// Factory is nil for nodes that execute locally instead of
	// submitting a job
	Factory func(e *Env) SubmitNode
}

var registry = map[string]NodeSpec{}

func register(spec NodeSpec) {
	registry[spec.Name] = spec
}

func init() {
	register(NodeSpec{
		Name: "LivegenT2I", DisplayName: "Livegen Text to Image", Category: "Livegen/Image", JobType: "t2i",
		Factory: func(e *Env) SubmitNode { return NewTextToImageNode(e) },
	})
	register(NodeSpec{
		Name: "LivegenI2I", DisplayName: "Livegen Image to Image", Category: "Livegen/Image", JobType: "i2i",
		Factory: func(e *Env) SubmitNode { return NewImageToImageNode(e) },
	})
	register(NodeSpec{
		Name: "LivegenUpscale", DisplayName: "Livegen Upscale", Category: "Livegen/Image", JobType: "upscale",
		Factory: func(e *Env) SubmitNode { return NewUpscaleNode(e) },
	})
	register(NodeSpec{
		Name: "LivegenSegment", DisplayName: "Livegen Segment", Category: "Livegen/Image", JobType: "segment",
		Factory: func(e *Env) SubmitNode { return NewSegmentNode(e) },
	})
	register(NodeSpec{
		Name: "LivegenI2V", DisplayName: "Livegen Image to Video", Category: "Livegen/Video", JobType: "i2v",
		Factory: func(e *Env) SubmitNode { return NewImageToVideoNode(e) },
	})
	register(NodeSpec{
		Name: "LivegenLive2V", DisplayName: "Livegen Live Video to Video", Category: "Livegen/Video", JobType: "live2v",
		Factory: func(e *Env) SubmitNode { return NewLiveVideoToVideoNode(e) },
	})
	register(NodeSpec{
		Name: "LivegenI2T", DisplayName: "Livegen Image to Text", Category: "Livegen/Text", JobType: "i2t",
		Factory: func(e *Env) SubmitNode { return NewImageToTextNode(e) },
	})
	register(NodeSpec{
		Name: "LivegenA2T", DisplayName: "Livegen Audio to Text", Category: "Livegen/Text", JobType: "a2t",
		Factory: func(e *Env) SubmitNode { return NewAudioToTextNode(e) },
	})
	register(NodeSpec{
		Name: "LivegenLLM", DisplayName: "Livegen LLM", Category: "Livegen/Text", JobType: "llm",
		Factory: func(e *Env) SubmitNode { return NewLLMNode(e) },
	})
	register(NodeSpec{
		Name: "LivegenT2S", DisplayName: "Livegen Text to Speech", Category: "Livegen/Audio", JobType: "t2s",
		Factory: func(e *Env) SubmitNode { return NewTextToSpeechNode(e) },
	})
	register(NodeSpec{
		Name: "BatchIterator", DisplayName: "Batch Image Iterator", Category: "Livegen/Utils",
	})
	register(NodeSpec{
		Name: "BatchInfo", DisplayName: "Batch Info", Category: "Livegen/Utils",
	})
}

// Lookup finds a registered node spec by name
func Lookup(name string) (NodeSpec, error) {
	spec, ok := registry[name]
	if !ok {
		return NodeSpec{}, fmt.Errorf("unknown node %q", name)
	}
	return spec, nil
}

// LookupByJobType finds the submit node producing the given job type
func LookupByJobType(jobType string) (NodeSpec, error) {
	for _, spec := range registry {
		if spec.JobType != "" && spec.JobType == jobType {
			return spec, nil
		}
	}
	return NodeSpec{}, fmt.Errorf("no node produces job type %q", jobType)
}

// All returns every registered spec, sorted by name
func All() []NodeSpec {
	out := make([]NodeSpec, 0, len(registry))
	for _, spec := range registry {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
