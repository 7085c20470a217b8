package gateway

// MediaItem is one generated artifact reference. Image and video
// endpoints share this shape.
type MediaItem struct {
	URL  string `json:"url"`
	Seed int64  `json:"seed"`
	NSFW bool   `json:"nsfw"`
}

// ImageResponse is returned by the image generation endpoints
type ImageResponse struct {
	Images []MediaItem `json:"images"`
}

// VideoResponse is returned by image-to-video. The gateway reuses the
// images field name for video artifacts.
type VideoResponse struct {
	Images []MediaItem `json:"images"`
}

// TextChunk is one timestamped transcription fragment
type TextChunk struct {
	Timestamp []float64 `json:"timestamp"`
	Text      string    `json:"text"`
}

// TextResponse is returned by audio-to-text and image-to-text
type TextResponse struct {
	Text   string      `json:"text"`
	Chunks []TextChunk `json:"chunks,omitempty"`
}

// AudioArtifact references a generated audio file
type AudioArtifact struct {
	URL string `json:"url"`
}

// AudioResponse is returned by text-to-speech
type AudioResponse struct {
	Audio  AudioArtifact `json:"audio"`
	Format string        `json:"format,omitempty"`
}

// SegmentResponse is returned by segment-anything-2. Masks, scores and
// logits are JSON-encoded nested arrays passed through verbatim.
type SegmentResponse struct {
	Masks  string `json:"masks"`
	Scores string `json:"scores"`
	Logits string `json:"logits"`
}

// LLMMessage is one chat turn
type LLMMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMChoice is one completion alternative
type LLMChoice struct {
	Index        int        `json:"index"`
	Message      LLMMessage `json:"message"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// LLMResponse is the chat-completion shaped llm endpoint response
type LLMResponse struct {
	ID      string      `json:"id,omitempty"`
	Model   string      `json:"model,omitempty"`
	Choices []LLMChoice `json:"choices"`
}

// LiveVideoResponse carries the stream negotiation URLs for a live
// video-to-video session
type LiveVideoResponse struct {
	SubscribeURL string `json:"subscribe_url"`
	PublishURL   string `json:"publish_url"`
	ControlURL   string `json:"control_url,omitempty"`
	EventsURL    string `json:"events_url,omitempty"`
}

// TextToImageRequest mirrors the text-to-image JSON body. Pointer and
// omitempty fields are left out of the request when unset so the
// gateway picks its model defaults.
type TextToImageRequest struct {
	Prompt             string  `json:"prompt"`
	ModelID            string  `json:"model_id,omitempty"`
	NegativePrompt     string  `json:"negative_prompt,omitempty"`
	Loras              string  `json:"loras,omitempty"`
	Height             int     `json:"height,omitempty"`
	Width              int     `json:"width,omitempty"`
	GuidanceScale      float64 `json:"guidance_scale,omitempty"`
	SafetyCheck        *bool   `json:"safety_check,omitempty"`
	Seed               *int64  `json:"seed,omitempty"`
	NumInferenceSteps  int     `json:"num_inference_steps,omitempty"`
	NumImagesPerPrompt int     `json:"num_images_per_prompt,omitempty"`
}

// ImageToImageRequest covers the multipart fields of image-to-image;
// the source image travels as a file part
type ImageToImageRequest struct {
	Image              []byte
	ImageName          string
	Prompt             string
	ModelID            string
	NegativePrompt     string
	Loras              string
	Strength           float64
	GuidanceScale      float64
	ImageGuidanceScale float64
	SafetyCheck        *bool
	Seed               *int64
	NumInferenceSteps  int
	NumImagesPerPrompt int
}

// ImageToVideoRequest covers the multipart fields of image-to-video
type ImageToVideoRequest struct {
	Image             []byte
	ImageName         string
	ModelID           string
	Height            int
	Width             int
	FPS               int
	MotionBucketID    int
	NoiseAugStrength  float64
	SafetyCheck       *bool
	Seed              *int64
	NumInferenceSteps int
}

// UpscaleRequest covers the multipart fields of upscale
type UpscaleRequest struct {
	Image             []byte
	ImageName         string
	Prompt            string
	ModelID           string
	SafetyCheck       *bool
	Seed              *int64
	NumInferenceSteps int
}

// SegmentRequest covers the multipart fields of segment-anything-2.
// PointCoords, PointLabels and Box are JSON-encoded arrays.
type SegmentRequest struct {
	Image           []byte
	ImageName       string
	ModelID         string
	PointCoords     string
	PointLabels     string
	Box             string
	MaskInput       string
	MultimaskOutput *bool
	ReturnLogits    *bool
	NormalizeCoords *bool
}

// AudioToTextRequest covers the multipart fields of audio-to-text
type AudioToTextRequest struct {
	Audio            []byte
	AudioName        string
	ModelID          string
	ReturnTimestamps string
}

// ImageToTextRequest covers the multipart fields of image-to-text
type ImageToTextRequest struct {
	Image     []byte
	ImageName string
	Prompt    string
	ModelID   string
}

// TextToSpeechRequest mirrors the text-to-speech JSON body
type TextToSpeechRequest struct {
	Text        string `json:"text"`
	ModelID     string `json:"model_id,omitempty"`
	Description string `json:"description,omitempty"`
}

// LLMRequest mirrors the llm JSON body
type LLMRequest struct {
	Model            string       `json:"model,omitempty"`
	Messages         []LLMMessage `json:"messages"`
	Temperature      float64      `json:"temperature,omitempty"`
	TopP             float64      `json:"top_p,omitempty"`
	MaxTokens        int          `json:"max_tokens,omitempty"`
	FrequencyPenalty float64      `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64      `json:"presence_penalty,omitempty"`
}

// LiveVideoRequest mirrors the live-video-to-video JSON body
type LiveVideoRequest struct {
	StreamKey string         `json:"stream_key,omitempty"`
	ModelID   string         `json:"model_id,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}
