package gateway

import (
	"context"
)

// TextToImage generates images from a text prompt
func (c *Client) TextToImage(ctx context.Context, req TextToImageRequest) (*ImageResponse, error) {
	var out ImageResponse
	if err := c.postJSON(ctx, "/text-to-image", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ImageToImage transforms a source image guided by a prompt
func (c *Client) ImageToImage(ctx context.Context, req ImageToImageRequest) (*ImageResponse, error) {
	fields := map[string]string{
		"prompt":          req.Prompt,
		"model_id":        req.ModelID,
		"negative_prompt": req.NegativePrompt,
		"loras":           req.Loras,
	}
	if req.Strength > 0 {
		fields["strength"] = formatFloat(req.Strength)
	}
	if req.GuidanceScale > 0 {
		fields["guidance_scale"] = formatFloat(req.GuidanceScale)
	}
	if req.ImageGuidanceScale > 0 {
		fields["image_guidance_scale"] = formatFloat(req.ImageGuidanceScale)
	}
	if req.SafetyCheck != nil {
		fields["safety_check"] = formatBool(*req.SafetyCheck)
	}
	if req.Seed != nil {
		fields["seed"] = formatInt(int(*req.Seed))
	}
	if req.NumInferenceSteps > 0 {
		fields["num_inference_steps"] = formatInt(req.NumInferenceSteps)
	}
	if req.NumImagesPerPrompt > 0 {
		fields["num_images_per_prompt"] = formatInt(req.NumImagesPerPrompt)
	}

	var out ImageResponse
	err := c.postMultipart(ctx, "/image-to-image", fields,
		[]filePart{{field: "image", filename: imageName(req.ImageName), content: req.Image}}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ImageToVideo animates a still image into a short clip
func (c *Client) ImageToVideo(ctx context.Context, req ImageToVideoRequest) (*VideoResponse, error) {
	fields := map[string]string{
		"model_id": req.ModelID,
	}
	if req.Height > 0 {
		fields["height"] = formatInt(req.Height)
	}
	if req.Width > 0 {
		fields["width"] = formatInt(req.Width)
	}
	if req.FPS > 0 {
		fields["fps"] = formatInt(req.FPS)
	}
	if req.MotionBucketID > 0 {
		fields["motion_bucket_id"] = formatInt(req.MotionBucketID)
	}
	if req.NoiseAugStrength > 0 {
		fields["noise_aug_strength"] = formatFloat(req.NoiseAugStrength)
	}
	if req.SafetyCheck != nil {
		fields["safety_check"] = formatBool(*req.SafetyCheck)
	}
	if req.Seed != nil {
		fields["seed"] = formatInt(int(*req.Seed))
	}
	if req.NumInferenceSteps > 0 {
		fields["num_inference_steps"] = formatInt(req.NumInferenceSteps)
	}

	var out VideoResponse
	err := c.postMultipart(ctx, "/image-to-video", fields,
		[]filePart{{field: "image", filename: imageName(req.ImageName), content: req.Image}}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Upscale increases the resolution of a source image
func (c *Client) Upscale(ctx context.Context, req UpscaleRequest) (*ImageResponse, error) {
	fields := map[string]string{
		"prompt":   req.Prompt,
		"model_id": req.ModelID,
	}
	if req.SafetyCheck != nil {
		fields["safety_check"] = formatBool(*req.SafetyCheck)
	}
	if req.Seed != nil {
		fields["seed"] = formatInt(int(*req.Seed))
	}
	if req.NumInferenceSteps > 0 {
		fields["num_inference_steps"] = formatInt(req.NumInferenceSteps)
	}

	var out ImageResponse
	err := c.postMultipart(ctx, "/upscale", fields,
		[]filePart{{field: "image", filename: imageName(req.ImageName), content: req.Image}}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Segment runs segment-anything-2 over a source image
func (c *Client) Segment(ctx context.Context, req SegmentRequest) (*SegmentResponse, error) {
	fields := map[string]string{
		"model_id":     req.ModelID,
		"point_coords": req.PointCoords,
		"point_labels": req.PointLabels,
		"box":          req.Box,
		"mask_input":   req.MaskInput,
	}
	if req.MultimaskOutput != nil {
		fields["multimask_output"] = formatBool(*req.MultimaskOutput)
	}
	if req.ReturnLogits != nil {
		fields["return_logits"] = formatBool(*req.ReturnLogits)
	}
	if req.NormalizeCoords != nil {
		fields["normalize_coords"] = formatBool(*req.NormalizeCoords)
	}

	var out SegmentResponse
	err := c.postMultipart(ctx, "/segment-anything-2", fields,
		[]filePart{{field: "image", filename: imageName(req.ImageName), content: req.Image}}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AudioToText transcribes an audio file
func (c *Client) AudioToText(ctx context.Context, req AudioToTextRequest) (*TextResponse, error) {
	fields := map[string]string{
		"model_id":          req.ModelID,
		"return_timestamps": req.ReturnTimestamps,
	}
	name := req.AudioName
	if name == "" {
		name = "input_audio.mp3"
	}

	var out TextResponse
	err := c.postMultipart(ctx, "/audio-to-text", fields,
		[]filePart{{field: "audio", filename: name, content: req.Audio}}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ImageToText captions or answers a prompt about a source image
func (c *Client) ImageToText(ctx context.Context, req ImageToTextRequest) (*TextResponse, error) {
	fields := map[string]string{
		"prompt":   req.Prompt,
		"model_id": req.ModelID,
	}

	var out TextResponse
	err := c.postMultipart(ctx, "/image-to-text", fields,
		[]filePart{{field: "image", filename: imageName(req.ImageName), content: req.Image}}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TextToSpeech synthesizes speech from text
func (c *Client) TextToSpeech(ctx context.Context, req TextToSpeechRequest) (*AudioResponse, error) {
	var out AudioResponse
	if err := c.postJSON(ctx, "/text-to-speech", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LLM runs a chat completion
func (c *Client) LLM(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	var out LLMResponse
	if err := c.postJSON(ctx, "/llm", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LiveVideoToVideo negotiates a live restyling session and returns the
// stream URLs
func (c *Client) LiveVideoToVideo(ctx context.Context, req LiveVideoRequest) (*LiveVideoResponse, error) {
	var out LiveVideoResponse
	if err := c.postJSON(ctx, "/live-video-to-video", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func imageName(name string) string {
	if name == "" {
		return "input_image.png"
	}
	return name
}
