package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodeforge/livegen/pkg/jobs"
	"github.com/nodeforge/livegen/pkg/media"
	"github.com/nodeforge/livegen/pkg/nodes"
)

var (
	genPrompt       string
	genNegative     string
	genModel        string
	genText         string
	genDescription  string
	genSystemPrompt string
	genImagePath    string
	genAudioPath    string
	genWidth        int
	genHeight       int
	genStrength     float64
	genSeed         int64
	genAsync        bool
	genURLOnly      bool
	genWait         time.Duration
)

var generateCmd = &cobra.Command{
	Use:   "generate <type>",
	Short: "Run a generation job locally",
	Long: `Submits a generation job directly against the Livepeer gateway and
waits for the result. The type is one of the registered job types
(t2i, i2i, i2v, i2t, upscale, segment, a2t, t2s, llm, live2v).`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&genPrompt, "prompt", "", "text prompt")
	generateCmd.Flags().StringVar(&genNegative, "negative-prompt", "", "negative prompt")
	generateCmd.Flags().StringVar(&genModel, "model", "", "model id (overrides the configured default)")
	generateCmd.Flags().StringVar(&genText, "text", "", "text to synthesize (t2s)")
	generateCmd.Flags().StringVar(&genDescription, "description", "", "voice description (t2s)")
	generateCmd.Flags().StringVar(&genSystemPrompt, "system-prompt", "", "system prompt (llm)")
	generateCmd.Flags().StringVar(&genImagePath, "image", "", "input image file (i2i, i2v, i2t, upscale, segment)")
	generateCmd.Flags().StringVar(&genAudioPath, "audio", "", "input audio file (a2t)")
	generateCmd.Flags().IntVar(&genWidth, "width", 0, "output width")
	generateCmd.Flags().IntVar(&genHeight, "height", 0, "output height")
	generateCmd.Flags().Float64Var(&genStrength, "strength", 0, "transformation strength (i2i)")
	generateCmd.Flags().Int64Var(&genSeed, "seed", 0, "generation seed")
	generateCmd.Flags().BoolVar(&genAsync, "async", false, "submit in the background and poll for completion")
	generateCmd.Flags().BoolVar(&genURLOnly, "url-only", false, "skip downloading video artifacts")
	generateCmd.Flags().DurationVar(&genWait, "wait", 5*time.Minute, "how long to wait for an async job to settle")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	jobType := args[0]
	if _, err := nodes.LookupByJobType(jobType); err != nil {
		return err
	}

	env, err := newEnv()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	jobID, err := buildAndSubmit(ctx, env, jobType)
	if err != nil {
		return err
	}
	if jobID == "" {
		return fmt.Errorf("node is disabled, nothing submitted")
	}
	fmt.Printf("Job %s submitted.\n", jobID)

	if genAsync {
		if err := waitForSettled(env, jobID); err != nil {
			return err
		}
	}
	return deliverResult(ctx, env, jobType, jobID)
}

func buildAndSubmit(ctx context.Context, env *nodes.Env, jobType string) (string, error) {
	switch jobType {
	case "t2i":
		n := nodes.NewTextToImageNode(env)
		n.Prompt = genPrompt
		n.NegativePrompt = genNegative
		applyImageDims(&n.Width, &n.Height)
		n.Seed = genSeed
		overrideModel(&n.ModelID)
		n.Params.RunAsync = genAsync
		return n.Execute(ctx, env)

	case "i2i":
		img, err := loadInputImage()
		if err != nil {
			return "", err
		}
		n := nodes.NewImageToImageNode(env)
		n.Image = img
		n.Prompt = genPrompt
		n.NegativePrompt = genNegative
		if genStrength > 0 {
			n.Strength = genStrength
		}
		n.Seed = genSeed
		overrideModel(&n.ModelID)
		n.Params.RunAsync = genAsync
		return n.Execute(ctx, env)

	case "upscale":
		img, err := loadInputImage()
		if err != nil {
			return "", err
		}
		n := nodes.NewUpscaleNode(env)
		n.Image = img
		n.Prompt = genPrompt
		overrideModel(&n.ModelID)
		n.Params.RunAsync = genAsync
		return n.Execute(ctx, env)

	case "segment":
		img, err := loadInputImage()
		if err != nil {
			return "", err
		}
		n := nodes.NewSegmentNode(env)
		n.Image = img
		overrideModel(&n.ModelID)
		n.Params.RunAsync = genAsync
		return n.Execute(ctx, env)

	case "i2v":
		img, err := loadInputImage()
		if err != nil {
			return "", err
		}
		n := nodes.NewImageToVideoNode(env)
		n.Image = img
		applyImageDims(&n.Width, &n.Height)
		n.Seed = genSeed
		overrideModel(&n.ModelID)
		n.Params.RunAsync = genAsync
		return n.Execute(ctx, env)

	case "live2v":
		n := nodes.NewLiveVideoToVideoNode(env)
		overrideModel(&n.ModelID)
		n.Params.RunAsync = genAsync
		return n.Execute(ctx, env)

	case "i2t":
		img, err := loadInputImage()
		if err != nil {
			return "", err
		}
		n := nodes.NewImageToTextNode(env)
		n.Image = img
		n.Prompt = genPrompt
		overrideModel(&n.ModelID)
		n.Params.RunAsync = genAsync
		return n.Execute(ctx, env)

	case "a2t":
		if genAudioPath == "" {
			return "", fmt.Errorf("--audio is required for a2t")
		}
		audio, err := media.LoadAudio(ctx, genAudioPath)
		if err != nil {
			return "", err
		}
		n := nodes.NewAudioToTextNode(env)
		n.Audio = audio
		overrideModel(&n.ModelID)
		n.Params.RunAsync = genAsync
		return n.Execute(ctx, env)

	case "t2s":
		n := nodes.NewTextToSpeechNode(env)
		n.Text = genText
		if genDescription != "" {
			n.Description = genDescription
		}
		overrideModel(&n.ModelID)
		n.Params.RunAsync = genAsync
		return n.Execute(ctx, env)

	case "llm":
		n := nodes.NewLLMNode(env)
		n.Prompt = genPrompt
		n.SystemPrompt = genSystemPrompt
		overrideModel(&n.ModelID)
		n.Params.RunAsync = genAsync
		return n.Execute(ctx, env)
	}
	return "", fmt.Errorf("unknown job type %q", jobType)
}

func overrideModel(dst *string) {
	if genModel != "" {
		*dst = genModel
	}
}

func applyImageDims(width, height *int) {
	if genWidth > 0 {
		*width = genWidth
	}
	if genHeight > 0 {
		*height = genHeight
	}
}

func loadInputImage() (media.ImageBatch, error) {
	if genImagePath == "" {
		return media.ImageBatch{}, fmt.Errorf("--image is required for this job type")
	}
	data, err := os.ReadFile(genImagePath)
	if err != nil {
		return media.ImageBatch{}, err
	}
	return media.DecodeImage(data)
}

// waitForSettled polls the store until the async submit leaves pending
func waitForSettled(env *nodes.Env, jobID string) error {
	deadline := time.Now().Add(genWait)
	for env.Store.StatusOf(jobID) == jobs.StatusPending {
		if time.Now().After(deadline) {
			return fmt.Errorf("job %s still pending after %s", jobID, genWait)
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

// deliverResult projects the settled job through the matching getter
// and reports the outcome
func deliverResult(ctx context.Context, env *nodes.Env, jobType, jobID string) error {
	switch jobType {
	case "t2i", "i2i", "upscale", "segment":
		getter := nodes.NewImageJobGetter(env, "cli")
		defer getter.Release()
		out := getter.Fetch(ctx, jobID)
		if out.Status != jobs.StatusDelivered {
			return fmt.Errorf("job %s: %s (%s)", jobID, out.Status, out.Message)
		}
		return saveImages(env, out.Images)

	case "i2v", "live2v":
		getter := nodes.NewVideoJobGetter(env, "cli", !genURLOnly)
		defer getter.Release()
		out := getter.Fetch(ctx, jobID)
		if out.Status != jobs.StatusDelivered {
			return fmt.Errorf("job %s: %s (%s)", jobID, out.Status, out.Message)
		}
		fmt.Printf("Video URL: %s\n", out.URL)
		if out.Path != "" {
			fmt.Printf("Saved to %s (%d frames)\n", out.Path, out.Frames.B)
		}
		return nil

	case "i2t", "a2t", "llm":
		getter := nodes.NewTextJobGetter(env, "cli")
		defer getter.Release()
		out := getter.Fetch(ctx, jobID)
		if out.Status != jobs.StatusDelivered {
			return fmt.Errorf("job %s: %s (%s)", jobID, out.Status, out.Message)
		}
		if IsJSONOutput() {
			return json.NewEncoder(os.Stdout).Encode(map[string]string{"text": out.Text})
		}
		fmt.Println(out.Text)
		return nil

	case "t2s":
		getter := nodes.NewAudioJobGetter(env, "cli")
		defer getter.Release()
		out := getter.Fetch(ctx, jobID)
		if out.Status != jobs.StatusDelivered {
			return fmt.Errorf("job %s: %s (%s)", jobID, out.Status, out.Message)
		}
		fmt.Printf("Saved to %s (%d samples @ %d Hz)\n", out.Path, out.Audio.Samples, out.Audio.SampleRate)
		return nil
	}
	return nil
}

// saveImages writes each frame of the delivered batch as a PNG
func saveImages(env *nodes.Env, batch media.ImageBatch) error {
	dir, err := env.Config.OutputPath("images")
	if err != nil {
		return err
	}
	for i := 0; i < batch.B; i++ {
		data, err := media.EncodePNG(batch, i)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("livepeer_image_%d_%d.png", time.Now().Unix(), i))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", path)
	}
	return nil
}
