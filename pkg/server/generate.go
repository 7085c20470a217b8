package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nodeforge/livegen/pkg/media"
	"github.com/nodeforge/livegen/pkg/nodes"
)

// generateRequest is the JSON submission body. Multipart submissions
// carry the same fields as form values plus the uploaded file.
type generateRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	ModelID        string  `json:"model_id"`
	Text           string  `json:"text"`
	Description    string  `json:"description"`
	SystemPrompt   string  `json:"system_prompt"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	GuidanceScale  float64 `json:"guidance_scale"`
	Strength       float64 `json:"strength"`
	Seed           int64   `json:"seed"`
	RunAsync       bool    `json:"run_async"`
}

// handleGenerate submits a job for the path's job type and returns the
// id. Image and audio consuming types require a multipart upload; the
// JSON-only types take a plain body.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	jobType := mux.Vars(r)["type"]
	if _, err := nodes.LookupByJobType(jobType); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	req, upload, err := s.decodeGenerate(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.submit(r.Context(), jobType, req, upload)
	if err != nil {
		if jobID != "" {
			// The record exists and is marked failed; surface both
			s.writeJSON(w, http.StatusBadGateway, map[string]string{"job_id": jobID, "error": err.Error()})
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// decodeGenerate reads either a JSON body or a multipart form with an
// optional image/audio file
func (s *Server) decodeGenerate(r *http.Request) (generateRequest, []byte, error) {
	var req generateRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return req, nil, err
		}
		req.Prompt = r.FormValue("prompt")
		req.NegativePrompt = r.FormValue("negative_prompt")
		req.ModelID = r.FormValue("model_id")
		req.Text = r.FormValue("text")
		req.Description = r.FormValue("description")
		req.RunAsync = r.FormValue("run_async") == "true"

		var upload []byte
		for _, field := range []string{"image", "audio"} {
			f, _, err := r.FormFile(field)
			if err != nil {
				continue
			}
			upload, err = io.ReadAll(f)
			f.Close()
			if err != nil {
				return req, nil, err
			}
			break
		}
		return req, upload, nil
	}

	if r.Body != nil {
		if err := decodeJSONBody(r, &req); err != nil {
			return req, nil, err
		}
	}
	return req, nil, nil
}

// submit maps the request onto the matching node and executes it
func (s *Server) submit(ctx context.Context, jobType string, req generateRequest, upload []byte) (string, error) {
	e := s.env

	decodeUpload := func() (media.ImageBatch, error) {
		return media.DecodeImage(upload)
	}

	switch jobType {
	case "t2i":
		n := nodes.NewTextToImageNode(e)
		n.Prompt = req.Prompt
		overrideModel(&n.ModelID, req.ModelID)
		n.NegativePrompt = req.NegativePrompt
		if req.Width > 0 {
			n.Width = req.Width
		}
		if req.Height > 0 {
			n.Height = req.Height
		}
		if req.GuidanceScale > 0 {
			n.GuidanceScale = req.GuidanceScale
		}
		n.Seed = req.Seed
		n.Params.RunAsync = req.RunAsync
		return n.Execute(ctx, e)

	case "i2i":
		img, err := decodeUpload()
		if err != nil {
			return "", err
		}
		n := nodes.NewImageToImageNode(e)
		n.Image = img
		n.Prompt = req.Prompt
		overrideModel(&n.ModelID, req.ModelID)
		if req.Strength > 0 {
			n.Strength = req.Strength
		}
		n.Seed = req.Seed
		n.Params.RunAsync = req.RunAsync
		return n.Execute(ctx, e)

	case "upscale":
		img, err := decodeUpload()
		if err != nil {
			return "", err
		}
		n := nodes.NewUpscaleNode(e)
		n.Image = img
		n.Prompt = req.Prompt
		overrideModel(&n.ModelID, req.ModelID)
		n.Params.RunAsync = req.RunAsync
		return n.Execute(ctx, e)

	case "segment":
		img, err := decodeUpload()
		if err != nil {
			return "", err
		}
		n := nodes.NewSegmentNode(e)
		n.Image = img
		overrideModel(&n.ModelID, req.ModelID)
		n.Params.RunAsync = req.RunAsync
		return n.Execute(ctx, e)

	case "i2v":
		img, err := decodeUpload()
		if err != nil {
			return "", err
		}
		n := nodes.NewImageToVideoNode(e)
		n.Image = img
		overrideModel(&n.ModelID, req.ModelID)
		if req.Width > 0 {
			n.Width = req.Width
		}
		if req.Height > 0 {
			n.Height = req.Height
		}
		n.Seed = req.Seed
		n.Params.RunAsync = req.RunAsync
		return n.Execute(ctx, e)

	case "i2t":
		img, err := decodeUpload()
		if err != nil {
			return "", err
		}
		n := nodes.NewImageToTextNode(e)
		n.Image = img
		n.Prompt = req.Prompt
		overrideModel(&n.ModelID, req.ModelID)
		n.Params.RunAsync = req.RunAsync
		return n.Execute(ctx, e)

	case "a2t":
		audio, err := decodeAudioUpload(ctx, upload)
		if err != nil {
			return "", err
		}
		n := nodes.NewAudioToTextNode(e)
		n.Audio = audio
		overrideModel(&n.ModelID, req.ModelID)
		n.Params.RunAsync = req.RunAsync
		return n.Execute(ctx, e)

	case "t2s":
		n := nodes.NewTextToSpeechNode(e)
		n.Text = req.Text
		if req.Description != "" {
			n.Description = req.Description
		}
		overrideModel(&n.ModelID, req.ModelID)
		n.Params.RunAsync = req.RunAsync
		return n.Execute(ctx, e)

	case "llm":
		n := nodes.NewLLMNode(e)
		n.Prompt = req.Prompt
		n.SystemPrompt = req.SystemPrompt
		overrideModel(&n.ModelID, req.ModelID)
		n.Params.RunAsync = req.RunAsync
		return n.Execute(ctx, e)

	case "live2v":
		n := nodes.NewLiveVideoToVideoNode(e)
		overrideModel(&n.ModelID, req.ModelID)
		n.Params.RunAsync = req.RunAsync
		return n.Execute(ctx, e)
	}

	// Unreachable: the type was validated against the registry
	return "", nil
}

func overrideModel(dst *string, override string) {
	if override != "" {
		*dst = override
	}
}

func decodeJSONBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// decodeAudioUpload round-trips the uploaded bytes through a temp file
// so ffmpeg can sniff the container format
func decodeAudioUpload(ctx context.Context, upload []byte) (media.Audio, error) {
	if len(upload) == 0 {
		return media.Audio{}, fmt.Errorf("no audio file provided")
	}
	f, err := os.CreateTemp("", "livegen-upload-*.audio")
	if err != nil {
		return media.Audio{}, err
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(upload); err != nil {
		f.Close()
		return media.Audio{}, err
	}
	if err := f.Close(); err != nil {
		return media.Audio{}, err
	}
	return media.LoadAudio(ctx, path)
}
