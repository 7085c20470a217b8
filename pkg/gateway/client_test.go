package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTextToImage(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody TextToImageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(ImageResponse{Images: []MediaItem{
			{URL: "http://cdn/img1.png", Seed: 42},
			{URL: "http://cdn/img2.png", Seed: 43},
		}})
	}))
	defer srv.Close()

	c := NewClient("secret-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	resp, err := c.TextToImage(context.Background(), TextToImageRequest{
		Prompt:  "a raccoon in a steampunk outfit",
		ModelID: "ByteDance/SDXL-Lightning",
		Width:   1024,
		Height:  576,
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("missing bearer auth, got %q", gotAuth)
	}
	if gotPath != "/text-to-image" {
		t.Errorf("wrong path %q", gotPath)
	}
	if gotBody.Prompt != "a raccoon in a steampunk outfit" || gotBody.Width != 1024 {
		t.Errorf("request body mangled: %+v", gotBody)
	}
	if len(resp.Images) != 2 || resp.Images[0].URL != "http://cdn/img1.png" {
		t.Errorf("response mangled: %+v", resp)
	}
}

func TestImageToImageMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("not multipart: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if got := r.FormValue("prompt"); got != "make it night" {
			t.Errorf("prompt field = %q", got)
		}
		if got := r.FormValue("strength"); got != "0.75" {
			t.Errorf("strength field = %q", got)
		}
		// Unset optional fields must be absent, not empty
		if _, ok := r.MultipartForm.Value["negative_prompt"]; ok {
			t.Error("empty negative_prompt should be omitted")
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			t.Errorf("missing image part: %v", err)
		} else {
			f.Close()
			if hdr.Filename != "input_image.png" {
				t.Errorf("filename = %q", hdr.Filename)
			}
		}
		json.NewEncoder(w).Encode(ImageResponse{Images: []MediaItem{{URL: "http://cdn/out.png"}}})
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	resp, err := c.ImageToImage(context.Background(), ImageToImageRequest{
		Image:    []byte("png bytes"),
		Prompt:   "make it night",
		Strength: 0.75,
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if len(resp.Images) != 1 {
		t.Errorf("expected 1 image, got %d", len(resp.Images))
	}
}

func TestAPIErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": {"msg": "prompt is required"}}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := c.TextToImage(context.Background(), TextToImageRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != 422 || !strings.Contains(apiErr.Detail, "prompt is required") {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestAPIErrorPlainDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "Invalid bearer token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := c.LLM(context.Background(), LLMRequest{Messages: []LLMMessage{{Role: "user", Content: "hi"}}})
	if err == nil || !strings.Contains(err.Error(), "Invalid bearer token") {
		t.Errorf("expected auth detail in error, got %v", err)
	}
}

func TestLLMChatShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req LLMRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages mangled: %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(LLMResponse{Choices: []LLMChoice{
			{Index: 0, Message: LLMMessage{Role: "assistant", Content: "42"}, FinishReason: "stop"},
		}})
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	resp, err := c.LLM(context.Background(), LLMRequest{
		Messages: []LLMMessage{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "meaning of life?"},
		},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.Choices[0].Message.Content != "42" {
		t.Errorf("unexpected completion: %+v", resp)
	}
}

func TestContextCancellationAborts(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("k", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if _, err := c.TextToSpeech(ctx, TextToSpeechRequest{Text: "hello"}); err == nil {
		t.Fatal("expected cancellation error")
	}
}
