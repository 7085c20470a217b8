package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind selects the output subdirectory and default extension for a
// downloaded artifact
type Kind string

const (
	KindImages Kind = "images"
	KindVideos Kind = "videos"
	KindAudio  Kind = "audio"
)

func (k Kind) defaultExt() string {
	switch k {
	case KindVideos:
		return "mp4"
	case KindImages:
		return "png"
	default:
		return "mp3"
	}
}

// singular drops the trailing "s" for the filename prefix, so videos
// become livepeer_video_<ts>.mp4
func (k Kind) singular() string {
	return strings.TrimSuffix(string(k), "s")
}

// Fetch downloads a URL into memory. Used for images, which are
// decoded straight into tensors without touching disk.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Download streams a URL into the output directory for its kind and
// returns the resulting file path. Filenames carry a unix timestamp so
// repeated runs never collide.
func Download(ctx context.Context, client *http.Client, url, outputDir string, kind Kind) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir %s: %w", outputDir, err)
	}

	filename := fmt.Sprintf("livepeer_%s_%d.%s", kind.singular(), time.Now().Unix(), kind.defaultExt())
	path := filepath.Join(outputDir, filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %s", url, resp.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

// FixExtension renames a downloaded audio file to match the format the
// gateway reported. Best-effort: on rename failure the original path
// is returned unchanged.
func FixExtension(path, format string) string {
	if format == "" {
		return path
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	fixed := base + "." + format
	if fixed == path {
		return path
	}
	if err := os.Rename(path, fixed); err != nil {
		return path
	}
	return fixed
}
