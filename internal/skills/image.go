package skills

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"jarvis/internal/intent"
)

const NameImage = "image"

// ImageGenerator is satisfied by *openai.Client.
type ImageGenerator interface {
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
}

type ImageOptions struct {
	Model   string
	Size    string
	Quality string
	Dir     string
}

type ImageSkill struct {
	gen    ImageGenerator
	opts   ImageOptions
	client *http.Client
	now    func() time.Time
}

func NewImageSkill(gen ImageGenerator, opts ImageOptions, client *http.Client) *ImageSkill {
	if client == nil {
		client = http.DefaultClient
	}
	return &ImageSkill{gen: gen, opts: opts, client: client, now: time.Now}
}

func (s *ImageSkill) Name() string     { return NameImage }
func (s *ImageSkill) Describe() string { return "Generates images using AI" }

func (s *ImageSkill) IsEligible(in intent.Result) bool { return in.Has(intent.Image) }

var (
	imageLeadIn = regexp.MustCompile(`(?i)^\s*(please\s+)?(generate|create|draw|show me|make)\s+((an?\s+)?(image|picture|photo|drawing)\s+)?(of\s+)?`)
	imageSaveRe = regexp.MustCompile(`(?i)\b(and\s+)?save\s+(it|the image)\b`)
)

func (s *ImageSkill) ParametersFrom(text string, _ intent.Result) Params {
	p := Params{}
	prompt := text
	if imageSaveRe.MatchString(prompt) {
		p["save"] = "true"
		prompt = imageSaveRe.ReplaceAllString(prompt, "")
	}
	prompt = strings.TrimRight(strings.TrimSpace(imageLeadIn.ReplaceAllString(prompt, "")), "?.!, ")
	if prompt == "" {
		prompt = strings.TrimSpace(text)
	}
	p["prompt"] = prompt
	return p
}

func (s *ImageSkill) Invoke(ctx context.Context, p Params) Result {
	prompt := strings.TrimSpace(p["prompt"])
	if prompt == "" {
		return fail(NameImage, "Image prompt is required")
	}
	if s.gen == nil {
		return fail(NameImage, "Image generation failed: no image backend configured")
	}

	resp, err := s.gen.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          s.opts.Model,
		Size:           p.Get("size", s.opts.Size),
		Quality:        p.Get("quality", s.opts.Quality),
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return fail(NameImage, fmt.Sprintf("Image generation failed: %v", err))
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return fail(NameImage, "Image generation failed: empty response")
	}
	imageURL := resp.Data[0].URL

	if p["save"] != "true" {
		return ok(NameImage, map[string]any{"url": imageURL, "prompt": prompt}, "Image generated successfully")
	}
	path, err := s.download(ctx, imageURL)
	if err != nil {
		return fail(NameImage, fmt.Sprintf("Image generation failed: %v", err))
	}
	return ok(NameImage, map[string]any{"url": imageURL, "filepath": path, "prompt": prompt}, "Image generated and saved")
}

func (s *ImageSkill) download(ctx context.Context, imageURL string) (string, error) {
	dir := filepath.Join(s.opts.Dir, "images")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create images dir: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	path := filepath.Join(dir, fmt.Sprintf("image_%s.png", s.now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}
	return path, nil
}
