package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrImageGenerationFailed - the renderer backend rejected or failed the request.
var ErrImageGenerationFailed = errors.New("image generation failed")

// ImageRenderer turns a finished image prompt into raw image bytes.
type ImageRenderer interface {
	RenderImage(ctx context.Context, prompt string) ([]byte, error)
}

// RendererConfig holds the image renderer backend settings.
type RendererConfig struct {
	BaseURL string
	Ratio   string
	Timeout time.Duration
}

type httpRenderer struct {
	cfg    RendererConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPRenderer creates an ImageRenderer that POSTs prompts to a rendering
// server and reads the image bytes back. Returns nil when no base URL is
// configured; the pipeline treats a nil renderer as a disabled artifact.
func NewHTTPRenderer(cfg RendererConfig, logger *zap.Logger) ImageRenderer {
	if cfg.BaseURL == "" {
		return nil
	}
	if cfg.Ratio == "" {
		cfg.Ratio = "16:9"
	}
	return &httpRenderer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("image_renderer"),
	}
}

type renderRequest struct {
	Prompt string `json:"prompt"`
	Ratio  string `json:"ratio"`
}

func (r *httpRenderer) RenderImage(ctx context.Context, prompt string) ([]byte, error) {
	reqBody, err := json.Marshal(renderRequest{Prompt: prompt, Ratio: r.cfg.Ratio})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render request: %w", err)
	}

	endpointURL := r.cfg.BaseURL + "/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/*")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		r.logger.Error("renderer returned non-OK status",
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response_body", body))
		return nil, fmt.Errorf("%w: status %d", ErrImageGenerationFailed, resp.StatusCode)
	}
	if readErr != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrImageGenerationFailed, readErr)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ErrImageGenerationFailed)
	}
	return body, nil
}
