package media

import (
	"context"
	"encoding/base64"
	"sync"

	"go.uber.org/zap"

	"chronicle-server/internal/models"
)

// PromptConverter turns a narration beat into a visual scene description
// suitable for an image model.
type PromptConverter interface {
	BuildImagePrompt(ctx context.Context, narration string, style models.StyleContext) (string, error)
}

// Result carries the optional artifacts produced for a single turn. Missing
// artifacts are empty strings, never an error: media is best-effort and must
// not block narration delivery.
type Result struct {
	ImagePrompt string `json:"image_prompt,omitempty"`
	ImageB64    string `json:"image_base64,omitempty"`
	AudioB64    string `json:"audio_base64,omitempty"`
}

// Pipeline fans a narration beat out to image rendering and speech synthesis.
// Either backend may be nil, which disables that artifact.
type Pipeline struct {
	converter   PromptConverter
	renderer    ImageRenderer
	synthesizer SpeechSynthesizer
	logger      *zap.Logger
}

func NewPipeline(converter PromptConverter, renderer ImageRenderer, synthesizer SpeechSynthesizer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		converter:   converter,
		renderer:    renderer,
		synthesizer: synthesizer,
		logger:      logger.Named("media_pipeline"),
	}
}

// Render produces the turn's media artifacts concurrently. Any backend
// failure degrades to an absent artifact; Render itself never fails.
func (p *Pipeline) Render(ctx context.Context, narration string, style models.StyleContext) Result {
	var res Result
	if narration == "" {
		return res
	}

	var wg sync.WaitGroup

	if p.renderer != nil && p.converter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prompt, err := p.converter.BuildImagePrompt(ctx, narration, style)
			if err != nil {
				p.logger.Warn("image prompt conversion failed, skipping image", zap.Error(err))
				return
			}
			res.ImagePrompt = prompt
			img, err := p.renderer.RenderImage(ctx, prompt)
			if err != nil {
				p.logger.Warn("image rendering failed, continuing without image", zap.Error(err))
				return
			}
			res.ImageB64 = base64.StdEncoding.EncodeToString(img)
		}()
	}

	if p.synthesizer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audio, err := p.synthesizer.Synthesize(ctx, narration)
			if err != nil {
				p.logger.Warn("speech synthesis failed, continuing without audio", zap.Error(err))
				return
			}
			res.AudioB64 = base64.StdEncoding.EncodeToString(audio)
		}()
	}

	wg.Wait()
	return res
}
