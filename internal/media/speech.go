package media

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"chronicle-server/internal/models"
)

// SpeechSynthesizer turns narration text into audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber turns recorded player speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// SpeechConfig holds the speech backend settings.
type SpeechConfig struct {
	Voice   string
	Timeout time.Duration
}

type OpenAISpeech struct {
	client *openai.Client
	cfg    SpeechConfig
	logger *zap.Logger
}

// NewOpenAISpeech creates a synthesizer/transcriber pair backed by the OpenAI
// audio endpoints. Returns nil when disabled.
func NewOpenAISpeech(client *openai.Client, cfg SpeechConfig, enabled bool, logger *zap.Logger) *OpenAISpeech {
	if !enabled || client == nil {
		return nil
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceOnyx)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAISpeech{client: client, cfg: cfg, logger: logger.Named("speech")}
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// Synthesize produces narrated audio for the given text. Markup is stripped
// before synthesis so tags are not read aloud.
func (s *OpenAISpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cleanText := htmlTagRe.ReplaceAllString(text, "")
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1HD,
		Voice: openai.SpeechVoice(s.cfg.Voice),
		Input: cleanText,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	return audio, nil
}

// Transcribe converts uploaded player speech into its text form.
func (s *OpenAISpeech) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   audio,
		FilePath: filename,
	})
	if err != nil {
		return "", fmt.Errorf("%w: transcription: %v", models.ErrOracleFailure, err)
	}
	if resp.Text == "" {
		return "", fmt.Errorf("%w: transcription returned empty text", models.ErrOracleMalformed)
	}
	return resp.Text, nil
}
