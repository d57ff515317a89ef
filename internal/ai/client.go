package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"chronicle-server/internal/models"
)

// Client wraps the oracle API behind the typed calls the turn resolver needs.
type Client struct {
	client        *openai.Client
	model         string
	timeout       time.Duration
	maxRetries    int
	historyWindow int
	tokenBudget   int
	encoder       *tiktoken.Tiktoken
	logger        *zap.Logger
}

// Config holds the oracle client configuration.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	HistoryWindow int
	TokenBudget   int
}

// New creates an oracle client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("oracle API key is not configured")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 8
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	// The encoder is only used to account prompt sizes; if the model is
	// unknown to tiktoken we fall back to a rough estimate.
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using byte estimate", zap.Error(err))
		encoder = nil
	}

	return &Client{
		client:        openai.NewClientWithConfig(clientConfig),
		model:         cfg.Model,
		timeout:       cfg.Timeout,
		maxRetries:    cfg.MaxRetries,
		historyWindow: cfg.HistoryWindow,
		tokenBudget:   cfg.TokenBudget,
		encoder:       encoder,
		logger:        logger.Named("oracle"),
	}, nil
}

// ResolveInput carries everything the outcome-resolution call needs.
type ResolveInput struct {
	Scene           *models.Scene
	PlayerActions   []string
	OpponentActions []string
}

// OpeningInput carries the chronicle start briefs.
type OpeningInput struct {
	Scene         *models.Scene
	PlayerBrief   string
	OpponentBrief string
}

// AssessActionCost asks the oracle to rate one action's action-point cost.
// The caller is responsible for the fail-open fallback; this method reports
// failures honestly.
func (c *Client) AssessActionCost(ctx context.Context, action string) (int, error) {
	raw, err := c.chatJSON(ctx, "assess", assessSystemPrompt, nil,
		fmt.Sprintf("Action: %q", action))
	if err != nil {
		return 0, err
	}
	return decodeCost(raw)
}

// ResolveTurn performs the outcome-resolution call: a single-action narrative
// continuation in sandbox, a simultaneous dual-action adjudication in the
// combat modes.
func (c *Client) ResolveTurn(ctx context.Context, in ResolveInput) (*models.TurnOutcome, error) {
	scene := in.Scene
	var prompt string
	if scene.Mode.IsCombat() {
		prompt = buildDuelPrompt(scene, in.PlayerActions, in.OpponentActions)
	} else {
		prompt = buildSandboxPrompt(scene, in.PlayerActions[0], scene.DirectorMayInitiateCombat)
	}
	raw, err := c.chatJSON(ctx, "resolve", directorSystemPrompt, c.historyMessages(scene), prompt)
	if err != nil {
		return nil, err
	}
	return decodeOutcome(raw)
}

// OpeningBeat asks the oracle for the chronicle's introduction.
func (c *Client) OpeningBeat(ctx context.Context, in OpeningInput) (*models.TurnOutcome, error) {
	raw, err := c.chatJSON(ctx, "opening", directorSystemPrompt, nil,
		buildOpeningPrompt(in.Scene, in.PlayerBrief, in.OpponentBrief))
	if err != nil {
		return nil, err
	}
	return decodeOutcome(raw)
}

// ConcludingBeat asks for the closing narration of a finished encounter.
func (c *Client) ConcludingBeat(ctx context.Context, scene *models.Scene, playerDefeated bool) (string, error) {
	raw, err := c.chatJSON(ctx, "conclude", directorSystemPrompt, c.historyMessages(scene),
		buildConcludingPrompt(scene, playerDefeated))
	if err != nil {
		return "", err
	}
	return decodeNarration(raw)
}

// BuildImagePrompt converts narration into an image-generation prompt, baking
// in the scene's persistent visual anchors.
func (c *Client) BuildImagePrompt(ctx context.Context, narration string, style models.StyleContext) (string, error) {
	user := fmt.Sprintf("Art style: %q\nParticipant visuals: %q / %q\n\nNarration:\n%q",
		style.ArtStyle, style.PlayerVisuals, style.OpponentVisuals, narration)
	raw, err := c.chatJSON(ctx, "image_prompt", imagePromptSystemPrompt, nil, user)
	if err != nil {
		return "", err
	}
	return decodeImagePrompt(raw)
}

// historyMessages converts the scene's trailing history into oracle context,
// trimmed to the configured window and token budget.
func (c *Client) historyMessages(scene *models.Scene) []openai.ChatCompletionMessage {
	trailing := scene.TrailingHistory(c.historyWindow)
	msgs := make([]openai.ChatCompletionMessage, 0, len(trailing))
	for _, m := range trailing {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if c.tokenBudget <= 0 {
		return msgs
	}
	// Drop oldest entries while the combined context is over budget.
	for len(msgs) > 0 {
		total := 0
		for _, m := range msgs {
			total += c.countTokens(m.Content)
		}
		if total <= c.tokenBudget {
			break
		}
		msgs = msgs[1:]
	}
	return msgs
}

func (c *Client) countTokens(text string) int {
	if c.encoder == nil {
		return len(text) / 4
	}
	return len(c.encoder.Encode(text, nil, nil))
}

// chatJSON sends one JSON-mode chat completion with retries and returns the
// raw reply text. Failures after all retries surface as ErrOracleFailure.
func (c *Client) chatJSON(ctx context.Context, call, systemPrompt string, history []openai.ChatCompletionMessage, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	messages = append(messages, history...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	promptTokens := c.countTokens(systemPrompt) + c.countTokens(userPrompt)
	for _, m := range history {
		promptTokens += c.countTokens(m.Content)
	}
	oraclePromptTokens.WithLabelValues(call).Observe(float64(promptTokens))

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, req)
		oracleRequestDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
		if err != nil {
			lastErr = err
			oracleRequestsTotal.WithLabelValues(call, "error").Inc()
			c.logger.Warn("oracle request failed",
				zap.String("call", call), zap.Int("attempt", attempt), zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			lastErr = errors.New("empty completion")
			oracleRequestsTotal.WithLabelValues(call, "empty").Inc()
			c.logger.Warn("oracle returned empty completion",
				zap.String("call", call), zap.Int("attempt", attempt))
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}
		oracleRequestsTotal.WithLabelValues(call, "ok").Inc()
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("%w: %s after %d attempts: %v", models.ErrOracleFailure, call, c.maxRetries, lastErr)
}
