package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"chronicle-server/internal/models"
)

const (
	costToolName = "assess_action_cost"
	// maxToolRounds bounds the planning conversation so a looping model
	// cannot stall a turn indefinitely.
	maxToolRounds = 8
)

var costToolParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"action": {
			"type": "string",
			"description": "The free-text action to rate."
		}
	},
	"required": ["action"]
}`)

// CostTool rates a single action's action-point cost. The planner exposes it
// to the oracle during autonomous-opponent planning.
type CostTool func(ctx context.Context, action string) (int, error)

// PlanOpponentActions synthesizes an action list for the autonomous opponent.
// The oracle may invoke the cost tool any number of times before committing to
// its final list; each assessment is fed back before the next round. The
// returned actions are NOT trusted to respect the budget - the resolver
// validates them exactly like a human submission.
func (c *Client) PlanOpponentActions(ctx context.Context, scene *models.Scene, budget int, assess CostTool) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf(plannerSystemPrompt, budget),
		},
	}
	messages = append(messages, c.historyMessages(scene)...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: buildPlannerPrompt(scene, ""),
	})

	tools := []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        costToolName,
				Description: "Returns the action-point cost (1-3) of a single free-text action.",
				Parameters:  costToolParameters,
			},
		},
	}

	for round := 0; round < maxToolRounds; round++ {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Tools:       tools,
			Temperature: 0.7,
		})
		oracleRequestDuration.WithLabelValues("plan").Observe(time.Since(start).Seconds())
		if err != nil {
			oracleRequestsTotal.WithLabelValues("plan", "error").Inc()
			return nil, fmt.Errorf("%w: opponent planning: %v", models.ErrOracleFailure, err)
		}
		if len(resp.Choices) == 0 {
			oracleRequestsTotal.WithLabelValues("plan", "empty").Inc()
			return nil, fmt.Errorf("%w: opponent planning returned no choices", models.ErrOracleFailure)
		}
		msg := resp.Choices[0].Message

		if len(msg.ToolCalls) == 0 {
			oracleRequestsTotal.WithLabelValues("plan", "ok").Inc()
			return decodeActions(msg.Content)
		}

		// Answer every tool call before requesting the next round.
		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			messages = append(messages, c.answerCostCall(ctx, call, assess))
		}
	}

	return nil, fmt.Errorf("%w: opponent planning exceeded %d tool rounds", models.ErrOracleFailure, maxToolRounds)
}

func (c *Client) answerCostCall(ctx context.Context, call openai.ToolCall, assess CostTool) openai.ChatCompletionMessage {
	reply := func(content string) openai.ChatCompletionMessage {
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: call.ID,
			Name:       call.Function.Name,
			Content:    content,
		}
	}

	if call.Function.Name != costToolName {
		return reply(fmt.Sprintf(`{"error": "unknown tool %q"}`, call.Function.Name))
	}

	var args struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || args.Action == "" {
		return reply(`{"error": "invalid arguments, expected {\"action\": string}"}`)
	}

	cost, err := assess(ctx, args.Action)
	if err != nil {
		// The assessor is fail-open; reaching this means it chose to report.
		c.logger.Warn("cost tool call failed", zap.Error(err))
		return reply(`{"cost": 1}`)
	}
	return reply(fmt.Sprintf(`{"cost": %d}`, cost))
}
