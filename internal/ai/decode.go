package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"chronicle-server/internal/models"
)

// stripFences removes markdown code fences some models wrap around JSON
// replies despite the JSON response format.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// outcomePayload mirrors TurnOutcome with pointer fields for the required
// parts, so a missing field is distinguishable from a zero value.
type outcomePayload struct {
	Narration       *string            `json:"narration"`
	TurnSummary     string             `json:"turn_summary"`
	PlayerHPDelta   *int               `json:"player_hp_delta"`
	OpponentHPDelta *int               `json:"opponent_hp_delta"`
	NewEffects      []newEffectPayload `json:"new_effects"`
	GameOver        bool               `json:"game_over"`
	InitiateCombat  bool               `json:"initiate_combat"`
	OpponentName    string             `json:"opponent_name"`
	OpponentHP      int                `json:"opponent_hp"`
	ImagePrompt     string             `json:"image_prompt"`
}

type newEffectPayload struct {
	Target   string `json:"target"`
	Name     string `json:"name"`
	Duration int    `json:"duration"`
}

// decodeOutcome validates and converts a raw oracle reply into a TurnOutcome.
// Missing or mistyped required fields yield ErrOracleMalformed; the outcome is
// never guessed, so a bad reply cannot corrupt HP accounting.
func decodeOutcome(raw string) (*models.TurnOutcome, error) {
	var p outcomePayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrOracleMalformed, err)
	}
	if p.Narration == nil || strings.TrimSpace(*p.Narration) == "" {
		return nil, fmt.Errorf("%w: missing narration", models.ErrOracleMalformed)
	}

	out := &models.TurnOutcome{
		Narration:      strings.TrimSpace(*p.Narration),
		TurnSummary:    strings.TrimSpace(p.TurnSummary),
		GameOver:       p.GameOver,
		InitiateCombat: p.InitiateCombat,
		OpponentName:   strings.TrimSpace(p.OpponentName),
		OpponentHP:     p.OpponentHP,
		ImagePrompt:    strings.TrimSpace(p.ImagePrompt),
	}
	// Deltas are damage by convention; a missing field means no damage and a
	// positive value is floored to zero rather than treated as healing.
	if p.PlayerHPDelta != nil {
		out.PlayerHPDelta = min(*p.PlayerHPDelta, 0)
	}
	if p.OpponentHPDelta != nil {
		out.OpponentHPDelta = min(*p.OpponentHPDelta, 0)
	}

	for _, e := range p.NewEffects {
		target := models.EffectTarget(strings.ToLower(strings.TrimSpace(e.Target)))
		if target != models.TargetPlayer && target != models.TargetOpponent {
			return nil, fmt.Errorf("%w: invalid effect target %q", models.ErrOracleMalformed, e.Target)
		}
		if strings.TrimSpace(e.Name) == "" || e.Duration <= 0 {
			return nil, fmt.Errorf("%w: invalid effect %q (duration %d)", models.ErrOracleMalformed, e.Name, e.Duration)
		}
		out.NewEffects = append(out.NewEffects, models.NewEffect{
			Target:   target,
			Name:     strings.TrimSpace(e.Name),
			Duration: e.Duration,
		})
	}
	return out, nil
}

// decodeCost extracts the single integer field of a cost-assessment reply.
func decodeCost(raw string) (int, error) {
	var p struct {
		Cost *int `json:"cost"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &p); err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrOracleMalformed, err)
	}
	if p.Cost == nil {
		return 0, fmt.Errorf("%w: missing cost field", models.ErrOracleMalformed)
	}
	return *p.Cost, nil
}

// decodeActions extracts the action list of a planner reply.
func decodeActions(raw string) ([]string, error) {
	var p struct {
		Actions []string `json:"actions"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrOracleMalformed, err)
	}
	actions := make([]string, 0, len(p.Actions))
	for _, a := range p.Actions {
		if s := strings.TrimSpace(a); s != "" {
			actions = append(actions, s)
		}
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: planner returned no actions", models.ErrOracleMalformed)
	}
	return actions, nil
}

// decodeNarration extracts the bare narration of a concluding beat.
func decodeNarration(raw string) (string, error) {
	var p struct {
		Narration *string `json:"narration"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &p); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrOracleMalformed, err)
	}
	if p.Narration == nil || strings.TrimSpace(*p.Narration) == "" {
		return "", fmt.Errorf("%w: missing narration", models.ErrOracleMalformed)
	}
	return strings.TrimSpace(*p.Narration), nil
}

// decodeImagePrompt extracts the converted image prompt.
func decodeImagePrompt(raw string) (string, error) {
	var p struct {
		Prompt *string `json:"prompt"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &p); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrOracleMalformed, err)
	}
	if p.Prompt == nil || strings.TrimSpace(*p.Prompt) == "" {
		return "", fmt.Errorf("%w: missing prompt field", models.ErrOracleMalformed)
	}
	return strings.TrimSpace(*p.Prompt), nil
}
