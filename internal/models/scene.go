package models

import (
	"time"

	"github.com/google/uuid"
)

// Mode describes which ruleset currently governs a scene.
type Mode string

const (
	// ModeSandbox - free narrative play, no HP tracking.
	ModeSandbox Mode = "sandbox"
	// ModeCompetitive - two sides, simultaneous actions, terminal defeat.
	ModeCompetitive Mode = "competitive"
	// ModeSandboxCombat - transient confrontation inside a sandbox chronicle;
	// resolution returns the scene to sandbox.
	ModeSandboxCombat Mode = "sandbox_combat"
)

// IsCombat reports whether HP and rounds are tracked in this mode.
func (m Mode) IsCombat() bool {
	return m == ModeCompetitive || m == ModeSandboxCombat
}

// MaxHP is the full-health value for a combat participant.
const MaxHP = 100

// Chat roles used in scene history (mirrors the oracle's message roles).
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry of the scene's role-tagged history log.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StyleContext carries the per-scene visual anchors handed to the media
// pipeline. The core never interprets these strings.
type StyleContext struct {
	ArtStyle        string `json:"art_style"`
	PlayerVisuals   string `json:"player_visuals"`
	OpponentVisuals string `json:"opponent_visuals"`
}

// Scene is one persistent chronicle: its participants, mode, history and
// rolling memory. A scene is mutated only by the turn resolver under a
// single-writer-per-scene discipline.
type Scene struct {
	ID   uuid.UUID `json:"id"`
	Mode Mode      `json:"mode"`

	Setting      string `json:"setting"`
	PlayerName   string `json:"player_name"`
	OpponentName string `json:"opponent_name"`

	PlayerHP   int `json:"player_hp"`
	OpponentHP int `json:"opponent_hp"`

	PlayerEffects   []StatusEffect `json:"player_effects"`
	OpponentEffects []StatusEffect `json:"opponent_effects"`

	History []ChatMessage `json:"history"`
	Memory  MemoryWindow  `json:"memory"`

	Style StyleContext `json:"style"`

	// Round counts resolved combat turns; it never advances in sandbox.
	Round int `json:"round"`

	// DirectorMayInitiateCombat allows the oracle to escalate a sandbox
	// chronicle into sandbox_combat. When false the resolver ignores the
	// escalation flag even if the oracle sets it.
	DirectorMayInitiateCombat bool `json:"director_may_initiate_combat"`

	// GameOver is terminal and only ever set in competitive mode.
	GameOver bool `json:"game_over"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SceneSummary is the listing projection of a scene.
type SceneSummary struct {
	ID           uuid.UUID `json:"id"`
	Mode         Mode      `json:"mode"`
	PlayerName   string    `json:"player_name"`
	OpponentName string    `json:"opponent_name"`
	GameOver     bool      `json:"game_over"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ClampHP folds an oracle-reported delta into an HP value, flooring at zero
// and capping at MaxHP.
func ClampHP(hp, delta int) int {
	hp += delta
	if hp < 0 {
		return 0
	}
	if hp > MaxHP {
		return MaxHP
	}
	return hp
}

// TrailingHistory returns at most n of the most recent history entries.
func (s *Scene) TrailingHistory(n int) []ChatMessage {
	if n <= 0 || len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// EffectsFor returns the active effects of the given side.
func (s *Scene) EffectsFor(target EffectTarget) []StatusEffect {
	if target == TargetOpponent {
		return s.OpponentEffects
	}
	return s.PlayerEffects
}
