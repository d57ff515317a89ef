package models

// TurnOutcome is the oracle's structured verdict for one resolved turn.
// It is ephemeral: the resolver folds it into the scene and history, it is
// never persisted on its own.
type TurnOutcome struct {
	Narration   string `json:"narration"`
	TurnSummary string `json:"turn_summary,omitempty"`

	// HP deltas are non-positive by convention: the baseline ruleset deals
	// damage, it does not heal.
	PlayerHPDelta   int `json:"player_hp_delta"`
	OpponentHPDelta int `json:"opponent_hp_delta"`

	NewEffects []NewEffect `json:"new_effects,omitempty"`

	GameOver bool `json:"game_over,omitempty"`

	// Sandbox escalation: when the oracle opens a confrontation it names the
	// opponent and supplies its starting HP.
	InitiateCombat bool   `json:"initiate_combat,omitempty"`
	OpponentName   string `json:"opponent_name,omitempty"`
	OpponentHP     int    `json:"opponent_hp,omitempty"`

	// Optional hint for the image-prompt conversion step.
	ImagePrompt string `json:"image_prompt,omitempty"`
}
