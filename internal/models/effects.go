package models

// EffectTarget identifies which side of a scene an effect is attached to.
type EffectTarget string

const (
	TargetPlayer   EffectTarget = "player"
	TargetOpponent EffectTarget = "opponent"
)

// StatusEffect is a timed modifier attached to one side of a scene.
// Duration counts resolved turns remaining; it is strictly positive while
// the effect is present.
type StatusEffect struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
}

// NewEffect describes an effect freshly returned by the oracle, including
// which side it applies to.
type NewEffect struct {
	Target   EffectTarget `json:"target"`
	Name     string       `json:"name"`
	Duration int          `json:"duration"`
}

// ApplyEffects appends the given effects to the list, keeping insertion
// order. Duplicate names stack independently; entries with a non-positive
// duration are dropped.
func ApplyEffects(list []StatusEffect, add []StatusEffect) []StatusEffect {
	for _, e := range add {
		if e.Duration <= 0 {
			continue
		}
		list = append(list, e)
	}
	return list
}

// TickEffects decrements every effect's duration by one and removes those
// that reached zero. It must run exactly once per resolved turn, after the
// turn's new effects were applied, so an effect with duration d survives
// exactly d resolved turns.
func TickEffects(list []StatusEffect) []StatusEffect {
	out := list[:0]
	for _, e := range list {
		e.Duration--
		if e.Duration > 0 {
			out = append(out, e)
		}
	}
	return out
}
