package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chronicle-server/internal/models"
)

// Action point cost bounds of the baseline ruleset.
const (
	MinActionCost = 1
	MaxActionCost = 3
)

// CostOracle is the slice of the oracle the assessor needs.
type CostOracle interface {
	AssessActionCost(ctx context.Context, action string) (int, error)
}

// CostAssessor maps free-text actions to action-point costs via the oracle.
// It fails open: any oracle failure yields the minimum cost so a transient
// outage never blocks play.
type CostAssessor struct {
	oracle CostOracle
	logger *zap.Logger
}

func NewCostAssessor(oracle CostOracle, logger *zap.Logger) *CostAssessor {
	return &CostAssessor{oracle: oracle, logger: logger.Named("cost_assessor")}
}

// Assess returns the action's cost clamped to [MinActionCost, MaxActionCost].
func (a *CostAssessor) Assess(ctx context.Context, action string) int {
	cost, err := a.oracle.AssessActionCost(ctx, action)
	if err != nil {
		a.logger.Warn("cost assessment failed, assuming minimum cost",
			zap.String("action", action), zap.Error(err))
		return MinActionCost
	}
	if cost < MinActionCost {
		return MinActionCost
	}
	if cost > MaxActionCost {
		return MaxActionCost
	}
	return cost
}

// ValidateBudget sums the assessed cost of each action and rejects the set
// when it exceeds the per-turn budget. It runs identically for player and
// opponent submissions, synthesized ones included.
func (a *CostAssessor) ValidateBudget(ctx context.Context, side string, actions []string, budget int) error {
	total := 0
	for _, action := range actions {
		total += a.Assess(ctx, action)
	}
	if total > budget {
		return fmt.Errorf("%w: %s actions %q cost %d of %d",
			models.ErrBudgetExceeded, side, strings.Join(actions, "; "), total, budget)
	}
	return nil
}
