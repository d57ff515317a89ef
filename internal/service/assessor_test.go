package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"chronicle-server/internal/models"
	"chronicle-server/internal/service"
	"chronicle-server/internal/service/mocks"
)

func TestCostAssessorAssess(t *testing.T) {
	ctx := context.Background()

	t.Run("passes through a valid cost", func(t *testing.T) {
		oracle := new(mocks.Oracle)
		oracle.On("AssessActionCost", ctx, "swing the blade").Return(2, nil).Once()

		a := service.NewCostAssessor(oracle, zap.NewNop())
		assert.Equal(t, 2, a.Assess(ctx, "swing the blade"))
		oracle.AssertExpectations(t)
	})

	t.Run("fails open to the minimum cost on oracle failure", func(t *testing.T) {
		oracle := new(mocks.Oracle)
		oracle.On("AssessActionCost", ctx, "anything").Return(0, models.ErrOracleFailure).Once()

		a := service.NewCostAssessor(oracle, zap.NewNop())
		assert.Equal(t, service.MinActionCost, a.Assess(ctx, "anything"))
	})

	t.Run("clamps out-of-range costs", func(t *testing.T) {
		oracle := new(mocks.Oracle)
		oracle.On("AssessActionCost", ctx, "summon a meteor").Return(11, nil).Once()
		oracle.On("AssessActionCost", ctx, "blink").Return(0, nil).Once()

		a := service.NewCostAssessor(oracle, zap.NewNop())
		assert.Equal(t, service.MaxActionCost, a.Assess(ctx, "summon a meteor"))
		assert.Equal(t, service.MinActionCost, a.Assess(ctx, "blink"))
	})
}

func TestCostAssessorValidateBudget(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects a set whose summed cost exceeds the budget", func(t *testing.T) {
		oracle := new(mocks.Oracle)
		oracle.On("AssessActionCost", ctx, "charge").Return(2, nil).Once()
		oracle.On("AssessActionCost", ctx, "grand finisher").Return(3, nil).Once()

		a := service.NewCostAssessor(oracle, zap.NewNop())
		err := a.ValidateBudget(ctx, "Kael", []string{"charge", "grand finisher"}, 3)
		assert.True(t, errors.Is(err, models.ErrBudgetExceeded))
	})

	t.Run("accepts a set within budget", func(t *testing.T) {
		oracle := new(mocks.Oracle)
		oracle.On("AssessActionCost", ctx, "feint").Return(1, nil).Once()
		oracle.On("AssessActionCost", ctx, "strike").Return(2, nil).Once()

		a := service.NewCostAssessor(oracle, zap.NewNop())
		assert.NoError(t, a.ValidateBudget(ctx, "Kael", []string{"feint", "strike"}, 3))
	})
}
