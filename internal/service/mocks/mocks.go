// Package mocks provides testify mocks for the chronicle service
// collaborators.
package mocks

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"chronicle-server/internal/ai"
	"chronicle-server/internal/media"
	"chronicle-server/internal/models"
)

// Oracle is a mock type for the service.Oracle interface.
type Oracle struct {
	mock.Mock
}

func (_m *Oracle) AssessActionCost(ctx context.Context, action string) (int, error) {
	ret := _m.Called(ctx, action)
	return ret.Int(0), ret.Error(1)
}

func (_m *Oracle) ResolveTurn(ctx context.Context, in ai.ResolveInput) (*models.TurnOutcome, error) {
	ret := _m.Called(ctx, in)
	var r0 *models.TurnOutcome
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.TurnOutcome)
	}
	return r0, ret.Error(1)
}

func (_m *Oracle) OpeningBeat(ctx context.Context, in ai.OpeningInput) (*models.TurnOutcome, error) {
	ret := _m.Called(ctx, in)
	var r0 *models.TurnOutcome
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.TurnOutcome)
	}
	return r0, ret.Error(1)
}

func (_m *Oracle) ConcludingBeat(ctx context.Context, scene *models.Scene, playerDefeated bool) (string, error) {
	ret := _m.Called(ctx, scene, playerDefeated)
	return ret.String(0), ret.Error(1)
}

func (_m *Oracle) PlanOpponentActions(ctx context.Context, scene *models.Scene, budget int, assess ai.CostTool) ([]string, error) {
	ret := _m.Called(ctx, scene, budget, assess)
	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}

// SceneStore is a mock type for the service.SceneStore interface.
type SceneStore struct {
	mock.Mock
}

func (_m *SceneStore) Create(ctx context.Context, scene *models.Scene) error {
	return _m.Called(ctx, scene).Error(0)
}

func (_m *SceneStore) Update(ctx context.Context, scene *models.Scene) error {
	return _m.Called(ctx, scene).Error(0)
}

func (_m *SceneStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	ret := _m.Called(ctx, id)
	var r0 *models.Scene
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Scene)
	}
	return r0, ret.Error(1)
}

func (_m *SceneStore) List(ctx context.Context) ([]models.SceneSummary, error) {
	ret := _m.Called(ctx)
	var r0 []models.SceneSummary
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.SceneSummary)
	}
	return r0, ret.Error(1)
}

// MediaPipeline is a mock type for the service.MediaPipeline interface.
type MediaPipeline struct {
	mock.Mock
}

func (_m *MediaPipeline) Render(ctx context.Context, narration string, style models.StyleContext) media.Result {
	ret := _m.Called(ctx, narration, style)
	if ret.Get(0) != nil {
		return ret.Get(0).(media.Result)
	}
	return media.Result{}
}

// Transcriber is a mock type for the media.Transcriber interface.
type Transcriber struct {
	mock.Mock
}

func (_m *Transcriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	ret := _m.Called(ctx, audio, filename)
	return ret.String(0), ret.Error(1)
}
