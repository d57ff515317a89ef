package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chronicle-server/internal/lock"
	"chronicle-server/internal/media"
	"chronicle-server/internal/models"
	"chronicle-server/internal/service"
	"chronicle-server/internal/service/mocks"
)

type fixture struct {
	oracle *mocks.Oracle
	store  *mocks.SceneStore
	media  *mocks.MediaPipeline
	svc    service.ChronicleService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		oracle: new(mocks.Oracle),
		store:  new(mocks.SceneStore),
		media:  new(mocks.MediaPipeline),
	}
	assessor := service.NewCostAssessor(f.oracle, zap.NewNop())
	f.svc = service.NewChronicleService(
		f.oracle, assessor, f.media, f.store, lock.NewMemoryLocker(), nil,
		service.Config{ActionPointsPerTurn: 3, MemoryLimit: 5},
		zap.NewNop(),
	)
	return f
}

func sandboxScene() *models.Scene {
	return &models.Scene{
		ID:         uuid.New(),
		Mode:       models.ModeSandbox,
		Setting:    "a rain-soaked frontier town",
		PlayerName: "Kael",
		Memory:     models.NewMemoryWindow(5),
	}
}

func competitiveScene() *models.Scene {
	return &models.Scene{
		ID:           uuid.New(),
		Mode:         models.ModeCompetitive,
		Setting:      "the grand arena",
		PlayerName:   "Kael",
		OpponentName: "Vex",
		PlayerHP:     models.MaxHP,
		OpponentHP:   models.MaxHP,
		Memory:       models.NewMemoryWindow(5),
	}
}

func outcome(narration string) *models.TurnOutcome {
	return &models.TurnOutcome{Narration: narration, TurnSummary: "summary of " + narration}
}

func TestSubmitTurnSandbox(t *testing.T) {
	ctx := context.Background()

	t.Run("plain sandbox turn leaves mode and round untouched", func(t *testing.T) {
		f := newFixture(t)
		scene := sandboxScene()

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, "explore the saloon").Return(2, nil).Once()
		f.oracle.On("ResolveTurn", mock.Anything, mock.Anything).Return(outcome("You push through the doors."), nil).Once()
		f.media.On("Render", mock.Anything, "You push through the doors.", scene.Style).Return(media.Result{}).Once()
		f.store.On("Update", mock.Anything, scene).Return(nil).Once()

		result, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"explore the saloon"}, nil)
		require.NoError(t, err)

		assert.Equal(t, models.ModeSandbox, result.Scene.Mode)
		assert.Equal(t, 0, result.Scene.Round)
		assert.False(t, result.Scene.GameOver)
		assert.Len(t, result.Scene.Memory.Entries, 1)
		assert.Len(t, result.Scene.History, 2)
		f.store.AssertExpectations(t)
	})

	t.Run("multiple actions are rejected in sandbox", func(t *testing.T) {
		f := newFixture(t)
		scene := sandboxScene()

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, mock.Anything).Return(1, nil)

		_, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"run", "hide"}, nil)
		assert.True(t, errors.Is(err, models.ErrInvalidInput))
		f.store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("escalation honored when policy allows", func(t *testing.T) {
		f := newFixture(t)
		scene := sandboxScene()
		scene.DirectorMayInitiateCombat = true

		esc := outcome("A stranger draws a knife.")
		esc.InitiateCombat = true
		esc.OpponentName = "The Stranger"
		esc.OpponentHP = 60

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, mock.Anything).Return(1, nil)
		f.oracle.On("ResolveTurn", mock.Anything, mock.Anything).Return(esc, nil).Once()
		f.media.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(media.Result{}).Once()
		f.store.On("Update", mock.Anything, scene).Return(nil).Once()

		result, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"insult the stranger"}, nil)
		require.NoError(t, err)

		assert.Equal(t, models.ModeSandboxCombat, result.Scene.Mode)
		assert.Equal(t, "The Stranger", result.Scene.OpponentName)
		assert.Equal(t, 60, result.Scene.OpponentHP)
		assert.Equal(t, models.MaxHP, result.Scene.PlayerHP)
	})

	t.Run("escalation ignored when policy forbids it", func(t *testing.T) {
		f := newFixture(t)
		scene := sandboxScene()

		esc := outcome("A stranger draws a knife.")
		esc.InitiateCombat = true
		esc.OpponentName = "The Stranger"
		esc.OpponentHP = 60

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, mock.Anything).Return(1, nil)
		f.oracle.On("ResolveTurn", mock.Anything, mock.Anything).Return(esc, nil).Once()
		f.media.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(media.Result{}).Once()
		f.store.On("Update", mock.Anything, scene).Return(nil).Once()

		result, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"insult the stranger"}, nil)
		require.NoError(t, err)

		assert.Equal(t, models.ModeSandbox, result.Scene.Mode)
		assert.Empty(t, result.Scene.OpponentName)
	})
}

func TestSubmitTurnBudget(t *testing.T) {
	ctx := context.Background()

	t.Run("player actions over budget are rejected with no mutation", func(t *testing.T) {
		f := newFixture(t)
		scene := competitiveScene()

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, "charge").Return(2, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, "grand finisher").Return(3, nil).Once()

		_, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"charge", "grand finisher"}, []string{"wait"})
		assert.True(t, errors.Is(err, models.ErrBudgetExceeded))
		f.store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		f.oracle.AssertNotCalled(t, "ResolveTurn", mock.Anything, mock.Anything)
	})

	t.Run("synthesized opponent actions get the same budget check", func(t *testing.T) {
		f := newFixture(t)
		scene := competitiveScene()

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, "jab").Return(1, nil).Once()
		f.oracle.On("PlanOpponentActions", mock.Anything, scene, 3, mock.Anything).
			Return([]string{"overwhelming barrage", "followup"}, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, "overwhelming barrage").Return(3, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, "followup").Return(2, nil).Once()

		_, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"jab"}, nil)
		assert.True(t, errors.Is(err, models.ErrBudgetExceeded))
		f.oracle.AssertNotCalled(t, "ResolveTurn", mock.Anything, mock.Anything)
		f.store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestSubmitTurnCompetitive(t *testing.T) {
	ctx := context.Background()

	t.Run("defeat sets terminal game over, mode unchanged", func(t *testing.T) {
		f := newFixture(t)
		scene := competitiveScene()
		scene.PlayerHP = 10
		scene.OpponentHP = 10

		out := outcome("A decisive blow lands.")
		out.PlayerHPDelta = 0
		out.OpponentHPDelta = -10

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, mock.Anything).Return(1, nil)
		f.oracle.On("ResolveTurn", mock.Anything, mock.Anything).Return(out, nil).Once()
		f.oracle.On("ConcludingBeat", mock.Anything, scene, false).Return("Vex falls.", nil).Once()
		f.media.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(media.Result{}).Once()
		f.store.On("Update", mock.Anything, scene).Return(nil).Once()

		result, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"strike"}, []string{"block"})
		require.NoError(t, err)

		assert.Equal(t, models.ModeCompetitive, result.Scene.Mode)
		assert.True(t, result.Scene.GameOver)
		assert.Equal(t, 0, result.Scene.OpponentHP)
		assert.Equal(t, 10, result.Scene.PlayerHP)
		assert.True(t, strings.Contains(result.Narration, "Vex falls."))
	})

	t.Run("mutual defeat is a terminal draw", func(t *testing.T) {
		f := newFixture(t)
		scene := competitiveScene()
		scene.PlayerHP = 5
		scene.OpponentHP = 5

		out := outcome("Both combatants collapse.")
		out.PlayerHPDelta = -20
		out.OpponentHPDelta = -20

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, mock.Anything).Return(1, nil)
		f.oracle.On("ResolveTurn", mock.Anything, mock.Anything).Return(out, nil).Once()
		f.oracle.On("ConcludingBeat", mock.Anything, scene, true).Return("Neither rises.", nil).Once()
		f.media.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(media.Result{}).Once()
		f.store.On("Update", mock.Anything, scene).Return(nil).Once()

		result, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"all-in"}, []string{"all-in"})
		require.NoError(t, err)

		assert.True(t, result.Scene.GameOver)
		assert.Equal(t, 0, result.Scene.PlayerHP)
		assert.Equal(t, 0, result.Scene.OpponentHP)
	})

	t.Run("round increments only in combat", func(t *testing.T) {
		f := newFixture(t)
		scene := competitiveScene()
		scene.Round = 4

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, mock.Anything).Return(1, nil)
		f.oracle.On("ResolveTurn", mock.Anything, mock.Anything).Return(outcome("Blades clash."), nil).Once()
		f.media.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(media.Result{}).Once()
		f.store.On("Update", mock.Anything, scene).Return(nil).Once()

		result, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"press forward"}, []string{"hold ground"})
		require.NoError(t, err)
		assert.Equal(t, 5, result.Scene.Round)
	})

	t.Run("concluded chronicle rejects further turns", func(t *testing.T) {
		f := newFixture(t)
		scene := competitiveScene()
		scene.GameOver = true

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()

		_, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"strike"}, nil)
		assert.True(t, errors.Is(err, models.ErrChronicleConcluded))
	})
}

func TestSubmitTurnSandboxCombatUnwind(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	scene := sandboxScene()
	scene.Mode = models.ModeSandboxCombat
	scene.OpponentName = "The Stranger"
	scene.PlayerHP = 40
	scene.OpponentHP = 8
	scene.Round = 3
	scene.OpponentEffects = []models.StatusEffect{{Name: "Bleeding", Duration: 2}}

	out := outcome("The stranger staggers back.")
	out.OpponentHPDelta = -15

	f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
	f.oracle.On("AssessActionCost", mock.Anything, mock.Anything).Return(1, nil)
	f.oracle.On("PlanOpponentActions", mock.Anything, scene, 3, mock.Anything).Return([]string{"desperate swing"}, nil).Once()
	f.oracle.On("ResolveTurn", mock.Anything, mock.Anything).Return(out, nil).Once()
	f.oracle.On("ConcludingBeat", mock.Anything, scene, false).Return("The fight is over.", nil).Once()
	f.media.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(media.Result{}).Once()
	f.store.On("Update", mock.Anything, scene).Return(nil).Once()

	result, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"finish it"}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ModeSandbox, result.Scene.Mode)
	assert.False(t, result.Scene.GameOver, "sandbox combat defeat must not be terminal")
	assert.Equal(t, 0, result.Scene.PlayerHP)
	assert.Equal(t, 0, result.Scene.OpponentHP)
	assert.Empty(t, result.Scene.OpponentName)
	assert.Empty(t, result.Scene.OpponentEffects)
	assert.Equal(t, 0, result.Scene.Round)
	assert.True(t, strings.Contains(result.Narration, "The fight is over."))
}

func TestSubmitTurnFailureSemantics(t *testing.T) {
	ctx := context.Background()

	t.Run("oracle failure aborts with no mutation", func(t *testing.T) {
		f := newFixture(t)
		scene := sandboxScene()

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, mock.Anything).Return(1, nil)
		f.oracle.On("ResolveTurn", mock.Anything, mock.Anything).Return(nil, models.ErrOracleFailure).Once()

		_, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"look around"}, nil)
		assert.True(t, errors.Is(err, models.ErrOracleFailure))
		f.store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		f.media.AssertNotCalled(t, "Render", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("persistence failure surfaces to the caller", func(t *testing.T) {
		f := newFixture(t)
		scene := sandboxScene()

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, mock.Anything).Return(1, nil)
		f.oracle.On("ResolveTurn", mock.Anything, mock.Anything).Return(outcome("Anything happens."), nil).Once()
		f.media.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(media.Result{}).Once()
		f.store.On("Update", mock.Anything, scene).Return(models.ErrPersistenceFailure).Once()

		_, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"look around"}, nil)
		assert.True(t, errors.Is(err, models.ErrPersistenceFailure))
	})

	t.Run("missing scene", func(t *testing.T) {
		f := newFixture(t)
		id := uuid.New()
		f.store.On("GetByID", mock.Anything, id).Return(nil, models.ErrSceneNotFound).Once()

		_, err := f.svc.SubmitTurn(ctx, id, []string{"look"}, nil)
		assert.True(t, errors.Is(err, models.ErrSceneNotFound))
	})

	t.Run("empty action list", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.SubmitTurn(ctx, uuid.New(), []string{"  "}, nil)
		assert.True(t, errors.Is(err, models.ErrInvalidInput))
	})

	t.Run("failed concluding beat degrades instead of failing the turn", func(t *testing.T) {
		f := newFixture(t)
		scene := competitiveScene()
		scene.OpponentHP = 5

		out := outcome("The last strike lands.")
		out.OpponentHPDelta = -10

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, mock.Anything).Return(1, nil)
		f.oracle.On("ResolveTurn", mock.Anything, mock.Anything).Return(out, nil).Once()
		f.oracle.On("ConcludingBeat", mock.Anything, scene, false).Return("", models.ErrOracleFailure).Once()
		f.media.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(media.Result{}).Once()
		f.store.On("Update", mock.Anything, scene).Return(nil).Once()

		result, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"strike"}, []string{"brace"})
		require.NoError(t, err)
		assert.True(t, result.Scene.GameOver)
		assert.Equal(t, "The last strike lands.", result.Narration)
	})
}

func TestSubmitTurnMedia(t *testing.T) {
	ctx := context.Background()

	t.Run("partial media success is still a successful turn", func(t *testing.T) {
		f := newFixture(t)
		scene := sandboxScene()

		f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
		f.oracle.On("AssessActionCost", mock.Anything, mock.Anything).Return(1, nil)
		f.oracle.On("ResolveTurn", mock.Anything, mock.Anything).Return(outcome("Thunder rolls."), nil).Once()
		f.media.On("Render", mock.Anything, "Thunder rolls.", scene.Style).
			Return(media.Result{AudioB64: "YXVkaW8="}).Once()
		f.store.On("Update", mock.Anything, scene).Return(nil).Once()

		result, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"wait out the storm"}, nil)
		require.NoError(t, err)
		assert.Empty(t, result.Media.ImageB64)
		assert.Equal(t, "YXVkaW8=", result.Media.AudioB64)
		assert.Equal(t, "Thunder rolls.", result.Narration)
	})
}

func TestStatusEffectFlow(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	scene := competitiveScene()
	scene.PlayerEffects = []models.StatusEffect{{Name: "Guarded", Duration: 1}}

	out := outcome("Flames catch on Vex's cloak.")
	out.NewEffects = []models.NewEffect{
		{Target: models.TargetOpponent, Name: "Burning", Duration: 2},
	}

	f.store.On("GetByID", mock.Anything, scene.ID).Return(scene, nil).Once()
	f.oracle.On("AssessActionCost", mock.Anything, mock.Anything).Return(1, nil)
	f.oracle.On("ResolveTurn", mock.Anything, mock.Anything).Return(out, nil).Once()
	f.media.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(media.Result{}).Once()
	f.store.On("Update", mock.Anything, scene).Return(nil).Once()

	result, err := f.svc.SubmitTurn(ctx, scene.ID, []string{"hurl the torch"}, []string{"advance"})
	require.NoError(t, err)

	// Guarded (1) expired on this turn's tick; Burning (2) was applied then
	// ticked once, leaving 1.
	assert.Empty(t, result.Scene.PlayerEffects)
	require.Len(t, result.Scene.OpponentEffects, 1)
	assert.Equal(t, models.StatusEffect{Name: "Burning", Duration: 1}, result.Scene.OpponentEffects[0])
}

func TestStartChronicle(t *testing.T) {
	ctx := context.Background()

	t.Run("competitive start persists a full-health scene", func(t *testing.T) {
		f := newFixture(t)
		opening := outcome("The arena roars.")

		f.oracle.On("OpeningBeat", mock.Anything, mock.Anything).Return(opening, nil).Once()
		f.media.On("Render", mock.Anything, "The arena roars.", mock.Anything).Return(media.Result{}).Once()
		f.store.On("Create", mock.Anything, mock.MatchedBy(func(s *models.Scene) bool {
			return s.Mode == models.ModeCompetitive &&
				s.PlayerHP == models.MaxHP && s.OpponentHP == models.MaxHP
		})).Return(nil).Once()

		result, err := f.svc.StartChronicle(ctx, service.StartChronicleRequest{
			Mode:         models.ModeCompetitive,
			Setting:      "the grand arena",
			PlayerName:   "Kael",
			OpponentName: "Vex",
		})
		require.NoError(t, err)
		assert.Equal(t, "The arena roars.", result.Narration)
		assert.Len(t, result.Scene.History, 1)
		f.store.AssertExpectations(t)
	})

	t.Run("opening beat failure creates nothing", func(t *testing.T) {
		f := newFixture(t)
		f.oracle.On("OpeningBeat", mock.Anything, mock.Anything).Return(nil, models.ErrOracleFailure).Once()

		_, err := f.svc.StartChronicle(ctx, service.StartChronicleRequest{
			Mode:       models.ModeSandbox,
			Setting:    "a quiet village",
			PlayerName: "Kael",
		})
		assert.True(t, errors.Is(err, models.ErrOracleFailure))
		f.store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects invalid start requests", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.StartChronicle(ctx, service.StartChronicleRequest{
			Mode: models.ModeSandboxCombat, Setting: "x", PlayerName: "Kael",
		})
		assert.True(t, errors.Is(err, models.ErrInvalidInput), "sandbox_combat cannot be started directly")

		_, err = f.svc.StartChronicle(ctx, service.StartChronicleRequest{
			Mode: models.ModeCompetitive, Setting: "x", PlayerName: "Kael",
		})
		assert.True(t, errors.Is(err, models.ErrInvalidInput), "competitive needs an opponent")
	})
}

func TestSubmitVoiceTurnDisabled(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SubmitVoiceTurn(context.Background(), uuid.New(), strings.NewReader("audio"), "turn.webm")
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestTurnSerialization(t *testing.T) {
	// A held lock on the scene must reject the second submission.
	locker := lock.NewMemoryLocker()
	sceneID := uuid.New()

	release, err := locker.Acquire(context.Background(), sceneID.String())
	require.NoError(t, err)
	defer release()

	f := &fixture{
		oracle: new(mocks.Oracle),
		store:  new(mocks.SceneStore),
		media:  new(mocks.MediaPipeline),
	}
	svc := service.NewChronicleService(
		f.oracle, service.NewCostAssessor(f.oracle, zap.NewNop()), f.media, f.store,
		locker, nil, service.Config{ActionPointsPerTurn: 3, MemoryLimit: 5}, zap.NewNop())

	_, err = svc.SubmitTurn(context.Background(), sceneID, []string{"act"}, nil)
	assert.True(t, errors.Is(err, models.ErrTurnInProgress))
	f.store.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}
