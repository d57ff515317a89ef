package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chronicle-server/internal/ai"
	"chronicle-server/internal/lock"
	"chronicle-server/internal/media"
	"chronicle-server/internal/models"
)

// Oracle is the reasoning backend the resolver consults for every narrative
// decision. *ai.Client satisfies it.
type Oracle interface {
	AssessActionCost(ctx context.Context, action string) (int, error)
	ResolveTurn(ctx context.Context, in ai.ResolveInput) (*models.TurnOutcome, error)
	OpeningBeat(ctx context.Context, in ai.OpeningInput) (*models.TurnOutcome, error)
	ConcludingBeat(ctx context.Context, scene *models.Scene, playerDefeated bool) (string, error)
	PlanOpponentActions(ctx context.Context, scene *models.Scene, budget int, assess ai.CostTool) ([]string, error)
}

// SceneStore is the persistence contract: atomic snapshot writes, key lookup.
type SceneStore interface {
	Create(ctx context.Context, scene *models.Scene) error
	Update(ctx context.Context, scene *models.Scene) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Scene, error)
	List(ctx context.Context) ([]models.SceneSummary, error)
}

// MediaPipeline produces the optional turn artifacts. Never fails.
type MediaPipeline interface {
	Render(ctx context.Context, narration string, style models.StyleContext) media.Result
}

// StartChronicleRequest carries everything needed to open a new scene.
type StartChronicleRequest struct {
	Mode                      models.Mode `json:"mode"`
	Setting                   string      `json:"setting"`
	PlayerName                string      `json:"player_name"`
	OpponentName              string      `json:"opponent_name"`
	PlayerBrief               string      `json:"player_brief"`
	OpponentBrief             string      `json:"opponent_brief"`
	ArtStyle                  string      `json:"art_style"`
	PlayerVisuals             string      `json:"player_visuals"`
	OpponentVisuals           string      `json:"opponent_visuals"`
	DirectorMayInitiateCombat bool        `json:"allow_director_combat"`
}

// TurnResult is the caller-facing payload of one resolved turn (or the
// opening beat). Media artifacts are empty strings when unavailable; the
// narration is always authoritative.
type TurnResult struct {
	Scene         *models.Scene `json:"scene"`
	Narration     string        `json:"narration"`
	Transcription string        `json:"transcription,omitempty"`
	Media         media.Result  `json:"media"`
}

// ChronicleService is the turn resolver: it owns the per-turn algorithm, the
// mode state machine and the single-writer discipline.
type ChronicleService interface {
	StartChronicle(ctx context.Context, req StartChronicleRequest) (*TurnResult, error)
	SubmitTurn(ctx context.Context, sceneID uuid.UUID, playerActions, opponentActions []string) (*TurnResult, error)
	SubmitVoiceTurn(ctx context.Context, sceneID uuid.UUID, audio io.Reader, filename string) (*TurnResult, error)
	AssessAction(ctx context.Context, action string) (int, error)
	GetChronicle(ctx context.Context, sceneID uuid.UUID) (*models.Scene, error)
	ListChronicles(ctx context.Context) ([]models.SceneSummary, error)
	ExportChronicle(ctx context.Context, sceneID uuid.UUID) (string, error)
}

// Config holds the ruleset knobs of the resolver.
type Config struct {
	ActionPointsPerTurn int
	MemoryLimit         int
}

type chronicleService struct {
	oracle      Oracle
	assessor    *CostAssessor
	media       MediaPipeline
	store       SceneStore
	locker      lock.TurnLocker
	transcriber media.Transcriber
	cfg         Config
	logger      *zap.Logger
}

// NewChronicleService wires the resolver. transcriber may be nil, which
// disables voice turns.
func NewChronicleService(
	oracle Oracle,
	assessor *CostAssessor,
	mediaPipeline MediaPipeline,
	store SceneStore,
	locker lock.TurnLocker,
	transcriber media.Transcriber,
	cfg Config,
	logger *zap.Logger,
) ChronicleService {
	if cfg.ActionPointsPerTurn <= 0 {
		cfg.ActionPointsPerTurn = MaxActionCost
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = 5
	}
	return &chronicleService{
		oracle:      oracle,
		assessor:    assessor,
		media:       mediaPipeline,
		store:       store,
		locker:      locker,
		transcriber: transcriber,
		cfg:         cfg,
		logger:      logger.Named("chronicle_service"),
	}
}

// StartChronicle creates a scene, asks the oracle for the opening beat and
// persists the result. Nothing is stored when the opening call fails.
func (s *chronicleService) StartChronicle(ctx context.Context, req StartChronicleRequest) (*TurnResult, error) {
	if err := validateStartRequest(req); err != nil {
		return nil, err
	}

	scene := &models.Scene{
		ID:         uuid.New(),
		Mode:       req.Mode,
		Setting:    req.Setting,
		PlayerName: req.PlayerName,
		Memory:     models.NewMemoryWindow(s.cfg.MemoryLimit),
		Style: models.StyleContext{
			ArtStyle:        req.ArtStyle,
			PlayerVisuals:   req.PlayerVisuals,
			OpponentVisuals: req.OpponentVisuals,
		},
		DirectorMayInitiateCombat: req.DirectorMayInitiateCombat,
	}
	if req.Mode == models.ModeCompetitive {
		scene.OpponentName = req.OpponentName
		scene.PlayerHP = models.MaxHP
		scene.OpponentHP = models.MaxHP
	}

	outcome, err := s.oracle.OpeningBeat(ctx, ai.OpeningInput{
		Scene:         scene,
		PlayerBrief:   req.PlayerBrief,
		OpponentBrief: req.OpponentBrief,
	})
	if err != nil {
		return nil, err
	}

	scene.History = append(scene.History, models.ChatMessage{
		Role:    models.RoleAssistant,
		Content: outcome.Narration,
	})
	scene.Memory.Push(outcome.TurnSummary)

	artifacts := s.media.Render(ctx, outcome.Narration, scene.Style)

	if err := s.store.Create(ctx, scene); err != nil {
		return nil, err
	}

	s.logger.Info("chronicle started",
		zap.String("scene_id", scene.ID.String()),
		zap.String("mode", string(scene.Mode)))

	return &TurnResult{Scene: scene, Narration: outcome.Narration, Media: artifacts}, nil
}

// SubmitTurn resolves one turn end to end. Turns are all-or-nothing: the
// scene is re-read from the store, and a failure before the final save
// leaves no visible mutation.
func (s *chronicleService) SubmitTurn(ctx context.Context, sceneID uuid.UUID, playerActions, opponentActions []string) (*TurnResult, error) {
	playerActions = trimActions(playerActions)
	opponentActions = trimActions(opponentActions)
	if len(playerActions) == 0 {
		return nil, fmt.Errorf("%w: at least one player action is required", models.ErrInvalidInput)
	}

	release, err := s.locker.Acquire(ctx, sceneID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	scene, err := s.store.GetByID(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	if scene.GameOver {
		return nil, models.ErrChronicleConcluded
	}
	if scene.Memory.Capacity <= 0 {
		scene.Memory.Capacity = s.cfg.MemoryLimit
	}

	budget := s.cfg.ActionPointsPerTurn
	if err := s.assessor.ValidateBudget(ctx, scene.PlayerName, playerActions, budget); err != nil {
		return nil, err
	}

	if scene.Mode.IsCombat() {
		if len(opponentActions) == 0 {
			opponentActions, err = s.oracle.PlanOpponentActions(ctx, scene, budget, s.oracle.AssessActionCost)
			if err != nil {
				return nil, err
			}
			opponentActions = trimActions(opponentActions)
		}
		// Synthesized lists get the exact same budget check as human ones.
		if err := s.assessor.ValidateBudget(ctx, scene.OpponentName, opponentActions, budget); err != nil {
			return nil, err
		}
	} else {
		if len(opponentActions) > 0 {
			return nil, fmt.Errorf("%w: opponent actions are only accepted in combat modes", models.ErrInvalidInput)
		}
		if len(playerActions) > 1 {
			return nil, fmt.Errorf("%w: sandbox turns take a single action", models.ErrInvalidInput)
		}
	}

	outcome, err := s.oracle.ResolveTurn(ctx, ai.ResolveInput{
		Scene:           scene,
		PlayerActions:   playerActions,
		OpponentActions: opponentActions,
	})
	if err != nil {
		return nil, err
	}

	narration := s.applyOutcome(ctx, scene, outcome, playerActions, opponentActions)

	artifacts := s.media.Render(ctx, narration, scene.Style)

	if err := s.store.Update(ctx, scene); err != nil {
		return nil, err
	}

	s.logger.Info("turn resolved",
		zap.String("scene_id", scene.ID.String()),
		zap.String("mode", string(scene.Mode)),
		zap.Int("round", scene.Round),
		zap.Bool("game_over", scene.GameOver))

	return &TurnResult{Scene: scene, Narration: narration, Media: artifacts}, nil
}

// applyOutcome folds the oracle's verdict into the scene: HP, effects,
// memory, history and the mode state machine. Returns the full narration,
// concluding beat included.
func (s *chronicleService) applyOutcome(ctx context.Context, scene *models.Scene, outcome *models.TurnOutcome, playerActions, opponentActions []string) string {
	inCombat := scene.Mode.IsCombat()

	if inCombat {
		scene.PlayerHP = models.ClampHP(scene.PlayerHP, outcome.PlayerHPDelta)
		scene.OpponentHP = models.ClampHP(scene.OpponentHP, outcome.OpponentHPDelta)
		scene.Round++
	}

	s.applyEffects(scene, outcome.NewEffects)
	scene.PlayerEffects = models.TickEffects(scene.PlayerEffects)
	scene.OpponentEffects = models.TickEffects(scene.OpponentEffects)

	scene.Memory.Push(outcome.TurnSummary)
	scene.History = append(scene.History, models.ChatMessage{
		Role:    models.RoleUser,
		Content: formatSubmission(scene, playerActions, opponentActions),
	})

	narration := outcome.Narration

	switch {
	case inCombat && (scene.PlayerHP <= 0 || scene.OpponentHP <= 0):
		narration = s.concludeEncounter(ctx, scene, narration)
	case scene.Mode == models.ModeSandbox:
		s.maybeEscalate(scene, outcome)
	}

	scene.History = append(scene.History, models.ChatMessage{
		Role:    models.RoleAssistant,
		Content: narration,
	})
	return narration
}

// concludeEncounter closes a combat encounter whose HP reached the floor.
// Competitive defeat is terminal; sandbox_combat unwinds back to sandbox.
// A failed concluding call degrades to the outcome narration alone; the
// all-or-nothing guarantee covers the outcome step, not the epilogue.
func (s *chronicleService) concludeEncounter(ctx context.Context, scene *models.Scene, narration string) string {
	playerDefeated := scene.PlayerHP <= 0

	conclusion, err := s.oracle.ConcludingBeat(ctx, scene, playerDefeated)
	if err != nil {
		s.logger.Warn("concluding beat failed, closing encounter without epilogue",
			zap.String("scene_id", scene.ID.String()), zap.Error(err))
	} else if conclusion != "" {
		narration = narration + "\n\n" + conclusion
	}

	switch scene.Mode {
	case models.ModeCompetitive:
		scene.GameOver = true
	case models.ModeSandboxCombat:
		scene.Mode = models.ModeSandbox
		scene.PlayerHP = 0
		scene.OpponentHP = 0
		scene.OpponentName = ""
		scene.OpponentEffects = nil
		scene.Round = 0
	}
	return narration
}

// maybeEscalate handles the oracle-initiated sandbox escalation. The flag is
// honored only when the scene's policy allows it and the oracle supplied a
// coherent opponent; anything else is ignored.
func (s *chronicleService) maybeEscalate(scene *models.Scene, outcome *models.TurnOutcome) {
	if !outcome.InitiateCombat {
		return
	}
	if !scene.DirectorMayInitiateCombat {
		s.logger.Warn("oracle attempted combat escalation against scene policy, ignoring",
			zap.String("scene_id", scene.ID.String()))
		return
	}
	if outcome.OpponentName == "" || outcome.OpponentHP <= 0 {
		s.logger.Warn("oracle escalation lacked a coherent opponent, ignoring",
			zap.String("scene_id", scene.ID.String()),
			zap.String("opponent_name", outcome.OpponentName),
			zap.Int("opponent_hp", outcome.OpponentHP))
		return
	}

	scene.Mode = models.ModeSandboxCombat
	scene.OpponentName = outcome.OpponentName
	scene.OpponentHP = models.ClampHP(0, outcome.OpponentHP)
	scene.PlayerHP = models.MaxHP
	scene.Round = 0

	s.logger.Info("sandbox escalated into combat",
		zap.String("scene_id", scene.ID.String()),
		zap.String("opponent", scene.OpponentName),
		zap.Int("opponent_hp", scene.OpponentHP))
}

func (s *chronicleService) applyEffects(scene *models.Scene, add []models.NewEffect) {
	for _, e := range add {
		effect := models.StatusEffect{Name: e.Name, Duration: e.Duration}
		if e.Target == models.TargetOpponent {
			scene.OpponentEffects = models.ApplyEffects(scene.OpponentEffects, []models.StatusEffect{effect})
		} else {
			scene.PlayerEffects = models.ApplyEffects(scene.PlayerEffects, []models.StatusEffect{effect})
		}
	}
}

// SubmitVoiceTurn transcribes the audio and resolves it as a regular
// single-action turn.
func (s *chronicleService) SubmitVoiceTurn(ctx context.Context, sceneID uuid.UUID, audio io.Reader, filename string) (*TurnResult, error) {
	if s.transcriber == nil {
		return nil, fmt.Errorf("%w: voice input is not enabled", models.ErrInvalidInput)
	}
	text, err := s.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		return nil, err
	}
	result, err := s.SubmitTurn(ctx, sceneID, []string{text}, nil)
	if err != nil {
		return nil, err
	}
	result.Transcription = text
	return result, nil
}

// AssessAction exposes the fail-open cost preview.
func (s *chronicleService) AssessAction(ctx context.Context, action string) (int, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return 0, fmt.Errorf("%w: action text is required", models.ErrInvalidInput)
	}
	return s.assessor.Assess(ctx, action), nil
}

func (s *chronicleService) GetChronicle(ctx context.Context, sceneID uuid.UUID) (*models.Scene, error) {
	return s.store.GetByID(ctx, sceneID)
}

func (s *chronicleService) ListChronicles(ctx context.Context) ([]models.SceneSummary, error) {
	return s.store.List(ctx)
}

func validateStartRequest(req StartChronicleRequest) error {
	switch req.Mode {
	case models.ModeSandbox:
	case models.ModeCompetitive:
		if strings.TrimSpace(req.OpponentName) == "" {
			return fmt.Errorf("%w: competitive chronicles need an opponent name", models.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: mode must be %q or %q", models.ErrInvalidInput, models.ModeSandbox, models.ModeCompetitive)
	}
	if strings.TrimSpace(req.Setting) == "" {
		return fmt.Errorf("%w: setting is required", models.ErrInvalidInput)
	}
	if strings.TrimSpace(req.PlayerName) == "" {
		return fmt.Errorf("%w: player name is required", models.ErrInvalidInput)
	}
	return nil
}

func trimActions(actions []string) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func formatSubmission(scene *models.Scene, playerActions, opponentActions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", scene.PlayerName, strings.Join(playerActions, "; "))
	if len(opponentActions) > 0 {
		fmt.Fprintf(&b, "\n%s: %s", scene.OpponentName, strings.Join(opponentActions, "; "))
	}
	return b.String()
}
