package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"chronicle-server/internal/models"
)

const (
	sceneFields = `id, mode, setting, player_name, opponent_name, player_hp, opponent_hp,
        player_effects, opponent_effects, history, memory, style, round,
        allow_combat_escalation, game_over, created_at, updated_at`

	insertSceneQuery = `
        INSERT INTO scenes
            (id, mode, setting, player_name, opponent_name, player_hp, opponent_hp,
             player_effects, opponent_effects, history, memory, style, round,
             allow_combat_escalation, game_over, created_at, updated_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
    `
	updateSceneQuery = `
        UPDATE scenes SET
            mode = $2,
            opponent_name = $3,
            player_hp = $4,
            opponent_hp = $5,
            player_effects = $6,
            opponent_effects = $7,
            history = $8,
            memory = $9,
            round = $10,
            game_over = $11,
            updated_at = $12
        WHERE id = $1
    `
	getSceneByIDQuery = `SELECT ` + sceneFields + ` FROM scenes WHERE id = $1`
	listScenesQuery   = `
        SELECT id, mode, player_name, opponent_name, game_over, updated_at
        FROM scenes
        ORDER BY updated_at DESC
    `
)

// PgSceneRepository persists scenes in PostgreSQL. Collection-valued fields
// are stored as JSONB so a scene round-trips as a single row.
type PgSceneRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPgSceneRepository(pool *pgxpool.Pool, logger *zap.Logger) *PgSceneRepository {
	return &PgSceneRepository{pool: pool, logger: logger.Named("scene_repo")}
}

// sceneRow mirrors the scenes table; JSONB columns arrive as raw bytes.
type sceneRow struct {
	ID                    uuid.UUID `db:"id"`
	Mode                  string    `db:"mode"`
	Setting               string    `db:"setting"`
	PlayerName            string    `db:"player_name"`
	OpponentName          string    `db:"opponent_name"`
	PlayerHP              int       `db:"player_hp"`
	OpponentHP            int       `db:"opponent_hp"`
	PlayerEffects         []byte    `db:"player_effects"`
	OpponentEffects       []byte    `db:"opponent_effects"`
	History               []byte    `db:"history"`
	Memory                []byte    `db:"memory"`
	Style                 []byte    `db:"style"`
	Round                 int       `db:"round"`
	AllowCombatEscalation bool      `db:"allow_combat_escalation"`
	GameOver              bool      `db:"game_over"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

func (r *PgSceneRepository) Create(ctx context.Context, scene *models.Scene) error {
	now := time.Now().UTC()
	scene.CreatedAt = now
	scene.UpdatedAt = now

	playerEffects, opponentEffects, history, memory, style, err := marshalSceneBlobs(scene)
	if err != nil {
		return fmt.Errorf("%w: encoding scene %s: %v", models.ErrPersistenceFailure, scene.ID, err)
	}

	_, err = r.pool.Exec(ctx, insertSceneQuery,
		scene.ID, string(scene.Mode), scene.Setting, scene.PlayerName, scene.OpponentName,
		scene.PlayerHP, scene.OpponentHP,
		playerEffects, opponentEffects, history, memory, style,
		scene.Round, scene.DirectorMayInitiateCombat, scene.GameOver,
		scene.CreatedAt, scene.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to insert scene", zap.String("scene_id", scene.ID.String()), zap.Error(err))
		return fmt.Errorf("%w: inserting scene %s: %v", models.ErrPersistenceFailure, scene.ID, err)
	}
	return nil
}

func (r *PgSceneRepository) Update(ctx context.Context, scene *models.Scene) error {
	scene.UpdatedAt = time.Now().UTC()

	playerEffects, opponentEffects, history, memory, _, err := marshalSceneBlobs(scene)
	if err != nil {
		return fmt.Errorf("%w: encoding scene %s: %v", models.ErrPersistenceFailure, scene.ID, err)
	}

	tag, err := r.pool.Exec(ctx, updateSceneQuery,
		scene.ID, string(scene.Mode), scene.OpponentName,
		scene.PlayerHP, scene.OpponentHP,
		playerEffects, opponentEffects, history, memory,
		scene.Round, scene.GameOver, scene.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to update scene", zap.String("scene_id", scene.ID.String()), zap.Error(err))
		return fmt.Errorf("%w: updating scene %s: %v", models.ErrPersistenceFailure, scene.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrSceneNotFound
	}
	return nil
}

func (r *PgSceneRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	var row sceneRow
	if err := pgxscan.Get(ctx, r.pool, &row, getSceneByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSceneNotFound
		}
		r.logger.Error("failed to get scene", zap.String("scene_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: loading scene %s: %v", models.ErrPersistenceFailure, id, err)
	}
	return row.toScene()
}

func (r *PgSceneRepository) List(ctx context.Context) ([]models.SceneSummary, error) {
	var summaries []models.SceneSummary
	if err := pgxscan.Select(ctx, r.pool, &summaries, listScenesQuery); err != nil {
		r.logger.Error("failed to list scenes", zap.Error(err))
		return nil, fmt.Errorf("%w: listing scenes: %v", models.ErrPersistenceFailure, err)
	}
	return summaries, nil
}

func marshalSceneBlobs(scene *models.Scene) (playerEffects, opponentEffects, history, memory, style []byte, err error) {
	if playerEffects, err = json.Marshal(effectsOrEmpty(scene.PlayerEffects)); err != nil {
		return
	}
	if opponentEffects, err = json.Marshal(effectsOrEmpty(scene.OpponentEffects)); err != nil {
		return
	}
	if history, err = json.Marshal(historyOrEmpty(scene.History)); err != nil {
		return
	}
	if memory, err = json.Marshal(scene.Memory); err != nil {
		return
	}
	style, err = json.Marshal(scene.Style)
	return
}

func effectsOrEmpty(effects []models.StatusEffect) []models.StatusEffect {
	if effects == nil {
		return []models.StatusEffect{}
	}
	return effects
}

func historyOrEmpty(history []models.ChatMessage) []models.ChatMessage {
	if history == nil {
		return []models.ChatMessage{}
	}
	return history
}

func (row *sceneRow) toScene() (*models.Scene, error) {
	scene := &models.Scene{
		ID:                        row.ID,
		Mode:                      models.Mode(row.Mode),
		Setting:                   row.Setting,
		PlayerName:                row.PlayerName,
		OpponentName:              row.OpponentName,
		PlayerHP:                  row.PlayerHP,
		OpponentHP:                row.OpponentHP,
		Round:                     row.Round,
		DirectorMayInitiateCombat: row.AllowCombatEscalation,
		GameOver:                  row.GameOver,
		CreatedAt:                 row.CreatedAt,
		UpdatedAt:                 row.UpdatedAt,
	}
	if err := json.Unmarshal(row.PlayerEffects, &scene.PlayerEffects); err != nil {
		return nil, fmt.Errorf("%w: decoding player effects for scene %s: %v", models.ErrPersistenceFailure, row.ID, err)
	}
	if err := json.Unmarshal(row.OpponentEffects, &scene.OpponentEffects); err != nil {
		return nil, fmt.Errorf("%w: decoding opponent effects for scene %s: %v", models.ErrPersistenceFailure, row.ID, err)
	}
	if err := json.Unmarshal(row.History, &scene.History); err != nil {
		return nil, fmt.Errorf("%w: decoding history for scene %s: %v", models.ErrPersistenceFailure, row.ID, err)
	}
	if err := json.Unmarshal(row.Memory, &scene.Memory); err != nil {
		return nil, fmt.Errorf("%w: decoding memory for scene %s: %v", models.ErrPersistenceFailure, row.ID, err)
	}
	if err := json.Unmarshal(row.Style, &scene.Style); err != nil {
		return nil, fmt.Errorf("%w: decoding style for scene %s: %v", models.ErrPersistenceFailure, row.ID, err)
	}
	return scene, nil
}
