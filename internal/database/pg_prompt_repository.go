package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"prompt-service/internal/interfaces"
	"prompt-service/internal/models"
)

const (
	promptFields = `id, name, prompt, model_name, version, last_updated`

	uniqueViolation        = "23505"
	promptVersionUniqueKey = "uq_prompt_name_model_version"
)

// Compile-time check
var _ interfaces.PromptRepository = (*PgPromptRepository)(nil)

type PgPromptRepository struct {
	db *pgxpool.Pool
}

func NewPgPromptRepository(db *pgxpool.Pool) *PgPromptRepository {
	if db == nil {
		log.Fatal().Msg("Database pool is nil for PgPromptRepository")
	}
	return &PgPromptRepository{db: db}
}

func (r *PgPromptRepository) ListLatest(ctx context.Context) ([]*models.Prompt, error) {
	query := fmt.Sprintf(`SELECT DISTINCT ON (name, model_name) %s FROM prompts
		ORDER BY name, model_name, version DESC`, promptFields)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list latest prompts")
		return nil, fmt.Errorf("failed to list latest prompts: %w", err)
	}
	return collectPrompts(rows)
}

func (r *PgPromptRepository) Get(ctx context.Context, name, modelName string, version int) (*models.Prompt, error) {
	query := fmt.Sprintf(`SELECT %s FROM prompts WHERE name = $1 AND model_name = $2 AND version = $3`, promptFields)
	prompt, err := scanPrompt(r.db.QueryRow(ctx, query, name, modelName, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPromptNotFound
		}
		log.Error().Err(err).Str("name", name).Str("model", modelName).Int("version", version).Msg("Failed to get prompt")
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return prompt, nil
}

func (r *PgPromptRepository) GetLatest(ctx context.Context, name, modelName string) (*models.Prompt, error) {
	query := fmt.Sprintf(`SELECT %s FROM prompts WHERE name = $1 AND model_name = $2
		ORDER BY version DESC LIMIT 1`, promptFields)
	prompt, err := scanPrompt(r.db.QueryRow(ctx, query, name, modelName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPromptNotFound
		}
		log.Error().Err(err).Str("name", name).Str("model", modelName).Msg("Failed to get latest prompt")
		return nil, fmt.Errorf("failed to get latest prompt: %w", err)
	}
	return prompt, nil
}

func (r *PgPromptRepository) ListVersions(ctx context.Context, name, modelName string) ([]*models.Prompt, error) {
	query := fmt.Sprintf(`SELECT %s FROM prompts WHERE name = $1 AND model_name = $2
		ORDER BY version DESC`, promptFields)
	rows, err := r.db.Query(ctx, query, name, modelName)
	if err != nil {
		log.Error().Err(err).Str("name", name).Str("model", modelName).Msg("Failed to list prompt versions")
		return nil, fmt.Errorf("failed to list prompt versions: %w", err)
	}
	return collectPrompts(rows)
}

func (r *PgPromptRepository) Insert(ctx context.Context, prompt *models.Prompt) error {
	if prompt.LastUpdated.IsZero() {
		prompt.LastUpdated = time.Now().UTC()
	}
	query := `INSERT INTO prompts (name, prompt, model_name, version, last_updated)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, last_updated`
	err := r.db.QueryRow(ctx, query, prompt.Name, prompt.Prompt, prompt.ModelName, prompt.Version, prompt.LastUpdated).
		Scan(&prompt.ID, &prompt.LastUpdated)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == promptVersionUniqueKey {
			log.Debug().Str("name", prompt.Name).Str("model", prompt.ModelName).Int("version", prompt.Version).Msg("Prompt version already taken")
			return models.ErrVersionConflict
		}
		log.Error().Err(err).Str("name", prompt.Name).Str("model", prompt.ModelName).Msg("Failed to insert prompt")
		return fmt.Errorf("failed to insert prompt: %w", err)
	}
	log.Debug().Str("name", prompt.Name).Str("model", prompt.ModelName).Int("version", prompt.Version).Int64("id", prompt.ID).Msg("Prompt version inserted")
	return nil
}

func (r *PgPromptRepository) Delete(ctx context.Context, name, modelName string, version int) (bool, error) {
	query := `DELETE FROM prompts WHERE name = $1 AND model_name = $2 AND version = $3`
	commandTag, err := r.db.Exec(ctx, query, name, modelName, version)
	if err != nil {
		log.Error().Err(err).Str("name", name).Str("model", modelName).Int("version", version).Msg("Failed to delete prompt")
		return false, fmt.Errorf("failed to delete prompt: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return false, nil
	}
	log.Debug().Str("name", name).Str("model", modelName).Int("version", version).Msg("Prompt version deleted")
	return true, nil
}

func (r *PgPromptRepository) DeleteByModel(ctx context.Context, modelName string) (int64, error) {
	query := `DELETE FROM prompts WHERE model_name = $1`
	commandTag, err := r.db.Exec(ctx, query, modelName)
	if err != nil {
		log.Error().Err(err).Str("model", modelName).Msg("Failed to delete prompts for model")
		return 0, fmt.Errorf("failed to delete prompts for model: %w", err)
	}
	log.Debug().Str("model", modelName).Int64("rows", commandTag.RowsAffected()).Msg("Prompts deleted for model")
	return commandTag.RowsAffected(), nil
}

func scanPrompt(row pgx.Row) (*models.Prompt, error) {
	var p models.Prompt
	if err := row.Scan(&p.ID, &p.Name, &p.Prompt, &p.ModelName, &p.Version, &p.LastUpdated); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPrompts(rows pgx.Rows) ([]*models.Prompt, error) {
	defer rows.Close()

	prompts := make([]*models.Prompt, 0)
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan prompt row")
			return nil, fmt.Errorf("failed to scan prompt row: %w", err)
		}
		prompts = append(prompts, prompt)
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("Error iterating prompt rows")
		return nil, fmt.Errorf("error iterating prompt rows: %w", err)
	}
	return prompts, nil
}
