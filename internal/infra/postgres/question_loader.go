package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-room-service/internal/domain"
)

// QuestionLoader loads question set JSONB from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestionSet(ctx context.Context, difficulty domain.Difficulty) (domain.QuestionSet, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_sets WHERE difficulty = $1`, string(difficulty)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionSet{}, fmt.Errorf("%s: %w", difficulty, domain.ErrQuestionSetNotFound)
	}
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load question set: %w", err)
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("unmarshal question set: %w", err)
	}
	set.Difficulty = difficulty
	return set, nil
}

// SaveQuestionSet inserts or replaces the set for its difficulty.
func (l *QuestionLoader) SaveQuestionSet(ctx context.Context, set domain.QuestionSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal question set: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO question_sets (difficulty, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (difficulty) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		string(set.Difficulty), raw)
	if err != nil {
		return fmt.Errorf("save question set: %w", err)
	}
	return nil
}

// SeedMissing stores each set whose difficulty has no row yet and reports how
// many were written. Existing content is never overwritten.
func (l *QuestionLoader) SeedMissing(ctx context.Context, sets []domain.QuestionSet) (int, error) {
	seeded := 0
	for _, set := range sets {
		_, err := l.LoadQuestionSet(ctx, set.Difficulty)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return seeded, err
		}
		if err := l.SaveQuestionSet(ctx, set); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}
