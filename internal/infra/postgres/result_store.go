package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

type quizResultRow struct {
	bun.BaseModel `bun:"table:quiz_results,alias:qr"`

	ID               string    `bun:"id,pk"`
	PlayerName       string    `bun:"player_name,notnull"`
	Difficulty       string    `bun:"difficulty,notnull"`
	CorrectAnswers   int       `bun:"correct_answers,notnull"`
	TotalQuestions   int       `bun:"total_questions,notnull"`
	TotalTimeSeconds int       `bun:"total_time_seconds,notnull"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
}

// ResultStore keeps finished single-player results through bun.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) SaveResult(ctx context.Context, result domain.QuizResult) error {
	row := quizResultRow{
		ID:               result.ID,
		PlayerName:       result.PlayerName,
		Difficulty:       string(result.Difficulty),
		CorrectAnswers:   result.CorrectAnswers,
		TotalQuestions:   result.TotalQuestions,
		TotalTimeSeconds: result.TotalTimeSeconds,
		CreatedAt:        result.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert quiz result: %w", err)
	}
	return nil
}

// ListResults ranks in SQL so only the requested page leaves the database.
func (s *ResultStore) ListResults(ctx context.Context, filter app.ResultFilter) ([]domain.QuizResult, error) {
	var rows []quizResultRow
	q := s.db.NewSelect().Model(&rows).
		OrderExpr("correct_answers::float8 / total_questions DESC").
		OrderExpr("total_time_seconds ASC").
		OrderExpr("created_at ASC")
	if filter.Difficulty != "" {
		q = q.Where("difficulty = ?", string(filter.Difficulty))
	}
	if filter.PlayerName != "" {
		q = q.Where("player_name = ?", filter.PlayerName)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list quiz results: %w", err)
	}

	results := make([]domain.QuizResult, len(rows))
	for i, r := range rows {
		results[i] = domain.QuizResult{
			ID:               r.ID,
			PlayerName:       r.PlayerName,
			Difficulty:       domain.Difficulty(r.Difficulty),
			CorrectAnswers:   r.CorrectAnswers,
			TotalQuestions:   r.TotalQuestions,
			TotalTimeSeconds: r.TotalTimeSeconds,
			CreatedAt:        r.CreatedAt,
		}
	}
	return results, nil
}
