package app

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/leaderboard"
)

const (
	// DefaultLeaderboardLimit is the number of historical entries shown when
	// no limit is requested.
	DefaultLeaderboardLimit = 50
	// PlayerBestLimit caps a single player's best results.
	PlayerBestLimit = 10
)

// ResultService keeps finished single-player results and ranks them.
type ResultService struct {
	store ResultStore
	clock clockwork.Clock
}

func NewResultService(store ResultStore, clock clockwork.Clock) *ResultService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ResultService{store: store, clock: clock}
}

// Save validates a result and stamps its id and creation time.
func (s *ResultService) Save(ctx context.Context, result domain.QuizResult) (domain.QuizResult, error) {
	result.PlayerName = strings.TrimSpace(result.PlayerName)
	if result.PlayerName == "" {
		return domain.QuizResult{}, domain.ErrEmptyName
	}
	difficulty, err := domain.ParseDifficulty(string(result.Difficulty))
	if err != nil {
		return domain.QuizResult{}, err
	}
	result.Difficulty = difficulty
	if result.TotalQuestions <= 0 || result.CorrectAnswers < 0 ||
		result.CorrectAnswers > result.TotalQuestions || result.TotalTimeSeconds < 0 {
		return domain.QuizResult{}, domain.ErrInvalidResult
	}

	result.ID = uuid.NewString()
	result.CreatedAt = s.clock.Now()
	if err := s.store.SaveResult(ctx, result); err != nil {
		return domain.QuizResult{}, err
	}
	log.Info().Str("player", result.PlayerName).Str("difficulty", string(difficulty)).Float64("percentage", result.Percentage()).Msg("result saved")
	return result, nil
}

// LeaderboardQuery filters the historical board. An empty Difficulty means all tiers.
type LeaderboardQuery struct {
	Difficulty string
	Limit      int
}

// Leaderboard ranks saved results by percentage, then by total time.
func (s *ResultService) Leaderboard(ctx context.Context, q LeaderboardQuery) ([]domain.RankedResult, error) {
	var difficulty domain.Difficulty
	if strings.TrimSpace(q.Difficulty) != "" {
		d, err := domain.ParseDifficulty(q.Difficulty)
		if err != nil {
			return nil, err
		}
		difficulty = d
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	results, err := s.store.ListResults(ctx, ResultFilter{Difficulty: difficulty, Limit: limit})
	if err != nil {
		return nil, err
	}
	return leaderboard.Top(leaderboard.Historical(results), limit), nil
}

// PlayerBest returns one player's best results across every difficulty.
func (s *ResultService) PlayerBest(ctx context.Context, playerName string) ([]domain.RankedResult, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		return nil, domain.ErrEmptyName
	}
	results, err := s.store.ListResults(ctx, ResultFilter{PlayerName: playerName, Limit: PlayerBestLimit})
	if err != nil {
		return nil, err
	}
	return leaderboard.Top(leaderboard.Historical(results), PlayerBestLimit), nil
}
