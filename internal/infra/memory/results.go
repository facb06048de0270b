package memory

import (
	"context"
	"sync"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/leaderboard"
)

// ResultStore keeps quiz results in insertion order.
type ResultStore struct {
	mu      sync.RWMutex
	results []domain.QuizResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{}
}

func (s *ResultStore) SaveResult(_ context.Context, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func (s *ResultStore) ListResults(_ context.Context, filter app.ResultFilter) ([]domain.QuizResult, error) {
	s.mu.RLock()
	matches := make([]domain.QuizResult, 0, len(s.results))
	for _, r := range s.results {
		if filter.Difficulty != "" && r.Difficulty != filter.Difficulty {
			continue
		}
		if filter.PlayerName != "" && r.PlayerName != filter.PlayerName {
			continue
		}
		matches = append(matches, r)
	}
	s.mu.RUnlock()

	ranked := leaderboard.Top(leaderboard.Historical(matches), filter.Limit)
	out := make([]domain.QuizResult, len(ranked))
	for i, r := range ranked {
		out[i] = r.QuizResult
	}
	return out, nil
}
