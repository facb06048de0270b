package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/infra/memory"
)

func TestResultServiceSaveAndRank(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC))
	svc := app.NewResultService(memory.NewResultStore(), clock)
	ctx := context.Background()

	inputs := []domain.QuizResult{
		{PlayerName: "Ana", Difficulty: "fácil", CorrectAnswers: 4, TotalQuestions: 5, TotalTimeSeconds: 40},
		{PlayerName: "Luis", Difficulty: "easy", CorrectAnswers: 5, TotalQuestions: 5, TotalTimeSeconds: 90},
		{PlayerName: "Eva", Difficulty: "easy", CorrectAnswers: 4, TotalQuestions: 5, TotalTimeSeconds: 30},
		{PlayerName: "Max", Difficulty: "hard", CorrectAnswers: 5, TotalQuestions: 5, TotalTimeSeconds: 10},
	}
	for _, r := range inputs {
		saved, err := svc.Save(ctx, r)
		if err != nil {
			t.Fatalf("save %s: %v", r.PlayerName, err)
		}
		if saved.ID == "" || !saved.CreatedAt.Equal(clock.Now()) {
			t.Fatalf("result not stamped: %+v", saved)
		}
	}

	board, err := svc.Leaderboard(ctx, app.LeaderboardQuery{Difficulty: "easy"})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []string{"Luis", "Eva", "Ana"}
	if len(board) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(board))
	}
	for i, name := range want {
		if board[i].PlayerName != name || board[i].Rank != i+1 {
			t.Fatalf("rank %d: expected %s, got %s (rank %d)", i+1, name, board[i].PlayerName, board[i].Rank)
		}
	}

	all, _ := svc.Leaderboard(ctx, app.LeaderboardQuery{Limit: 2})
	if len(all) != 2 || all[0].PlayerName != "Max" {
		t.Fatalf("unexpected overall board %+v", all)
	}
}

func TestResultServiceValidation(t *testing.T) {
	svc := app.NewResultService(memory.NewResultStore(), nil)
	ctx := context.Background()
	cases := []struct {
		name   string
		result domain.QuizResult
		want   error
	}{
		{"no name", domain.QuizResult{Difficulty: "easy", TotalQuestions: 5}, domain.ErrEmptyName},
		{"bad difficulty", domain.QuizResult{PlayerName: "A", Difficulty: "x", TotalQuestions: 5}, domain.ErrUnknownDifficulty},
		{"no questions", domain.QuizResult{PlayerName: "A", Difficulty: "easy"}, domain.ErrInvalidResult},
		{"too many correct", domain.QuizResult{PlayerName: "A", Difficulty: "easy", CorrectAnswers: 6, TotalQuestions: 5}, domain.ErrInvalidResult},
		{"negative time", domain.QuizResult{PlayerName: "A", Difficulty: "easy", TotalQuestions: 5, TotalTimeSeconds: -1}, domain.ErrInvalidResult},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Save(ctx, tc.result); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLeaderboardDefaultLimit(t *testing.T) {
	svc := app.NewResultService(memory.NewResultStore(), nil)
	ctx := context.Background()
	for i := 0; i < app.DefaultLeaderboardLimit+5; i++ {
		if _, err := svc.Save(ctx, domain.QuizResult{PlayerName: "P", Difficulty: "medium", CorrectAnswers: i % 6, TotalQuestions: 5, TotalTimeSeconds: i}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	board, err := svc.Leaderboard(ctx, app.LeaderboardQuery{})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 50 {
		t.Fatalf("expected 50 entries by default, got %d", len(board))
	}
}

func TestPlayerBest(t *testing.T) {
	svc := app.NewResultService(memory.NewResultStore(), nil)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		if _, err := svc.Save(ctx, domain.QuizResult{PlayerName: "Ana", Difficulty: "easy", CorrectAnswers: 3, TotalQuestions: 5, TotalTimeSeconds: 100 - i}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	for _, r := range []domain.QuizResult{
		{PlayerName: "Ana", Difficulty: "hard", CorrectAnswers: 5, TotalQuestions: 5, TotalTimeSeconds: 200},
		{PlayerName: "Luis", Difficulty: "easy", CorrectAnswers: 5, TotalQuestions: 5, TotalTimeSeconds: 1},
	} {
		if _, err := svc.Save(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	best, err := svc.PlayerBest(ctx, " Ana ")
	if err != nil {
		t.Fatalf("player best: %v", err)
	}
	if len(best) != app.PlayerBestLimit {
		t.Fatalf("expected %d entries, got %d", app.PlayerBestLimit, len(best))
	}
	if best[0].Difficulty != domain.DifficultyHard || best[0].Rank != 1 {
		t.Fatalf("expected the perfect hard run first, got %+v", best[0])
	}
	if best[1].TotalTimeSeconds != 89 || best[9].TotalTimeSeconds != 97 {
		t.Fatalf("expected fastest easy runs next, got %d..%d", best[1].TotalTimeSeconds, best[9].TotalTimeSeconds)
	}
	for _, r := range best {
		if r.PlayerName != "Ana" {
			t.Fatalf("foreign result in player best: %+v", r)
		}
	}

	if _, err := svc.PlayerBest(ctx, "  "); !errors.Is(err, domain.ErrEmptyName) {
		t.Fatalf("expected empty name error, got %v", err)
	}
}
