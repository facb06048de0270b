package leaderboard

import (
	"testing"

	"trivia-room-service/internal/domain"
)

func TestLiveKeepsJoinOrderOnTies(t *testing.T) {
	participants := []domain.Participant{
		{ID: "p1", Name: "Ana", Score: 500},
		{ID: "p2", Name: "Luis", Score: 900},
		{ID: "p3", Name: "Eva", Score: 500},
		{ID: "p4", Name: "Tom", Score: 0, Pending: &domain.PendingAnswer{Option: 1, ElapsedSeconds: 2}},
	}
	got := Live(participants)
	wantIDs := []string{"p2", "p1", "p3", "p4"}
	for i, id := range wantIDs {
		if got[i].ParticipantID != id || got[i].Rank != i+1 {
			t.Fatalf("position %d: got %+v, want %s rank %d", i, got[i], id, i+1)
		}
	}
	if !got[3].Answered || got[0].Answered {
		t.Fatalf("answered flags not carried over: %+v", got)
	}
}

func TestHistoricalTieBreaksOnTime(t *testing.T) {
	results := []domain.QuizResult{
		{PlayerName: "slow", CorrectAnswers: 4, TotalQuestions: 5, TotalTimeSeconds: 120},
		{PlayerName: "perfect", CorrectAnswers: 5, TotalQuestions: 5, TotalTimeSeconds: 300},
		{PlayerName: "fast", CorrectAnswers: 4, TotalQuestions: 5, TotalTimeSeconds: 60},
		{PlayerName: "empty", CorrectAnswers: 0, TotalQuestions: 0, TotalTimeSeconds: 1},
	}
	got := Historical(results)
	want := []string{"perfect", "fast", "slow", "empty"}
	for i, name := range want {
		if got[i].PlayerName != name || got[i].Rank != i+1 {
			t.Fatalf("rank %d: got %s (rank %d), want %s", i+1, got[i].PlayerName, got[i].Rank, name)
		}
	}
	if got[0].Percentage != 100 || got[1].Percentage != 80 {
		t.Fatalf("unexpected percentages: %v / %v", got[0].Percentage, got[1].Percentage)
	}
}

func TestTop(t *testing.T) {
	xs := []int{1, 2, 3}
	if len(Top(xs, 2)) != 2 || len(Top(xs, 0)) != 3 || len(Top(xs, 10)) != 3 {
		t.Fatalf("unexpected Top behaviour")
	}
}
