// Package leaderboard orders participants for live display and finished
// single-player results for the historical board.
package leaderboard

import (
	"sort"

	"trivia-room-service/internal/domain"
)

// Live ranks participants by score, highest first. Participants must be passed
// in join order: ties keep that order.
func Live(participants []domain.Participant) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, len(participants))
	for i, p := range participants {
		entries[i] = domain.LeaderboardEntry{
			ParticipantID: p.ID,
			Name:          p.Name,
			Avatar:        p.Avatar,
			Score:         p.Score,
			Answered:      p.HasAnswered(),
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Top returns at most n entries of a ranked list.
func Top[T any](ranked []T, n int) []T {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// Historical ranks results by percentage descending, then by total time
// ascending. Ranks are 1-based and assigned after sorting.
func Historical(results []domain.QuizResult) []domain.RankedResult {
	ranked := make([]domain.RankedResult, len(results))
	for i, r := range results {
		ranked[i] = domain.RankedResult{Percentage: r.Percentage(), QuizResult: r}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Percentage != ranked[j].Percentage {
			return ranked[i].Percentage > ranked[j].Percentage
		}
		return ranked[i].TotalTimeSeconds < ranked[j].TotalTimeSeconds
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
