package app

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/randomizer"
	"trivia-room-service/internal/scoring"
)

// Submit records a participant's answer to the active question. The display
// position is mapped back to the canonical option through the room's option
// order before correctness is decided. A second submission for the same
// question returns domain.ErrDuplicateAnswer and leaves the score untouched.
func (s *RoomService) Submit(ctx context.Context, sub domain.Submission) (domain.AnswerResult, error) {
	if sub.DisplayPosition < 0 || sub.DisplayPosition >= domain.OptionCount {
		return domain.AnswerResult{}, domain.ErrInvalidPosition
	}
	if math.IsNaN(sub.ElapsedSeconds) || sub.ElapsedSeconds < 0 {
		return domain.AnswerResult{}, domain.ErrInvalidElapsed
	}

	participant, err := s.store.Participant(ctx, sub.ParticipantID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	room, err := s.store.RoomByID(ctx, participant.RoomID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if room.Status != domain.StatusInProgress {
		return domain.AnswerResult{}, fmt.Errorf("submit while room is %s: %w", room.Status, domain.ErrInvalidTransition)
	}
	if sub.QuestionIndex != room.CurrentQuestionIndex {
		return domain.AnswerResult{}, fmt.Errorf("question %d, room is at %d: %w",
			sub.QuestionIndex, room.CurrentQuestionIndex, domain.ErrStaleQuestion)
	}

	question, err := s.currentQuestion(ctx, room)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	order := randomizer.OptionOrderFor(question.ID, room.Code)
	canonical, _ := order.Canonical(sub.DisplayPosition)
	correctPosition, _ := order.Position(question.CorrectIndex)
	correct := canonical == question.CorrectIndex
	elapsed := s.elapsed(room, sub.ElapsedSeconds)
	points := scoring.Award(correct, elapsed, s.opts.MaxSeconds)

	updated, err := s.store.RecordAnswer(ctx, domain.AnswerRecord{
		ID:             uuid.NewString(),
		ParticipantID:  participant.ID,
		RoomID:         room.ID,
		QuestionIndex:  room.CurrentQuestionIndex,
		OptionIndex:    canonical,
		Correct:        correct,
		ElapsedSeconds: elapsed,
		Points:         points,
		CreatedAt:      s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateAnswer) {
			log.Debug().Str("participant", participant.ID).Int("question_index", room.CurrentQuestionIndex).Msg("duplicate answer ignored")
		}
		return domain.AnswerResult{}, err
	}

	log.Info().
		Str("room_id", room.ID).
		Str("participant", participant.ID).
		Int("question_index", room.CurrentQuestionIndex).
		Bool("correct", correct).
		Int("points", points).
		Msg("answer recorded")
	s.publish(ctx, domain.ParticipantChanged(updated, domain.ReasonAnswered, s.clock.Now()))

	return domain.AnswerResult{
		QuestionIndex:          room.CurrentQuestionIndex,
		Correct:                correct,
		Points:                 points,
		TotalScore:             updated.Score,
		CanonicalIndex:         canonical,
		CorrectDisplayPosition: correctPosition,
	}, nil
}

// elapsed picks the response time used for scoring. Client timing is trusted
// unless configured otherwise and the room knows when the question opened.
func (s *RoomService) elapsed(room domain.Room, reported float64) float64 {
	if s.opts.TrustClientTiming || room.QuestionStartedAt == nil {
		return reported
	}
	measured := s.clock.Since(*room.QuestionStartedAt).Seconds()
	if measured < 0 {
		return 0
	}
	return measured
}
