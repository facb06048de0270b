package app

import (
	"context"
	"time"

	"trivia-room-service/internal/domain"
)

// RoomStore persists rooms, participants and answer records. Every method is
// atomic on its own; the services built on top hold no locks.
type RoomStore interface {
	// CreateRoom inserts a new room. It returns domain.ErrCodeTaken when an
	// unfinished room already uses the code.
	CreateRoom(ctx context.Context, room domain.Room) error
	RoomByID(ctx context.Context, id string) (domain.Room, error)
	// RoomByCode prefers the unfinished room holding the code, falling back to
	// the most recently created one.
	RoomByCode(ctx context.Context, code string) (domain.Room, error)
	// UpdateRoomStatus applies change only if the room is still in
	// change.FromStatus at change.FromIndex. Pending answers are cleared in the
	// same step whenever the index moves.
	UpdateRoomStatus(ctx context.Context, id string, change StatusChange) (domain.Room, error)
	// AddParticipant enforces, atomically with the insert, that the room is
	// waiting, has a free seat and no participant with the same name key.
	AddParticipant(ctx context.Context, participant domain.Participant) (domain.Participant, error)
	Participant(ctx context.Context, id string) (domain.Participant, error)
	// ListParticipants returns a room's participants in join order.
	ListParticipants(ctx context.Context, roomID string) ([]domain.Participant, error)
	// RecordAnswer writes the answer record, adds its points to the
	// participant's score and sets the pending answer, all or nothing. It
	// returns domain.ErrDuplicateAnswer if a record already exists for the
	// participant and question index, and domain.ErrStaleQuestion if the room
	// has moved past that index.
	RecordAnswer(ctx context.Context, record domain.AnswerRecord) (domain.Participant, error)
	// CountAnswers counts answer records for one question index of a room.
	CountAnswers(ctx context.Context, roomID string, questionIndex int) (int, error)
}

// StatusChange is a compare-and-set transition of a room's status and index.
type StatusChange struct {
	FromStatus domain.RoomStatus
	FromIndex  int
	ToStatus   domain.RoomStatus
	ToIndex    int
	At         time.Time
}

// Validate rejects backward moves before they reach a store.
func (c StatusChange) Validate() error {
	if !c.ToStatus.Valid() || c.ToStatus.Rank() < c.FromStatus.Rank() || c.ToIndex < c.FromIndex {
		return domain.ErrInvalidTransition
	}
	if c.FromStatus == domain.StatusFinished {
		return domain.ErrInvalidTransition
	}
	return nil
}

// QuestionBank serves question content per difficulty.
type QuestionBank interface {
	QuestionSet(ctx context.Context, difficulty domain.Difficulty) (domain.QuestionSet, error)
}

// EventBus fans room and participant mutations out to subscribers. Delivery is
// best effort; subscribers reconcile by fetching RoomState.
type EventBus interface {
	Publish(ctx context.Context, event domain.Event) error
	// Subscribe returns the room's event stream. The caller must invoke the
	// returned cancel function to release the subscription.
	Subscribe(ctx context.Context, roomID string) (<-chan domain.Event, func(), error)
}

// ResultStore keeps finished single-player summaries.
type ResultStore interface {
	SaveResult(ctx context.Context, result domain.QuizResult) error
	// ListResults returns the results matching filter, best first: percentage
	// descending, then total time ascending, then oldest first.
	ListResults(ctx context.Context, filter ResultFilter) ([]domain.QuizResult, error)
}

// ResultFilter narrows ListResults. Zero fields do not filter; a zero Limit
// returns every match.
type ResultFilter struct {
	Difficulty domain.Difficulty
	PlayerName string
	Limit      int
}
