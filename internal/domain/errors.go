package domain

import (
	"errors"
	"fmt"
)

// Error categories. Specific errors below wrap exactly one of these so callers
// can branch with errors.Is on the category.
var (
	// ErrNotFound means a room, participant or question set is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the request collides with existing state; nothing was mutated.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition is a state machine guard failure; nothing was mutated.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrTransient is a connectivity failure on the subscription channel.
	ErrTransient = errors.New("transient failure")
	// ErrInvalidInput is a malformed request.
	ErrInvalidInput = errors.New("invalid input")
)

var (
	ErrRoomNotFound        = fmt.Errorf("room %w", ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)
	ErrQuestionSetNotFound = fmt.Errorf("question set %w", ErrNotFound)
	ErrQuestionNotFound    = fmt.Errorf("question %w", ErrNotFound)

	ErrRoomFull           = fmt.Errorf("room is full: %w", ErrConflict)
	ErrNameTaken          = fmt.Errorf("name already taken: %w", ErrConflict)
	ErrRoomAlreadyStarted = fmt.Errorf("room already started: %w", ErrConflict)
	ErrDuplicateAnswer    = fmt.Errorf("answer already recorded: %w", ErrConflict)
	ErrStaleQuestion      = fmt.Errorf("question is no longer active: %w", ErrConflict)
	// ErrCodeTaken is returned by stores when an active room already uses a code.
	ErrCodeTaken = fmt.Errorf("room code in use: %w", ErrConflict)

	ErrInsufficientParticipants = fmt.Errorf("at least 2 participants required: %w", ErrInvalidTransition)
	ErrAnswersPending           = fmt.Errorf("not every participant has answered: %w", ErrInvalidTransition)

	// ErrCodeGenerationExhausted means no unique room code was found within the retry budget.
	ErrCodeGenerationExhausted = errors.New("room code generation exhausted")

	ErrBusClosed = fmt.Errorf("event bus closed: %w", ErrTransient)

	ErrUnknownDifficulty  = fmt.Errorf("unknown difficulty: %w", ErrInvalidInput)
	ErrInvalidMaxPlayers  = fmt.Errorf("max players out of range: %w", ErrInvalidInput)
	ErrEmptyName          = fmt.Errorf("name is required: %w", ErrInvalidInput)
	ErrInvalidPosition    = fmt.Errorf("option position out of range: %w", ErrInvalidInput)
	ErrInvalidElapsed     = fmt.Errorf("elapsed time must not be negative: %w", ErrInvalidInput)
	ErrInvalidRoomCode    = fmt.Errorf("malformed room code: %w", ErrInvalidInput)
	ErrInvalidResult      = fmt.Errorf("malformed quiz result: %w", ErrInvalidInput)
	ErrEmptyQuestionOrder = fmt.Errorf("question set is empty: %w", ErrInvalidInput)
)
