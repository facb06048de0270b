package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/leaderboard"
	"trivia-room-service/internal/randomizer"
	"trivia-room-service/internal/scoring"
)

const (
	DefaultCodeAttempts    = 10
	DefaultLanguage        = "es"
	MinPlayers             = 2
	DefaultMaxPlayersLimit = 100
)

// Options tunes a RoomService. Zero values fall back to the defaults above.
type Options struct {
	CodeAttempts      int
	MaxSeconds        float64
	MaxPlayersLimit   int
	TrustClientTiming bool
	Clock             clockwork.Clock
	Randomizer        *randomizer.Randomizer
}

// RoomService owns the room lifecycle: creation, joining, the
// waiting -> in_progress -> finished state machine and answer aggregation.
type RoomService struct {
	store     RoomStore
	questions QuestionBank
	bus       EventBus
	rnd       *randomizer.Randomizer
	clock     clockwork.Clock
	opts      Options
}

func NewRoomService(store RoomStore, questions QuestionBank, bus EventBus, opts Options) *RoomService {
	if opts.CodeAttempts <= 0 {
		opts.CodeAttempts = DefaultCodeAttempts
	}
	if opts.MaxSeconds <= 0 {
		opts.MaxSeconds = scoring.DefaultMaxSeconds
	}
	if opts.MaxPlayersLimit < MinPlayers {
		opts.MaxPlayersLimit = DefaultMaxPlayersLimit
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Randomizer == nil {
		opts.Randomizer = randomizer.New()
	}
	return &RoomService{
		store:     store,
		questions: questions,
		bus:       bus,
		rnd:       opts.Randomizer,
		clock:     opts.Clock,
		opts:      opts,
	}
}

// CreateRoomRequest carries the organizer's choices for a new room.
type CreateRoomRequest struct {
	Difficulty    string `json:"difficulty"`
	MaxPlayers    int    `json:"maxPlayers"`
	OrganizerName string `json:"organizerName"`
	Language      string `json:"language"`
}

// CreateRoom fixes the room's question order and claims a fresh code, retrying
// on collisions with other unfinished rooms.
func (s *RoomService) CreateRoom(ctx context.Context, req CreateRoomRequest) (domain.Room, error) {
	difficulty, err := domain.ParseDifficulty(req.Difficulty)
	if err != nil {
		return domain.Room{}, err
	}
	if req.MaxPlayers < MinPlayers || req.MaxPlayers > s.opts.MaxPlayersLimit {
		return domain.Room{}, domain.ErrInvalidMaxPlayers
	}
	organizer := strings.TrimSpace(req.OrganizerName)
	if organizer == "" {
		return domain.Room{}, domain.ErrEmptyName
	}
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = DefaultLanguage
	}

	set, err := s.questions.QuestionSet(ctx, difficulty)
	if err != nil {
		return domain.Room{}, err
	}
	if len(set.Questions) == 0 {
		return domain.Room{}, domain.ErrEmptyQuestionOrder
	}

	room := domain.Room{
		ID:            uuid.NewString(),
		Difficulty:    difficulty,
		MaxPlayers:    req.MaxPlayers,
		Status:        domain.StatusWaiting,
		QuestionOrder: s.rnd.QuestionOrder(set.IDs()),
		Language:      language,
		OrganizerName: organizer,
		CreatedAt:     s.clock.Now(),
	}
	for attempt := 1; attempt <= s.opts.CodeAttempts; attempt++ {
		room.Code = s.rnd.Code()
		err := s.store.CreateRoom(ctx, room)
		if err == nil {
			log.Info().Str("room_id", room.ID).Str("code", room.Code).Str("difficulty", string(difficulty)).Msg("room created")
			s.publish(ctx, domain.RoomChanged(room, domain.ReasonCreated, room.CreatedAt))
			return room, nil
		}
		if !errors.Is(err, domain.ErrCodeTaken) {
			return domain.Room{}, err
		}
		log.Debug().Str("code", room.Code).Int("attempt", attempt).Msg("room code collision")
	}
	log.Warn().Int("attempts", s.opts.CodeAttempts).Msg("room code generation exhausted")
	return domain.Room{}, domain.ErrCodeGenerationExhausted
}

// Join adds a participant to the waiting room holding code.
func (s *RoomService) Join(ctx context.Context, code, name, avatar string) (domain.Participant, error) {
	code, err := randomizer.NormalizeCode(code)
	if err != nil {
		return domain.Participant{}, err
	}
	room, err := s.store.RoomByCode(ctx, code)
	if err != nil {
		return domain.Participant{}, err
	}
	return s.join(ctx, room, name, avatar)
}

// JoinRoom is Join for callers that already hold the room id.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, name, avatar string) (domain.Participant, error) {
	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return domain.Participant{}, err
	}
	return s.join(ctx, room, name, avatar)
}

func (s *RoomService) join(ctx context.Context, room domain.Room, name, avatar string) (domain.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Participant{}, domain.ErrEmptyName
	}
	if room.Status != domain.StatusWaiting {
		return domain.Participant{}, domain.ErrRoomAlreadyStarted
	}

	participant, err := s.store.AddParticipant(ctx, domain.Participant{
		ID:       uuid.NewString(),
		RoomID:   room.ID,
		Name:     name,
		Avatar:   strings.TrimSpace(avatar),
		JoinedAt: s.clock.Now(),
	})
	if err != nil {
		log.Debug().Err(err).Str("room_id", room.ID).Str("name", name).Msg("join rejected")
		return domain.Participant{}, err
	}
	log.Info().Str("room_id", room.ID).Str("participant", participant.ID).Msg("participant joined")
	s.publish(ctx, domain.ParticipantChanged(participant, domain.ReasonJoined, participant.JoinedAt))
	return participant, nil
}

// Start moves a waiting room with at least two participants to its first question.
func (s *RoomService) Start(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if room.Status != domain.StatusWaiting {
		return domain.Room{}, rejectTransition(room, fmt.Errorf("start room that is %s: %w", room.Status, domain.ErrInvalidTransition))
	}
	participants, err := s.store.ListParticipants(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if len(participants) < MinPlayers {
		return domain.Room{}, rejectTransition(room, domain.ErrInsufficientParticipants)
	}

	updated, err := s.store.UpdateRoomStatus(ctx, roomID, StatusChange{
		FromStatus: domain.StatusWaiting,
		FromIndex:  room.CurrentQuestionIndex,
		ToStatus:   domain.StatusInProgress,
		ToIndex:    0,
		At:         s.clock.Now(),
	})
	if err != nil {
		return domain.Room{}, rejectTransition(room, err)
	}
	log.Info().Str("room_id", roomID).Int("participants", len(participants)).Msg("room started")
	s.publish(ctx, domain.RoomChanged(updated, domain.ReasonStarted, s.clock.Now()))
	return updated, nil
}

// Advance moves the room past its current question once every participant
// has answered it. On the last question the room finishes instead.
func (s *RoomService) Advance(ctx context.Context, roomID string) (domain.Room, error) {
	return s.advance(ctx, roomID, -1)
}

// AdvanceFrom is Advance guarded by the index the caller believes is current,
// so a stale client cannot skip a question.
func (s *RoomService) AdvanceFrom(ctx context.Context, roomID string, expectedIndex int) (domain.Room, error) {
	if expectedIndex < 0 {
		return domain.Room{}, fmt.Errorf("expected index %d: %w", expectedIndex, domain.ErrInvalidInput)
	}
	return s.advance(ctx, roomID, expectedIndex)
}

func (s *RoomService) advance(ctx context.Context, roomID string, expectedIndex int) (domain.Room, error) {
	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if room.Status != domain.StatusInProgress {
		return domain.Room{}, rejectTransition(room, fmt.Errorf("advance room that is %s: %w", room.Status, domain.ErrInvalidTransition))
	}
	if expectedIndex >= 0 && expectedIndex != room.CurrentQuestionIndex {
		return domain.Room{}, rejectTransition(room, fmt.Errorf("advance from question %d, room is at %d: %w",
			expectedIndex, room.CurrentQuestionIndex, domain.ErrInvalidTransition))
	}

	participants, err := s.store.ListParticipants(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	answered, err := s.store.CountAnswers(ctx, roomID, room.CurrentQuestionIndex)
	if err != nil {
		return domain.Room{}, err
	}
	if answered < len(participants) {
		return domain.Room{}, rejectTransition(room, fmt.Errorf("%d of %d answered: %w", answered, len(participants), domain.ErrAnswersPending))
	}

	change := StatusChange{
		FromStatus: domain.StatusInProgress,
		FromIndex:  room.CurrentQuestionIndex,
		ToStatus:   domain.StatusInProgress,
		ToIndex:    room.CurrentQuestionIndex + 1,
		At:         s.clock.Now(),
	}
	reason := domain.ReasonAdvanced
	if room.IsLastQuestion() {
		change.ToStatus = domain.StatusFinished
		change.ToIndex = room.CurrentQuestionIndex
		reason = domain.ReasonFinished
	}
	updated, err := s.store.UpdateRoomStatus(ctx, roomID, change)
	if err != nil {
		return domain.Room{}, rejectTransition(room, err)
	}

	log.Info().Str("room_id", roomID).Str("status", string(updated.Status)).Int("question_index", updated.CurrentQuestionIndex).Msg("room advanced")
	if reason == domain.ReasonAdvanced {
		s.publishCleared(ctx, roomID)
	}
	s.publish(ctx, domain.RoomChanged(updated, reason, change.At))
	return updated, nil
}

// rejectTransition logs a state machine guard failure at warn. Other errors
// pass through unlogged.
func rejectTransition(room domain.Room, err error) error {
	if errors.Is(err, domain.ErrInvalidTransition) {
		log.Warn().Err(err).
			Str("room_id", room.ID).
			Str("code", room.Code).
			Str("status", string(room.Status)).
			Int("question_index", room.CurrentQuestionIndex).
			Msg("transition rejected")
	}
	return err
}

// publishCleared tells subscribers that pending answers were reset.
func (s *RoomService) publishCleared(ctx context.Context, roomID string) {
	participants, err := s.store.ListParticipants(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("list participants for cleared events")
		return
	}
	now := s.clock.Now()
	for _, p := range participants {
		s.publish(ctx, domain.ParticipantChanged(p, domain.ReasonCleared, now))
	}
}

func (s *RoomService) Room(ctx context.Context, roomID string) (domain.Room, error) {
	return s.store.RoomByID(ctx, roomID)
}

func (s *RoomService) RoomByCode(ctx context.Context, code string) (domain.Room, error) {
	code, err := randomizer.NormalizeCode(code)
	if err != nil {
		return domain.Room{}, err
	}
	return s.store.RoomByCode(ctx, code)
}

// Participants lists a room's participants in join order.
func (s *RoomService) Participants(ctx context.Context, roomID string) ([]domain.Participant, error) {
	if _, err := s.store.RoomByID(ctx, roomID); err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx, roomID)
}

// Standings ranks the room's participants by score. Valid in any status.
func (s *RoomService) Standings(ctx context.Context, roomID string) ([]domain.LeaderboardEntry, error) {
	participants, err := s.Participants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return leaderboard.Live(participants), nil
}

// CurrentQuestion renders the active question with options in this room's
// display order.
func (s *RoomService) CurrentQuestion(ctx context.Context, roomID string) (domain.QuestionView, error) {
	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return domain.QuestionView{}, err
	}
	if room.Status != domain.StatusInProgress {
		return domain.QuestionView{}, fmt.Errorf("no active question while %s: %w", room.Status, domain.ErrInvalidTransition)
	}
	return s.questionView(ctx, room)
}

func (s *RoomService) questionView(ctx context.Context, room domain.Room) (domain.QuestionView, error) {
	question, err := s.currentQuestion(ctx, room)
	if err != nil {
		return domain.QuestionView{}, err
	}
	order := randomizer.OptionOrderFor(question.ID, room.Code)
	return domain.QuestionView{
		Index:      room.CurrentQuestionIndex,
		Total:      len(room.QuestionOrder),
		QuestionID: question.ID,
		Prompt:     question.Prompt,
		Options:    order.Apply(question.Options),
	}, nil
}

func (s *RoomService) currentQuestion(ctx context.Context, room domain.Room) (domain.Question, error) {
	id, ok := room.CurrentQuestionID()
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	set, err := s.questions.QuestionSet(ctx, room.Difficulty)
	if err != nil {
		return domain.Question{}, err
	}
	question, ok := set.Question(id)
	if !ok {
		return domain.Question{}, fmt.Errorf("question %d of %s: %w", id, room.Difficulty, domain.ErrQuestionNotFound)
	}
	return question, nil
}

// State is the full snapshot clients use to reconcile after events or a reconnect.
func (s *RoomService) State(ctx context.Context, roomID string) (domain.RoomState, error) {
	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return domain.RoomState{}, err
	}
	participants, err := s.store.ListParticipants(ctx, roomID)
	if err != nil {
		return domain.RoomState{}, err
	}
	state := domain.RoomState{
		Room:         room,
		Participants: participants,
		Leaderboard:  leaderboard.Live(participants),
	}
	if room.Status != domain.StatusInProgress {
		return state, nil
	}

	state.AnsweredCount, err = s.store.CountAnswers(ctx, roomID, room.CurrentQuestionIndex)
	if err != nil {
		return domain.RoomState{}, err
	}
	view, err := s.questionView(ctx, room)
	if err != nil {
		return domain.RoomState{}, err
	}
	state.Question = &view
	return state, nil
}
