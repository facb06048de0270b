package memory

import (
	"context"
	"fmt"
	"sync"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

// Store is an in-memory implementation of app.RoomStore. A single mutex
// gives every method the per-row atomicity the services rely on.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]*domain.Room
	roomOrder    []string
	participants map[string]*domain.Participant
	members      map[string][]string
	answers      map[answerKey]domain.AnswerRecord
}

type answerKey struct {
	participantID string
	roomID        string
	index         int
}

func NewStore() *Store {
	return &Store{
		rooms:        make(map[string]*domain.Room),
		participants: make(map[string]*domain.Participant),
		members:      make(map[string][]string),
		answers:      make(map[answerKey]domain.AnswerRecord),
	}
}

var _ app.RoomStore = (*Store)(nil)

func (s *Store) CreateRoom(_ context.Context, room domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("room %s exists: %w", room.ID, domain.ErrConflict)
	}
	for _, existing := range s.rooms {
		if existing.Code == room.Code && existing.Status != domain.StatusFinished {
			return domain.ErrCodeTaken
		}
	}
	stored := cloneRoom(room)
	s.rooms[room.ID] = &stored
	s.roomOrder = append(s.roomOrder, room.ID)
	return nil
}

func (s *Store) RoomByID(_ context.Context, id string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return cloneRoom(*room), nil
}

func (s *Store) RoomByCode(_ context.Context, code string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Room
	for i := len(s.roomOrder) - 1; i >= 0; i-- {
		room := s.rooms[s.roomOrder[i]]
		if room.Code != code {
			continue
		}
		if room.Status != domain.StatusFinished {
			return cloneRoom(*room), nil
		}
		if latest == nil {
			latest = room
		}
	}
	if latest == nil {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return cloneRoom(*latest), nil
}

func (s *Store) UpdateRoomStatus(_ context.Context, id string, change app.StatusChange) (domain.Room, error) {
	if err := change.Validate(); err != nil {
		return domain.Room{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if room.Status != change.FromStatus || room.CurrentQuestionIndex != change.FromIndex {
		return domain.Room{}, fmt.Errorf("room is %s at %d: %w", room.Status, room.CurrentQuestionIndex, domain.ErrInvalidTransition)
	}

	at := change.At
	if room.Status == domain.StatusWaiting && change.ToStatus != domain.StatusWaiting {
		room.StartedAt = &at
		room.QuestionStartedAt = &at
	}
	if change.ToIndex != room.CurrentQuestionIndex {
		room.QuestionStartedAt = &at
		for _, pid := range s.members[id] {
			s.participants[pid].Pending = nil
		}
	}
	room.Status = change.ToStatus
	room.CurrentQuestionIndex = change.ToIndex
	return cloneRoom(*room), nil
}

func (s *Store) AddParticipant(_ context.Context, p domain.Participant) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[p.RoomID]
	if !ok {
		return domain.Participant{}, domain.ErrRoomNotFound
	}
	if room.Status != domain.StatusWaiting {
		return domain.Participant{}, domain.ErrRoomAlreadyStarted
	}
	members := s.members[p.RoomID]
	if len(members) >= room.MaxPlayers {
		return domain.Participant{}, domain.ErrRoomFull
	}
	key := domain.NameKey(p.Name)
	for _, pid := range members {
		if domain.NameKey(s.participants[pid].Name) == key {
			return domain.Participant{}, domain.ErrNameTaken
		}
	}

	p.Score = 0
	p.Pending = nil
	stored := p
	s.participants[p.ID] = &stored
	s.members[p.RoomID] = append(members, p.ID)
	return p, nil
}

func (s *Store) Participant(_ context.Context, id string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return cloneParticipant(*p), nil
}

func (s *Store) ListParticipants(_ context.Context, roomID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := s.members[roomID]
	out := make([]domain.Participant, 0, len(members))
	for _, pid := range members {
		out = append(out, cloneParticipant(*s.participants[pid]))
	}
	return out, nil
}

func (s *Store) RecordAnswer(_ context.Context, record domain.AnswerRecord) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[record.ParticipantID]
	if !ok || p.RoomID != record.RoomID {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	room, ok := s.rooms[record.RoomID]
	if !ok {
		return domain.Participant{}, domain.ErrRoomNotFound
	}
	key := answerKey{participantID: record.ParticipantID, roomID: record.RoomID, index: record.QuestionIndex}
	if _, dup := s.answers[key]; dup {
		return domain.Participant{}, domain.ErrDuplicateAnswer
	}
	if room.Status != domain.StatusInProgress || room.CurrentQuestionIndex != record.QuestionIndex {
		return domain.Participant{}, domain.ErrStaleQuestion
	}

	s.answers[key] = record
	p.Score += record.Points
	p.Pending = &domain.PendingAnswer{Option: record.OptionIndex, ElapsedSeconds: record.ElapsedSeconds}
	return cloneParticipant(*p), nil
}

func (s *Store) CountAnswers(_ context.Context, roomID string, questionIndex int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, pid := range s.members[roomID] {
		if _, ok := s.answers[answerKey{participantID: pid, roomID: roomID, index: questionIndex}]; ok {
			count++
		}
	}
	return count, nil
}

// Answers returns a participant's answer records ordered by question index.
func (s *Store) Answers(_ context.Context, participantID string) []domain.AnswerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[participantID]
	if !ok {
		return nil
	}
	room := s.rooms[p.RoomID]
	var out []domain.AnswerRecord
	for i := range room.QuestionOrder {
		if rec, ok := s.answers[answerKey{participantID: participantID, roomID: p.RoomID, index: i}]; ok {
			out = append(out, rec)
		}
	}
	return out
}

func cloneRoom(r domain.Room) domain.Room {
	r.QuestionOrder = append([]int(nil), r.QuestionOrder...)
	if r.StartedAt != nil {
		t := *r.StartedAt
		r.StartedAt = &t
	}
	if r.QuestionStartedAt != nil {
		t := *r.QuestionStartedAt
		r.QuestionStartedAt = &t
	}
	return r
}

func cloneParticipant(p domain.Participant) domain.Participant {
	if p.Pending != nil {
		pending := *p.Pending
		p.Pending = &pending
	}
	return p
}
