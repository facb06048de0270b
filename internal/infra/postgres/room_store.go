package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

const roomColumns = `id, code, difficulty, max_players, status, current_question_index,
	question_order, language, organizer_name, created_at, started_at, question_started_at`

const participantColumns = `id, room_id, name, avatar, score, current_answer, answer_time, joined_at`

// RoomStore implements app.RoomStore on Postgres. Guards that span rows run
// in one transaction with the room row locked.
type RoomStore struct {
	pool *pgxpool.Pool
}

func NewRoomStore(pool *pgxpool.Pool) *RoomStore {
	return &RoomStore{pool: pool}
}

var _ app.RoomStore = (*RoomStore)(nil)

func (s *RoomStore) CreateRoom(ctx context.Context, room domain.Room) error {
	order, err := json.Marshal(room.QuestionOrder)
	if err != nil {
		return fmt.Errorf("encode question order: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO rooms (id, code, difficulty, max_players, status, current_question_index,
			question_order, language, organizer_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		room.ID, room.Code, string(room.Difficulty), room.MaxPlayers, string(room.Status),
		room.CurrentQuestionIndex, order, room.Language, room.OrganizerName, room.CreatedAt)
	if code, constraint := pgErrorCode(err); code == codeUniqueViolation && constraint == "rooms_active_code_key" {
		return domain.ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (s *RoomStore) RoomByID(ctx context.Context, id string) (domain.Room, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	return scanRoom(row)
}

func (s *RoomStore) RoomByCode(ctx context.Context, code string) (domain.Room, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE code = $1
		ORDER BY (status <> 'finished') DESC, created_at DESC
		LIMIT 1`, code)
	return scanRoom(row)
}

func (s *RoomStore) UpdateRoomStatus(ctx context.Context, id string, change app.StatusChange) (domain.Room, error) {
	if err := change.Validate(); err != nil {
		return domain.Room{}, err
	}

	var room domain.Room
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE rooms SET
				status = $4,
				current_question_index = $5,
				started_at = CASE WHEN status = 'waiting' THEN $6 ELSE started_at END,
				question_started_at = CASE
					WHEN status = 'waiting' OR current_question_index <> $5 THEN $6
					ELSE question_started_at END
			WHERE id = $1 AND status = $2 AND current_question_index = $3
			RETURNING `+roomColumns,
			id, string(change.FromStatus), change.FromIndex, string(change.ToStatus), change.ToIndex, change.At)
		var err error
		room, err = scanRoom(row)
		if errors.Is(err, domain.ErrRoomNotFound) {
			return s.transitionFailure(ctx, tx, id)
		}
		if err != nil {
			return err
		}

		if change.ToIndex != change.FromIndex {
			if _, err := tx.Exec(ctx, `
				UPDATE participants SET current_answer = NULL, answer_time = NULL
				WHERE room_id = $1`, id); err != nil {
				return fmt.Errorf("clear pending answers: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// transitionFailure tells a missing room apart from a lost compare-and-set.
func (s *RoomStore) transitionFailure(ctx context.Context, tx pgx.Tx, id string) error {
	var status string
	var index int
	err := tx.QueryRow(ctx, `SELECT status, current_question_index FROM rooms WHERE id = $1`, id).Scan(&status, &index)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("load room: %w", err)
	}
	return fmt.Errorf("room is %s at %d: %w", status, index, domain.ErrInvalidTransition)
}

func (s *RoomStore) AddParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	var stored domain.Participant
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var status string
		var maxPlayers int
		err := tx.QueryRow(ctx, `SELECT status, max_players FROM rooms WHERE id = $1 FOR UPDATE`, p.RoomID).
			Scan(&status, &maxPlayers)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRoomNotFound
		}
		if err != nil {
			return fmt.Errorf("lock room: %w", err)
		}
		if domain.RoomStatus(status) != domain.StatusWaiting {
			return domain.ErrRoomAlreadyStarted
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM participants WHERE room_id = $1`, p.RoomID).Scan(&count); err != nil {
			return fmt.Errorf("count participants: %w", err)
		}
		if count >= maxPlayers {
			return domain.ErrRoomFull
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO participants (id, room_id, name, name_key, avatar, joined_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+participantColumns,
			p.ID, p.RoomID, p.Name, domain.NameKey(p.Name), p.Avatar, p.JoinedAt)
		stored, err = scanParticipant(row)
		if code, constraint := pgErrorCode(err); code == codeUniqueViolation && constraint == "participants_room_name_key" {
			return domain.ErrNameTaken
		}
		return err
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return stored, nil
}

func (s *RoomStore) Participant(ctx context.Context, id string) (domain.Participant, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id)
	return scanParticipant(row)
}

func (s *RoomStore) ListParticipants(ctx context.Context, roomID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+participantColumns+` FROM participants
		WHERE room_id = $1
		ORDER BY seq`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	participants := []domain.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (s *RoomStore) RecordAnswer(ctx context.Context, record domain.AnswerRecord) (domain.Participant, error) {
	var updated domain.Participant
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var status string
		var index int
		err := tx.QueryRow(ctx, `SELECT status, current_question_index FROM rooms WHERE id = $1 FOR SHARE`, record.RoomID).
			Scan(&status, &index)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRoomNotFound
		}
		if err != nil {
			return fmt.Errorf("lock room: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO answers (id, participant_id, room_id, question_index, option_index,
				correct, elapsed_seconds, points, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (participant_id, room_id, question_index) DO NOTHING`,
			record.ID, record.ParticipantID, record.RoomID, record.QuestionIndex, record.OptionIndex,
			record.Correct, record.ElapsedSeconds, record.Points, record.CreatedAt)
		if code, _ := pgErrorCode(err); code == codeForeignKeyViolation {
			return domain.ErrParticipantNotFound
		}
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrDuplicateAnswer
		}
		if domain.RoomStatus(status) != domain.StatusInProgress || index != record.QuestionIndex {
			return domain.ErrStaleQuestion
		}

		row := tx.QueryRow(ctx, `
			UPDATE participants
			SET score = score + $3, current_answer = $4, answer_time = $5
			WHERE id = $1 AND room_id = $2
			RETURNING `+participantColumns,
			record.ParticipantID, record.RoomID, record.Points, record.OptionIndex, record.ElapsedSeconds)
		updated, err = scanParticipant(row)
		return err
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return updated, nil
}

func (s *RoomStore) CountAnswers(ctx context.Context, roomID string, questionIndex int) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM answers WHERE room_id = $1 AND question_index = $2`,
		roomID, questionIndex).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	return count, nil
}

func scanRoom(row pgx.Row) (domain.Room, error) {
	var (
		room       domain.Room
		difficulty string
		status     string
		order      []byte
	)
	err := row.Scan(&room.ID, &room.Code, &difficulty, &room.MaxPlayers, &status,
		&room.CurrentQuestionIndex, &order, &room.Language, &room.OrganizerName,
		&room.CreatedAt, &room.StartedAt, &room.QuestionStartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("scan room: %w", err)
	}
	if err := json.Unmarshal(order, &room.QuestionOrder); err != nil {
		return domain.Room{}, fmt.Errorf("decode question order: %w", err)
	}
	room.Difficulty = domain.Difficulty(difficulty)
	room.Status = domain.RoomStatus(status)
	return room, nil
}

func scanParticipant(row pgx.Row) (domain.Participant, error) {
	var (
		p        domain.Participant
		option   *int
		answered *float64
		joinedAt time.Time
	)
	err := row.Scan(&p.ID, &p.RoomID, &p.Name, &p.Avatar, &p.Score, &option, &answered, &joinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, err
	}
	p.JoinedAt = joinedAt
	if option != nil && answered != nil {
		p.Pending = &domain.PendingAnswer{Option: *option, ElapsedSeconds: *answered}
	}
	return p, nil
}
