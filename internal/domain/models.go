package domain

import (
	"strings"
	"time"
)

// RoomStatus is the lifecycle state of a room. It only moves forward:
// waiting -> in_progress -> finished.
type RoomStatus string

const (
	StatusWaiting    RoomStatus = "waiting"
	StatusInProgress RoomStatus = "in_progress"
	StatusFinished   RoomStatus = "finished"
)

// Valid reports whether s is one of the known statuses.
func (s RoomStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusFinished:
		return true
	}
	return false
}

// Rank orders statuses along the lifecycle so callers can reject backward moves.
func (s RoomStatus) Rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusInProgress:
		return 1
	case StatusFinished:
		return 2
	}
	return -1
}

// Difficulty selects the question set a room draws from.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists every supported tier.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty accepts the English tier names and the Spanish labels used by
// older clients, case-insensitively.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "easy", "fácil", "facil":
		return DifficultyEasy, nil
	case "medium", "medio":
		return DifficultyMedium, nil
	case "hard", "difícil", "dificil":
		return DifficultyHard, nil
	}
	return "", ErrUnknownDifficulty
}

// OptionCount is the fixed number of answer options per question.
const OptionCount = 4

// Room is one trivia session instance.
type Room struct {
	ID                   string     `json:"id"`
	Code                 string     `json:"code"`
	Difficulty           Difficulty `json:"difficulty"`
	MaxPlayers           int        `json:"maxPlayers"`
	Status               RoomStatus `json:"status"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	QuestionOrder        []int      `json:"questionOrder"`
	Language             string     `json:"language"`
	OrganizerName        string     `json:"organizerName"`
	CreatedAt            time.Time  `json:"createdAt"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	QuestionStartedAt    *time.Time `json:"questionStartedAt,omitempty"`
}

// IsLastQuestion reports whether the current index points at the final question.
func (r Room) IsLastQuestion() bool {
	return r.CurrentQuestionIndex >= len(r.QuestionOrder)-1
}

// CurrentQuestionID returns the question id at the current index.
func (r Room) CurrentQuestionID() (int, bool) {
	if r.CurrentQuestionIndex < 0 || r.CurrentQuestionIndex >= len(r.QuestionOrder) {
		return 0, false
	}
	return r.QuestionOrder[r.CurrentQuestionIndex], true
}

// PendingAnswer is a participant's selection for the active question. Option is
// the canonical option index. Keeping both values in one optional struct means
// they are always present or absent together.
type PendingAnswer struct {
	Option         int     `json:"option"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// Participant is a player joined to a room.
type Participant struct {
	ID       string         `json:"id"`
	RoomID   string         `json:"roomId"`
	Name     string         `json:"name"`
	Avatar   string         `json:"avatar"`
	Score    int            `json:"score"`
	Pending  *PendingAnswer `json:"pending,omitempty"`
	JoinedAt time.Time      `json:"joinedAt"`
}

// HasAnswered reports whether the participant holds a pending selection.
func (p Participant) HasAnswered() bool {
	return p.Pending != nil
}

// NameKey normalizes a display name for uniqueness checks within a room.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AnswerRecord is the immutable record of one participant's response to one
// question. QuestionIndex is the position in the room's question order.
type AnswerRecord struct {
	ID             string    `json:"id"`
	ParticipantID  string    `json:"participantId"`
	RoomID         string    `json:"roomId"`
	QuestionIndex  int       `json:"questionIndex"`
	OptionIndex    int       `json:"optionIndex"`
	Correct        bool      `json:"correct"`
	ElapsedSeconds float64   `json:"elapsedSeconds"`
	Points         int       `json:"points"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Question models a multiple choice question with exactly four options.
type Question struct {
	ID           int                 `json:"id" yaml:"id"`
	Prompt       string              `json:"prompt" yaml:"prompt"`
	Options      [OptionCount]string `json:"options" yaml:"options"`
	CorrectIndex int                 `json:"correctIndex" yaml:"correct"`
}

// QuestionSet is the full question list for one difficulty.
type QuestionSet struct {
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
	Questions  []Question `json:"questions" yaml:"questions"`
}

// IDs returns the question identifiers in stored order.
func (s QuestionSet) IDs() []int {
	ids := make([]int, len(s.Questions))
	for i, q := range s.Questions {
		ids[i] = q.ID
	}
	return ids
}

// Question looks a question up by id.
func (s QuestionSet) Question(id int) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// QuestionView is a question as displayed to one room: options are listed in
// the room's display order and the correct answer is omitted.
type QuestionView struct {
	Index      int                 `json:"index"`
	Total      int                 `json:"total"`
	QuestionID int                 `json:"questionId"`
	Prompt     string              `json:"prompt"`
	Options    [OptionCount]string `json:"options"`
}

// Submission is a participant's answer as sent by a client.
type Submission struct {
	ParticipantID   string  `json:"participantId"`
	QuestionIndex   int     `json:"questionIndex"`
	DisplayPosition int     `json:"position"`
	ElapsedSeconds  float64 `json:"elapsedSeconds"`
}

// AnswerResult summarizes the outcome of a submission for the submitting participant.
type AnswerResult struct {
	QuestionIndex          int  `json:"questionIndex"`
	Correct                bool `json:"correct"`
	Points                 int  `json:"points"`
	TotalScore             int  `json:"totalScore"`
	CanonicalIndex         int  `json:"canonicalIndex"`
	CorrectDisplayPosition int  `json:"correctPosition"`
}

// LeaderboardEntry is a ranked participant in a live room.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Avatar        string `json:"avatar"`
	Score         int    `json:"score"`
	Answered      bool   `json:"answered"`
}

// RoomState is the full snapshot a client fetches to reconcile after events
// or a reconnect.
type RoomState struct {
	Room          Room               `json:"room"`
	Participants  []Participant      `json:"participants"`
	Leaderboard   []LeaderboardEntry `json:"leaderboard"`
	AnsweredCount int                `json:"answeredCount"`
	Question      *QuestionView      `json:"question,omitempty"`
}

// QuizResult is a finished single-player summary kept for the historical leaderboard.
type QuizResult struct {
	ID               string     `json:"id"`
	PlayerName       string     `json:"playerName"`
	Difficulty       Difficulty `json:"difficulty"`
	CorrectAnswers   int        `json:"correctAnswers"`
	TotalQuestions   int        `json:"totalQuestions"`
	TotalTimeSeconds int        `json:"totalTimeSeconds"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Percentage is the share of correct answers in [0, 100].
func (r QuizResult) Percentage() float64 {
	if r.TotalQuestions <= 0 {
		return 0
	}
	return float64(r.CorrectAnswers) / float64(r.TotalQuestions) * 100
}

// RankedResult is a historical leaderboard row.
type RankedResult struct {
	Rank       int     `json:"rank"`
	Percentage float64 `json:"percentage"`
	QuizResult
}
