package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

const maxBodyBytes = 64 << 10

type joinRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type advanceRequest struct {
	ExpectedIndex *int `json:"expectedIndex"`
}

type answerRequest struct {
	QuestionIndex  int     `json:"questionIndex"`
	Position       int     `json:"position"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

type resultRequest struct {
	PlayerName       string `json:"playerName"`
	Difficulty       string `json:"difficulty"`
	CorrectAnswers   int    `json:"correctAnswers"`
	TotalQuestions   int    `json:"totalQuestions"`
	TotalTimeSeconds int    `json:"totalTimeSeconds"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

// decodeBody reads a JSON body. An empty body leaves dst untouched when
// optional is set.
func decodeBody(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode body: %v: %w", err, domain.ErrInvalidInput)
	}
	return nil
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req app.CreateRoomRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	room, err := h.rooms.CreateRoom(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *Handler) roomByCode(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	room, err := h.rooms.RoomByCode(r.Context(), p.ByName("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *Handler) roomByID(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	room, err := h.rooms.Room(r.Context(), p.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *Handler) roomState(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	state, err := h.rooms.State(r.Context(), p.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) currentQuestion(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	view, err := h.rooms.CurrentQuestion(r.Context(), p.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) standings(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	entries, err := h.rooms.Standings(r.Context(), p.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) participants(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	list, err := h.rooms.Participants(r.Context(), p.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) joinByID(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var req joinRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	participant, err := h.rooms.JoinRoom(r.Context(), p.ByName("id"), req.Name, req.Avatar)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

func (h *Handler) joinByCode(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var req joinRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	participant, err := h.rooms.Join(r.Context(), p.ByName("code"), req.Name, req.Avatar)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	room, err := h.rooms.Start(r.Context(), p.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var req advanceRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	var (
		room domain.Room
		err  error
	)
	if req.ExpectedIndex != nil {
		room, err = h.rooms.AdvanceFrom(r.Context(), p.ByName("id"), *req.ExpectedIndex)
	} else {
		room, err = h.rooms.Advance(r.Context(), p.ByName("id"))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var req answerRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.rooms.Submit(r.Context(), domain.Submission{
		ParticipantID:   p.ByName("id"),
		QuestionIndex:   req.QuestionIndex,
		DisplayPosition: req.Position,
		ElapsedSeconds:  req.ElapsedSeconds,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := app.LeaderboardQuery{Difficulty: r.URL.Query().Get("difficulty")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, r, fmt.Errorf("limit %q: %w", raw, domain.ErrInvalidInput))
			return
		}
		query.Limit = limit
	}
	entries, err := h.results.Leaderboard(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) playerBest(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	entries, err := h.results.PlayerBest(r.Context(), p.ByName("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) saveResult(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req resultRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := h.results.Save(r.Context(), domain.QuizResult{
		PlayerName:       req.PlayerName,
		Difficulty:       domain.Difficulty(req.Difficulty),
		CorrectAnswers:   req.CorrectAnswers,
		TotalQuestions:   req.TotalQuestions,
		TotalTimeSeconds: req.TotalTimeSeconds,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func healthz(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
