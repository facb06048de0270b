// Package http exposes the room and result services over REST and a
// per-room WebSocket stream.
package http

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"trivia-room-service/internal/app"
)

// Handler serves the HTTP API.
type Handler struct {
	rooms   *app.RoomService
	results *app.ResultService
	ws      *WSHandler
}

func NewHandler(rooms *app.RoomService, results *app.ResultService) *Handler {
	return &Handler{rooms: rooms, results: results, ws: NewWSHandler(rooms)}
}

// Router builds the routed, CORS-wrapped handler. An empty origin list allows
// every origin.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	mux := httprouter.New()
	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		log.Error().Interface("panic", v).Str("path", r.URL.Path).Msg("handler panic")
		writeJSON(w, http.StatusInternalServerError, errorPayload{Code: "internal", Message: "internal error"})
	}

	mux.GET("/healthz", healthz)

	mux.POST("/rooms", h.createRoom)
	mux.GET("/rooms/code/:code", h.roomByCode)
	mux.POST("/rooms/code/:code/participants", h.joinByCode)
	mux.GET("/rooms/id/:id", h.roomByID)
	mux.GET("/rooms/id/:id/state", h.roomState)
	mux.GET("/rooms/id/:id/question", h.currentQuestion)
	mux.GET("/rooms/id/:id/standings", h.standings)
	mux.GET("/rooms/id/:id/participants", h.participants)
	mux.POST("/rooms/id/:id/participants", h.joinByID)
	mux.POST("/rooms/id/:id/start", h.start)
	mux.POST("/rooms/id/:id/advance", h.advance)
	mux.POST("/participants/:id/answers", h.submitAnswer)

	mux.GET("/leaderboard", h.leaderboard)
	mux.POST("/leaderboard", h.saveResult)
	mux.GET("/leaderboard/players/:name", h.playerBest)

	mux.HandlerFunc(http.MethodGet, "/ws", h.ws.ServeWS)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedOrigins: allowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return logRequests(c.Handler(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
