package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

type WSHandler struct {
	rooms    *app.RoomService
	upgrader websocket.Upgrader
}

func NewWSHandler(rooms *app.RoomService) *WSHandler {
	return &WSHandler{
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

const (
	msgState        = "state"
	msgRoom         = "room"
	msgParticipant  = "participant"
	msgAnswerResult = "answerResult"
	msgError        = "error"
)

func eventMessage(event domain.Event) outboundMessage[any] {
	typ := msgRoom
	if event.Kind == domain.EventParticipantChanged {
		typ = msgParticipant
	}
	return outboundMessage[any]{Type: typ, Payload: event}
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: msgError, Payload: newErrorPayload(err)}
}

// ServeWS streams one room's events to a client. The first message is always
// the full room state so reconnecting clients reconcile before applying
// events. participantId is required only for answering.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	participantID := r.URL.Query().Get("participantId")
	if roomID == "" {
		http.Error(w, "missing roomId", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	if participantID != "" {
		participants, err := h.rooms.Participants(ctx, roomID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !containsParticipant(participants, participantID) {
			writeError(w, r, domain.ErrParticipantNotFound)
			return
		}
	}

	// Subscribe before the upgrade so a missing room is a plain HTTP error
	// and no event between the snapshot and the stream is lost.
	events, cancel, err := h.rooms.Subscribe(ctx, roomID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("room_id", roomID).Msg("ws write error")
				return
			}
		}
	}()

	state, err := h.rooms.State(ctx, roomID)
	if err != nil {
		send <- errorMessage(err)
	} else {
		send <- outboundMessage[any]{Type: msgState, Payload: state}
	}

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- eventMessage(event):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	log.Debug().Str("room_id", roomID).Str("participant", participantID).Msg("ws connected")
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if reply, ok := h.handle(r, roomID, participantID, inbound); ok {
			select {
			case send <- reply:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
	log.Debug().Str("room_id", roomID).Str("participant", participantID).Msg("ws disconnected")
}

// handle runs one client command. Successful start and advance reply through
// the event stream, so only answers, syncs and errors produce a direct reply.
func (h *WSHandler) handle(r *http.Request, roomID, participantID string, inbound inboundMessage) (outboundMessage[any], bool) {
	ctx := r.Context()
	switch inbound.Type {
	case "answer":
		if participantID == "" {
			return errorMessage(fmt.Errorf("answering requires participantId: %w", domain.ErrInvalidInput)), true
		}
		var payload answerRequest
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(fmt.Errorf("invalid answer payload: %w", domain.ErrInvalidInput)), true
		}
		result, err := h.rooms.Submit(ctx, domain.Submission{
			ParticipantID:   participantID,
			QuestionIndex:   payload.QuestionIndex,
			DisplayPosition: payload.Position,
			ElapsedSeconds:  payload.ElapsedSeconds,
		})
		if err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{Type: msgAnswerResult, Payload: result}, true

	case "start":
		if _, err := h.rooms.Start(ctx, roomID); err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{}, false

	case "advance":
		var payload advanceRequest
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return errorMessage(fmt.Errorf("invalid advance payload: %w", domain.ErrInvalidInput)), true
			}
		}
		var err error
		if payload.ExpectedIndex != nil {
			_, err = h.rooms.AdvanceFrom(ctx, roomID, *payload.ExpectedIndex)
		} else {
			_, err = h.rooms.Advance(ctx, roomID)
		}
		if err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{}, false

	case "sync":
		state, err := h.rooms.State(ctx, roomID)
		if err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{Type: msgState, Payload: state}, true
	}
	return errorMessage(fmt.Errorf("unsupported message type: %w", domain.ErrInvalidInput)), true
}

func containsParticipant(participants []domain.Participant, id string) bool {
	for _, p := range participants {
		if p.ID == id {
			return true
		}
	}
	return false
}
