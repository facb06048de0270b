package domain

import "time"

// EventKind tags the two independent change streams of a room.
type EventKind string

const (
	EventRoomChanged        EventKind = "room_changed"
	EventParticipantChanged EventKind = "participant_changed"
)

// EventReason says which mutation produced an event.
type EventReason string

const (
	ReasonCreated  EventReason = "created"
	ReasonStarted  EventReason = "started"
	ReasonAdvanced EventReason = "advanced"
	ReasonFinished EventReason = "finished"
	ReasonJoined   EventReason = "joined"
	ReasonAnswered EventReason = "answered"
	ReasonCleared  EventReason = "cleared"
)

// Event is a room or participant mutation. Exactly one of Room and Participant
// is set, matching Kind. Events carry the entity as of the mutation; consumers
// must still refetch full state because delivery is unordered across kinds.
type Event struct {
	Kind        EventKind    `json:"kind"`
	Reason      EventReason  `json:"reason"`
	RoomID      string       `json:"roomId"`
	Room        *Room        `json:"room,omitempty"`
	Participant *Participant `json:"participant,omitempty"`
	At          time.Time    `json:"at"`
}

// RoomChanged builds a room-level event.
func RoomChanged(room Room, reason EventReason, at time.Time) Event {
	return Event{Kind: EventRoomChanged, Reason: reason, RoomID: room.ID, Room: &room, At: at}
}

// ParticipantChanged builds a participant-level event.
func ParticipantChanged(p Participant, reason EventReason, at time.Time) Event {
	return Event{Kind: EventParticipantChanged, Reason: reason, RoomID: p.RoomID, Participant: &p, At: at}
}
