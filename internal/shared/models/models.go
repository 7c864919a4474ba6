// internal/shared/models/models.go
package models

import (
	"encoding/json"
	"time"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
)

// Room représente une salle persistée
type Room struct {
	ID            string                   `json:"id"`
	Code          string                   `json:"code"`
	OwnerID       string                   `json:"owner_id"`
	Status        constants.RoomStatus     `json:"status"`
	Visibility    constants.RoomVisibility `json:"visibility"`
	MaxPlayers    int                      `json:"max_players"`
	RulesetID     string                   `json:"ruleset_id"`
	RulesetConfig json.RawMessage          `json:"ruleset_config,omitempty"`
	Version       int64                    `json:"version"`
	CreatedAt     time.Time                `json:"created_at"`
	StartedAt     *time.Time               `json:"started_at,omitempty"`
	ClosedAt      *time.Time               `json:"closed_at,omitempty"`
}

// Seat représente un siège d'une salle
type Seat struct {
	RoomID      string                `json:"room_id"`
	SeatIndex   int                   `json:"seat_index"`
	UserID      *string               `json:"user_id"`
	DisplayName *string               `json:"display_name"`
	IsHost      bool                  `json:"is_host"`
	Ready       constants.ReadyStatus `json:"ready"`
	Connected   bool                  `json:"connected"`
	Status      constants.SeatStatus  `json:"status"`
	JoinedAt    *time.Time            `json:"joined_at,omitempty"`
	LeftAt      *time.Time            `json:"left_at,omitempty"`
}

// RoomSnapshot décrit l'état complet d'une salle pour un redraw client
type RoomSnapshot struct {
	RoomID     string                   `json:"room_id"`
	Code       string                   `json:"code"`
	Status     constants.RoomStatus     `json:"status"`
	Visibility constants.RoomVisibility `json:"visibility"`
	RulesetID  string                   `json:"ruleset_id"`
	MaxPlayers int                      `json:"max_players"`
	Seats      []SeatSnapshot           `json:"seats"`
	Version    int64                    `json:"version"`
}

// SeatSnapshot décrit un siège dans un snapshot
type SeatSnapshot struct {
	SeatIndex   int                   `json:"seat_index"`
	UserID      *string               `json:"user_id"`
	DisplayName *string               `json:"display_name"`
	Ready       constants.ReadyStatus `json:"ready"`
	Connected   bool                  `json:"connected"`
	IsHost      bool                  `json:"is_host"`
}

// SeatFor retourne le siège occupé par un utilisateur, ou nil
func (s *RoomSnapshot) SeatFor(userID string) *SeatSnapshot {
	for i := range s.Seats {
		if s.Seats[i].UserID != nil && *s.Seats[i].UserID == userID {
			return &s.Seats[i]
		}
	}
	return nil
}

// OccupiedCount retourne le nombre de sièges occupés
func (s *RoomSnapshot) OccupiedCount() int {
	n := 0
	for i := range s.Seats {
		if s.Seats[i].UserID != nil {
			n++
		}
	}
	return n
}

// IdempotencyRecord représente le reçu persisté d'une requête client
type IdempotencyRecord struct {
	RequestID string                      `json:"request_id"`
	UserID    string                      `json:"user_id"`
	Status    constants.IdempotencyStatus `json:"status"`
	Response  json.RawMessage             `json:"response_payload,omitempty"`
	CreatedAt time.Time                   `json:"created_at"`
}

// CreateRoomResult est la réponse canonique de find_or_create
type CreateRoomResult struct {
	RoomID    string `json:"room_id"`
	Code      string `json:"code"`
	SeatIndex int    `json:"seat_index"`
	IsHost    bool   `json:"is_host"`
	Cached    bool   `json:"cached"`
}

// Frame est l'enveloppe de tout message échangé sur le WebSocket
type Frame struct {
	Type      constants.MessageType `json:"type"`
	RequestID string                `json:"request_id,omitempty"`
	Payload   json.RawMessage       `json:"payload,omitempty"`
}

// NewFrame construit une frame avec un payload encodé en JSON.
// Un payload non encodable est un bug de programmation, pas une erreur réseau.
func NewFrame(t constants.MessageType, payload interface{}) *Frame {
	f := &Frame{Type: t}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}
		f.Payload = data
	}
	return f
}

// WithRequestID renvoie la frame avec le request_id écho
func (f *Frame) WithRequestID(id string) *Frame {
	f.RequestID = id
	return f
}

// Payloads client -> serveur

type AuthenticatePayload struct {
	Token    string `json:"token"`
	RoomCode string `json:"room_code"`
}

type GameActionPayload struct {
	Kind     string   `json:"kind"` // roll | move | capture_choice | start_game
	TokenIDs []string `json:"token_ids,omitempty"`
	Die      int      `json:"die,omitempty"`
	Target   string   `json:"target,omitempty"` // seat du groupe capturé, format "seat:N"
}

// Payloads serveur -> client

type AuthenticatedPayload struct {
	ConnectionID string        `json:"connection_id"`
	UserID       string        `json:"user_id"`
	ServerID     string        `json:"server_id"`
	Room         *RoomSnapshot `json:"room"`
}

type PongPayload struct {
	ServerTime time.Time `json:"server_time"`
}

type RoomUpdatedPayload struct {
	Room *RoomSnapshot `json:"room"`
}

type RoomClosedPayload struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
