// internal/server/game/session.go
package game

import (
	"errors"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
)

// Broadcaster fan-out les frames d'une salle
type Broadcaster interface {
	SendToRoom(roomID string, f *models.Frame, except string)
	SendToConnection(connID string, f *models.Frame)
}

// Session détient l'état vivant d'une partie pour une salle et
// sérialise le traitement des actions (FIFO, un consommateur unique).
// Rien n'est persisté : la partie vit en mémoire.
type Session struct {
	RoomID string

	state     *State
	rng       *rand.Rand
	actions   chan sessionAction
	snapshots chan chan *State
	done      chan struct{}
	closed    sync.Once
	sender    Broadcaster
	log       *zap.Logger
}

type sessionAction struct {
	connID    string
	requestID string
	action    Action
}

// NewSession crée la session d'une salle et démarre sa boucle
func NewSession(roomID string, seats []SeatAssignment, ruleset Ruleset, seed int64, sender Broadcaster, log *zap.Logger) *Session {
	s := &Session{
		RoomID:  roomID,
		state:     NewState(seats, ruleset),
		rng:       rand.New(rand.NewSource(seed)),
		actions:   make(chan sessionAction, constants.RoomQueueSize),
		snapshots: make(chan chan *State),
		done:      make(chan struct{}),
		sender:    sender,
		log:       log,
	}
	go s.run()
	return s
}

// Submit met une action en file pour la salle. Retourne false si la
// session est fermée ou la file saturée.
func (s *Session) Submit(connID, requestID string, a Action) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.actions <- sessionAction{connID: connID, requestID: requestID, action: a}:
		return true
	default:
		s.log.Warn("room action queue full", zap.String("room_id", s.RoomID))
		return false
	}
}

// Start lance la partie et diffuse les événements initiaux
func (s *Session) Start(connID string) bool {
	return s.Submit(connID, "", Action{Kind: ActionStartGame})
}

// Snapshot retourne une copie de l'état courant pour un redraw complet.
// Destinée aux reconnexions; la copie est sûre à sérialiser hors boucle.
func (s *Session) Snapshot() *State {
	reply := make(chan *State, 1)
	select {
	case <-s.done:
		return nil
	case s.snapshots <- reply:
		return <-reply
	}
}

// Close arrête la boucle de la session
func (s *Session) Close() {
	s.closed.Do(func() {
		close(s.done)
	})
}

// Finished indique si la partie est terminée
func (s *Session) Finished() bool {
	snap := s.Snapshot()
	return snap == nil || snap.Phase == PhaseFinished
}

// run est la boucle série de la salle : une action à la fois
func (s *Session) run() {
	for {
		select {
		case <-s.done:
			return
		case reply := <-s.snapshots:
			reply <- s.state.Clone()
		case sa := <-s.actions:
			s.process(sa)
		}
	}
}

// process applique une action et traduit le résultat en trafic réseau
func (s *Session) process(sa sessionAction) {
	next, events, err := ProcessAction(s.state, sa.action, s.rng)
	if err != nil {
		code := constants.ErrIllegalMove
		if errors.Is(err, ErrBadPhase) {
			code = constants.ErrBadPhase
		}
		if sa.connID != "" {
			f := models.NewFrame(constants.MsgGameError, models.ErrorPayload{
				Code:    code,
				Message: err.Error(),
			}).WithRequestID(sa.requestID)
			s.sender.SendToConnection(sa.connID, f)
		}
		return
	}

	s.state = next
	f := models.NewFrame(constants.MsgGameEvents, map[string]interface{}{
		"room_id": s.RoomID,
		"events":  events,
	})
	// Les événements vont à tous les membres, émetteur compris
	s.sender.SendToRoom(s.RoomID, f, "")

	if s.state.Phase == PhaseFinished {
		s.log.Info("game finished", zap.String("room_id", s.RoomID))
	}
}
