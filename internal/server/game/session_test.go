// internal/server/game/session_test.go
package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
)

// fakeSender capture les frames émises par la session
type fakeSender struct {
	frames chan *models.Frame
}

func newFakeSender() *fakeSender {
	return &fakeSender{frames: make(chan *models.Frame, 32)}
}

func (f *fakeSender) SendToRoom(roomID string, fr *models.Frame, except string) {
	f.frames <- fr
}

func (f *fakeSender) SendToConnection(connID string, fr *models.Frame) {
	f.frames <- fr
}

func (f *fakeSender) next(t *testing.T) *models.Frame {
	t.Helper()
	select {
	case fr := <-f.frames:
		return fr
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func testSeats() []SeatAssignment {
	return []SeatAssignment{
		{Seat: 0, UserID: "user-a"},
		{Seat: 1, UserID: "user-b"},
	}
}

func TestSessionBroadcastsEvents(t *testing.T) {
	sender := newFakeSender()
	session := NewSession("room-1", testSeats(), DefaultRuleset(), 7, sender, zap.NewNop())
	defer session.Close()

	require.True(t, session.Start("conn-1"))

	frame := sender.next(t)
	assert.Equal(t, constants.MsgGameEvents, frame.Type)

	var payload struct {
		RoomID string  `json:"room_id"`
		Events []Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.Equal(t, "room-1", payload.RoomID)
	require.NotEmpty(t, payload.Events)
	assert.Equal(t, EvGameStarted, payload.Events[0].Type)
}

func TestSessionRejectsInvalidAction(t *testing.T) {
	sender := newFakeSender()
	session := NewSession("room-1", testSeats(), DefaultRuleset(), 7, sender, zap.NewNop())
	defer session.Close()

	require.True(t, session.Start("conn-1"))
	sender.next(t) // game_started

	// Le siège 1 joue hors tour
	require.True(t, session.Submit("conn-2", "req-1", Action{Kind: ActionRoll, Seat: 1}))

	frame := sender.next(t)
	assert.Equal(t, constants.MsgGameError, frame.Type)
	assert.Equal(t, "req-1", frame.RequestID)

	var payload models.ErrorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.Equal(t, constants.ErrIllegalMove, payload.Code)
}

func TestSessionSerializesActions(t *testing.T) {
	sender := newFakeSender()
	session := NewSession("room-1", testSeats(), DefaultRuleset(), 7, sender, zap.NewNop())
	defer session.Close()

	require.True(t, session.Start("conn-1"))
	sender.next(t)

	// Un lancer soumis passe par la boucle de la salle; l'instantané
	// demandé ensuite reflète l'état après son traitement
	require.True(t, session.Submit("conn-1", "", Action{Kind: ActionRoll, Seat: 0}))

	frame := sender.next(t)
	assert.Equal(t, constants.MsgGameEvents, frame.Type)

	snap := session.Snapshot()
	require.NotNil(t, snap)
	assert.NotEqual(t, PhaseCreated, snap.Phase)
}

func TestSessionSnapshotAfterClose(t *testing.T) {
	sender := newFakeSender()
	session := NewSession("room-1", testSeats(), DefaultRuleset(), 7, sender, zap.NewNop())
	session.Close()
	assert.Nil(t, session.Snapshot())
	assert.False(t, session.Submit("conn-1", "", Action{Kind: ActionRoll, Seat: 0}))
}
