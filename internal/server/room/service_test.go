// internal/server/room/service_test.go
package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
	"github.com/viksharma04/ludo-stacked-backend/pkg/database"
)

// fakeRepo implémente Repository en mémoire, sans verrou optimiste :
// les tests du service portent sur l'orchestration, pas la persistance
type fakeRepo struct {
	room  *models.Room
	seats []models.Seat
}

func newFakeRepo() *fakeRepo {
	userA := "user-a"
	now := time.Now()
	r := &fakeRepo{
		room: &models.Room{
			ID:         "room-1",
			Code:       "AB12CD",
			OwnerID:    userA,
			Status:     constants.RoomOpen,
			Visibility: constants.VisibilityPrivate,
			MaxPlayers: 4,
			RulesetID:  "classic_stacked",
			Version:    1,
			CreatedAt:  now,
		},
	}
	r.seats = make([]models.Seat, 4)
	for i := range r.seats {
		r.seats[i] = models.Seat{RoomID: "room-1", SeatIndex: i, Ready: constants.NotReady, Status: constants.SeatEmpty}
	}
	r.seats[0].UserID = &userA
	r.seats[0].IsHost = true
	r.seats[0].Status = constants.SeatOccupied
	return r
}

func (r *fakeRepo) snapshot() *models.RoomSnapshot {
	snap := &models.RoomSnapshot{
		RoomID:     r.room.ID,
		Code:       r.room.Code,
		Status:     r.room.Status,
		Visibility: r.room.Visibility,
		RulesetID:  r.room.RulesetID,
		MaxPlayers: r.room.MaxPlayers,
		Version:    r.room.Version,
	}
	for _, s := range r.seats {
		snap.Seats = append(snap.Seats, models.SeatSnapshot{
			SeatIndex: s.SeatIndex, UserID: s.UserID, Ready: s.Ready,
			Connected: s.Connected, IsHost: s.IsHost,
		})
	}
	return snap
}

func (r *fakeRepo) seatOf(userID string) *models.Seat {
	for i := range r.seats {
		if r.seats[i].UserID != nil && *r.seats[i].UserID == userID {
			return &r.seats[i]
		}
	}
	return nil
}

func (r *fakeRepo) FindOrCreate(ctx context.Context, userID, requestID string, maxPlayers int, visibility constants.RoomVisibility, rulesetID string, rulesetConfig json.RawMessage) (*models.CreateRoomResult, error) {
	return &models.CreateRoomResult{RoomID: r.room.ID, Code: r.room.Code, SeatIndex: 0, IsHost: true}, nil
}

func (r *fakeRepo) ResolveByCode(ctx context.Context, code string) (*models.Room, error) {
	if code != r.room.Code {
		return nil, database.ErrRoomNotFound
	}
	return r.room, nil
}

func (r *fakeRepo) JoinSeat(ctx context.Context, roomID, userID string) (*database.JoinResult, error) {
	if seat := r.seatOf(userID); seat != nil {
		return &database.JoinResult{SeatIndex: seat.SeatIndex, Snapshot: r.snapshot()}, nil
	}
	if r.room.Status == constants.RoomInGame {
		return nil, database.ErrRoomInGame
	}
	for i := range r.seats {
		if r.seats[i].UserID == nil {
			uid := userID
			r.seats[i].UserID = &uid
			r.seats[i].Status = constants.SeatOccupied
			r.room.Version++
			return &database.JoinResult{SeatIndex: i, Snapshot: r.snapshot()}, nil
		}
	}
	return nil, database.ErrRoomFull
}

func (r *fakeRepo) ToggleReady(ctx context.Context, roomID, userID string) (*models.RoomSnapshot, error) {
	seat := r.seatOf(userID)
	if seat == nil {
		return nil, database.ErrNotInRoom
	}
	if seat.Ready == constants.Ready {
		seat.Ready = constants.NotReady
	} else {
		seat.Ready = constants.Ready
	}
	occupied, ready := 0, 0
	for _, s := range r.seats {
		if s.UserID != nil {
			occupied++
			if s.Ready == constants.Ready {
				ready++
			}
		}
	}
	if occupied >= 2 && ready == occupied {
		r.room.Status = constants.RoomReadyToStart
	} else if r.room.Status == constants.RoomReadyToStart {
		r.room.Status = constants.RoomOpen
	}
	r.room.Version++
	return r.snapshot(), nil
}

func (r *fakeRepo) LeaveSeat(ctx context.Context, roomID, userID string) (*database.LeaveResult, error) {
	seat := r.seatOf(userID)
	if seat == nil {
		return nil, database.ErrNotInRoom
	}
	closed := seat.IsHost && r.room.Status != constants.RoomInGame
	seat.UserID = nil
	seat.IsHost = false
	seat.Status = constants.SeatEmpty
	if closed {
		r.room.Status = constants.RoomClosed
	}
	r.room.Version++
	return &database.LeaveResult{Snapshot: r.snapshot(), RoomClosed: closed}, nil
}

func (r *fakeRepo) SetSeatConnected(ctx context.Context, roomID, userID string, connected bool) (*models.RoomSnapshot, error) {
	seat := r.seatOf(userID)
	if seat == nil {
		return nil, database.ErrNotInRoom
	}
	seat.Connected = connected
	if !connected {
		seat.Ready = constants.NotReady
	}
	r.room.Version++
	return r.snapshot(), nil
}

func (r *fakeRepo) MarkInGame(ctx context.Context, roomID string) (*models.RoomSnapshot, error) {
	if r.room.Status != constants.RoomReadyToStart {
		return nil, database.ErrBadTransition
	}
	r.room.Status = constants.RoomInGame
	now := time.Now()
	r.room.StartedAt = &now
	r.room.Version++
	return r.snapshot(), nil
}

func (r *fakeRepo) CloseRoom(ctx context.Context, roomID string) error {
	r.room.Status = constants.RoomClosed
	now := time.Now()
	r.room.ClosedAt = &now
	r.room.Version++
	return nil
}

func (r *fakeRepo) GetSnapshot(ctx context.Context, roomID string) (*models.RoomSnapshot, error) {
	if roomID != r.room.ID {
		return nil, database.ErrRoomNotFound
	}
	return r.snapshot(), nil
}

// recordingSender capture les diffusions du service
type recordingSender struct {
	frames chan *models.Frame
}

func newRecordingSender() *recordingSender {
	return &recordingSender{frames: make(chan *models.Frame, 32)}
}

func (r *recordingSender) SendToRoom(roomID string, f *models.Frame, except string) {
	r.frames <- f
}

func (r *recordingSender) SendToConnection(connID string, f *models.Frame) {
	r.frames <- f
}

func (r *recordingSender) next(t *testing.T) *models.Frame {
	t.Helper()
	select {
	case f := <-r.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame broadcast")
		return nil
	}
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *recordingSender) {
	t.Helper()
	repo := newFakeRepo()
	sender := newRecordingSender()
	svc := NewService(repo, nil, sender, zap.NewNop())
	t.Cleanup(svc.Shutdown)
	return svc, repo, sender
}

func TestJoinBroadcastsUpdate(t *testing.T) {
	svc, repo, sender := newTestService(t)
	ctx := context.Background()

	result, err := svc.Join(ctx, "room-1", "user-b", "conn-b")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SeatIndex)

	f := sender.next(t)
	assert.Equal(t, constants.MsgRoomUpdated, f.Type)
	assert.Equal(t, int64(2), repo.room.Version)
}

func TestJoinIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Join(ctx, "room-1", "user-b", "")
	require.NoError(t, err)
	second, err := svc.Join(ctx, "room-1", "user-b", "")
	require.NoError(t, err)
	assert.Equal(t, first.SeatIndex, second.SeatIndex)
}

func TestReadyFlowReachesReadyToStart(t *testing.T) {
	svc, repo, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Join(ctx, "room-1", "user-b", "")
	require.NoError(t, err)
	sender.next(t)

	_, err = svc.ToggleReady(ctx, "room-1", "user-a", "")
	require.NoError(t, err)
	sender.next(t)
	assert.Equal(t, constants.RoomOpen, repo.room.Status)

	snap, err := svc.ToggleReady(ctx, "room-1", "user-b", "")
	require.NoError(t, err)
	sender.next(t)
	assert.Equal(t, constants.RoomReadyToStart, snap.Status)

	// Revenir en arrière rouvre la salle
	snap, err = svc.ToggleReady(ctx, "room-1", "user-a", "")
	require.NoError(t, err)
	assert.Equal(t, constants.RoomOpen, snap.Status)
}

func TestStartGameRequiresHost(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Join(ctx, "room-1", "user-b", "")
	require.NoError(t, err)
	sender.next(t)

	_, err = svc.StartGame(ctx, "room-1", "user-b")
	assert.Error(t, err)
}

func TestStartGameCreatesSession(t *testing.T) {
	svc, repo, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Join(ctx, "room-1", "user-b", "")
	require.NoError(t, err)
	_, err = svc.ToggleReady(ctx, "room-1", "user-a", "")
	require.NoError(t, err)
	_, err = svc.ToggleReady(ctx, "room-1", "user-b", "")
	require.NoError(t, err)

	snap, err := svc.StartGame(ctx, "room-1", "user-a")
	require.NoError(t, err)
	assert.Equal(t, constants.RoomInGame, snap.Status)
	assert.NotNil(t, repo.room.StartedAt)

	_, ok := svc.Session("room-1")
	assert.True(t, ok)

	// game_started arrive parmi les frames diffusées
	seen := map[constants.MessageType]bool{}
	for i := 0; i < 5; i++ {
		seen[sender.next(t).Type] = true
	}
	assert.True(t, seen[constants.MsgGameStarted])
	assert.True(t, seen[constants.MsgGameEvents])
}

func TestHostLeaveClosesRoom(t *testing.T) {
	svc, repo, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Join(ctx, "room-1", "user-b", "")
	require.NoError(t, err)
	sender.next(t)

	result, err := svc.Leave(ctx, "room-1", "user-a", "")
	require.NoError(t, err)
	assert.True(t, result.RoomClosed)
	assert.Equal(t, constants.RoomClosed, repo.room.Status)

	f := sender.next(t)
	assert.Equal(t, constants.MsgRoomClosed, f.Type)

	var payload models.RoomClosedPayload
	require.NoError(t, json.Unmarshal(f.Payload, &payload))
	assert.Equal(t, "host_left", payload.Reason)
}

func TestHostDisconnectInLobbyClosesRoom(t *testing.T) {
	svc, repo, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Join(ctx, "room-1", "user-b", "")
	require.NoError(t, err)
	sender.next(t)

	svc.HandleDisconnect(ctx, "room-1", "user-a")
	assert.Equal(t, constants.RoomClosed, repo.room.Status)
	assert.Equal(t, constants.MsgRoomClosed, sender.next(t).Type)
}

func TestMemberDisconnectMarksSeat(t *testing.T) {
	svc, repo, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Join(ctx, "room-1", "user-b", "")
	require.NoError(t, err)
	sender.next(t)
	_, err = svc.HandleConnect(ctx, "room-1", "user-b", "")
	require.NoError(t, err)
	sender.next(t)

	svc.HandleDisconnect(ctx, "room-1", "user-b")
	assert.Equal(t, constants.MsgRoomUpdated, sender.next(t).Type)

	seat := repo.seatOf("user-b")
	require.NotNil(t, seat)
	assert.False(t, seat.Connected)
	assert.Equal(t, constants.NotReady, seat.Ready)
	assert.NotEqual(t, constants.RoomClosed, repo.room.Status)
}
