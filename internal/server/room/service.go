// internal/server/room/service.go
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/viksharma04/ludo-stacked-backend/internal/cache"
	"github.com/viksharma04/ludo-stacked-backend/internal/server/game"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
	"github.com/viksharma04/ludo-stacked-backend/pkg/database"
)

// Repository est le contrat de persistance des salles
type Repository interface {
	FindOrCreate(ctx context.Context, userID, requestID string, maxPlayers int, visibility constants.RoomVisibility, rulesetID string, rulesetConfig json.RawMessage) (*models.CreateRoomResult, error)
	ResolveByCode(ctx context.Context, code string) (*models.Room, error)
	JoinSeat(ctx context.Context, roomID, userID string) (*database.JoinResult, error)
	ToggleReady(ctx context.Context, roomID, userID string) (*models.RoomSnapshot, error)
	LeaveSeat(ctx context.Context, roomID, userID string) (*database.LeaveResult, error)
	SetSeatConnected(ctx context.Context, roomID, userID string, connected bool) (*models.RoomSnapshot, error)
	MarkInGame(ctx context.Context, roomID string) (*models.RoomSnapshot, error)
	CloseRoom(ctx context.Context, roomID string) error
	GetSnapshot(ctx context.Context, roomID string) (*models.RoomSnapshot, error)
}

// Broadcaster est le contrat de diffusion vers les connexions
type Broadcaster interface {
	SendToRoom(roomID string, f *models.Frame, except string)
	SendToConnection(connID string, f *models.Frame)
}

// Service implémente les règles de cycle de vie des salles au-dessus
// du repository, du cache et du gestionnaire de connexions. Le
// repository écrit d'abord; le cache est mis à jour au mieux; la
// diffusion part en dernier.
type Service struct {
	repo    Repository
	cache   *cache.Client
	sender  Broadcaster
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*game.Session
}

// NewService crée le service de salles
func NewService(repo Repository, c *cache.Client, sender Broadcaster, log *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    c,
		sender:   sender,
		log:      log,
		sessions: make(map[string]*game.Session),
	}
}

// FindOrCreate crée ou retrouve la salle de l'utilisateur
func (s *Service) FindOrCreate(ctx context.Context, userID, requestID string, maxPlayers int, visibility constants.RoomVisibility, rulesetID string, rulesetConfig json.RawMessage) (*models.CreateRoomResult, error) {
	result, err := s.repo.FindOrCreate(ctx, userID, requestID, maxPlayers, visibility, rulesetID, rulesetConfig)
	if err != nil {
		return nil, err
	}
	if snap, err := s.repo.GetSnapshot(ctx, result.RoomID); err == nil {
		s.updateCache(ctx, snap)
	}
	return result, nil
}

// ResolveByCode retrouve une salle par son code
func (s *Service) ResolveByCode(ctx context.Context, code string) (*models.Room, error) {
	return s.repo.ResolveByCode(ctx, code)
}

// Snapshot retourne le snapshot d'une salle
func (s *Service) Snapshot(ctx context.Context, roomID string) (*models.RoomSnapshot, error) {
	return s.repo.GetSnapshot(ctx, roomID)
}

// Join assoit un utilisateur et notifie la salle
func (s *Service) Join(ctx context.Context, roomID, userID, exceptConn string) (*database.JoinResult, error) {
	result, err := s.repo.JoinSeat(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	s.updateCache(ctx, result.Snapshot)
	s.broadcastUpdate(roomID, result.Snapshot, exceptConn)
	return result, nil
}

// ToggleReady bascule le ready du siège de l'utilisateur
func (s *Service) ToggleReady(ctx context.Context, roomID, userID, exceptConn string) (*models.RoomSnapshot, error) {
	snap, err := s.repo.ToggleReady(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	s.updateCache(ctx, snap)
	s.broadcastUpdate(roomID, snap, exceptConn)
	return snap, nil
}

// Leave retire un utilisateur de sa salle. Le départ de l'hôte avant
// le début de partie ferme la salle pour tout le monde.
func (s *Service) Leave(ctx context.Context, roomID, userID, exceptConn string) (*database.LeaveResult, error) {
	result, err := s.repo.LeaveSeat(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if result.RoomClosed {
		s.closeRoom(ctx, roomID, "host_left")
		return result, nil
	}
	s.updateCache(ctx, result.Snapshot)
	s.broadcastUpdate(roomID, result.Snapshot, exceptConn)
	return result, nil
}

// StartGame fait passer la salle en jeu et démarre la session.
// Seul l'hôte peut démarrer, et tous les sièges occupés doivent être prêts.
func (s *Service) StartGame(ctx context.Context, roomID, userID string) (*models.RoomSnapshot, error) {
	snap, err := s.repo.GetSnapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}
	seat := snap.SeatFor(userID)
	if seat == nil {
		return nil, database.ErrNotInRoom
	}
	if !seat.IsHost {
		return nil, fmt.Errorf("%s: only the host can start", constants.ErrNotHost)
	}

	snap, err = s.repo.MarkInGame(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s.updateCache(ctx, snap)

	seats := make([]game.SeatAssignment, 0, len(snap.Seats))
	for _, st := range snap.Seats {
		if st.UserID != nil {
			seats = append(seats, game.SeatAssignment{Seat: st.SeatIndex, UserID: *st.UserID})
		}
	}

	s.mu.Lock()
	session := game.NewSession(roomID, seats, game.DefaultRuleset(),
		time.Now().UnixNano(), s.sender, s.log)
	s.sessions[roomID] = session
	s.mu.Unlock()

	s.sender.SendToRoom(roomID, models.NewFrame(constants.MsgGameStarted,
		models.RoomUpdatedPayload{Room: snap}), "")
	session.Start("")

	return snap, nil
}

// Session retourne la session de jeu d'une salle
func (s *Service) Session(roomID string) (*game.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[roomID]
	return session, ok
}

// HandleConnect marque le siège connecté et notifie la salle
func (s *Service) HandleConnect(ctx context.Context, roomID, userID, exceptConn string) (*models.RoomSnapshot, error) {
	snap, err := s.repo.SetSeatConnected(ctx, roomID, userID, true)
	if err != nil {
		return nil, err
	}
	s.updateCache(ctx, snap)
	s.broadcastUpdate(roomID, snap, exceptConn)
	return snap, nil
}

// HandleDisconnect traite la perte d'une connexion d'un utilisateur à
// sa salle, sans regarder s'il lui en reste d'autres. L'hôte qui
// décroche en lobby ferme la salle.
func (s *Service) HandleDisconnect(ctx context.Context, roomID, userID string) {
	snap, err := s.repo.GetSnapshot(ctx, roomID)
	if err != nil {
		s.log.Warn("disconnect cleanup failed", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	seat := snap.SeatFor(userID)
	if seat == nil {
		return
	}

	inLobby := snap.Status == constants.RoomOpen || snap.Status == constants.RoomReadyToStart
	if seat.IsHost && inLobby {
		if err := s.repo.CloseRoom(ctx, roomID); err != nil {
			s.log.Error("room close failed", zap.String("room_id", roomID), zap.Error(err))
			return
		}
		s.closeRoom(ctx, roomID, "host_left")
		return
	}

	snap, err = s.repo.SetSeatConnected(ctx, roomID, userID, false)
	if err != nil {
		s.log.Warn("seat disconnect update failed", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	s.updateCache(ctx, snap)
	s.broadcastUpdate(roomID, snap, "")
}

// Shutdown ferme toutes les sessions de jeu
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		session.Close()
		delete(s.sessions, id)
	}
}

// closeRoom diffuse la fermeture et nettoie cache et session
func (s *Service) closeRoom(ctx context.Context, roomID, reason string) {
	s.mu.Lock()
	if session, ok := s.sessions[roomID]; ok {
		session.Close()
		delete(s.sessions, roomID)
	}
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.RoomMetaKey(roomID), cache.RoomSeatsKey(roomID)); err != nil {
			s.log.Warn("cache cleanup failed", zap.String("room_id", roomID), zap.Error(err))
		}
	}
	s.sender.SendToRoom(roomID, models.NewFrame(constants.MsgRoomClosed,
		models.RoomClosedPayload{RoomID: roomID, Reason: reason}), "")
}

// broadcastUpdate diffuse un room_updated aux membres de la salle
func (s *Service) broadcastUpdate(roomID string, snap *models.RoomSnapshot, except string) {
	s.sender.SendToRoom(roomID, models.NewFrame(constants.MsgRoomUpdated,
		models.RoomUpdatedPayload{Room: snap}), except)
}

// updateCache pousse les hashes dénormalisés de la salle, au mieux
func (s *Service) updateCache(ctx context.Context, snap *models.RoomSnapshot) {
	if snap == nil || s.cache == nil {
		return
	}
	meta := map[string]string{
		"code":        snap.Code,
		"status":      string(snap.Status),
		"visibility":  string(snap.Visibility),
		"ruleset_id":  snap.RulesetID,
		"max_players": fmt.Sprintf("%d", snap.MaxPlayers),
		"version":     fmt.Sprintf("%d", snap.Version),
	}
	if err := s.cache.HSet(ctx, cache.RoomMetaKey(snap.RoomID), meta); err != nil {
		s.log.Warn("room meta cache write failed", zap.String("room_id", snap.RoomID), zap.Error(err))
	}

	seats := make(map[string]string, len(snap.Seats))
	for _, seat := range snap.Seats {
		data, err := json.Marshal(seat)
		if err != nil {
			continue
		}
		seats[fmt.Sprintf("seat:%d", seat.SeatIndex)] = string(data)
	}
	if err := s.cache.HSet(ctx, cache.RoomSeatsKey(snap.RoomID), seats); err != nil {
		s.log.Warn("room seats cache write failed", zap.String("room_id", snap.RoomID), zap.Error(err))
	}
}
