// internal/server/ws/endpoint.go
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/viksharma04/ludo-stacked-backend/internal/auth"
	"github.com/viksharma04/ludo-stacked-backend/internal/cache"
	"github.com/viksharma04/ludo-stacked-backend/internal/config"
	"github.com/viksharma04/ludo-stacked-backend/internal/server/connection"
	"github.com/viksharma04/ludo-stacked-backend/internal/server/dispatch"
	"github.com/viksharma04/ludo-stacked-backend/internal/server/room"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/protocol"
	"github.com/viksharma04/ludo-stacked-backend/pkg/database"
)

// TokenValidator vérifie un jeton porteur
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.Claims, error)
}

// Endpoint accepte les sockets, mène le handshake d'authentification
// et alimente le dispatcher
type Endpoint struct {
	cfg        *config.Config
	validator  TokenValidator
	presence   *cache.Presence
	manager    *connection.Manager
	rooms      *room.Service
	dispatcher *dispatch.Dispatcher
	log        *zap.Logger
	upgrader   websocket.Upgrader
}

// NewEndpoint crée l'endpoint WebSocket et enregistre les handlers
func NewEndpoint(cfg *config.Config, validator TokenValidator, presence *cache.Presence, manager *connection.Manager, rooms *room.Service, log *zap.Logger) *Endpoint {
	ep := &Endpoint{
		cfg:        cfg,
		validator:  validator,
		presence:   presence,
		manager:    manager,
		rooms:      rooms,
		dispatcher: dispatch.NewDispatcher(log),
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.OriginAllowed(r.Header.Get("Origin"))
			},
		},
	}
	registerHandlers(ep.dispatcher, rooms)
	manager.SetDropHandler(ep.onDrop)
	return ep
}

// Handler retourne le handler HTTP de l'endpoint
func (ep *Endpoint) Handler() http.HandlerFunc {
	return ep.handleWebSocket
}

// handleWebSocket accepte un socket et lance sa boucle de lecture
func (ep *Endpoint) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := ep.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ep.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := ep.manager.Register(ws)
	ep.manager.SendToConnection(conn.ID, models.NewFrame(constants.MsgConnected,
		map[string]string{"connection_id": conn.ID}))

	// Le timer d'authentification ferme le socket au code 4005
	authTimer := time.AfterFunc(ep.cfg.Timeouts.Auth, func() {
		if c, ok := ep.manager.Get(conn.ID); ok && !c.Authenticated {
			ep.log.Info("auth timeout", zap.String("connection_id", conn.ID))
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(constants.CloseAuthTimeout, "authentication timeout"),
				time.Now().Add(time.Second))
			ep.manager.Disconnect(conn.ID)
		}
	})

	go ep.readLoop(conn, authTimer)
}

// readLoop lit les frames d'une connexion jusqu'à sa fermeture
func (ep *Endpoint) readLoop(conn *connection.Connection, authTimer *time.Timer) {
	ws := conn.Socket()
	defer func() {
		authTimer.Stop()
		ep.cleanup(conn)
	}()

	ws.SetReadDeadline(time.Now().Add(ep.cfg.Timeouts.Connection))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(ep.cfg.Timeouts.Connection))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ep.log.Debug("websocket read error", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}
		conn.Touch()
		ws.SetReadDeadline(time.Now().Add(ep.cfg.Timeouts.Connection))
		ep.handleFrame(conn, authTimer, data)
	}
}

// handleFrame décode, valide et route une frame entrante
func (ep *Endpoint) handleFrame(conn *connection.Connection, authTimer *time.Timer, data []byte) {
	ctx := context.Background()

	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		ep.manager.SendToConnection(conn.ID, dispatch.ErrorFrame(nil,
			constants.ErrInvalidMessage, "malformed frame"))
		return
	}
	if err := protocol.ValidateFrame(frame); err != nil {
		ep.manager.SendToConnection(conn.ID, dispatch.ErrorFrame(frame,
			constants.ErrValidation, err.Error()))
		return
	}

	if frame.Type == constants.MsgAuthenticate {
		ep.handleAuthenticate(ctx, conn, authTimer, frame)
		return
	}

	current, ok := ep.manager.Get(conn.ID)
	if !ok {
		return
	}
	hc := &dispatch.HandlerContext{
		Ctx:          ctx,
		ConnectionID: conn.ID,
		Msg:          frame,
		Manager:      ep.manager,
		Log:          ep.log,
	}
	if current.Authenticated {
		hc.UserID = current.UserID
		hc.RoomID = current.RoomID
	}
	ep.dispatcher.Dispatch(hc)
}

// handleAuthenticate mène le handshake : jeton, code de salle, siège.
// Un échec répond par une erreur et laisse le socket ouvert pour une
// nouvelle tentative jusqu'au timeout.
func (ep *Endpoint) handleAuthenticate(ctx context.Context, conn *connection.Connection, authTimer *time.Timer, frame *models.Frame) {
	if c, ok := ep.manager.Get(conn.ID); ok && c.Authenticated {
		ep.manager.SendToConnection(conn.ID, dispatch.ErrorFrame(frame,
			constants.ErrValidation, "already authenticated"))
		return
	}

	var p models.AuthenticatePayload
	if err := protocol.ExtractPayload(frame, &p); err != nil {
		ep.manager.SendToConnection(conn.ID, dispatch.ErrorFrame(frame,
			constants.ErrValidation, err.Error()))
		return
	}

	claims, err := ep.validator.Validate(ctx, p.Token)
	if err != nil {
		code := constants.ErrAuthFailed
		if errors.Is(err, auth.ErrTokenExpired) {
			code = constants.ErrAuthExpired
		}
		ep.manager.SendToConnection(conn.ID, dispatch.ErrorFrame(frame, code, "authentication failed"))
		return
	}

	roomRow, err := ep.rooms.ResolveByCode(ctx, protocol.NormalizeRoomCode(p.RoomCode))
	if err != nil {
		ep.manager.SendToConnection(conn.ID, dispatch.ErrorFrame(frame,
			constants.ErrRoomNotFound, "room not found"))
		return
	}

	// Le siège existant est retrouvé; sinon le plus bas siège libre est pris
	joined, err := ep.rooms.Join(ctx, roomRow.ID, claims.UserID, conn.ID)
	if err != nil {
		ep.manager.SendToConnection(conn.ID, dispatch.ErrorFrame(frame,
			joinErrorCode(err), "cannot join room"))
		return
	}

	if !ep.manager.Authenticate(conn.ID, claims.UserID, roomRow.ID) {
		return
	}
	authTimer.Stop()
	ep.presence.Connect(ctx, claims.UserID)

	snap, err := ep.rooms.HandleConnect(ctx, roomRow.ID, claims.UserID, conn.ID)
	if err != nil {
		snap = joined.Snapshot
	}

	reply := models.NewFrame(constants.MsgAuthenticated, models.AuthenticatedPayload{
		ConnectionID: conn.ID,
		UserID:       claims.UserID,
		ServerID:     ep.cfg.Server.ServerID,
		Room:         snap,
	}).WithRequestID(frame.RequestID)
	ep.manager.SendToConnection(conn.ID, reply)

	// Une partie en cours est resynchronisée par un snapshot complet
	if session, ok := ep.rooms.Session(roomRow.ID); ok {
		if state := session.Snapshot(); state != nil {
			ep.manager.SendToConnection(conn.ID,
				models.NewFrame(constants.MsgGameState, state))
		}
	}

	ep.log.Info("connection authenticated",
		zap.String("connection_id", conn.ID),
		zap.String("user_id", claims.UserID),
		zap.String("room_id", roomRow.ID))
}

// cleanup libère tout ce qu'une connexion détenait
func (ep *Endpoint) cleanup(conn *connection.Connection) {
	ep.manager.Disconnect(conn.ID)
	ep.release(conn)
}

// onDrop nettoie une connexion abandonnée par le gestionnaire
func (ep *Endpoint) onDrop(c *connection.Connection) {
	ep.release(c)
}

// release rend la présence et le siège d'une connexion, une seule fois
func (ep *Endpoint) release(c *connection.Connection) {
	if !c.Authenticated || !c.FirstCleanup() {
		return
	}
	ctx := context.Background()
	ep.presence.Disconnect(ctx, c.UserID)
	ep.rooms.HandleDisconnect(ctx, c.RoomID, c.UserID)
}

// joinErrorCode traduit une erreur de join en code machine
func joinErrorCode(err error) string {
	switch {
	case errors.Is(err, database.ErrRoomClosed):
		return constants.ErrRoomClosed
	case errors.Is(err, database.ErrRoomFull):
		return constants.ErrRoomFull
	case errors.Is(err, database.ErrRoomInGame):
		return constants.ErrRoomInGame
	case errors.Is(err, database.ErrRoomNotFound):
		return constants.ErrRoomNotFound
	default:
		return constants.ErrInternal
	}
}
