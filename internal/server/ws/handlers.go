// internal/server/ws/handlers.go
package ws

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/viksharma04/ludo-stacked-backend/internal/server/dispatch"
	"github.com/viksharma04/ludo-stacked-backend/internal/server/game"
	"github.com/viksharma04/ludo-stacked-backend/internal/server/room"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/protocol"
	"github.com/viksharma04/ludo-stacked-backend/pkg/database"
)

// registerHandlers câble les handlers de messages au démarrage
func registerHandlers(d *dispatch.Dispatcher, rooms *room.Service) {
	d.Register(constants.MsgPing, handlePing)
	d.Register(constants.MsgToggleReady, toggleReadyHandler(rooms))
	d.Register(constants.MsgLeaveRoom, leaveRoomHandler(rooms))
	d.Register(constants.MsgStartGame, startGameHandler(rooms))
	d.Register(constants.MsgGameAction, gameActionHandler(rooms))
}

// handlePing répond pong avec l'heure serveur
func handlePing(hc *dispatch.HandlerContext) *dispatch.HandlerResult {
	return &dispatch.HandlerResult{
		Success:  true,
		Response: models.NewFrame(constants.MsgPong, models.PongPayload{ServerTime: time.Now().UTC()}),
	}
}

// toggleReadyHandler bascule le ready du siège de l'émetteur
func toggleReadyHandler(rooms *room.Service) dispatch.Handler {
	return func(hc *dispatch.HandlerContext) *dispatch.HandlerResult {
		snap, err := rooms.ToggleReady(hc.Ctx, hc.RoomID, hc.UserID, hc.ConnectionID)
		if err != nil {
			return errorResult(hc, err)
		}
		// La diffusion aux autres membres est faite par le service;
		// l'émetteur reçoit le snapshot en réponse directe.
		return &dispatch.HandlerResult{
			Success:  true,
			Response: models.NewFrame(constants.MsgRoomUpdated, models.RoomUpdatedPayload{Room: snap}),
		}
	}
}

// leaveRoomHandler retire l'émetteur de sa salle
func leaveRoomHandler(rooms *room.Service) dispatch.Handler {
	return func(hc *dispatch.HandlerContext) *dispatch.HandlerResult {
		result, err := rooms.Leave(hc.Ctx, hc.RoomID, hc.UserID, hc.ConnectionID)
		if err != nil {
			return errorResult(hc, err)
		}
		var response *models.Frame
		if result.RoomClosed {
			response = models.NewFrame(constants.MsgRoomClosed,
				models.RoomClosedPayload{RoomID: hc.RoomID, Reason: "host_left"})
		} else {
			response = models.NewFrame(constants.MsgRoomUpdated,
				models.RoomUpdatedPayload{Room: result.Snapshot})
		}
		// La réponse part avant la fermeture : la connexion est liée à
		// sa salle pour sa durée de vie, quitter la salle la termine
		hc.Manager.SendToConnection(hc.ConnectionID, response.WithRequestID(hc.Msg.RequestID))
		hc.Manager.Disconnect(hc.ConnectionID)
		return &dispatch.HandlerResult{Success: true}
	}
}

// startGameHandler fait passer la salle en jeu (hôte uniquement)
func startGameHandler(rooms *room.Service) dispatch.Handler {
	return func(hc *dispatch.HandlerContext) *dispatch.HandlerResult {
		snap, err := rooms.StartGame(hc.Ctx, hc.RoomID, hc.UserID)
		if err != nil {
			return errorResult(hc, err)
		}
		return &dispatch.HandlerResult{
			Success:  true,
			Response: models.NewFrame(constants.MsgGameStarted, models.RoomUpdatedPayload{Room: snap}),
		}
	}
}

// gameActionHandler alimente le moteur via la session de la salle
func gameActionHandler(rooms *room.Service) dispatch.Handler {
	return func(hc *dispatch.HandlerContext) *dispatch.HandlerResult {
		var p models.GameActionPayload
		if err := protocol.ExtractPayload(hc.Msg, &p); err != nil {
			return &dispatch.HandlerResult{
				Response: dispatch.ErrorFrame(hc.Msg, constants.ErrValidation, err.Error()),
			}
		}

		session, ok := rooms.Session(hc.RoomID)
		if !ok {
			return &dispatch.HandlerResult{
				Response: dispatch.ErrorFrame(hc.Msg, constants.ErrBadPhase, "no game in progress"),
			}
		}

		snap, err := rooms.Snapshot(hc.Ctx, hc.RoomID)
		if err != nil {
			return errorResult(hc, err)
		}
		seat := snap.SeatFor(hc.UserID)
		if seat == nil {
			return &dispatch.HandlerResult{
				Response: dispatch.ErrorFrame(hc.Msg, constants.ErrNotInRoom, "no seat in room"),
			}
		}

		action := game.Action{
			Kind:     game.ActionKind(p.Kind),
			Seat:     seat.SeatIndex,
			TokenIDs: p.TokenIDs,
			Die:      p.Die,
		}
		if p.Kind == "capture_choice" {
			target, err := parseTargetSeat(p.Target)
			if err != nil {
				return &dispatch.HandlerResult{
					Response: dispatch.ErrorFrame(hc.Msg, constants.ErrValidation, err.Error()),
				}
			}
			action.TargetSeat = target
		}

		if !session.Submit(hc.ConnectionID, hc.Msg.RequestID, action) {
			return &dispatch.HandlerResult{
				Response: dispatch.ErrorFrame(hc.Msg, constants.ErrInternal, "room busy"),
			}
		}
		// La session répond de manière asynchrone (game_events ou game_error)
		return &dispatch.HandlerResult{Success: true}
	}
}

// parseTargetSeat décode une cible de capture "seat:N"
func parseTargetSeat(target string) (int, error) {
	s, ok := strings.CutPrefix(target, "seat:")
	if !ok {
		return 0, errors.New("target must be of the form seat:N")
	}
	return strconv.Atoi(s)
}

// errorResult traduit une erreur métier en réponse directe
func errorResult(hc *dispatch.HandlerContext, err error) *dispatch.HandlerResult {
	code := constants.ErrInternal
	switch {
	case errors.Is(err, database.ErrRoomNotFound):
		code = constants.ErrRoomNotFound
	case errors.Is(err, database.ErrRoomClosed):
		code = constants.ErrRoomClosed
	case errors.Is(err, database.ErrRoomFull):
		code = constants.ErrRoomFull
	case errors.Is(err, database.ErrRoomInGame):
		code = constants.ErrRoomInGame
	case errors.Is(err, database.ErrNotInRoom):
		code = constants.ErrNotInRoom
	case errors.Is(err, database.ErrBadTransition):
		code = constants.ErrBadPhase
	case errors.Is(err, database.ErrRequestInProgress):
		code = constants.ErrRequestInProgress
	case errors.Is(err, database.ErrCodeGeneration):
		code = constants.ErrCodeGeneration
	case strings.HasPrefix(err.Error(), constants.ErrNotHost):
		code = constants.ErrNotHost
	}
	return &dispatch.HandlerResult{
		Response: dispatch.ErrorFrame(hc.Msg, code, err.Error()),
	}
}
