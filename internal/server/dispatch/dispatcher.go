// internal/server/dispatch/dispatcher.go
package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
)

// Sender est la surface réseau dont le dispatcher a besoin.
// *connection.Manager la satisfait.
type Sender interface {
	SendToConnection(connID string, f *models.Frame)
	SendToRoom(roomID string, f *models.Frame, except string)
	Disconnect(connID string)
}

// HandlerContext porte tout ce dont un handler a besoin
type HandlerContext struct {
	Ctx          context.Context
	ConnectionID string
	UserID       string
	RoomID       string
	Msg          *models.Frame
	Manager      Sender
	Log          *zap.Logger
}

// HandlerResult décrit les effets réseau d'un handler
type HandlerResult struct {
	Success   bool
	Response  *models.Frame
	Broadcast *models.Frame
	RoomID    string
}

// Handler traite un message décodé
type Handler func(hc *HandlerContext) *HandlerResult

// Dispatcher route les messages vers les handlers enregistrés par type.
// L'enregistrement se fait au démarrage; le registre est figé ensuite.
type Dispatcher struct {
	handlers map[constants.MessageType]Handler
	noAuth   map[constants.MessageType]bool
	log      *zap.Logger
}

// NewDispatcher crée un dispatcher vide
func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[constants.MessageType]Handler),
		noAuth: map[constants.MessageType]bool{
			constants.MsgPing:         true,
			constants.MsgAuthenticate: true,
		},
		log: log,
	}
}

// Register enregistre un handler pour un type de message
func (d *Dispatcher) Register(t constants.MessageType, h Handler) {
	d.handlers[t] = h
}

// Dispatch route un message et traduit le résultat en effets réseau :
// la réponse part vers l'émetteur, le broadcast vers le reste de la salle.
func (d *Dispatcher) Dispatch(hc *HandlerContext) {
	handler, ok := d.handlers[hc.Msg.Type]
	if !ok {
		hc.Manager.SendToConnection(hc.ConnectionID, errorFrame(hc.Msg,
			constants.ErrInvalidMessage, "unknown message type"))
		return
	}

	if !d.noAuth[hc.Msg.Type] && hc.UserID == "" {
		hc.Manager.SendToConnection(hc.ConnectionID, errorFrame(hc.Msg,
			constants.ErrUnauthenticated, "authentication required"))
		return
	}

	result := d.invoke(handler, hc)
	if result == nil {
		return
	}

	if result.Response != nil {
		if hc.Msg.RequestID != "" {
			result.Response.RequestID = hc.Msg.RequestID
		}
		hc.Manager.SendToConnection(hc.ConnectionID, result.Response)
	}
	if result.Broadcast != nil && result.RoomID != "" {
		hc.Manager.SendToRoom(result.RoomID, result.Broadcast, hc.ConnectionID)
	}
}

// invoke exécute un handler en confinant toute panique à la connexion émettrice
func (d *Dispatcher) invoke(h Handler, hc *HandlerContext) (result *HandlerResult) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panic",
				zap.String("type", string(hc.Msg.Type)),
				zap.String("connection_id", hc.ConnectionID),
				zap.Any("panic", r))
			hc.Manager.SendToConnection(hc.ConnectionID, errorFrame(hc.Msg,
				constants.ErrInternal, "internal error"))
			hc.Manager.Disconnect(hc.ConnectionID)
			result = nil
		}
	}()
	return h(hc)
}

// errorFrame construit une frame d'erreur en échoyant le request_id
func errorFrame(msg *models.Frame, code, text string) *models.Frame {
	f := models.NewFrame(constants.MsgError, models.ErrorPayload{Code: code, Message: text})
	if msg != nil && msg.RequestID != "" {
		f.RequestID = msg.RequestID
	}
	return f
}

// ErrorFrame expose la construction d'erreur aux handlers
func ErrorFrame(msg *models.Frame, code, text string) *models.Frame {
	return errorFrame(msg, code, text)
}
