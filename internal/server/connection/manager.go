// internal/server/connection/manager.go
package connection

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/protocol"
)

// Connection représente une connexion WebSocket vivante
type Connection struct {
	ID            string
	UserID        string
	RoomID        string
	Authenticated bool
	LastSeen      time.Time

	conn    *websocket.Conn
	send    chan []byte
	quit    chan struct{}
	once    sync.Once
	cleaned atomic.Bool
}

// Manager possède l'ensemble des sockets vivants de cette instance et
// leurs index user -> connexions et room -> connexions. Toute mutation
// des tables passe par un unique verrou court.
type Manager struct {
	mu      sync.RWMutex
	conns   map[string]*Connection
	byUser  map[string]map[string]bool
	byRoom  map[string]map[string]bool
	log    *zap.Logger
	onDrop func(c *Connection)
}

// NewManager crée un gestionnaire de connexions
func NewManager(log *zap.Logger) *Manager {
	return &Manager{
		conns:  make(map[string]*Connection),
		byUser: make(map[string]map[string]bool),
		byRoom: make(map[string]map[string]bool),
		log:    log,
	}
}

// SetDropHandler enregistre le callback appelé quand une connexion est
// abandonnée suite à un échec d'envoi
func (m *Manager) SetDropHandler(fn func(c *Connection)) {
	m.onDrop = fn
}

// Register enregistre une connexion pré-authentification
func (m *Manager) Register(ws *websocket.Conn) *Connection {
	c := &Connection{
		ID:       uuid.NewString(),
		LastSeen: time.Now(),
		conn:     ws,
		send:     make(chan []byte, constants.SendBufferSize),
		quit:     make(chan struct{}),
	}

	m.mu.Lock()
	m.conns[c.ID] = c
	m.mu.Unlock()

	go c.writePump(m)
	return c
}

// Authenticate promeut une connexion authentifiée et la lie à sa salle
func (m *Manager) Authenticate(connID, userID, roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[connID]
	if !ok {
		return false
	}
	c.UserID = userID
	c.RoomID = roomID
	c.Authenticated = true
	c.LastSeen = time.Now()

	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[string]bool)
	}
	m.byUser[userID][connID] = true

	if m.byRoom[roomID] == nil {
		m.byRoom[roomID] = make(map[string]bool)
	}
	m.byRoom[roomID][connID] = true
	return true
}

// Get retourne une connexion par son id
func (m *Manager) Get(connID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conns[connID]
	return c, ok
}

// Count retourne le nombre de connexions vivantes
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// RoomCount retourne le nombre de connexions liées à une salle
func (m *Manager) RoomCount(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byRoom[roomID])
}

// UserConnections retourne le nombre de connexions d'un utilisateur
func (m *Manager) UserConnections(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID])
}

// SendToConnection envoie une frame à une connexion
func (m *Manager) SendToConnection(connID string, f *models.Frame) {
	m.mu.RLock()
	c, ok := m.conns[connID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	m.deliver(c, f)
}

// SendToUser envoie une frame à toutes les connexions d'un utilisateur
func (m *Manager) SendToUser(userID string, f *models.Frame) {
	for _, c := range m.snapshot(m.byUser, userID) {
		m.deliver(c, f)
	}
}

// SendToRoom envoie une frame à toutes les connexions d'une salle,
// sauf la connexion exclue (vide = aucune exclusion)
func (m *Manager) SendToRoom(roomID string, f *models.Frame, except string) {
	for _, c := range m.snapshot(m.byRoom, roomID) {
		if c.ID == except {
			continue
		}
		m.deliver(c, f)
	}
}

// Broadcast envoie une frame à toutes les connexions authentifiées
func (m *Manager) Broadcast(f *models.Frame) {
	m.mu.RLock()
	targets := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		if c.Authenticated {
			targets = append(targets, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range targets {
		m.deliver(c, f)
	}
}

// Disconnect retire une connexion de tous les index et ferme le socket
func (m *Manager) Disconnect(connID string) {
	m.mu.Lock()
	c, ok := m.conns[connID]
	if ok {
		delete(m.conns, connID)
		if c.UserID != "" {
			delete(m.byUser[c.UserID], connID)
			if len(m.byUser[c.UserID]) == 0 {
				delete(m.byUser, c.UserID)
			}
		}
		if c.RoomID != "" {
			delete(m.byRoom[c.RoomID], connID)
			if len(m.byRoom[c.RoomID]) == 0 {
				delete(m.byRoom, c.RoomID)
			}
		}
	}
	m.mu.Unlock()

	if ok {
		c.close()
	}
}

// CloseAll ferme toutes les connexions avec le code going_away
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.conns = make(map[string]*Connection)
	m.byUser = make(map[string]map[string]bool)
	m.byRoom = make(map[string]map[string]bool)
	m.mu.Unlock()

	msg := websocket.FormatCloseMessage(constants.CloseGoingAway, "server shutting down")
	for _, c := range conns {
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.close()
	}
}

// snapshot copie les connexions d'un index sous verrou de lecture
func (m *Manager) snapshot(index map[string]map[string]bool, key string) []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := index[key]
	conns := make([]*Connection, 0, len(ids))
	for id := range ids {
		if c, ok := m.conns[id]; ok {
			conns = append(conns, c)
		}
	}
	return conns
}

// deliver encode et met la frame en file pour une connexion. Un buffer
// plein abandonne cette connexion sans interrompre le broadcast.
func (m *Manager) deliver(c *Connection, f *models.Frame) {
	data, err := protocol.EncodeFrame(f)
	if err != nil {
		m.log.Error("frame encode failed", zap.String("type", string(f.Type)), zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		m.log.Warn("send buffer full, dropping connection",
			zap.String("connection_id", c.ID), zap.String("user_id", c.UserID))
		m.drop(c)
	}
}

// drop déconnecte et notifie le handler de nettoyage
func (m *Manager) drop(c *Connection) {
	m.Disconnect(c.ID)
	if m.onDrop != nil {
		go m.onDrop(c)
	}
}

// writePump pompe les frames sortantes vers le socket
func (c *Connection) writePump(m *Manager) {
	ticker := time.NewTicker(constants.HeartbeatInterval * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.quit:
			// Les frames déjà en file partent avant la fermeture
			for {
				select {
				case data := <-c.send:
					c.conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
					if c.conn.WriteMessage(websocket.TextMessage, data) != nil {
						return
					}
				default:
					return
				}
			}
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				m.drop(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.drop(c)
				return
			}
		}
	}
}

// close arrête la pompe d'écriture une seule fois. Le canal d'envoi
// n'est jamais fermé : un envoi tardif reste inoffensif.
func (c *Connection) close() {
	c.once.Do(func() {
		close(c.quit)
		c.conn.Close()
	})
}

// FirstCleanup retourne true pour le premier appelant. Les chemins de
// nettoyage (boucle de lecture, drop d'envoi) ne libèrent présence et
// siège qu'une seule fois.
func (c *Connection) FirstCleanup() bool {
	return c.cleaned.CompareAndSwap(false, true)
}

// Socket expose le websocket sous-jacent pour la boucle de lecture
func (c *Connection) Socket() *websocket.Conn {
	return c.conn
}

// Touch met à jour l'horodatage d'activité
func (c *Connection) Touch() {
	c.LastSeen = time.Now()
}
