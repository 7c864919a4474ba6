// pkg/database/rooms.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
)

// Erreurs métier du repository
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomClosed        = errors.New("room closed")
	ErrRoomFull          = errors.New("room full")
	ErrRoomInGame        = errors.New("room in game")
	ErrNotInRoom         = errors.New("user not in room")
	ErrRequestInProgress = errors.New("request in progress")
	ErrCodeGeneration    = errors.New("code generation failed")
	ErrVersionConflict   = errors.New("version conflict")
	ErrBadTransition     = errors.New("invalid status transition")
)

// JoinResult est le résultat d'un join_seat
type JoinResult struct {
	SeatIndex int
	Snapshot  *models.RoomSnapshot
}

// LeaveResult est le résultat d'un leave_seat
type LeaveResult struct {
	Snapshot   *models.RoomSnapshot
	RoomClosed bool
}

// FindOrCreate retourne la salle ouverte de l'utilisateur ou en crée une.
// L'enregistrement d'idempotence est commité dans la même transaction
// que la création.
func (db *DB) FindOrCreate(ctx context.Context, userID, requestID string, maxPlayers int, visibility constants.RoomVisibility, rulesetID string, rulesetConfig json.RawMessage) (*models.CreateRoomResult, error) {
	if maxPlayers < constants.MinPlayers || maxPlayers > constants.MaxPlayers {
		return nil, fmt.Errorf("max players must be between %d and %d", constants.MinPlayers, constants.MaxPlayers)
	}
	if len(rulesetConfig) == 0 {
		rulesetConfig = json.RawMessage("{}")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Consulter la table d'idempotence d'abord
	cached, err := claimIdempotency(ctx, tx, requestID, userID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit: %w", err)
		}
		return cached, nil
	}

	// Une salle ouverte appartenant déjà à l'utilisateur est retournée telle quelle
	result, err := findOwnedOpenRoom(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if result == nil {
		result, err = createRoom(ctx, tx, userID, maxPlayers, visibility, rulesetID, rulesetConfig)
		if err != nil {
			if errors.Is(err, ErrCodeGeneration) {
				// L'échec est lui aussi enregistré pour la requête
				_, _ = tx.ExecContext(ctx,
					`UPDATE ws_idempotency SET status = 'failed' WHERE request_id = $1`, requestID)
				_ = tx.Commit()
			}
			return nil, err
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE ws_idempotency SET status = 'completed', response_payload = $2 WHERE request_id = $1`,
		requestID, payload); err != nil {
		return nil, fmt.Errorf("failed to complete idempotency record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return result, nil
}

// claimIdempotency insère ou relit l'enregistrement d'idempotence.
// Retourne la réponse canonique si la requête a déjà abouti.
func claimIdempotency(ctx context.Context, tx *sql.Tx, requestID, userID string) (*models.CreateRoomResult, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ws_idempotency (request_id, user_id, status)
		 VALUES ($1, $2, 'in_progress')
		 ON CONFLICT (request_id) DO NOTHING`,
		requestID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert idempotency record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil, nil
	}

	var status constants.IdempotencyStatus
	var payload []byte
	err = tx.QueryRowContext(ctx,
		`SELECT status, response_payload FROM ws_idempotency WHERE request_id = $1 FOR UPDATE`,
		requestID).Scan(&status, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency record: %w", err)
	}

	switch status {
	case constants.IdemCompleted:
		var result models.CreateRoomResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached response: %w", err)
		}
		result.Cached = true
		return &result, nil
	case constants.IdemInProgress:
		return nil, ErrRequestInProgress
	default:
		// Un échec précédent autorise une nouvelle tentative
		if _, err := tx.ExecContext(ctx,
			`UPDATE ws_idempotency SET status = 'in_progress' WHERE request_id = $1`, requestID); err != nil {
			return nil, fmt.Errorf("failed to reclaim idempotency record: %w", err)
		}
		return nil, nil
	}
}

// findOwnedOpenRoom retrouve la salle ouverte de l'utilisateur avec son siège
func findOwnedOpenRoom(ctx context.Context, tx *sql.Tx, userID string) (*models.CreateRoomResult, error) {
	var result models.CreateRoomResult
	var isHost bool
	err := tx.QueryRowContext(ctx,
		`SELECT r.id, r.code, s.seat_index, s.is_host
		 FROM rooms r
		 JOIN room_seats s ON s.room_id = r.id AND s.user_id = $1
		 WHERE r.owner_id = $1 AND r.status = 'open'
		 LIMIT 1`,
		userID).Scan(&result.RoomID, &result.Code, &result.SeatIndex, &isHost)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up owned room: %w", err)
	}
	result.IsHost = isHost
	return &result, nil
}

// createRoom alloue une salle avec un code unique et ses sièges
func createRoom(ctx context.Context, tx *sql.Tx, userID string, maxPlayers int, visibility constants.RoomVisibility, rulesetID string, rulesetConfig json.RawMessage) (*models.CreateRoomResult, error) {
	var roomID, code string
	allocated := false
	for attempt := 0; attempt < constants.CodeGenAttempts; attempt++ {
		code = generateRoomCode()
		var taken bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1 AND status <> 'closed')`,
			code).Scan(&taken)
		if err != nil {
			return nil, fmt.Errorf("failed to check room code: %w", err)
		}
		if taken {
			continue
		}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO rooms (code, owner_id, status, visibility, max_players, ruleset_id, ruleset_config)
			 VALUES ($1, $2, 'open', $3, $4, $5, $6)
			 RETURNING id`,
			code, userID, visibility, maxPlayers, rulesetID, rulesetConfig).Scan(&roomID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert room: %w", err)
		}
		allocated = true
		break
	}
	if !allocated {
		return nil, ErrCodeGeneration
	}

	now := time.Now()
	for i := 0; i < maxPlayers; i++ {
		if i == 0 {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO room_seats (room_id, seat_index, user_id, is_host, ready, connected, status, joined_at)
				 VALUES ($1, 0, $2, true, 'not_ready', false, 'occupied', $3)`,
				roomID, userID, now)
			if err != nil {
				return nil, fmt.Errorf("failed to insert host seat: %w", err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO room_seats (room_id, seat_index) VALUES ($1, $2)`,
			roomID, i)
		if err != nil {
			return nil, fmt.Errorf("failed to insert seat %d: %w", i, err)
		}
	}

	return &models.CreateRoomResult{
		RoomID:    roomID,
		Code:      code,
		SeatIndex: 0,
		IsHost:    true,
	}, nil
}

// ResolveByCode retrouve une salle non fermée par son code.
// La recherche est insensible à la casse, les codes sont stockés en majuscules.
func (db *DB) ResolveByCode(ctx context.Context, code string) (*models.Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	room := &models.Room{}
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, code, owner_id, status, visibility, max_players, ruleset_id,
		        ruleset_config, version, created_at, started_at, closed_at
		 FROM rooms WHERE code = $1 AND status <> 'closed'`,
		code).Scan(
		&room.ID, &room.Code, &room.OwnerID, &room.Status, &room.Visibility,
		&room.MaxPlayers, &room.RulesetID, &room.RulesetConfig, &room.Version,
		&room.CreatedAt, &room.StartedAt, &room.ClosedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve room code: %w", err)
	}
	return room, nil
}

// JoinSeat attribue à l'utilisateur le siège vide d'indice le plus bas.
// Un utilisateur déjà assis retrouve son siège (rejoin idempotent).
func (db *DB) JoinSeat(ctx context.Context, roomID, userID string) (*JoinResult, error) {
	for attempt := 0; attempt <= constants.VersionRetries; attempt++ {
		result, err := db.tryJoinSeat(ctx, roomID, userID)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return result, err
	}
	return nil, fmt.Errorf("join_seat: %w", ErrVersionConflict)
}

func (db *DB) tryJoinSeat(ctx context.Context, roomID, userID string) (*JoinResult, error) {
	room, seats, err := db.readRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == constants.RoomClosed {
		return nil, ErrRoomClosed
	}

	// Rejoin idempotent
	for _, s := range seats {
		if s.UserID != nil && *s.UserID == userID {
			snap, err := db.GetSnapshot(ctx, roomID)
			if err != nil {
				return nil, err
			}
			return &JoinResult{SeatIndex: s.SeatIndex, Snapshot: snap}, nil
		}
	}

	if room.Status == constants.RoomInGame {
		return nil, ErrRoomInGame
	}

	// Siège vide d'indice le plus bas; les sièges libérés sont réutilisables
	target := -1
	for _, s := range seats {
		if s.UserID == nil {
			target = s.SeatIndex
			break
		}
	}
	if target < 0 {
		return nil, ErrRoomFull
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, roomID, room.Version); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE room_seats
		 SET user_id = $3, status = 'occupied', ready = 'not_ready',
		     connected = false, joined_at = $4, left_at = NULL
		 WHERE room_id = $1 AND seat_index = $2`,
		roomID, target, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to occupy seat: %w", err)
	}
	if room.Status == constants.RoomReadyToStart {
		// Le nouveau siège n'est pas prêt : la salle repasse en open
		_, err = tx.ExecContext(ctx,
			`UPDATE rooms SET status = 'open' WHERE id = $1`, roomID)
		if err != nil {
			return nil, fmt.Errorf("failed to reopen room: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	snap, err := db.GetSnapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &JoinResult{SeatIndex: target, Snapshot: snap}, nil
}

// ToggleReady bascule le ready du siège de l'utilisateur et ajuste le
// statut de la salle (open <-> ready_to_start).
func (db *DB) ToggleReady(ctx context.Context, roomID, userID string) (*models.RoomSnapshot, error) {
	for attempt := 0; attempt <= constants.VersionRetries; attempt++ {
		snap, err := db.tryToggleReady(ctx, roomID, userID)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return snap, err
	}
	return nil, fmt.Errorf("toggle_ready: %w", ErrVersionConflict)
}

func (db *DB) tryToggleReady(ctx context.Context, roomID, userID string) (*models.RoomSnapshot, error) {
	room, seats, err := db.readRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == constants.RoomClosed {
		return nil, ErrRoomClosed
	}
	if room.Status == constants.RoomInGame {
		return nil, ErrRoomInGame
	}

	var seat *models.Seat
	for i := range seats {
		if seats[i].UserID != nil && *seats[i].UserID == userID {
			seat = &seats[i]
			break
		}
	}
	if seat == nil {
		return nil, ErrNotInRoom
	}

	newReady := constants.Ready
	if seat.Ready == constants.Ready {
		newReady = constants.NotReady
	}

	// Statut de salle résultant du flip
	occupied, ready := 0, 0
	for _, s := range seats {
		if s.UserID == nil {
			continue
		}
		occupied++
		r := s.Ready
		if s.SeatIndex == seat.SeatIndex {
			r = newReady
		}
		if r == constants.Ready {
			ready++
		}
	}
	newStatus := constants.RoomOpen
	if occupied >= constants.MinPlayers && ready == occupied {
		newStatus = constants.RoomReadyToStart
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, roomID, room.Version); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE room_seats SET ready = $3 WHERE room_id = $1 AND seat_index = $2`,
		roomID, seat.SeatIndex, newReady)
	if err != nil {
		return nil, fmt.Errorf("failed to update ready: %w", err)
	}
	if newStatus != room.Status {
		_, err = tx.ExecContext(ctx,
			`UPDATE rooms SET status = $2 WHERE id = $1`, roomID, newStatus)
		if err != nil {
			return nil, fmt.Errorf("failed to update room status: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return db.GetSnapshot(ctx, roomID)
}

// LeaveSeat libère le siège de l'utilisateur. Le départ de l'hôte avant
// le début de partie ferme la salle; sinon l'hôte est réassigné au siège
// occupé d'indice le plus bas.
func (db *DB) LeaveSeat(ctx context.Context, roomID, userID string) (*LeaveResult, error) {
	for attempt := 0; attempt <= constants.VersionRetries; attempt++ {
		result, err := db.tryLeaveSeat(ctx, roomID, userID)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return result, err
	}
	return nil, fmt.Errorf("leave_seat: %w", ErrVersionConflict)
}

func (db *DB) tryLeaveSeat(ctx context.Context, roomID, userID string) (*LeaveResult, error) {
	room, seats, err := db.readRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == constants.RoomClosed {
		return nil, ErrRoomClosed
	}

	var seat *models.Seat
	for i := range seats {
		if seats[i].UserID != nil && *seats[i].UserID == userID {
			seat = &seats[i]
			break
		}
	}
	if seat == nil {
		return nil, ErrNotInRoom
	}

	hostLeaving := seat.IsHost
	closeRoom := hostLeaving && room.Status != constants.RoomInGame

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, roomID, room.Version); err != nil {
		return nil, err
	}
	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE room_seats
		 SET user_id = NULL, is_host = false, ready = 'not_ready',
		     connected = false, status = 'empty', left_at = $3
		 WHERE room_id = $1 AND seat_index = $2`,
		roomID, seat.SeatIndex, now)
	if err != nil {
		return nil, fmt.Errorf("failed to vacate seat: %w", err)
	}

	if closeRoom {
		_, err = tx.ExecContext(ctx,
			`UPDATE rooms SET status = 'closed', closed_at = $2 WHERE id = $1`,
			roomID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to close room: %w", err)
		}
	} else if hostLeaving {
		// Réassignation déterministe au siège occupé d'indice le plus bas
		_, err = tx.ExecContext(ctx,
			`UPDATE room_seats SET is_host = true
			 WHERE room_id = $1 AND seat_index = (
			     SELECT MIN(seat_index) FROM room_seats
			     WHERE room_id = $1 AND user_id IS NOT NULL AND seat_index <> $2
			 )`,
			roomID, seat.SeatIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to reassign host: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	snap, err := db.GetSnapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &LeaveResult{Snapshot: snap, RoomClosed: closeRoom}, nil
}

// SetSeatConnected marque l'état de connexion du siège de l'utilisateur.
// Une déconnexion remet aussi le siège en not_ready.
func (db *DB) SetSeatConnected(ctx context.Context, roomID, userID string, connected bool) (*models.RoomSnapshot, error) {
	for attempt := 0; attempt <= constants.VersionRetries; attempt++ {
		snap, err := db.trySetSeatConnected(ctx, roomID, userID, connected)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return snap, err
	}
	return nil, fmt.Errorf("set_seat_connected: %w", ErrVersionConflict)
}

func (db *DB) trySetSeatConnected(ctx context.Context, roomID, userID string, connected bool) (*models.RoomSnapshot, error) {
	room, seats, err := db.readRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == constants.RoomClosed {
		return nil, ErrRoomClosed
	}

	found := false
	for i := range seats {
		if seats[i].UserID != nil && *seats[i].UserID == userID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNotInRoom
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, roomID, room.Version); err != nil {
		return nil, err
	}
	if connected {
		_, err = tx.ExecContext(ctx,
			`UPDATE room_seats SET connected = true WHERE room_id = $1 AND user_id = $2`,
			roomID, userID)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE room_seats SET connected = false, ready = 'not_ready'
			 WHERE room_id = $1 AND user_id = $2`,
			roomID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update seat connection: %w", err)
	}
	if !connected && room.Status == constants.RoomReadyToStart {
		// Un siège plus prêt rouvre la salle
		_, err = tx.ExecContext(ctx,
			`UPDATE rooms SET status = 'open' WHERE id = $1`, roomID)
		if err != nil {
			return nil, fmt.Errorf("failed to reopen room: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return db.GetSnapshot(ctx, roomID)
}

// MarkInGame fait passer une salle de ready_to_start à in_game
func (db *DB) MarkInGame(ctx context.Context, roomID string) (*models.RoomSnapshot, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE rooms
		 SET status = 'in_game', started_at = now(), version = version + 1
		 WHERE id = $1 AND status = 'ready_to_start'`,
		roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark room in game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrBadTransition
	}
	return db.GetSnapshot(ctx, roomID)
}

// CloseRoom ferme une salle
func (db *DB) CloseRoom(ctx context.Context, roomID string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE rooms
		 SET status = 'closed', closed_at = now(), version = version + 1
		 WHERE id = $1 AND status <> 'closed'`,
		roomID)
	if err != nil {
		return fmt.Errorf("failed to close room: %w", err)
	}
	return nil
}

// GetSnapshot retourne le snapshot complet d'une salle
func (db *DB) GetSnapshot(ctx context.Context, roomID string) (*models.RoomSnapshot, error) {
	room, seats, err := db.readRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	snap := &models.RoomSnapshot{
		RoomID:     room.ID,
		Code:       room.Code,
		Status:     room.Status,
		Visibility: room.Visibility,
		RulesetID:  room.RulesetID,
		MaxPlayers: room.MaxPlayers,
		Version:    room.Version,
		Seats:      make([]models.SeatSnapshot, 0, len(seats)),
	}
	for _, s := range seats {
		snap.Seats = append(snap.Seats, models.SeatSnapshot{
			SeatIndex:   s.SeatIndex,
			UserID:      s.UserID,
			DisplayName: s.DisplayName,
			Ready:       s.Ready,
			Connected:   s.Connected,
			IsHost:      s.IsHost,
		})
	}
	return snap, nil
}

// readRoom lit une salle et ses sièges (display_name joint depuis profiles)
func (db *DB) readRoom(ctx context.Context, roomID string) (*models.Room, []models.Seat, error) {
	room := &models.Room{}
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, code, owner_id, status, visibility, max_players, ruleset_id,
		        ruleset_config, version, created_at, started_at, closed_at
		 FROM rooms WHERE id = $1`,
		roomID).Scan(
		&room.ID, &room.Code, &room.OwnerID, &room.Status, &room.Visibility,
		&room.MaxPlayers, &room.RulesetID, &room.RulesetConfig, &room.Version,
		&room.CreatedAt, &room.StartedAt, &room.ClosedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read room: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT s.room_id, s.seat_index, s.user_id, p.display_name, s.is_host,
		        s.ready, s.connected, s.status, s.joined_at, s.left_at
		 FROM room_seats s
		 LEFT JOIN profiles p ON p.id = s.user_id
		 WHERE s.room_id = $1
		 ORDER BY s.seat_index`,
		roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read seats: %w", err)
	}
	defer rows.Close()

	var seats []models.Seat
	for rows.Next() {
		var s models.Seat
		if err := rows.Scan(&s.RoomID, &s.SeatIndex, &s.UserID, &s.DisplayName,
			&s.IsHost, &s.Ready, &s.Connected, &s.Status, &s.JoinedAt, &s.LeftAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate seats: %w", err)
	}
	return room, seats, nil
}

// bumpVersion incrémente la version sous verrou optimiste
func bumpVersion(ctx context.Context, tx *sql.Tx, roomID string, version int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE rooms SET version = version + 1 WHERE id = $1 AND version = $2`,
		roomID, version)
	if err != nil {
		return fmt.Errorf("failed to bump version: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// generateRoomCode génère un code de salle aléatoire
func generateRoomCode() string {
	b := make([]byte, constants.RoomCodeLength)
	for i := range b {
		b[i] = constants.RoomCodeAlphabet[rand.Intn(len(constants.RoomCodeAlphabet))]
	}
	return string(b)
}
