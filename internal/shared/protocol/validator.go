// internal/shared/protocol/validator.go
package protocol

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
)

// clientTypes contient les types de messages acceptés depuis un client
var clientTypes = map[constants.MessageType]bool{
	constants.MsgAuthenticate: true,
	constants.MsgPing:         true,
	constants.MsgToggleReady:  true,
	constants.MsgLeaveRoom:    true,
	constants.MsgStartGame:    true,
	constants.MsgGameAction:   true,
}

// ValidateFrame valide une frame entrante
func ValidateFrame(f *models.Frame) error {
	if f == nil {
		return fmt.Errorf("frame is nil")
	}
	if f.Type == "" {
		return fmt.Errorf("frame type is empty")
	}
	if !clientTypes[f.Type] {
		return fmt.Errorf("unknown message type %q", f.Type)
	}
	if f.RequestID != "" {
		if _, err := uuid.Parse(f.RequestID); err != nil {
			return fmt.Errorf("request_id is not a valid uuid")
		}
	}

	switch f.Type {
	case constants.MsgAuthenticate:
		return validateAuthenticate(f)
	case constants.MsgGameAction:
		return validateGameAction(f)
	default:
		return nil
	}
}

// validateAuthenticate valide le payload d'authentification
func validateAuthenticate(f *models.Frame) error {
	var p models.AuthenticatePayload
	if err := ExtractPayload(f, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Token) == "" {
		return fmt.Errorf("token cannot be empty")
	}
	if err := ValidateRoomCode(p.RoomCode); err != nil {
		return err
	}
	return nil
}

// validateGameAction valide le payload d'une action de jeu
func validateGameAction(f *models.Frame) error {
	var p models.GameActionPayload
	if err := ExtractPayload(f, &p); err != nil {
		return err
	}
	switch p.Kind {
	case "roll", "start_game":
		return nil
	case "move":
		if len(p.TokenIDs) == 0 {
			return fmt.Errorf("move requires token_ids")
		}
		if p.Die < constants.DiceMin || p.Die > constants.DiceMax {
			return fmt.Errorf("die must be between %d and %d", constants.DiceMin, constants.DiceMax)
		}
		return nil
	case "capture_choice":
		if p.Target == "" {
			return fmt.Errorf("capture_choice requires a target")
		}
		return nil
	default:
		return fmt.Errorf("unknown action kind %q", p.Kind)
	}
}

// ValidateRoomCode valide un code de salle
func ValidateRoomCode(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != constants.RoomCodeLength {
		return fmt.Errorf("room code must be %d characters", constants.RoomCodeLength)
	}
	for _, c := range code {
		if !strings.ContainsRune(constants.RoomCodeAlphabet, c) {
			return fmt.Errorf("room code contains invalid characters")
		}
	}
	return nil
}

// NormalizeRoomCode met un code de salle en forme canonique (majuscules)
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
