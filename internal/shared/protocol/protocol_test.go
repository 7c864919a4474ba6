// internal/shared/protocol/protocol_test.go
package protocol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
)

func TestFrameRoundTrip(t *testing.T) {
	original := models.NewFrame(constants.MsgAuthenticate, models.AuthenticatePayload{
		Token:    "header.payload.signature",
		RoomCode: "AB12CD",
	}).WithRequestID(uuid.NewString())

	data, err := EncodeFrame(original)
	require.NoError(t, err)

	decoded, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, original.Type, decoded.Type)
	assert.Equal(t, original.RequestID, decoded.RequestID)

	var payload models.AuthenticatePayload
	require.NoError(t, ExtractPayload(decoded, &payload))
	assert.Equal(t, "AB12CD", payload.RoomCode)

	// Ré-encoder produit une frame sémantiquement identique
	again, err := EncodeFrame(decoded)
	require.NoError(t, err)
	redecoded, err := DecodeFrame(again)
	require.NoError(t, err)
	assert.Equal(t, decoded.Type, redecoded.Type)
	assert.JSONEq(t, string(decoded.Payload), string(redecoded.Payload))
}

func TestDecodeFrameMalformed(t *testing.T) {
	_, err := DecodeFrame([]byte("{not json"))
	assert.Error(t, err)
}

func TestValidateFrame(t *testing.T) {
	valid := models.NewFrame(constants.MsgAuthenticate, models.AuthenticatePayload{
		Token:    "tok",
		RoomCode: "abc123",
	})
	assert.NoError(t, ValidateFrame(valid))

	cases := []struct {
		name  string
		frame *models.Frame
	}{
		{"nil frame", nil},
		{"empty type", &models.Frame{}},
		{"unknown type", &models.Frame{Type: "self_destruct"}},
		{"server-only type", &models.Frame{Type: constants.MsgRoomUpdated}},
		{"bad request id", &models.Frame{Type: constants.MsgPing, RequestID: "not-a-uuid"}},
		{"auth without token", models.NewFrame(constants.MsgAuthenticate,
			models.AuthenticatePayload{RoomCode: "ABC123"})},
		{"auth bad code", models.NewFrame(constants.MsgAuthenticate,
			models.AuthenticatePayload{Token: "tok", RoomCode: "nope"})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, ValidateFrame(tc.frame))
		})
	}
}

func TestValidateGameAction(t *testing.T) {
	ok := models.NewFrame(constants.MsgGameAction, models.GameActionPayload{Kind: "roll"})
	assert.NoError(t, ValidateFrame(ok))

	move := models.NewFrame(constants.MsgGameAction, models.GameActionPayload{
		Kind: "move", TokenIDs: []string{"s0t0"}, Die: 4,
	})
	assert.NoError(t, ValidateFrame(move))

	badDie := models.NewFrame(constants.MsgGameAction, models.GameActionPayload{
		Kind: "move", TokenIDs: []string{"s0t0"}, Die: 9,
	})
	assert.Error(t, ValidateFrame(badDie))

	noTokens := models.NewFrame(constants.MsgGameAction, models.GameActionPayload{
		Kind: "move", Die: 4,
	})
	assert.Error(t, ValidateFrame(noTokens))

	choice := models.NewFrame(constants.MsgGameAction, models.GameActionPayload{
		Kind: "capture_choice", Target: "seat:2",
	})
	assert.NoError(t, ValidateFrame(choice))

	unknown := models.NewFrame(constants.MsgGameAction, models.GameActionPayload{Kind: "cheat"})
	assert.Error(t, ValidateFrame(unknown))
}

func TestNormalizeRoomCode(t *testing.T) {
	assert.Equal(t, "AB12CD", NormalizeRoomCode("  ab12cd "))
	assert.NoError(t, ValidateRoomCode("ab12cd"))
	assert.Error(t, ValidateRoomCode("ab-2cd"))
	assert.Error(t, ValidateRoomCode("toolongcode"))
}
