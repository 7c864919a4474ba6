// internal/shared/protocol/serializer.go
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
)

// EncodeFrame encode une frame en JSON
func EncodeFrame(f *models.Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}
	return data, nil
}

// DecodeFrame décode une frame JSON depuis bytes
func DecodeFrame(data []byte) (*models.Frame, error) {
	var f models.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	return &f, nil
}

// ExtractPayload décode le payload d'une frame dans la structure cible
func ExtractPayload(f *models.Frame, target interface{}) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("frame has no payload")
	}
	if err := json.Unmarshal(f.Payload, target); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}
