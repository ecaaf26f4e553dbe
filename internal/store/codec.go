package store

import (
	"encoding/json"
	"fmt"
)

// Arrays are stored as JSON array text so that any engine with a TEXT column
// can hold them.

func encodeArray(data []float64) (string, error) {
	if data == nil {
		data = []float64{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode array: %w", err)
	}
	return string(b), nil
}

func decodeArray(text string) ([]float64, error) {
	out := []float64{}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("failed to decode array: %w", err)
	}
	return out, nil
}
