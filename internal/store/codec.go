package store

import (
	"encoding/json"
	"fmt"

	"m10support/backend/internal/chat"
)

// nullableJSON encodes v for a nullable JSON column; empty values map to NULL.
func nullableJSON(v any) (any, error) {
	switch typed := v.(type) {
	case []chat.Source:
		if len(typed) == 0 {
			return nil, nil
		}
	case *chat.DeviceInfo:
		if typed == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return string(raw), nil
}

func decodeSources(raw []byte) ([]chat.Source, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var sources []chat.Source
	if err := json.Unmarshal(raw, &sources); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	return sources, nil
}

func decodeDevice(raw []byte) (*chat.DeviceInfo, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var device chat.DeviceInfo
	if err := json.Unmarshal(raw, &device); err != nil {
		return nil, fmt.Errorf("decode device info: %w", err)
	}
	return &device, nil
}
