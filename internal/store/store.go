package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// Keys shared with the web client.
const (
	KeyGameCards     = "gameCards"
	KeyStableSeats   = "stableSeats"
	KeyTableSessions = "tableSessions"
	KeyClients       = "gameClients"
	KeyHistory       = "playHistory"
	KeyTournaments   = "tournaments"
	KeyTableSettings = "tableSettings"
	KeyAppSettings   = "appSettings"
)

var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid key")
)

// Store is a blob store of JSON documents keyed by name.
type Store interface {
	Load(ctx context.Context, key string) (json.RawMessage, error)
	Save(ctx context.Context, key string, value json.RawMessage) error
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeKey drops every character outside [a-zA-Z0-9_-].
func SanitizeKey(key string) (string, error) {
	safe := unsafeKeyChars.ReplaceAllString(key, "")
	if safe == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return safe, nil
}

// LoadOr decodes key into a T, returning fallback when the key is absent or
// holds null.
func LoadOr[T any](ctx context.Context, s Store, key string, fallback T) (T, error) {
	raw, err := s.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return fallback, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// LoadRaw is Load with ErrNotFound mapped to a nil document.
func LoadRaw(ctx context.Context, s Store, key string) (json.RawMessage, error) {
	raw, err := s.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return raw, err
}

func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Save(ctx, key, raw)
}

// Memory keeps documents in process.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]json.RawMessage)}
}

func (m *Memory) Load(_ context.Context, key string) (json.RawMessage, error) {
	key, err := SanitizeKey(key)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), raw...), nil
}

func (m *Memory) Save(_ context.Context, key string, value json.RawMessage) error {
	key, err := SanitizeKey(key)
	if err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("save %s: invalid JSON", key)
	}
	m.mu.Lock()
	m.docs[key] = append(json.RawMessage(nil), value...)
	m.mu.Unlock()
	return nil
}

// Keys lists the stored keys.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.docs))
	for k := range m.docs {
		out = append(out, k)
	}
	return out
}
