// Package store persists player inventories between sessions.
package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sandforge/internal/component"

	"github.com/pkg/errors"
)

// ErrNotFound means no snapshot exists for a client.
var ErrNotFound = errors.New("store: snapshot not found")

// SnapshotVersion is bumped whenever the Snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is what survives a disconnect: the inventory contents in slot
// order (holes dropped) and the player stats enchantments have modified.
type Snapshot struct {
	Version    int                        `json:"version"`
	Client     component.ClientID         `json:"client"`
	Name       string                     `json:"name"`
	Items      []component.ItemBundle     `json:"items"`
	Properties component.PlayerProperties `json:"properties"`
	SavedAt    time.Time                  `json:"saved_at"`
}

// Store loads and saves snapshots keyed by client.
type Store interface {
	Load(ctx context.Context, client component.ClientID) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
	Delete(ctx context.Context, client component.ClientID) error
	Close() error
}

func encode(s Snapshot) ([]byte, error) {
	s.Version = SnapshotVersion
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal snapshot")
	}
	return data, nil
}

func decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to unmarshal snapshot")
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, errors.Errorf("snapshot version %d, want %d", s.Version, SnapshotVersion)
	}
	return s, nil
}

// Memory keeps snapshots in process. It backs single-host play and tests.
type Memory struct {
	mu   sync.RWMutex
	data map[component.ClientID][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[component.ClientID][]byte)}
}

func (m *Memory) Load(_ context.Context, client component.ClientID) (Snapshot, error) {
	m.mu.RLock()
	data, ok := m.data[client]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, errors.Wrapf(ErrNotFound, "%q", client)
	}
	return decode(data)
}

func (m *Memory) Save(_ context.Context, s Snapshot) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[s.Client] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, client component.ClientID) error {
	m.mu.Lock()
	delete(m.data, client)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
