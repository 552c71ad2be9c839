package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jwebster45206/campfire/pkg/state"
	"github.com/jwebster45206/campfire/pkg/storage"
)

var (
	ErrSaveNotFound = errors.New("save not found")
	ErrCorruptSave  = errors.New("save data is corrupt")
)

// Manager holds a session's checkpoints and the current passage pointer, and
// moves save blobs in and out of the blob store. It is not safe for
// concurrent use.
type Manager struct {
	checkpoints map[string]Checkpoint
	order       []string
	current     string
	blobs       storage.BlobStore
	logger      *slog.Logger
}

// NewManager creates a manager. A nil blob store makes every save and load
// report storage.ErrUnavailable.
func NewManager(blobs storage.BlobStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		checkpoints: make(map[string]Checkpoint),
		blobs:       blobs,
		logger:      logger,
	}
}

// Put stores cp under id and returns the checkpoint it replaced, if any.
func (m *Manager) Put(id string, cp Checkpoint) (Checkpoint, bool) {
	prev, existed := m.checkpoints[id]
	m.checkpoints[id] = cp
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	m.order = append(m.order, id)
	return prev, existed
}

// Get returns the checkpoint stored under id.
func (m *Manager) Get(id string) (Checkpoint, bool) {
	cp, ok := m.checkpoints[id]
	return cp, ok
}

// Latest returns the most recently stored checkpoint.
func (m *Manager) Latest() (string, Checkpoint, bool) {
	if len(m.order) == 0 {
		return "", Checkpoint{}, false
	}
	id := m.order[len(m.order)-1]
	return id, m.checkpoints[id], true
}

// Delete removes one checkpoint.
func (m *Manager) Delete(id string) {
	delete(m.checkpoints, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
}

// ClearAll removes every checkpoint.
func (m *Manager) ClearAll() {
	m.checkpoints = make(map[string]Checkpoint)
	m.order = nil
}

// IDs lists checkpoint ids, oldest first.
func (m *Manager) IDs() []string {
	return slices.Clone(m.order)
}

// All returns a copy of the checkpoint table.
func (m *Manager) All() map[string]Checkpoint {
	out := make(map[string]Checkpoint, len(m.checkpoints))
	for id, cp := range m.checkpoints {
		out[id] = cp
	}
	return out
}

// SetAll replaces the checkpoint table, ordering it by timestamp.
func (m *Manager) SetAll(cps map[string]Checkpoint) {
	m.ClearAll()
	ids := make([]string, 0, len(cps))
	for id := range cps {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if d := cps[a].Timestamp - cps[b].Timestamp; d != 0 {
			if d < 0 {
				return -1
			}
			return 1
		}
		if a < b {
			return -1
		}
		return 1
	})
	for _, id := range ids {
		m.Put(id, cps[id])
	}
}

// Current returns the current passage id.
func (m *Manager) Current() string {
	return m.current
}

// SetCurrent moves the current passage pointer.
func (m *Manager) SetCurrent(id string) {
	m.current = id
}

// Encode builds the save blob for snap and the manager's checkpoints.
func (m *Manager) Encode(snap state.Snapshot) SaveData {
	return SaveData{
		GameData:         snap.GameData,
		LockedKeys:       snap.LockedKeys,
		OnceKeys:         snap.OnceKeys,
		Checkpoints:      m.All(),
		CurrentPassageID: m.current,
	}
}

// Save writes data under key.
func (m *Manager) Save(ctx context.Context, key string, data SaveData) error {
	if m.blobs == nil {
		return storage.ErrUnavailable
	}
	b, err := json.Marshal(data)
	if err != nil {
		m.logger.Error("Failed to marshal save data", "key", key, "error", err)
		return fmt.Errorf("failed to marshal save data: %w", err)
	}
	if err := m.blobs.Set(ctx, key, string(b)); err != nil {
		m.logger.Warn("Failed to write save", "key", key, "error", err)
		return fmt.Errorf("failed to write save: %w", err)
	}
	return nil
}

// Load reads the blob under key.
func (m *Manager) Load(ctx context.Context, key string) (SaveData, error) {
	if m.blobs == nil {
		return SaveData{}, storage.ErrUnavailable
	}
	raw, err := m.blobs.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return SaveData{}, fmt.Errorf("%w: %s", ErrSaveNotFound, key)
	}
	if err != nil {
		m.logger.Warn("Failed to read save", "key", key, "error", err)
		return SaveData{}, fmt.Errorf("failed to read save: %w", err)
	}
	var data SaveData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		m.logger.Error("Failed to unmarshal save data", "key", key, "error", err)
		return SaveData{}, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	return data, nil
}

// ClearSave removes the blob under key.
func (m *Manager) ClearSave(ctx context.Context, key string) error {
	if m.blobs == nil {
		return storage.ErrUnavailable
	}
	if err := m.blobs.Remove(ctx, key); err != nil {
		m.logger.Warn("Failed to clear save", "key", key, "error", err)
		return fmt.Errorf("failed to clear save: %w", err)
	}
	return nil
}

// Restore loads data into the manager: checkpoints are replaced and the
// pointer moves when the blob names a passage.
func (m *Manager) Restore(data SaveData) {
	m.SetAll(data.Checkpoints)
	if data.HasPassage() {
		m.current = data.CurrentPassageID
	}
}
