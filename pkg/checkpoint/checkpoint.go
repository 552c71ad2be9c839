package checkpoint

import (
	"time"

	"github.com/jwebster45206/campfire/pkg/state"
)

// DefaultSaveKey is the blob key used when a save directive names none.
const DefaultSaveKey = "campfire.save"

// Checkpoint is a named, restorable snapshot of game state plus the passage
// the player was on.
type Checkpoint struct {
	GameData         map[string]any  `json:"gameData"`
	LockedKeys       map[string]bool `json:"lockedKeys"`
	OnceKeys         map[string]bool `json:"onceKeys"`
	CurrentPassageID string          `json:"currentPassageId"`
	Label            string          `json:"label,omitempty"`
	Timestamp        int64           `json:"timestamp"` // Unix milliseconds
}

// New captures snap for passageID at time now.
func New(snap state.Snapshot, passageID, label string, now time.Time) Checkpoint {
	return Checkpoint{
		GameData:         snap.GameData,
		LockedKeys:       snap.LockedKeys,
		OnceKeys:         snap.OnceKeys,
		CurrentPassageID: passageID,
		Label:            label,
		Timestamp:        now.UnixMilli(),
	}
}

// Snapshot returns the captured store contents.
func (c Checkpoint) Snapshot() state.Snapshot {
	return state.Snapshot{
		GameData:   c.GameData,
		LockedKeys: c.LockedKeys,
		OnceKeys:   c.OnceKeys,
	}
}

// SaveData is the persisted blob.
type SaveData struct {
	GameData         map[string]any        `json:"gameData"`
	LockedKeys       map[string]bool       `json:"lockedKeys"`
	OnceKeys         map[string]bool       `json:"onceKeys"`
	Checkpoints      map[string]Checkpoint `json:"checkpoints"`
	CurrentPassageID string                `json:"currentPassageId,omitempty"`
}

// Snapshot returns the saved store contents.
func (d SaveData) Snapshot() state.Snapshot {
	return state.Snapshot{
		GameData:   d.GameData,
		LockedKeys: d.LockedKeys,
		OnceKeys:   d.OnceKeys,
	}
}

// HasPassage reports whether the blob names a current passage.
func (d SaveData) HasPassage() bool {
	return d.CurrentPassageID != ""
}
