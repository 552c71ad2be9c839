package state

// Snapshot is a deep copy of a store's full contents.
type Snapshot struct {
	GameData   map[string]any  `json:"gameData"`
	LockedKeys map[string]bool `json:"lockedKeys"`
	OnceKeys   map[string]bool `json:"onceKeys"`
}

// Store is the hierarchical game-state container. It tracks locked
// top-level keys, once markers, and the ChangeSet of every write made
// through it. A Store is not safe for concurrent use.
type Store struct {
	data    map[string]any
	locked  map[string]bool
	once    map[string]bool
	changes ChangeSet

	// bound holds keys written by Bind; snapshots leave them out.
	bound map[string]bool
}

// SetOption configures a single SetValue call.
type SetOption func(*setOptions)

type setOptions struct {
	lock bool
}

// WithLock locks the top-level key once the write succeeds.
func WithLock() SetOption {
	return func(o *setOptions) { o.lock = true }
}

// LockIf is WithLock when lock is true, a no-op otherwise.
func LockIf(lock bool) SetOption {
	return func(o *setOptions) { o.lock = o.lock || lock }
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		data:   make(map[string]any),
		locked: make(map[string]bool),
		once:   make(map[string]bool),
	}
}

// NewStoreFrom creates a store seeded with a snapshot. Seeding is not
// recorded as a change.
func NewStoreFrom(snap Snapshot) *Store {
	s := NewStore()
	for k, v := range snap.GameData {
		s.data[k] = Normalize(DeepCopy(v))
	}
	s.locked = copySet(snap.LockedKeys)
	s.once = copySet(snap.OnceKeys)
	return s
}

// GetValue returns a copy of the value at path. Missing segments report
// false instead of failing.
func (s *Store) GetValue(path string) (any, bool) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return nil, false
	}
	v, ok := getIn(s.data, segs)
	if !ok {
		return nil, false
	}
	return DeepCopy(v), true
}

// SetValue writes value at path, creating intermediate objects. Writes under
// a locked top-level key are silently dropped. It reports whether the write
// happened.
func (s *Store) SetValue(path string, value any, opts ...SetOption) bool {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	segs := SplitPath(path)
	if len(segs) == 0 || s.locked[segs[0]] {
		return false
	}
	if !s.write(segs, Normalize(value)) {
		return false
	}
	if o.lock {
		s.locked[segs[0]] = true
		s.changes.recordLock(segs[0])
	}
	return true
}

func (s *Store) write(segs []string, value any) bool {
	next, ok := setIn(s.data, segs, DeepCopy(value))
	if !ok {
		return false
	}
	s.data = next.(map[string]any)
	delete(s.bound, segs[0])
	stored, _ := getIn(s.data, segs)
	s.changes.recordSet(segs, stored)
	return true
}

// UnsetValue removes path and re-arms its top-level key: the key leaves
// both LockedKeys and OnceKeys.
func (s *Store) UnsetValue(path string) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return
	}
	next, _ := unsetIn(s.data, segs)
	s.data = next.(map[string]any)
	delete(s.locked, segs[0])
	delete(s.once, segs[0])
	if len(segs) == 1 {
		delete(s.bound, segs[0])
	}
	s.changes.recordUnset(segs)
}

// SetRange writes a RangeValue at path with value clamped into [min, max].
func (s *Store) SetRange(path string, min, max, value float64, opts ...SetOption) bool {
	return s.SetValue(path, NewRange(min, max, value), opts...)
}

// Bind writes a top-level key without recording it and regardless of locks.
// Loop iterations use it for their variable. Bound keys are readable but
// never part of a Snapshot.
func (s *Store) Bind(key string, value any) {
	s.data[key] = Normalize(DeepCopy(value))
	if s.bound == nil {
		s.bound = make(map[string]bool)
	}
	s.bound[key] = true
}

// forgetOnce drops a once marker by id.
func (s *Store) forgetOnce(id string) {
	if !s.once[id] {
		return
	}
	delete(s.once, id)
	s.changes.recordForget(id)
}

// IsLocked reports whether the top-level key of path is locked.
func (s *Store) IsLocked(path string) bool {
	return s.locked[TopKey(path)]
}

// MarkOnce records that the one-time block id has run.
func (s *Store) MarkOnce(id string) {
	if id == "" || s.once[id] {
		return
	}
	s.once[id] = true
	s.changes.recordOnce(id)
}

// HasOnce reports whether the one-time block id already ran.
func (s *Store) HasOnce(id string) bool {
	return s.once[id]
}

// CreateScope returns an independent child store seeded with a structural
// clone of this store's data, locks and once markers. Writes to the child
// accumulate in its own ChangeSet and never touch the parent.
func (s *Store) CreateScope() *Store {
	return &Store{
		data:   copyData(s.data),
		locked: copySet(s.locked),
		once:   copySet(s.once),
		bound:  copySet(s.bound),
	}
}

// Changes returns a copy of the diff accumulated so far.
func (s *Store) Changes() ChangeSet {
	return s.changes.clone()
}

// ClearChanges forgets the accumulated diff.
func (s *Store) ClearChanges() {
	s.changes = ChangeSet{}
}

// ApplyChanges merges a child scope's ChangeSet into this store: unsets
// remove, sets override, locks and once markers union in. The merge is
// itself recorded so nested scopes propagate upward.
func (s *Store) ApplyChanges(cs ChangeSet) {
	for _, p := range cs.Unset {
		s.UnsetValue(p)
	}
	for _, id := range cs.Forget {
		s.forgetOnce(id)
	}
	for _, p := range sortedKeys(cs.Data) {
		segs := SplitPath(p)
		if len(segs) == 0 {
			continue
		}
		s.write(segs, Normalize(cs.Data[p]))
	}
	for _, k := range cs.Locks {
		if !s.locked[k] {
			s.locked[k] = true
			s.changes.recordLock(k)
		}
	}
	for _, id := range cs.Once {
		s.MarkOnce(id)
	}
}

// Snapshot returns a deep copy of data, locks and once markers. Keys
// written by Bind are left out.
func (s *Store) Snapshot() Snapshot {
	data := copyData(s.data)
	for k := range s.bound {
		delete(data, k)
	}
	return Snapshot{
		GameData:   data,
		LockedKeys: copySet(s.locked),
		OnceKeys:   copySet(s.once),
	}
}

// Replace swaps the store's contents for snap wholesale. The replacement is
// recorded as unset-everything followed by the new values, so a scope that
// restores a snapshot still merges correctly.
func (s *Store) Replace(snap Snapshot) {
	keys := make(map[string]bool)
	for k := range s.data {
		keys[k] = true
	}
	for k := range s.locked {
		keys[k] = true
	}
	for _, k := range sortedKeys(keys) {
		s.UnsetValue(k)
	}
	for _, id := range sortedKeys(s.once) {
		s.forgetOnce(id)
	}
	for _, k := range sortedKeys(snap.GameData) {
		s.write([]string{k}, Normalize(snap.GameData[k]))
	}
	for _, k := range sortedKeys(snap.LockedKeys) {
		if snap.LockedKeys[k] {
			s.locked[k] = true
			s.changes.recordLock(k)
		}
	}
	for _, id := range sortedKeys(snap.OnceKeys) {
		if snap.OnceKeys[id] {
			s.MarkOnce(id)
		}
	}
}

// Data returns a deep copy of the game data.
func (s *Store) Data() map[string]any {
	return copyData(s.data)
}

// Keys lists the top-level keys in sorted order.
func (s *Store) Keys() []string {
	return sortedKeys(s.data)
}

// LockedKeys lists locked keys in sorted order.
func (s *Store) LockedKeys() []string {
	return sortedKeys(s.locked)
}

// OnceKeys lists once markers in sorted order.
func (s *Store) OnceKeys() []string {
	return sortedKeys(s.once)
}
