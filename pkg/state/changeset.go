package state

import "slices"

// ChangeSet is the minimal diff accumulated by a store since it was created
// or last cleared. It is how a scope's result is merged into its parent
// without copying the whole store.
//
// Data maps dot paths to values. No recorded path is ever an ancestor of
// another, so the order in which Data is applied does not matter.
// ApplyChanges applies Unset first, then Forget, Data, Locks and Once.
// Unsets are kept even when a later write recreates the path because they
// also re-arm the top-level key's lock and once marker. Forget lists once
// ids dropped wholesale by a restore; ids may contain dots and are never
// treated as paths.
type ChangeSet struct {
	Data   map[string]any `json:"data,omitempty"`
	Unset  []string       `json:"unset,omitempty"`
	Forget []string       `json:"forget,omitempty"`
	Locks  []string       `json:"locks,omitempty"`
	Once   []string       `json:"once,omitempty"`
}

// IsEmpty checks if the ChangeSet records nothing
func (cs *ChangeSet) IsEmpty() bool {
	return cs == nil || (len(cs.Data) == 0 &&
		len(cs.Unset) == 0 &&
		len(cs.Forget) == 0 &&
		len(cs.Locks) == 0 &&
		len(cs.Once) == 0)
}

// Without returns a copy of cs with every entry under the top-level key
// removed. Loops use it to keep their variable out of persistent state.
func (cs ChangeSet) Without(key string) ChangeSet {
	out := ChangeSet{
		Data:   make(map[string]any, len(cs.Data)),
		Forget: slices.Clone(cs.Forget),
	}
	for p, v := range cs.Data {
		if TopKey(p) != key {
			out.Data[p] = v
		}
	}
	for _, p := range cs.Unset {
		if TopKey(p) != key {
			out.Unset = append(out.Unset, p)
		}
	}
	for _, k := range cs.Locks {
		if k != key {
			out.Locks = append(out.Locks, k)
		}
	}
	for _, k := range cs.Once {
		if k != key {
			out.Once = append(out.Once, k)
		}
	}
	return out
}

func (cs ChangeSet) clone() ChangeSet {
	out := ChangeSet{
		Data:  make(map[string]any, len(cs.Data)),
		Unset:  slices.Clone(cs.Unset),
		Forget: slices.Clone(cs.Forget),
		Locks:  slices.Clone(cs.Locks),
		Once:   slices.Clone(cs.Once),
	}
	for p, v := range cs.Data {
		out.Data[p] = DeepCopy(v)
	}
	return out
}

func (cs *ChangeSet) recordSet(segs []string, value any) {
	if cs.Data == nil {
		cs.Data = make(map[string]any)
	}
	path := joinPath(segs)
	for p := range cs.Data {
		if isWithin(p, path) {
			delete(cs.Data, p)
		}
	}

	// An ancestor already recorded absorbs the write.
	for i := len(segs) - 1; i > 0; i-- {
		anc := joinPath(segs[:i])
		if v, ok := cs.Data[anc]; ok {
			next, _ := setIn(v, segs[i:], DeepCopy(value))
			cs.Data[anc] = next
			return
		}
	}
	cs.Data[path] = DeepCopy(value)
}

func (cs *ChangeSet) recordUnset(segs []string) {
	path := joinPath(segs)
	for p := range cs.Data {
		if isWithin(p, path) {
			delete(cs.Data, p)
		}
	}
	for i := len(segs) - 1; i > 0; i-- {
		anc := joinPath(segs[:i])
		if v, ok := cs.Data[anc]; ok {
			next, _ := unsetIn(v, segs[i:])
			cs.Data[anc] = next
			break
		}
	}
	if !slices.Contains(cs.Unset, path) {
		cs.Unset = append(cs.Unset, path)
	}
	top := segs[0]
	cs.Locks = slices.DeleteFunc(cs.Locks, func(k string) bool { return k == top })
	cs.Once = slices.DeleteFunc(cs.Once, func(k string) bool { return k == top })
}

func (cs *ChangeSet) recordLock(key string) {
	if !slices.Contains(cs.Locks, key) {
		cs.Locks = append(cs.Locks, key)
	}
}

func (cs *ChangeSet) recordOnce(id string) {
	if !slices.Contains(cs.Once, id) {
		cs.Once = append(cs.Once, id)
	}
}

func (cs *ChangeSet) recordForget(id string) {
	cs.Once = slices.DeleteFunc(cs.Once, func(k string) bool { return k == id })
	if !slices.Contains(cs.Forget, id) {
		cs.Forget = append(cs.Forget, id)
	}
}
