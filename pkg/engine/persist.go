package engine

import (
	"errors"
	"strings"

	"github.com/jwebster45206/campfire/pkg/checkpoint"
	"github.com/jwebster45206/campfire/pkg/directive"
	"github.com/jwebster45206/campfire/pkg/state"
)

const errMultipleCheckpoints = "Multiple checkpoints in a single passage are not allowed"

// idOf reads a directive's id from its label or one of attrs, in order.
func idOf(n *directive.Node, attrs ...string) string {
	if label := n.LabelText(); label != "" {
		return strings.TrimSpace(state.Unquote(label))
	}
	for _, a := range attrs {
		if v, ok := n.Attributes.Get(a); ok {
			return strings.TrimSpace(state.Unquote(v))
		}
	}
	return ""
}

// handleCheckpoint snapshots the store now and stores the checkpoint once
// its block is kept. Only one checkpoint commits per passage; a second
// rolls the first back.
func handleCheckpoint(f *frame, n *directive.Node) directive.Result {
	id := idOf(n, "id")
	if id == "" {
		f.fail(Malformed, n, "checkpoint requires an id")
		return directive.Remove()
	}
	label, _ := n.Attributes.Get("label")
	cp := checkpoint.New(f.store.Snapshot(), f.pass.passageID, state.Unquote(label), f.eng.now())

	f.later(func() {
		p := f.pass
		mgr := f.eng.checkpoints
		if p.checkpointConflict {
			return
		}
		if first := p.checkpoint; first != nil {
			if first.existed {
				mgr.Put(first.id, first.prev)
			} else {
				mgr.Delete(first.id)
			}
			p.checkpoint = nil
			p.checkpointConflict = true
			f.fail(Policy, n, errMultipleCheckpoints)
			return
		}
		prev, existed := mgr.Put(id, cp)
		p.checkpoint = &committedCheckpoint{id: id, prev: prev, existed: existed}
	})
	return directive.Remove()
}

// handleLoadCheckpoint restores a checkpoint, the most recent one when no id
// is given.
func handleLoadCheckpoint(f *frame, n *directive.Node) directive.Result {
	mgr := f.eng.checkpoints
	id := idOf(n, "id")
	var cp checkpoint.Checkpoint
	var ok bool
	if id == "" {
		id, cp, ok = mgr.Latest()
	} else {
		cp, ok = mgr.Get(id)
	}
	if !ok {
		if id == "" {
			f.fail(Lookup, n, "No checkpoint to load")
		} else {
			f.fail(Lookup, n, "Checkpoint not found: %s", id)
		}
		return directive.Remove()
	}
	f.store.Replace(cp.Snapshot())
	passage := cp.CurrentPassageID
	f.later(func() {
		if passage != "" {
			mgr.SetCurrent(passage)
		}
	})
	return directive.Remove()
}

func handleClearCheckpoint(f *frame, n *directive.Node) directive.Result {
	id := idOf(n, "id")
	mgr := f.eng.checkpoints
	f.later(func() {
		if id == "" {
			mgr.ClearAll()
			return
		}
		mgr.Delete(id)
	})
	return directive.Remove()
}

func (f *frame) saveKey(n *directive.Node) string {
	if key := idOf(n, "id", "key"); key != "" {
		return key
	}
	return f.eng.saveKey
}

// handleSave writes the store as it is at this point. Storage failures are
// logged only.
func handleSave(f *frame, n *directive.Node) directive.Result {
	key := f.saveKey(n)
	snap := f.store.Snapshot()
	eng := f.eng
	ctx := f.ctx()
	f.later(func() {
		_ = eng.checkpoints.Save(ctx, key, eng.checkpoints.Encode(snap))
	})
	return directive.Remove()
}

// handleLoad replaces the store with a saved blob. A blob without a current
// passage still applies but leaves the pointer where it is.
func handleLoad(f *frame, n *directive.Node) directive.Result {
	key := f.saveKey(n)
	mgr := f.eng.checkpoints
	data, err := mgr.Load(f.ctx(), key)
	switch {
	case errors.Is(err, checkpoint.ErrSaveNotFound):
		f.fail(Lookup, n, "Save not found: %s", key)
		return directive.Remove()
	case errors.Is(err, checkpoint.ErrCorruptSave):
		f.fail(Malformed, n, "Save %s is corrupt", key)
		return directive.Remove()
	case err != nil:
		return directive.Remove()
	}

	f.store.Replace(data.Snapshot())
	if !data.HasPassage() {
		f.fail(Malformed, n, "Loaded save data is missing currentPassageId")
	}
	f.later(func() { mgr.Restore(data) })
	return directive.Remove()
}

func handleClearSave(f *frame, n *directive.Node) directive.Result {
	key := f.saveKey(n)
	mgr := f.eng.checkpoints
	ctx := f.ctx()
	f.later(func() {
		_ = mgr.ClearSave(ctx, key)
	})
	return directive.Remove()
}
