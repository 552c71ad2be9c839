package directive

// Kind identifies an engine directive.
type Kind int

const (
	KindUnknown Kind = iota
	KindSet
	KindSetOnce
	KindArray
	KindArrayOnce
	KindCreateRange
	KindSetRange
	KindRandom
	KindRandomOnce
	KindPush
	KindPop
	KindShift
	KindUnshift
	KindSplice
	KindConcat
	KindUnset
	KindEval
	KindIf
	KindElseIf
	KindElse
	KindFor
	KindBatch
	KindOnce
	KindInclude
	KindOnExit
	KindShow
	KindCheckpoint
	KindLoadCheckpoint
	KindClearCheckpoint
	KindSave
	KindLoad
	KindClearSave
)

var kindNames = map[string]Kind{
	"set":             KindSet,
	"setOnce":         KindSetOnce,
	"array":           KindArray,
	"arrayOnce":       KindArrayOnce,
	"createRange":     KindCreateRange,
	"setRange":        KindSetRange,
	"random":          KindRandom,
	"randomOnce":      KindRandomOnce,
	"push":            KindPush,
	"pop":             KindPop,
	"shift":           KindShift,
	"unshift":         KindUnshift,
	"splice":          KindSplice,
	"concat":          KindConcat,
	"unset":           KindUnset,
	"eval":            KindEval,
	"if":              KindIf,
	"elseif":          KindElseIf,
	"else":            KindElse,
	"for":             KindFor,
	"batch":           KindBatch,
	"once":            KindOnce,
	"include":         KindInclude,
	"onExit":          KindOnExit,
	"show":            KindShow,
	"checkpoint":      KindCheckpoint,
	"loadCheckpoint":  KindLoadCheckpoint,
	"clearCheckpoint": KindClearCheckpoint,
	"save":            KindSave,
	"load":            KindLoad,
	"clearSave":       KindClearSave,
}

var kindStrings = func() map[Kind]string {
	m := make(map[Kind]string, len(kindNames))
	for name, k := range kindNames {
		m[k] = name
	}
	return m
}()

// KindOf maps a directive name to its kind. Unrecognized names are
// KindUnknown and pass through the engine untouched.
func KindOf(name string) Kind {
	return kindNames[name]
}

// KindOfNode returns the kind of n, or KindUnknown for non-directive nodes.
func KindOfNode(n *Node) Kind {
	if n == nil || !n.IsDirective() {
		return KindUnknown
	}
	return KindOf(n.Name)
}

func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return "unknown"
}

// Pure reports whether k only touches game state. Batch and onExit blocks
// accept nothing else.
func (k Kind) Pure() bool {
	switch k {
	case KindSet, KindSetOnce, KindArray, KindArrayOnce, KindCreateRange,
		KindSetRange, KindRandom, KindRandomOnce, KindPush, KindPop, KindShift,
		KindUnshift, KindSplice, KindConcat, KindUnset, KindEval,
		KindIf, KindElseIf, KindElse, KindFor:
		return true
	}
	return false
}
