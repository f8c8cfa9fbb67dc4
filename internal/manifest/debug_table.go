package manifest

import "github.com/arxlang/arxvm/internal/bitpack"

// CompactDebugTable is a compact view of a DEBUG section, built once by
// container.Read. Instruction indices are delta-encoded via
// bitpack.OffsetArray; LineFor scans them in order and is called by
// vmdebug.Decorate when it annotates a trap.
type CompactDebugTable struct {
	indices bitpack.OffsetArray
	lines   []uint32
}

// NewCompactDebugTable builds a table from entries, which must already be
// sorted by InstructionIndex (the order the code generator emits them in).
func NewCompactDebugTable(entries []DebugLine) *CompactDebugTable {
	indices := make([]uint64, len(entries))
	lines := make([]uint32, len(entries))
	for i, e := range entries {
		indices[i] = e.InstructionIndex
		lines[i] = e.SourceLine
	}
	return &CompactDebugTable{indices: bitpack.NewOffsetArray(indices), lines: lines}
}

// LineFor returns the source line of the nearest debug entry at or before
// pc, and whether any debug entry exists at or before pc at all.
func (t *CompactDebugTable) LineFor(pc uint64) (uint32, bool) {
	n := bitpack.Len(t.indices)
	best, found := uint32(0), false
	for i := 0; i < n; i++ {
		if t.indices.Index(i) > pc {
			break
		}
		best, found = t.lines[i], true
	}
	return best, found
}
