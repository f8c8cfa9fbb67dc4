package container

import (
	"github.com/arxlang/arxvm/internal/bytecode"
	"github.com/arxlang/arxvm/internal/manifest"
)

// Module is the complete in-memory form of a `.mod` file: the instruction
// stream plus every manifest table. The code generator and linker build
// one of these; the writer serializes it; the reader reconstructs one from
// a file.
type Module struct {
	Code       []bytecode.Instruction
	Manifest   *manifest.Manifest
	EntryPoint uint64

	// Debug is nil when the module carries no DEBUG section.
	Debug *manifest.CompactDebugTable
	// Symbols maps "Class.method" to its bytecode offset. Nil when the
	// module carries no SYMBOLS section.
	Symbols map[string]uint64
	// AppName/AppData are the optional APP section payload: a name and an
	// arbitrary attachment (e.g. an embedded resource), per spec §6's
	// app_name_len/app_data_size header fields.
	AppName string
	AppData []byte

	// Linked records whether internal/linker.Link has already resolved
	// this Module's call sites and finalized its field/instance layout.
	// A module reconstructed by Read is always already linked — the
	// writer only ever serializes the output of a successful Link — so
	// Read sets this true. This is the one authoritative signal linker.Link
	// uses to stay a no-op on an already-linked module (spec §8's
	// idempotence law): a call-site LIT's numeric value alone cannot tell
	// a string-table ID from a method offset, since either can be any
	// uint64, including one small enough to alias a valid string index.
	Linked bool
}
