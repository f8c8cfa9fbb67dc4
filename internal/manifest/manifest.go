// Package manifest holds the class/method/field/string/debug tables built
// during code generation, mutated once by the linker, and queried by the
// virtual machine. See spec §3 "Manifests".
package manifest

import (
	"fmt"
	"unicode/utf8"

	"github.com/arxlang/arxvm/api"
)

// MaxNameLen is the longest name the fixed-width on-disk name fields hold
// with a NUL terminator, matching spec §8's boundary behaviour ("Method
// names up to 63 bytes are preserved exactly"). AddClass rejects longer
// class names; method and field names are not checked against it.
const MaxNameLen = 63

// Field is a single field record: spec §3's `(field_name, type_tag, offset, size)`.
type Field struct {
	Name   string
	Type   api.ValueKind
	Offset uint64 // byte offset within the owning class instance; set by the linker
	Size   uint32
}

// Method is a single method record: spec §3's `(method_name, method_id,
// offset, param_count, return_type_tag, param_types, return_type)`.
type Method struct {
	Name       string
	ID         uint64
	Offset     uint64 // instruction index into CODE; rewritten by codegen at emission
	ParamTypes []api.ValueKind
	ReturnType api.ValueKind
}

// IsFunction reports whether the method carries a return value across RET,
// per spec §4.4 ("if the frame was a function ... carries the top-of-stack
// value across the restore; procedures do not").
func (m Method) IsFunction() bool { return m.ReturnType != api.KindVoid }

// Class is a single class record plus its inline methods and fields, per
// spec §3's depth-1 tree layout in the CLASSES section.
type Class struct {
	Name         string
	ID           uint64
	ParentID     uint64 // 0 means no parent
	InstanceSize uint64 // Σ field.Size; computed by the linker
	Fields       []Field
	Methods      []Method
}

// DebugLine maps an instruction index to a source line, spec §3's "Debug entry".
type DebugLine struct {
	InstructionIndex uint64
	SourceLine       uint32
}

// Manifest is the full set of tables codegen builds alongside the
// instruction stream. It is created by the generator, mutated once by the
// linker, then frozen by the container writer.
type Manifest struct {
	Classes []*Class
	Strings []string // ordinal-indexed string table; ID is the slice index
	Debug   []DebugLine

	byClassID   map[uint64]*Class
	byClassName map[string]*Class
	internTable map[string]uint32
}

// New returns an empty Manifest ready for incremental construction by the
// code generator.
func New() *Manifest {
	return &Manifest{
		byClassID:   map[uint64]*Class{},
		byClassName: map[string]*Class{},
		internTable: map[string]uint32{},
	}
}

// AddClass registers a new class, rejecting a duplicate ID or name.
func (m *Manifest) AddClass(c *Class) error {
	if len(c.Name) > MaxNameLen {
		return fmt.Errorf("manifest: class name %q exceeds %d bytes", c.Name, MaxNameLen)
	}
	if _, dup := m.byClassID[c.ID]; dup {
		return fmt.Errorf("manifest: duplicate class_id %d", c.ID)
	}
	if _, dup := m.byClassName[c.Name]; dup {
		return fmt.Errorf("manifest: duplicate class name %q", c.Name)
	}
	m.Classes = append(m.Classes, c)
	m.byClassID[c.ID] = c
	m.byClassName[c.Name] = c
	return nil
}

// ClassByID looks up a class by its class_id.
func (m *Manifest) ClassByID(id uint64) (*Class, bool) {
	c, ok := m.byClassID[id]
	return c, ok
}

// ClassByName looks up a class by name.
func (m *Manifest) ClassByName(name string) (*Class, bool) {
	c, ok := m.byClassName[name]
	return c, ok
}

// MethodByName searches for a method named name within receiver, then
// walking ParentID ancestors, and returns the first owning class in the
// chain. It is not the linker's call-site search: internal/linker looks a
// name up across every class and treats duplicates as a link error (spec
// §9's resolved open question).
func (m *Manifest) MethodByName(receiver *Class, name string) (*Class, *Method, bool) {
	for c := receiver; c != nil; {
		for i := range c.Methods {
			if c.Methods[i].Name == name {
				return c, &c.Methods[i], true
			}
		}
		if c.ParentID == 0 {
			break
		}
		parent, ok := m.byClassID[c.ParentID]
		if !ok {
			break
		}
		c = parent
	}
	return nil, nil, false
}

// Intern deduplicates s against the string table keyed by exact byte
// content and returns its ordinal. Two calls with bit-identical s always
// return the same ID (spec §8 round-trip law: "intern(s) == intern(s) for
// bit-identical s").
func (m *Manifest) Intern(s string) (uint32, error) {
	if !utf8.ValidString(s) {
		return 0, fmt.Errorf("manifest: string literal is not valid UTF-8")
	}
	if id, ok := m.internTable[s]; ok {
		return id, nil
	}
	id := uint32(len(m.Strings))
	m.Strings = append(m.Strings, s)
	m.internTable[s] = id
	return id, nil
}

// String returns the interned string for id, or an error if id is out of range.
func (m *Manifest) String(id uint32) (string, error) {
	if int(id) >= len(m.Strings) {
		return "", fmt.Errorf("manifest: string id %d out of range (table has %d entries)", id, len(m.Strings))
	}
	return m.Strings[id], nil
}

// AddDebug appends a debug entry. Debug entries are expected in
// non-decreasing InstructionIndex order, matching bitpack.OffsetArray's
// expected access pattern.
func (m *Manifest) AddDebug(instructionIndex uint64, sourceLine uint32) {
	m.Debug = append(m.Debug, DebugLine{InstructionIndex: instructionIndex, SourceLine: sourceLine})
}

// LineFor returns the source line registered for the nearest debug entry at
// or before pc, and whether any debug entry exists at or before pc. Used by
// vmdebug to annotate traps (spec §7: "the debug line if available").
func (m *Manifest) LineFor(pc uint64) (uint32, bool) {
	if len(m.Debug) == 0 {
		return 0, false
	}
	best, found := uint32(0), false
	for _, d := range m.Debug {
		if d.InstructionIndex > pc {
			break
		}
		best, found = d.SourceLine, true
	}
	return best, found
}
