package container

import (
	"encoding/binary"
	"fmt"

	"github.com/arxlang/arxvm/api"
	"github.com/arxlang/arxvm/internal/manifest"
)

// nameFieldSize is the fixed width of every name[N] field in spec §3: 63
// meaningful bytes (spec §8's boundary behaviour) plus one NUL terminator.
const nameFieldSize = manifest.MaxNameLen + 1

// fieldRecordSize is the on-disk size of one field record: name[64] +
// type_tag(4) + type_class_id(8) + offset(8) + size(4).
//
// spec §3 writes the field record as `(field_name[N], type_tag u32, offset
// u64, size u32)`. A field whose type is an object reference needs to know
// *which* class, so this package carries that as an explicit
// type_class_id alongside type_tag (zero when the field isn't an object) —
// see DESIGN.md's resolution of the param_types[M]/return_type[M]
// notation.
const fieldRecordSize = nameFieldSize + 4 + 8 + 8 + 4

// methodRecordFixedSize is the fixed-width prefix of a method record before
// its param_count-sized arrays: name[64] + method_id(8) + offset(8) +
// param_count(4) + return_type_tag(4).
const methodRecordFixedSize = nameFieldSize + 8 + 8 + 4 + 4

// classRecordSize is the fixed-width class record: name[64] + class_id(8)
// + field_count(4) + method_count(4) + parent_class_id(8) +
// instance_size(8).
const classRecordSize = nameFieldSize + 8 + 4 + 4 + 8 + 8

func encodeName(name string) []byte {
	buf := make([]byte, nameFieldSize)
	copy(buf, name)
	return buf
}

func decodeName(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

func methodRecordSize(paramCount int) int {
	return methodRecordFixedSize + paramCount*(1+8) + 8 // +8 for return_class_id
}

func encodeMethod(m manifest.Method) []byte {
	buf := make([]byte, methodRecordSize(len(m.ParamTypes)))
	le := binary.LittleEndian
	copy(buf[0:nameFieldSize], encodeName(m.Name))
	off := nameFieldSize
	le.PutUint64(buf[off:off+8], m.ID)
	off += 8
	le.PutUint64(buf[off:off+8], m.Offset)
	off += 8
	le.PutUint32(buf[off:off+4], uint32(len(m.ParamTypes)))
	off += 4
	le.PutUint32(buf[off:off+4], uint32(m.ReturnType))
	off += 4
	for _, t := range m.ParamTypes {
		buf[off] = t
		off++
	}
	for range m.ParamTypes {
		// Parameter class references are not tracked by the manifest, so
		// this package always writes zero here, as it does for field and
		// return class ids.
		le.PutUint64(buf[off:off+8], 0)
		off += 8
	}
	le.PutUint64(buf[off:off+8], 0) // return_class_id
	return buf
}

func decodeMethod(buf []byte) (manifest.Method, int, error) {
	if len(buf) < methodRecordFixedSize {
		return manifest.Method{}, 0, fmt.Errorf("%w: truncated method record", ErrInvalidModule)
	}
	le := binary.LittleEndian
	name := decodeName(buf[0:nameFieldSize])
	off := nameFieldSize
	id := le.Uint64(buf[off : off+8])
	off += 8
	offset := le.Uint64(buf[off : off+8])
	off += 8
	paramCount := int(le.Uint32(buf[off : off+4]))
	off += 4
	returnType := api.ValueKind(le.Uint32(buf[off : off+4]))
	off += 4

	need := methodRecordSize(paramCount)
	if len(buf) < need {
		return manifest.Method{}, 0, fmt.Errorf("%w: truncated method record %q", ErrInvalidModule, name)
	}
	paramTypes := make([]api.ValueKind, paramCount)
	for i := 0; i < paramCount; i++ {
		paramTypes[i] = buf[off]
		off++
	}
	off += paramCount * 8 // skip param_class_id entries
	off += 8              // skip return_class_id

	return manifest.Method{
		Name: name, ID: id, Offset: offset, ParamTypes: paramTypes, ReturnType: returnType,
	}, need, nil
}

func encodeField(f manifest.Field) []byte {
	buf := make([]byte, fieldRecordSize)
	le := binary.LittleEndian
	copy(buf[0:nameFieldSize], encodeName(f.Name))
	off := nameFieldSize
	le.PutUint32(buf[off:off+4], uint32(f.Type))
	off += 4
	le.PutUint64(buf[off:off+8], 0) // type_class_id, always written as zero
	off += 8
	le.PutUint64(buf[off:off+8], f.Offset)
	off += 8
	le.PutUint32(buf[off:off+4], f.Size)
	return buf
}

func decodeField(buf []byte) (manifest.Field, error) {
	if len(buf) < fieldRecordSize {
		return manifest.Field{}, fmt.Errorf("%w: truncated field record", ErrInvalidModule)
	}
	le := binary.LittleEndian
	name := decodeName(buf[0:nameFieldSize])
	off := nameFieldSize
	typ := api.ValueKind(le.Uint32(buf[off : off+4]))
	off += 4 + 8 // skip type_class_id
	offset := le.Uint64(buf[off : off+8])
	off += 8
	size := le.Uint32(buf[off : off+4])
	return manifest.Field{Name: name, Type: typ, Offset: offset, Size: size}, nil
}

// encodeClasses serializes the CLASSES section: each class record followed
// inline by its methods then its fields, per spec §3/§4.5.
func encodeClasses(classes []*manifest.Class) []byte {
	var buf []byte
	for _, c := range classes {
		head := make([]byte, classRecordSize)
		le := binary.LittleEndian
		copy(head[0:nameFieldSize], encodeName(c.Name))
		off := nameFieldSize
		le.PutUint64(head[off:off+8], c.ID)
		off += 8
		le.PutUint32(head[off:off+4], uint32(len(c.Fields)))
		off += 4
		le.PutUint32(head[off:off+4], uint32(len(c.Methods)))
		off += 4
		le.PutUint64(head[off:off+8], c.ParentID)
		off += 8
		le.PutUint64(head[off:off+8], c.InstanceSize)
		buf = append(buf, head...)
		for _, m := range c.Methods {
			buf = append(buf, encodeMethod(m)...)
		}
		for _, f := range c.Fields {
			buf = append(buf, encodeField(f)...)
		}
	}
	return buf
}

// decodeClasses parses the CLASSES section back into class records. This
// is necessarily two-pass within each record (count then parse), which
// spec §9 explicitly allows: "the on-disk layout is the invariant, not the
// traversal strategy."
func decodeClasses(data []byte) ([]*manifest.Class, error) {
	var classes []*manifest.Class
	pos := 0
	for pos < len(data) {
		if len(data)-pos < classRecordSize {
			return nil, fmt.Errorf("%w: truncated class record", ErrInvalidModule)
		}
		head := data[pos : pos+classRecordSize]
		le := binary.LittleEndian
		name := decodeName(head[0:nameFieldSize])
		off := nameFieldSize
		id := le.Uint64(head[off : off+8])
		off += 8
		fieldCount := int(le.Uint32(head[off : off+4]))
		off += 4
		methodCount := int(le.Uint32(head[off : off+4]))
		off += 4
		parentID := le.Uint64(head[off : off+8])
		off += 8
		instanceSize := le.Uint64(head[off : off+8])
		pos += classRecordSize

		methods := make([]manifest.Method, 0, methodCount)
		for i := 0; i < methodCount; i++ {
			m, n, err := decodeMethod(data[pos:])
			if err != nil {
				return nil, fmt.Errorf("%w: class %q method %d: %v", ErrInvalidModule, name, i, err)
			}
			methods = append(methods, m)
			pos += n
		}
		fields := make([]manifest.Field, 0, fieldCount)
		for i := 0; i < fieldCount; i++ {
			if len(data)-pos < fieldRecordSize {
				return nil, fmt.Errorf("%w: class %q field %d: truncated", ErrInvalidModule, name, i)
			}
			f, err := decodeField(data[pos : pos+fieldRecordSize])
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
			pos += fieldRecordSize
		}

		classes = append(classes, &manifest.Class{
			Name: name, ID: id, ParentID: parentID, InstanceSize: instanceSize,
			Fields: fields, Methods: methods,
		})
	}
	return classes, nil
}

// maxStringsSectionSize bounds the STRINGS section: the encoded run must
// fit a uint32 byte count, since nothing in the TOC addresses a section by
// more than that (spec §6's tocEntry.size is 8 bytes wide, but the
// STRINGS section itself is walked by scanning for NUL bytes, which needs
// the total length to stay within what the format's own size accounting
// can represent without ambiguity).
const maxStringsSectionSize = ^uint32(0)

// encodeStrings serializes the STRINGS section as back-to-back
// null-terminated UTF-8 byte runs; a string's ordinal in this section is
// its string-table ID, exactly manifest.Intern's contract. UTF-8 validity
// was already checked once, by Intern, at the moment each literal was
// deduplicated, so this only needs to guard the section's total size.
func encodeStrings(strs []string) ([]byte, error) {
	var total uint64
	for i, s := range strs {
		total += uint64(len(s)) + 1 // +1 for the trailing NUL
		if total > uint64(maxStringsSectionSize) {
			return nil, fmt.Errorf("%w: STRINGS entry %d would overflow the section size field", ErrInvalidModule, i)
		}
	}
	buf := make([]byte, 0, total)
	for _, s := range strs {
		buf = append(buf, s...)
		buf = append(buf, 0)
	}
	return buf, nil
}

func decodeStrings(data []byte) ([]string, error) {
	var strs []string
	start := 0
	for i, b := range data {
		if b == 0 {
			strs = append(strs, string(data[start:i]))
			start = i + 1
		}
	}
	if start != len(data) {
		return nil, fmt.Errorf("%w: STRINGS section missing trailing NUL", ErrInvalidModule)
	}
	return strs, nil
}

// symbol pairs a fully-qualified "Class.method" name with its bytecode
// offset, for the optional SYMBOLS section. Read exposes it as
// Module.Symbols; `dump` and trap diagnostics take method names from the
// CLASSES manifest instead.
type symbol struct {
	Name   string
	Offset uint64
}

func encodeSymbols(classes []*manifest.Class) []byte {
	var buf []byte
	for _, c := range classes {
		for _, m := range c.Methods {
			buf = append(buf, []byte(c.Name+"."+m.Name)...)
			buf = append(buf, 0)
			off := make([]byte, 8)
			binary.LittleEndian.PutUint64(off, m.Offset)
			buf = append(buf, off...)
		}
	}
	return buf
}

func decodeSymbols(data []byte) ([]symbol, error) {
	var out []symbol
	pos := 0
	for pos < len(data) {
		nameEnd := pos
		for nameEnd < len(data) && data[nameEnd] != 0 {
			nameEnd++
		}
		if nameEnd == len(data) || nameEnd+1+8 > len(data) {
			return nil, fmt.Errorf("%w: truncated SYMBOLS entry", ErrInvalidModule)
		}
		name := string(data[pos:nameEnd])
		offset := binary.LittleEndian.Uint64(data[nameEnd+1 : nameEnd+9])
		out = append(out, symbol{Name: name, Offset: offset})
		pos = nameEnd + 9
	}
	return out, nil
}

const debugRecordSize = 8 + 4

func encodeDebug(entries []manifest.DebugLine) []byte {
	buf := make([]byte, len(entries)*debugRecordSize)
	le := binary.LittleEndian
	for i, e := range entries {
		off := i * debugRecordSize
		le.PutUint64(buf[off:off+8], e.InstructionIndex)
		le.PutUint32(buf[off+8:off+12], e.SourceLine)
	}
	return buf
}

func decodeDebug(data []byte) ([]manifest.DebugLine, error) {
	if len(data)%debugRecordSize != 0 {
		return nil, fmt.Errorf("%w: DEBUG section size %d not a multiple of %d", ErrInvalidModule, len(data), debugRecordSize)
	}
	n := len(data) / debugRecordSize
	out := make([]manifest.DebugLine, n)
	le := binary.LittleEndian
	for i := 0; i < n; i++ {
		off := i * debugRecordSize
		out[i] = manifest.DebugLine{
			InstructionIndex: le.Uint64(data[off : off+8]),
			SourceLine:       le.Uint32(data[off+8 : off+12]),
		}
	}
	return out, nil
}
