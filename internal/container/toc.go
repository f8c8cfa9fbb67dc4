package container

import (
	"encoding/binary"
	"fmt"
)

// Section names, in the fixed order they occupy the table of contents.
// Only CODE is required for execution; the rest are optional and a reader
// tolerates their absence by returning an empty section.
const (
	SectionCode    = "CODE"
	SectionStrings = "STRINGS"
	SectionSymbols = "SYMBOLS"
	SectionDebug   = "DEBUG"
	SectionClasses = "CLASSES"
	SectionApp     = "APP"
)

// sectionOrder is the writer's fixed TOC layout: one slot per name, always
// TOCEntryCount of them, empty ones recorded with size zero.
var sectionOrder = [TOCEntryCount]string{
	SectionCode, SectionStrings, SectionSymbols, SectionDebug, SectionClasses, SectionApp,
}

const tocNameSize = 16

// tocEntry is one 32-byte table-of-contents record: a null-padded ASCII
// name, an offset relative to the data region, and a size in bytes.
type tocEntry struct {
	Name   string
	Offset uint64
	Size   uint64
}

func (e tocEntry) encode() []byte {
	buf := make([]byte, TOCEntrySize)
	if len(e.Name) > tocNameSize {
		panic(fmt.Sprintf("container: section name %q exceeds %d bytes", e.Name, tocNameSize))
	}
	copy(buf[0:tocNameSize], e.Name)
	le := binary.LittleEndian
	le.PutUint64(buf[16:24], e.Offset)
	le.PutUint64(buf[24:32], e.Size)
	return buf
}

func decodeTOCEntry(buf []byte) tocEntry {
	le := binary.LittleEndian
	name := buf[0:tocNameSize]
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	return tocEntry{
		Name:   string(name[:n]),
		Offset: le.Uint64(buf[16:24]),
		Size:   le.Uint64(buf[24:32]),
	}
}
