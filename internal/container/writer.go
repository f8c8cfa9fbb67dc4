package container

import (
	"fmt"
	"os"

	"github.com/arxlang/arxvm/internal/bytecode"
)

// WriteOptions controls which optional sections the writer emits.
type WriteOptions struct {
	EmitDebug   bool
	EmitSymbols bool
}

// Write serializes m and returns the complete file bytes. Per spec §4.5,
// the writer never re-reads what it wrote: it builds the header and TOC
// with placeholder values, appends every section payload while tracking a
// running data offset, then goes back and overwrites only the header and
// TOC bytes it already knows — it never inspects the section bytes it just
// appended to decide anything.
func Write(m *Module, opts WriteOptions) ([]byte, error) {
	sections := make(map[string][]byte, TOCEntryCount)
	sections[SectionCode] = bytecode.EncodeStream(m.Code)
	stringsBytes, err := encodeStrings(m.Manifest.Strings)
	if err != nil {
		return nil, err
	}
	sections[SectionStrings] = stringsBytes
	sections[SectionClasses] = encodeClasses(m.Manifest.Classes)
	if opts.EmitDebug {
		sections[SectionDebug] = encodeDebug(m.Manifest.Debug)
	}
	if opts.EmitSymbols {
		sections[SectionSymbols] = encodeSymbols(m.Manifest.Classes)
	}
	sections[SectionApp] = append([]byte(m.AppName), m.AppData...)

	if len(m.AppName) > int(^uint32(0)) || len(m.AppData) > int(^uint32(0)) {
		return nil, fmt.Errorf("container: app section too large")
	}

	// First pass: reserve zeroed header + TOC space, then append each
	// payload while recording its offset relative to the data region.
	buf := make([]byte, HeaderSize+TOCEntryCount*TOCEntrySize)
	tocEntries := make([]tocEntry, TOCEntryCount)
	dataOffset := uint64(0)
	for i, name := range sectionOrder {
		payload := sections[name]
		tocEntries[i] = tocEntry{Name: name, Offset: dataOffset, Size: uint64(len(payload))}
		buf = append(buf, payload...)
		dataOffset += uint64(len(payload))
	}

	flags := uint32(0)
	if opts.EmitDebug {
		flags |= flagHasDebug
	}
	if opts.EmitSymbols {
		flags |= flagHasSymbols
	}
	header := Header{
		Version:     Version,
		Flags:       flags,
		HeaderSize:  HeaderSize,
		TOCOffset:   HeaderSize,
		TOCSize:     TOCEntryCount * TOCEntrySize,
		DataOffset:  HeaderSize + TOCEntryCount*TOCEntrySize,
		DataSize:    dataOffset,
		AppNameLen:  uint32(len(m.AppName)),
		AppDataSize: uint32(len(m.AppData)),
		EntryPoint:  m.EntryPoint,
	}

	// Second pass: go back and fill in the header and TOC region now that
	// every size and offset is known.
	copy(buf[0:HeaderSize], header.encode())
	for i, e := range tocEntries {
		copy(buf[HeaderSize+i*TOCEntrySize:HeaderSize+(i+1)*TOCEntrySize], e.encode())
	}
	return buf, nil
}

// WriteFile writes m to path. Per spec §7, writer failures are not
// resumable: if serialization or the file write fails, any partially
// written file at path is removed.
func WriteFile(path string, m *Module, opts WriteOptions) (err error) {
	data, err := Write(m, opts)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("container: %w", err)
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("container: write %s: %w", path, err)
	}
	return nil
}
