package container

import (
	"fmt"

	"github.com/arxlang/arxvm/internal/bytecode"
	"github.com/arxlang/arxvm/internal/manifest"
)

// Read parses a complete `.mod` file image into a Module. Only the CODE
// section is required; missing optional sections (STRINGS, SYMBOLS, DEBUG,
// CLASSES, APP) decode as empty rather than as an error, per spec §4.5.
func Read(data []byte) (*Module, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: file too short for header (%d bytes)", ErrInvalidModule, len(data))
	}
	header, err := decodeHeader(data[:HeaderSize])
	if err != nil {
		return nil, err
	}

	tocStart := header.TOCOffset
	tocEnd := tocStart + header.TOCSize
	if tocEnd > uint64(len(data)) || header.TOCSize%TOCEntrySize != 0 {
		return nil, fmt.Errorf("%w: TOC out of range", ErrInvalidModule)
	}
	entryCount := int(header.TOCSize / TOCEntrySize)
	entries := make(map[string]tocEntry, entryCount)
	seen := make(map[string]bool, entryCount)
	prevEnd := uint64(0)
	for i := 0; i < entryCount; i++ {
		raw := data[tocStart+uint64(i)*TOCEntrySize : tocStart+uint64(i+1)*TOCEntrySize]
		e := decodeTOCEntry(raw)
		if seen[e.Name] {
			return nil, fmt.Errorf("%w: duplicate section name %q", ErrInvalidModule, e.Name)
		}
		seen[e.Name] = true
		if e.Offset < prevEnd {
			return nil, fmt.Errorf("%w: section %q overlaps the previous section", ErrInvalidModule, e.Name)
		}
		prevEnd = e.Offset + e.Size
		entries[e.Name] = e
	}
	if _, ok := entries[SectionCode]; !ok {
		return nil, fmt.Errorf("%w: missing CODE section", ErrInvalidModule)
	}

	dataStart := header.DataOffset
	section := func(name string) ([]byte, error) {
		e, ok := entries[name]
		if !ok || e.Size == 0 {
			return nil, nil
		}
		start, end := dataStart+e.Offset, dataStart+e.Offset+e.Size
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("%w: section %q overflows file", ErrInvalidModule, name)
		}
		return data[start:end], nil
	}

	codeBytes, err := section(SectionCode)
	if err != nil {
		return nil, err
	}
	code, err := bytecode.DecodeStream(codeBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: CODE section: %v", ErrInvalidModule, err)
	}

	m := manifest.New()
	if stringsBytes, serr := section(SectionStrings); serr != nil {
		return nil, serr
	} else if stringsBytes != nil {
		strs, derr := decodeStrings(stringsBytes)
		if derr != nil {
			return nil, derr
		}
		for _, s := range strs {
			if _, ierr := m.Intern(s); ierr != nil {
				return nil, ierr
			}
		}
	}

	classesBytes, err := section(SectionClasses)
	if err != nil {
		return nil, err
	}
	if classesBytes != nil {
		classes, derr := decodeClasses(classesBytes)
		if derr != nil {
			return nil, derr
		}
		for _, c := range classes {
			if aerr := m.AddClass(c); aerr != nil {
				return nil, aerr
			}
		}
	}

	var debugTable *manifest.CompactDebugTable
	if debugBytes, derr := section(SectionDebug); derr != nil {
		return nil, derr
	} else if debugBytes != nil {
		lines, perr := decodeDebug(debugBytes)
		if perr != nil {
			return nil, perr
		}
		debugTable = manifest.NewCompactDebugTable(lines)
	}

	var symbols map[string]uint64
	if symBytes, serr := section(SectionSymbols); serr != nil {
		return nil, serr
	} else if symBytes != nil {
		syms, perr := decodeSymbols(symBytes)
		if perr != nil {
			return nil, perr
		}
		symbols = make(map[string]uint64, len(syms))
		for _, s := range syms {
			symbols[s.Name] = s.Offset
		}
	}

	appBytes, err := section(SectionApp)
	if err != nil {
		return nil, err
	}
	var appName string
	var appData []byte
	if appBytes != nil {
		if uint64(len(appBytes)) < uint64(header.AppNameLen) {
			return nil, fmt.Errorf("%w: APP section shorter than app_name_len", ErrInvalidModule)
		}
		appName = string(appBytes[:header.AppNameLen])
		appData = appBytes[header.AppNameLen:]
	}

	return &Module{
		Code:       code,
		Manifest:   m,
		EntryPoint: header.EntryPoint,
		Debug:      debugTable,
		Symbols:    symbols,
		AppName:    appName,
		AppData:    appData,
		// Every module Write ever serializes is the output of a successful
		// Link (spec §2's data flow runs codegen -> linker -> writer), so a
		// module reconstructed by Read is always already linked.
		Linked: true,
	}, nil
}
