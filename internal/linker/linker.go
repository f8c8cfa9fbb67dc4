// Package linker resolves the symbolic method-call references codegen
// leaves behind and finalizes instance layout, per spec §4.3.
package linker

import (
	"context"
	"errors"
	"fmt"

	"github.com/arxlang/arxvm/api"
	"github.com/arxlang/arxvm/internal/container"
	"github.com/arxlang/arxvm/internal/manifest"
	"github.com/arxlang/arxvm/internal/vmtrace"
)

// ErrLinkFailed wraps every error Link returns, so callers can distinguish
// a link failure from other I/O or codegen errors with errors.Is.
var ErrLinkFailed = errors.New("linker: link failed")

// Link resolves every `LIT string_id; OPR OBJ_CALL_METHOD` pair in mod.Code
// to `LIT method.offset; OPR OBJ_CALL_METHOD`, computes each class's field
// offsets and instance_size, resolves a zero EntryPoint to the program's
// "main" method, and validates the result. Link mutates mod in place.
//
// Linking an already-linked module is a no-op (spec §8's round-trip law):
// Link checks mod.Linked up front and returns immediately if it is already
// set, rather than trying to tell a resolved method offset apart from a
// string-table ID by its numeric value — the two overlap (a small offset
// and a small string ID are indistinguishable integers), so mod.Linked is
// the only sound signal.
func Link(mod *container.Module) error { return LinkContext(context.Background(), mod) }

// LinkContext is Link, additionally emitting a vmtrace.ScopeLink line per
// resolved call site when ctx enables that scope (spec §9's
// context-threaded DEBUG flag, in place of the source's process-wide one).
func LinkContext(ctx context.Context, mod *container.Module) error {
	if mod.Linked {
		return nil
	}
	if err := resolveCalls(ctx, mod); err != nil {
		return fmt.Errorf("%w: %v", ErrLinkFailed, err)
	}
	assignFieldOffsets(mod.Manifest)
	if err := resolveEntryPoint(mod); err != nil {
		return fmt.Errorf("%w: %v", ErrLinkFailed, err)
	}
	if err := validate(mod); err != nil {
		return fmt.Errorf("%w: %v", ErrLinkFailed, err)
	}
	mod.Linked = true
	return nil
}

// resolveCalls walks mod.Code looking for `OPR OBJ_CALL_METHOD` and patches
// the immediately preceding LIT's operand from a string-table ID to a
// method offset, per spec §4.3. It only ever runs once per Module, since
// LinkContext returns early on an already-linked one, so every LIT it
// finds here is still unresolved by construction.
func resolveCalls(ctx context.Context, mod *container.Module) error {
	code := mod.Code
	for i, instr := range code {
		if instr.Op != api.OpOpr || instr.Operand != api.OprObjCallMethod {
			continue
		}
		if i == 0 || code[i-1].Op != api.OpLit {
			return fmt.Errorf("OBJ_CALL_METHOD at instruction %d is not preceded by a LIT", i)
		}
		stringID := code[i-1].Operand
		if stringID > uint64(^uint32(0)) {
			return fmt.Errorf("instruction %d: call-site LIT %d is not a valid string id", i-1, stringID)
		}
		name, err := mod.Manifest.String(uint32(stringID))
		if err != nil {
			return fmt.Errorf("instruction %d: call-site LIT %d does not name a string: %w", i-1, stringID, err)
		}
		offset, err := lookupMethod(mod.Manifest, name)
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		code[i-1].Operand = offset
		vmtrace.Tracef(ctx, vmtrace.ScopeLink, "link: instruction %d call %q -> offset %d\n", i, name, offset)
	}
	return nil
}

// lookupMethod searches every declared class for a method named name,
// per spec §4.3's "search the manifest for a method of that name". A name
// declared by more than one class is a link error, per spec §9's resolved
// open question: ambiguous method names are rejected rather than silently
// resolved to an arbitrary candidate.
func lookupMethod(m *manifest.Manifest, name string) (uint64, error) {
	var offset uint64
	var owners []string
	for _, c := range m.Classes {
		for _, mm := range c.Methods {
			if mm.Name == name {
				offset = mm.Offset
				owners = append(owners, c.Name)
			}
		}
	}
	switch len(owners) {
	case 0:
		return 0, fmt.Errorf("no method named %q in any class", name)
	case 1:
		return offset, nil
	default:
		return 0, fmt.Errorf("method name %q is ambiguous: declared by classes %v", name, owners)
	}
}

// assignFieldOffsets computes each class's field offsets and instance_size
// via a running prefix sum over its own declared fields, in declaration
// order — spec §4.3. Fields are not merged across inheritance; a subclass's
// instance_size covers only the fields it declares itself.
func assignFieldOffsets(m *manifest.Manifest) {
	for _, c := range m.Classes {
		var offset uint64
		for i := range c.Fields {
			c.Fields[i].Offset = offset
			offset += uint64(c.Fields[i].Size)
		}
		c.InstanceSize = offset
	}
}

// resolveEntryPoint implements spec §9's resolved open question: a zero
// EntryPoint is resolved by requiring exactly one method named "main"
// across the whole manifest, rather than guessing among several.
func resolveEntryPoint(mod *container.Module) error {
	if mod.EntryPoint != 0 {
		return nil
	}
	offset, err := lookupMethod(mod.Manifest, "main")
	if err != nil {
		return fmt.Errorf("entry point resolution: %w", err)
	}
	mod.EntryPoint = offset
	return nil
}

// validate checks the post-conditions spec §4.3 requires of a linked
// module: no call-site LIT still names a string ID, every method offset
// lies inside CODE, and no branch still carries the forward-reference
// placeholder.
func validate(mod *container.Module) error {
	codeLen := uint64(len(mod.Code))
	for i, instr := range mod.Code {
		if instr.Operand == api.ForwardPlaceholder {
			return fmt.Errorf("instruction %d: unresolved forward branch", i)
		}
		if instr.Op == api.OpOpr && instr.Operand == api.OprObjCallMethod {
			if i == 0 || mod.Code[i-1].Op != api.OpLit {
				return fmt.Errorf("instruction %d: OBJ_CALL_METHOD missing preceding LIT", i)
			}
			if mod.Code[i-1].Operand >= codeLen {
				return fmt.Errorf("instruction %d: resolved method offset %d is outside CODE", i-1, mod.Code[i-1].Operand)
			}
		}
	}
	for _, c := range mod.Manifest.Classes {
		for _, mm := range c.Methods {
			if mm.Offset >= codeLen && codeLen > 0 {
				return fmt.Errorf("method %s.%s offset %d is outside CODE", c.Name, mm.Name, mm.Offset)
			}
		}
	}
	if mod.EntryPoint >= codeLen && codeLen > 0 {
		return fmt.Errorf("entry point %d is outside CODE", mod.EntryPoint)
	}
	return nil
}
