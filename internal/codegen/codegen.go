// Package codegen walks a compile-time AST and emits a bytecode.Instruction
// stream plus the manifests the linker and virtual machine later consume.
// See spec §4.2.
package codegen

import (
	"context"
	"fmt"

	"github.com/arxlang/arxvm/api"
	"github.com/arxlang/arxvm/internal/ast"
	"github.com/arxlang/arxvm/internal/bytecode"
	"github.com/arxlang/arxvm/internal/container"
	"github.com/arxlang/arxvm/internal/manifest"
	"github.com/arxlang/arxvm/internal/vmtrace"
)

// slotSize is the fixed width of every local, field and operand-stack
// cell: spec §4.1 says "values are tagged 64-bit cells", so every storage
// location — integer, string ID or object handle — is 8 bytes.
const slotSize = 8

// fixup records a forward branch target that was not yet known when its
// JMP/JPC instruction was emitted, per spec §4.2.
type fixup struct {
	emitIndex int
	label     int
}

// generator holds state for one Program compilation. Non-goals rule out
// separate compilation, so one generator always compiles a whole Program.
type generator struct {
	manifest *manifest.Manifest
	code     []bytecode.Instruction
	ctx      context.Context

	fixups    []fixup
	labelDefs map[int]int // label id -> resolved instruction index
	nextLabel int

	currentClass *manifest.Class
	locals       map[string]uint32 // name -> slot, depth always 0
	nextSlot     uint32
}

// Generate compiles prog into a container.Module whose CODE section still
// carries string-table IDs in front of every OBJ_CALL_METHOD (spec §4.2);
// linker.Link must run before the module is executable. It never traces;
// see GenerateContext for that.
func Generate(prog *ast.Program) (*container.Module, error) {
	return GenerateContext(context.Background(), prog)
}

// GenerateContext is Generate, additionally emitting a vmtrace.ScopeCodegen
// line per declared class and per method's first emitted instruction when
// the context enables that scope (spec §9's context-threaded DEBUG flag).
func GenerateContext(ctx context.Context, prog *ast.Program) (*container.Module, error) {
	g := &generator{
		manifest:  manifest.New(),
		labelDefs: map[int]int{},
		ctx:       ctx,
	}
	if err := g.declareClasses(prog); err != nil {
		return nil, err
	}
	if err := g.emitMethods(prog); err != nil {
		return nil, err
	}
	return &container.Module{Code: g.code, Manifest: g.manifest}, nil
}

// declareClasses performs the up-front pass spec §4.2 assumes is already
// done by the time method bodies are generated: assign class and method
// IDs, resolve parent names, and — since "fields are always declared
// before methods inside a class" — compute field offsets via the same
// running-prefix-sum formula the linker uses, so field accesses inside a
// method body can be resolved to a concrete offset immediately.
func (g *generator) declareClasses(prog *ast.Program) error {
	nextClassID, nextMethodID := uint64(1), uint64(1)
	for _, c := range prog.Classes {
		mc := &manifest.Class{Name: c.Name, ID: nextClassID}
		nextClassID++

		var offset uint64
		for _, f := range c.Fields {
			mc.Fields = append(mc.Fields, manifest.Field{
				Name: f.Name, Type: f.Type, Offset: offset, Size: slotSize,
			})
			offset += slotSize
		}
		mc.InstanceSize = offset

		for _, m := range c.Methods {
			paramTypes := make([]api.ValueKind, len(m.Params))
			for i, p := range m.Params {
				paramTypes[i] = p.Type
			}
			mc.Methods = append(mc.Methods, manifest.Method{
				Name: m.Name, ID: nextMethodID, ParamTypes: paramTypes, ReturnType: m.ReturnType,
			})
			nextMethodID++
		}
		if err := g.manifest.AddClass(mc); err != nil {
			return err
		}
		vmtrace.Tracef(g.ctx, vmtrace.ScopeCodegen, "codegen: declared class %s (id=%d, fields=%d, methods=%d)\n",
			mc.Name, mc.ID, len(mc.Fields), len(mc.Methods))
	}
	for _, c := range prog.Classes {
		if c.Parent == "" {
			continue
		}
		parent, ok := g.manifest.ClassByName(c.Parent)
		if !ok {
			return fmt.Errorf("codegen: class %q extends unknown class %q", c.Name, c.Parent)
		}
		mc, _ := g.manifest.ClassByName(c.Name)
		mc.ParentID = parent.ID
	}
	return nil
}

// emitMethods lays out methods class-by-class in declaration order, per
// spec §4.2.
func (g *generator) emitMethods(prog *ast.Program) error {
	for _, c := range prog.Classes {
		mc, _ := g.manifest.ClassByName(c.Name)
		g.currentClass = mc
		for i, m := range c.Methods {
			if err := g.emitMethod(mc, &mc.Methods[i], m); err != nil {
				return fmt.Errorf("codegen: class %s method %s: %w", c.Name, m.Name, err)
			}
		}
	}
	return nil
}

func (g *generator) emitMethod(owner *manifest.Class, mm *manifest.Method, m *ast.Method) error {
	mm.Offset = uint64(len(g.code))
	vmtrace.Tracef(g.ctx, vmtrace.ScopeCodegen, "codegen: %s.%s -> offset %d\n", owner.Name, mm.Name, mm.Offset)

	g.locals = map[string]uint32{"this": 0}
	g.nextSlot = 1
	for _, p := range m.Params {
		g.locals[p.Name] = g.nextSlot
		g.nextSlot++
	}
	for _, l := range m.Locals {
		g.locals[l.Name] = g.nextSlot
		g.nextSlot++
	}
	// INT's operand is patched once every local has been counted; locals
	// declared inside nested blocks don't exist in this language, so the
	// count is already final here.
	intIdx := g.emit(api.OpInt, uint64(g.nextSlot))

	g.fixups = nil
	g.labelDefs = map[int]int{}
	for _, stmt := range m.Body {
		if err := g.genStmt(stmt); err != nil {
			return err
		}
	}
	g.emit(api.OpRet, 0)

	if len(g.fixups) > 0 {
		return fmt.Errorf("%d unresolved forward label(s) at end of method", len(g.fixups))
	}
	g.code[intIdx].Operand = uint64(g.nextSlot)
	return nil
}

// emit appends an instruction and returns its index.
func (g *generator) emit(op api.Opcode, operand uint64) int {
	g.code = append(g.code, bytecode.New(op, operand))
	return len(g.code) - 1
}

func (g *generator) markDebug(line uint32) {
	if line == 0 {
		return
	}
	g.manifest.AddDebug(uint64(len(g.code)), line)
}

// newLabel allocates a fresh, as-yet-unresolved label.
func (g *generator) newLabel() int {
	id := g.nextLabel
	g.nextLabel++
	return id
}

// emitForwardBranch emits op with the spec §4.2 placeholder operand and
// records a fix-up for label.
func (g *generator) emitForwardBranch(op api.Opcode, label int) {
	idx := g.emit(op, api.ForwardPlaceholder)
	g.fixups = append(g.fixups, fixup{emitIndex: idx, label: label})
}

// resolveLabel fixes label to the current instruction index and patches
// every fix-up recorded against it so far.
func (g *generator) resolveLabel(label int) {
	target := uint64(len(g.code))
	g.labelDefs[label] = int(target)
	remaining := g.fixups[:0]
	for _, f := range g.fixups {
		if f.label == label {
			g.code[f.emitIndex].Operand = target
		} else {
			remaining = append(remaining, f)
		}
	}
	g.fixups = remaining
}
