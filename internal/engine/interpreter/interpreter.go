// Package interpreter is the stack-machine virtual machine (spec §4.4):
// fetch-execute over a linked container.Module's CODE section, an operand
// stack shared between locals and working values, a call-frame stack, and
// an object heap keyed by opaque handles.
package interpreter

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/arxlang/arxvm/api"
	"github.com/arxlang/arxvm/internal/buildoptions"
	"github.com/arxlang/arxvm/internal/bytecode"
	"github.com/arxlang/arxvm/internal/container"
	"github.com/arxlang/arxvm/internal/manifest"
	"github.com/arxlang/arxvm/internal/vmdebug"
	"github.com/arxlang/arxvm/internal/vmtrace"
	"github.com/arxlang/arxvm/internal/vmtrap"
)

// object is one heap-allocated instance: its class and its own fields,
// each a single 64-bit slot (spec §4.1's tagged cells).
type object struct {
	classID uint64
	fields  []uint64
}

// frame is the call-frame stack entry Machine restores on RET. It is
// the adaptation of the teacher's callFrame{pc, f} pair to this ISA's
// depth-0 locals addressing: rather than naming a compiled function, a
// frame only needs enough to resume the caller — its pc, its frame
// pointer, its bound `this`, and whether the call that pushed it also
// owes the caller a synthesized extra value (OBJ_NEW's handle).
type frame struct {
	returnPC       uint64
	returnFP       int
	returnThis     uint64
	isFunction     bool
	hasExtraPush   bool
	extraPushValue uint64
}

// Machine is one execution of a linked Module. It is not safe for
// concurrent use — spec §4.4's "Ordering" rules out concurrency
// primitives in the ISA itself, and one Machine models exactly one
// sequential thread of execution.
type Machine struct {
	mod *container.Module

	pc    uint64
	stack []uint64
	fp    int
	this  uint64

	frames  []frame
	heap    map[uint64]*object
	nextID  uint64
	ceiling int

	out io.Writer
	ctx context.Context
}

// New prepares a Machine to run mod starting at mod.EntryPoint. mod must
// already be linked (internal/linker.Link) — an unlinked module's
// call-site LIT operands still carry string-table IDs, which Run has no
// way to distinguish from a legitimately tiny method offset.
func New(mod *container.Module) *Machine {
	return &Machine{
		mod:     mod,
		heap:    map[uint64]*object{},
		out:     os.Stdout,
		ctx:     context.Background(),
		ceiling: buildoptions.CallStackCeiling,
	}
}

// SetOutput redirects OUTINT/OUTSTRING/OUTCHAR/OUTLN, primarily for tests.
func (m *Machine) SetOutput(w io.Writer) { m.out = w }

// SetCallStackCeiling overrides the default buildoptions.CallStackCeiling
// frame-depth bound, per RuntimeConfig.WithCallStackCeiling.
func (m *Machine) SetCallStackCeiling(n int) { m.ceiling = n }

// Run executes mod from its entry point to completion using
// context.Background(); see RunContext for a context-threaded variant that
// also carries vmtrace's verbosity level (spec §9's redesign note).
func (m *Machine) Run() (uint64, error) { return m.RunContext(context.Background()) }

// RunContext is Run, threading ctx through so vmtrace.Enabled(ctx,
// vmtrace.ScopeExec) can gate a trace line per fetched instruction without
// ever changing what the VM computes (spec §7: tracing is additive-only).
func (m *Machine) RunContext(ctx context.Context) (result uint64, err error) {
	m.ctx = ctx
	// curPC is the index of the instruction being executed; m.pc has
	// already moved past it by the time an operator traps.
	var curPC uint64
	defer func() {
		if r := recover(); r != nil {
			err = vmdebug.Decorate(m.mod, curPC, r)
		}
	}()

	m.pc = m.mod.EntryPoint
	m.fp = 0
	m.this = 0

	for {
		curPC = m.pc
		if m.pc >= uint64(len(m.mod.Code)) {
			if m.pc == uint64(len(m.mod.Code)) && len(m.frames) == 0 {
				// Ran off the end of CODE at top level without an explicit
				// RET: spec §8 says empty CODE runs to completion silently.
				break
			}
			panic(vmtrap.ErrUnreachablePC)
		}
		if vmtrace.Enabled(m.ctx, vmtrace.ScopeExec) {
			vmtrace.Tracef(m.ctx, vmtrace.ScopeExec, "exec pc=%d %s\n", m.pc, m.mod.Code[m.pc])
		}
		instr := m.mod.Code[m.pc]
		m.pc++

		done := false
		switch instr.Op {
		case api.OpLit:
			m.push(instr.Operand)
		case api.OpLod:
			m.execLod(instr.Operand)
		case api.OpSto:
			m.execSto(instr.Operand)
		case api.OpInt:
			m.execInt(instr.Operand)
		case api.OpJmp:
			m.pc = instr.Operand
		case api.OpJpc:
			if m.pop() == 0 {
				m.pc = instr.Operand
			}
		case api.OpCal:
			m.pushFrame(m.pc, false, false, 0)
			m.fp = len(m.stack)
			m.pc = instr.Operand
		case api.OpRet:
			retPC, ok := m.execRet()
			if !ok {
				done = true
			} else {
				m.pc = retPC
			}
		case api.OpOpr:
			m.execOpr(instr.Operand)
		default:
			panic(fmt.Errorf("vm: unknown opcode %#x at pc %d", instr.Op, m.pc-1))
		}
		if done {
			break
		}
	}

	if len(m.stack) == 0 {
		return 0, nil
	}
	if m.mod.Manifest != nil {
		for _, c := range m.mod.Manifest.Classes {
			for _, mm := range c.Methods {
				if mm.Offset == m.mod.EntryPoint && !mm.IsFunction() {
					// A procedure entry point carries no value out.
					return 0, nil
				}
			}
		}
	}
	return m.stack[len(m.stack)-1], nil
}

func (m *Machine) push(v uint64) { m.stack = append(m.stack, v) }

func (m *Machine) pop() uint64 {
	if len(m.stack) == 0 {
		panic(vmtrap.ErrStackUnderflow)
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *Machine) execLod(operand uint64) {
	depth, slot := bytecode.UnpackDepthSlot(operand)
	if depth != 0 {
		panic(vmtrap.ErrBadSlot)
	}
	if slot == 0 {
		m.push(m.this)
		return
	}
	idx := m.fp + int(slot) - 1
	if idx < 0 || idx >= len(m.stack) {
		panic(vmtrap.ErrBadSlot)
	}
	m.push(m.stack[idx])
}

func (m *Machine) execSto(operand uint64) {
	depth, slot := bytecode.UnpackDepthSlot(operand)
	if depth != 0 {
		panic(vmtrap.ErrBadSlot)
	}
	v := m.pop()
	if slot == 0 {
		m.this = v
		return
	}
	idx := m.fp + int(slot) - 1
	if idx < 0 || idx >= len(m.stack) {
		panic(vmtrap.ErrBadSlot)
	}
	m.stack[idx] = v
}

// execInt reserves local slots so the frame has n total slots counting
// `this` (off-stack) plus every on-stack param/local: spec §4.4's "INT n
// reserves n zero-initialised local slots ... and sets the frame
// pointer." The frame pointer itself was already set by whatever pushed
// this frame (OpCal, OBJ_CALL_METHOD or OBJ_NEW); what remains here is
// padding the params the caller already left on the stack up to n-1
// on-stack slots with freshly zeroed locals.
func (m *Machine) execInt(n uint64) {
	want := int(n) - 1
	have := len(m.stack) - m.fp
	for have < want {
		m.stack = append(m.stack, 0)
		have++
	}
}

func (m *Machine) pushFrame(returnPC uint64, hasExtraPush bool, isFunction bool, extra uint64) {
	if len(m.frames) >= m.ceiling {
		panic(vmtrap.ErrStackOverflow)
	}
	m.frames = append(m.frames, frame{
		returnPC: returnPC, returnFP: m.fp, returnThis: m.this,
		isFunction: isFunction, hasExtraPush: hasExtraPush, extraPushValue: extra,
	})
}

// execRet implements spec §4.4's RET: restore (pc, fp), and — if the
// frame being torn down was a function — carry its top-of-stack value
// across the restore. The second return is false when there is no caller
// frame left to return to, meaning execution of the entry method itself
// has completed.
func (m *Machine) execRet() (uint64, bool) {
	if len(m.frames) == 0 {
		return 0, false
	}
	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]

	var result uint64
	if f.isFunction {
		result = m.pop()
	}
	if m.fp > len(m.stack) {
		panic(vmtrap.ErrStackUnderflow)
	}
	m.stack = m.stack[:m.fp]
	if f.isFunction {
		m.push(result)
	}
	if f.hasExtraPush {
		m.push(f.extraPushValue)
	}
	m.fp = f.returnFP
	m.this = f.returnThis
	return f.returnPC, true
}

func (m *Machine) execOpr(op api.OperatorCode) {
	switch op {
	case api.OprNeg:
		m.push(-m.pop())
	case api.OprAdd:
		b, a := m.pop(), m.pop()
		m.push(a + b)
	case api.OprSub:
		b, a := m.pop(), m.pop()
		m.push(a - b)
	case api.OprMul:
		b, a := m.pop(), m.pop()
		m.push(a * b)
	case api.OprDiv:
		b, a := m.pop(), m.pop()
		if int64(b) == 0 {
			panic(vmtrap.ErrDivideByZero)
		}
		m.push(uint64(int64(a) / int64(b)))
	case api.OprMod:
		b, a := m.pop(), m.pop()
		if int64(b) == 0 {
			panic(vmtrap.ErrDivideByZero)
		}
		m.push(uint64(int64(a) % int64(b)))
	case api.OprEq:
		m.pushBool(m.pop() == m.pop())
	case api.OprNeq:
		m.pushBool(m.pop() != m.pop())
	case api.OprLt:
		b, a := m.pop(), m.pop()
		m.pushBool(int64(a) < int64(b))
	case api.OprLeq:
		b, a := m.pop(), m.pop()
		m.pushBool(int64(a) <= int64(b))
	case api.OprGt:
		b, a := m.pop(), m.pop()
		m.pushBool(int64(a) > int64(b))
	case api.OprGeq:
		b, a := m.pop(), m.pop()
		m.pushBool(int64(a) >= int64(b))
	case api.OprAnd:
		b, a := m.pop(), m.pop()
		m.pushBool(a != 0 && b != 0)
	case api.OprOr:
		b, a := m.pop(), m.pop()
		m.pushBool(a != 0 || b != 0)
	case api.OprNot:
		m.pushBool(m.pop() == 0)
	case api.OprOutInt:
		fmt.Fprintf(m.out, "%d", int64(m.pop()))
	case api.OprOutString:
		fmt.Fprint(m.out, m.mustString(m.pop()))
	case api.OprOutChar:
		fmt.Fprint(m.out, m.mustString(m.pop()))
	case api.OprOutLn:
		fmt.Fprintln(m.out)
	case api.OprConcat:
		b, a := m.pop(), m.pop()
		id, err := m.mod.Manifest.Intern(m.mustString(a) + m.mustString(b))
		if err != nil {
			panic(err)
		}
		m.push(uint64(id))
	case api.OprObjNew:
		m.execObjNew()
	case api.OprObjCallMethod:
		m.execObjCallMethod()
	case api.OprObjGetField:
		m.execObjGetField()
	case api.OprObjSetField:
		m.execObjSetField()
	default:
		panic(fmt.Errorf("vm: unknown operator %d", op))
	}
}

func (m *Machine) pushBool(b bool) {
	if b {
		m.push(1)
		return
	}
	m.push(0)
}

func (m *Machine) mustString(id uint64) string {
	if id > uint64(^uint32(0)) {
		panic(vmtrap.ErrBadSlot)
	}
	s, err := m.mod.Manifest.String(uint32(id))
	if err != nil {
		panic(vmtrap.ErrBadSlot)
	}
	return s
}

func (m *Machine) object(handle uint64) *object {
	if handle == 0 {
		panic(vmtrap.ErrNullReceiver)
	}
	obj, ok := m.heap[handle]
	if !ok {
		panic(vmtrap.ErrNullReceiver)
	}
	return obj
}

// execObjNew implements spec §4.1's `OBJ_NEW`: `args… class_id -> handle`.
// It allocates a zeroed instance, invokes the class's constructor (a
// method whose name equals the class's own name, per internal/ast's
// convention) via the same call protocol as OBJ_CALL_METHOD if one
// exists, and arranges for the new handle — not whatever the constructor
// itself returns — to be the expression's value.
func (m *Machine) execObjNew() {
	classID := m.pop()
	class, ok := m.mod.Manifest.ClassByID(classID)
	if !ok {
		panic(vmtrap.ErrUnknownClass)
	}
	handle := m.nextID + 1
	m.nextID = handle
	m.heap[handle] = &object{classID: classID, fields: make([]uint64, len(class.Fields))}

	if _, ctor, ok := m.mod.Manifest.MethodByName(class, class.Name); ok {
		// The constructor's arguments are already on the stack; they
		// become its first local slots.
		argBase := len(m.stack) - len(ctor.ParamTypes)
		if argBase < 0 {
			panic(vmtrap.ErrStackUnderflow)
		}
		// Run's loop has already advanced m.pc past this OBJ_NEW
		// instruction, so pushFrame's returnPC is exactly where execution
		// should resume once the constructor RETs.
		m.pushFrame(m.pc, true, ctor.IsFunction(), handle)
		m.fp = argBase
		m.this = handle
		m.pc = ctor.Offset
		return
	}
	m.push(handle)
}

// execObjCallMethod implements spec §4.1/§4.4's dispatch: pop offset and
// handle, verify the receiver, and invoke via the call protocol. The
// arguments the caller pushed beneath the handle become the callee's first
// local slots.
func (m *Machine) execObjCallMethod() {
	offset := m.pop()
	handle := m.pop()
	obj := m.object(handle)
	class, ok := m.mod.Manifest.ClassByID(obj.classID)
	if !ok {
		panic(vmtrap.ErrBadMethodOffset)
	}
	method, ok := methodAtOffset(m.mod.Manifest, class, offset)
	if !ok {
		panic(vmtrap.ErrBadMethodOffset)
	}
	argBase := len(m.stack) - len(method.ParamTypes)
	if argBase < 0 {
		panic(vmtrap.ErrStackUnderflow)
	}
	m.pushFrame(m.pc, false, method.IsFunction(), 0)
	m.fp = argBase
	m.this = handle
	m.pc = offset
}

// methodAtOffset walks class and its ancestors looking for a method whose
// Offset equals offset, validating that the resolved call target is
// actually a method entry belonging to the receiver's own hierarchy
// (spec §4.4's dispatch validation), not merely some arbitrary CODE index.
func methodAtOffset(m *manifest.Manifest, class *manifest.Class, offset uint64) (*manifest.Method, bool) {
	for c := class; c != nil; {
		for i := range c.Methods {
			if c.Methods[i].Offset == offset {
				return &c.Methods[i], true
			}
		}
		if c.ParentID == 0 {
			return nil, false
		}
		parent, ok := m.ClassByID(c.ParentID)
		if !ok {
			return nil, false
		}
		c = parent
	}
	return nil, false
}

func (m *Machine) execObjGetField() {
	offset := m.pop()
	handle := m.pop()
	obj := m.object(handle)
	idx := offset / 8
	if offset%8 != 0 || idx >= uint64(len(obj.fields)) {
		panic(vmtrap.ErrBadSlot)
	}
	m.push(obj.fields[idx])
}

func (m *Machine) execObjSetField() {
	offset := m.pop()
	handle := m.pop()
	value := m.pop()
	obj := m.object(handle)
	idx := offset / 8
	if offset%8 != 0 || idx >= uint64(len(obj.fields)) {
		panic(vmtrap.ErrBadSlot)
	}
	obj.fields[idx] = value
}
