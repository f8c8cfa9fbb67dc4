// Package vmtrap defines the sentinel errors the interpreter panics with on
// an unrecoverable runtime condition (spec §4.4's "traps"), mirroring the
// teacher's pattern of a dedicated errors package whose values are both
// panicked with internally and compared against with errors.Is by callers.
package vmtrap

import "errors"

var (
	// ErrDivideByZero is raised by OPR DIV/MOD with a zero divisor.
	ErrDivideByZero = errors.New("vm: division by zero")
	// ErrNullReceiver is raised when a handle operand is zero or refers to
	// no live object: OBJ_CALL_METHOD, OBJ_GET_FIELD, OBJ_SET_FIELD.
	ErrNullReceiver = errors.New("vm: null or dead object receiver")
	// ErrBadSlot is raised by LOD/STO with an out-of-range (depth, slot) or
	// by OBJ_GET_FIELD/OBJ_SET_FIELD with an out-of-range field offset.
	ErrBadSlot = errors.New("vm: out-of-range local slot or field offset")
	// ErrBadMethodOffset is raised when OBJ_CALL_METHOD's resolved offset
	// is not a method entry belonging to the receiver's class hierarchy.
	ErrBadMethodOffset = errors.New("vm: call target is not a method of the receiver's class")
	// ErrUnknownClass is raised by OBJ_NEW with a class_id the manifest
	// does not contain.
	ErrUnknownClass = errors.New("vm: OBJ_NEW targets an unknown class")
	// ErrStackOverflow is raised when a call would exceed
	// buildoptions.CallStackCeiling.
	ErrStackOverflow = errors.New("vm: call stack overflow")
	// ErrStackUnderflow is raised when an operator needs more operands
	// than the current stack holds.
	ErrStackUnderflow = errors.New("vm: operand stack underflow")
	// ErrUnreachablePC is raised when pc runs off the end of CODE without
	// hitting RET, or a branch targets an out-of-range instruction index.
	ErrUnreachablePC = errors.New("vm: program counter out of range")
)
