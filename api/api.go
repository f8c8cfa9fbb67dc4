// Package api includes constants and interfaces used by both end-users and
// internal implementations of the ARX bytecode toolchain.
package api

import "fmt"

// Opcode is the single byte that selects an Instruction's behavior. Opcodes
// occupy the low nibble of the on-disk opcode byte; the high nibble is
// reserved and must be zero on write, ignored on read.
type Opcode = byte

const (
	// OpLit pushes the literal integer carried in the instruction's operand.
	OpLit Opcode = 0x1
	// OpOpr performs the operator whose sub-code is the operand; see OperatorCode.
	OpOpr Opcode = 0x2
	// OpLod loads a local identified by (depth, slot) packed into the operand.
	OpLod Opcode = 0x3
	// OpSto pops and stores into a local identified by (depth, slot).
	OpSto Opcode = 0x4
	// OpCal calls the bytecode at the operand, pushing a return address and frame pointer.
	OpCal Opcode = 0x5
	// OpInt reserves the operand's count of local slots on the current frame.
	OpInt Opcode = 0x6
	// OpJmp jumps unconditionally to the operand.
	OpJmp Opcode = 0x7
	// OpJpc pops; if zero, jumps to the operand.
	OpJpc Opcode = 0x8
	// OpRet returns from the current frame.
	OpRet Opcode = 0x9
)

// OpcodeName returns the mnemonic for o, or a hex fallback for an unknown opcode.
func OpcodeName(o Opcode) string {
	switch o & 0x0f {
	case OpLit:
		return "LIT"
	case OpOpr:
		return "OPR"
	case OpLod:
		return "LOD"
	case OpSto:
		return "STO"
	case OpCal:
		return "CAL"
	case OpInt:
		return "INT"
	case OpJmp:
		return "JMP"
	case OpJpc:
		return "JPC"
	case OpRet:
		return "RET"
	default:
		return fmt.Sprintf("?%#x?", o)
	}
}

// OperatorCode is the second-level discriminator carried as the operand of
// an OpOpr instruction. It is the real ISA of the source language: every
// operator consumes its arguments from the top of the operand stack and
// pushes zero or one results.
type OperatorCode = uint64

const (
	OprNeg OperatorCode = iota
	OprAdd
	OprSub
	OprMul
	OprDiv
	OprMod
	OprEq
	OprNeq
	OprLt
	OprLeq
	OprGt
	OprGeq
	OprAnd
	OprOr
	OprNot
	OprOutInt
	OprOutString
	OprOutChar
	OprOutLn
	OprConcat
	OprObjNew
	OprObjCallMethod
	OprObjGetField
	OprObjSetField
)

var operatorNames = [...]string{
	OprNeg: "NEG", OprAdd: "ADD", OprSub: "SUB", OprMul: "MUL", OprDiv: "DIV", OprMod: "MOD",
	OprEq: "EQ", OprNeq: "NEQ", OprLt: "LT", OprLeq: "LEQ", OprGt: "GT", OprGeq: "GEQ",
	OprAnd: "AND", OprOr: "OR", OprNot: "NOT",
	OprOutInt: "OUTINT", OprOutString: "OUTSTRING", OprOutChar: "OUTCHAR", OprOutLn: "OUTLN",
	OprConcat: "CONCAT", OprObjNew: "OBJ_NEW", OprObjCallMethod: "OBJ_CALL_METHOD",
	OprObjGetField: "OBJ_GET_FIELD", OprObjSetField: "OBJ_SET_FIELD",
}

// OperatorName returns the mnemonic for op, or a decimal fallback for an
// unrecognized sub-code.
func OperatorName(op OperatorCode) string {
	if int(op) < len(operatorNames) && operatorNames[op] != "" {
		return operatorNames[op]
	}
	return fmt.Sprintf("?%d?", op)
}

// ValueKind tags a runtime Value. The ISA itself is untyped — the operator
// executed implies the tag — but manifests and debug tooling still need to
// describe declared parameter/return/field types.
type ValueKind = byte

const (
	// KindVoid is used for a method with no return value.
	KindVoid ValueKind = iota
	// KindInt is a signed 64-bit integer.
	KindInt
	// KindString is a string-table ID.
	KindString
	// KindObject is an opaque object-table handle.
	KindObject
	// KindNull is the null object reference.
	KindNull
)

// ValueKindName returns the type name of k, or "unknown(n)" for an
// unrecognized kind.
func ValueKindName(k ValueKind) string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "integer"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindNull:
		return "null"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// ForwardPlaceholder is the sentinel operand codegen emits for a branch
// target that is not yet known. A module in which any instruction still
// carries this value after linking was never fully resolved.
const ForwardPlaceholder uint64 = 0xFFFF_FFFF_FFFF_FFFF
