// Package bytecode defines the fixed-width instruction record that the code
// generator emits, the linker patches, and the interpreter executes.
package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/arxlang/arxvm/api"
)

// Size is the on-disk and in-memory size of a single Instruction: one opcode
// byte followed by an 8-byte little-endian operand.
const Size = 9

// Instruction is the 9-byte fixed-width record described in spec §3.
// Encoding is invariant across reader and writer; endianness is always
// little-endian.
type Instruction struct {
	Op      api.Opcode
	Operand uint64
}

// New builds an Instruction, masking the opcode to its low nibble so the
// high nibble a caller accidentally sets never leaks onto the wire.
func New(op api.Opcode, operand uint64) Instruction {
	return Instruction{Op: op & 0x0f, Operand: operand}
}

// Encode writes i to buf, which must be at least Size bytes.
func (i Instruction) Encode(buf []byte) {
	buf[0] = i.Op & 0x0f
	binary.LittleEndian.PutUint64(buf[1:Size], i.Operand)
}

// Decode reads an Instruction from buf, which must be at least Size bytes.
// The opcode's reserved high nibble is ignored, per spec §3.
func Decode(buf []byte) Instruction {
	return Instruction{
		Op:      buf[0] & 0x0f,
		Operand: binary.LittleEndian.Uint64(buf[1:Size]),
	}
}

// PackDepthSlot packs a (depth, slot) pair into a single 64-bit operand for
// LOD/STO, as two 32-bit halves: depth in the high word, slot in the low.
func PackDepthSlot(depth, slot uint32) uint64 {
	return uint64(depth)<<32 | uint64(slot)
}

// UnpackDepthSlot reverses PackDepthSlot.
func UnpackDepthSlot(operand uint64) (depth, slot uint32) {
	return uint32(operand >> 32), uint32(operand)
}

// String renders the instruction the way `dump` and trace logging do:
// mnemonic, then operand, then — for OpOpr — the operator's own mnemonic.
func (i Instruction) String() string {
	switch i.Op {
	case api.OpOpr:
		return fmt.Sprintf("%s %s", api.OpcodeName(i.Op), api.OperatorName(i.Operand))
	case api.OpLod, api.OpSto:
		depth, slot := UnpackDepthSlot(i.Operand)
		return fmt.Sprintf("%s %d %d", api.OpcodeName(i.Op), depth, slot)
	default:
		return fmt.Sprintf("%s %d", api.OpcodeName(i.Op), i.Operand)
	}
}

// EncodeStream writes a slice of instructions back to back, Size bytes each.
func EncodeStream(code []Instruction) []byte {
	buf := make([]byte, len(code)*Size)
	for i, instr := range code {
		instr.Encode(buf[i*Size : (i+1)*Size])
	}
	return buf
}

// DecodeStream reads a whole CODE section payload into instructions. It
// returns an error if the payload length is not a multiple of Size.
func DecodeStream(data []byte) ([]Instruction, error) {
	if len(data)%Size != 0 {
		return nil, fmt.Errorf("bytecode: CODE section size %d is not a multiple of %d", len(data), Size)
	}
	n := len(data) / Size
	code := make([]Instruction, n)
	for i := 0; i < n; i++ {
		code[i] = Decode(data[i*Size : (i+1)*Size])
	}
	return code, nil
}
