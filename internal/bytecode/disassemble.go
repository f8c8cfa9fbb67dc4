package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders code as one mnemonic line per instruction, prefixed
// with its instruction index, in the style `dump` prints a CODE section.
func Disassemble(code []Instruction) string {
	var b strings.Builder
	for idx, instr := range code {
		fmt.Fprintf(&b, "%6d: %s\n", idx, instr)
	}
	return b.String()
}
