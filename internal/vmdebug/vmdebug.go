// Package vmdebug turns a recovered VM panic into a diagnostic error that
// names the offending instruction and, when the module carries a DEBUG
// section, the source line — spec §4.4's "halt the VM with a diagnostic
// that names the offending pc and the debug-section line, if any."
package vmdebug

import (
	"errors"
	"fmt"

	"github.com/arxlang/arxvm/internal/container"
)

// TrapError is the error Machine.Run returns when execution halts on a
// trap. Cause is the underlying vmtrap sentinel (or, for an unexpected
// Go-level panic, whatever value was recovered), so callers can still
// errors.Is/errors.As through it.
type TrapError struct {
	Cause      error
	PC         uint64
	MethodName string // "Class.method", empty if unknown
	Line       uint32
	HasLine    bool
}

func (e *TrapError) Error() string {
	loc := fmt.Sprintf("pc %d", e.PC)
	if e.MethodName != "" {
		loc = fmt.Sprintf("%s (%s)", loc, e.MethodName)
	}
	if e.HasLine {
		loc = fmt.Sprintf("%s line %d", loc, e.Line)
	}
	return fmt.Sprintf("trap at %s: %v", loc, e.Cause)
}

func (e *TrapError) Unwrap() error { return e.Cause }

// Decorate builds a TrapError from whatever Run's recover() caught. pc is
// the instruction index being executed when the panic occurred.
func Decorate(mod *container.Module, pc uint64, recovered any) error {
	cause, ok := recovered.(error)
	if !ok {
		cause = fmt.Errorf("%v", recovered)
	}
	te := &TrapError{Cause: cause, PC: pc}
	if mod != nil {
		te.MethodName = methodNameAt(mod, pc)
		if mod.Debug != nil {
			te.Line, te.HasLine = mod.Debug.LineFor(pc)
		} else if mod.Manifest != nil {
			te.Line, te.HasLine = mod.Manifest.LineFor(pc)
		}
	}
	return te
}

// methodNameAt finds which method's instruction range pc falls within, by
// comparing against every method's start offset across every class —
// the same information the SYMBOLS section exists to make cheap to look
// up at `dump` time, but Decorate runs rarely enough that a linear scan
// against the manifest is simpler than threading a pre-built index
// through Machine just for this.
func methodNameAt(mod *container.Module, pc uint64) string {
	if mod.Manifest == nil {
		return ""
	}
	var best string
	var bestOffset uint64
	found := false
	for _, c := range mod.Manifest.Classes {
		for _, m := range c.Methods {
			if m.Offset <= pc && (!found || m.Offset > bestOffset) {
				best = c.Name + "." + m.Name
				bestOffset = m.Offset
				found = true
			}
		}
	}
	return best
}

// IsTrap reports whether err is (or wraps) a *TrapError.
func IsTrap(err error) bool {
	var te *TrapError
	return errors.As(err, &te)
}
