// Package arxvm is the root facade over the toolchain: it glues
// internal/codegen, internal/linker, internal/container and
// internal/engine/interpreter into the Runtime type cmd/arxvm and any Go
// caller embedding the VM program against.
package arxvm

import (
	"context"
	"io"
	"os"

	"github.com/arxlang/arxvm/internal/buildoptions"
	"github.com/arxlang/arxvm/internal/container"
	"github.com/arxlang/arxvm/internal/vmtrace"
)

// CompilerConfig controls internal/codegen and internal/linker, following
// the teacher's functional-options-over-an-immutable-clone pattern
// (config.go's RuntimeConfig.clone()/With* methods): each With* call
// returns a new value rather than mutating the receiver, so a base config
// can be safely shared and specialized from multiple call sites.
type CompilerConfig struct {
	emitDebug   bool
	emitSymbols bool
	traceScope  vmtrace.Scope
	traceOut    vmtrace.Writer
}

// NewCompilerConfig returns the default CompilerConfig: both optional
// sections emitted (spec §4.5 treats them as tolerated-if-missing, but a
// fresh compile has no reason to omit them), tracing off.
func NewCompilerConfig() *CompilerConfig {
	return &CompilerConfig{emitDebug: true, emitSymbols: true}
}

func (c *CompilerConfig) clone() *CompilerConfig {
	cp := *c
	return &cp
}

// WithDebugSection toggles whether Runtime.Compile writes the optional
// DEBUG section (instruction-index -> source-line pairs).
func (c *CompilerConfig) WithDebugSection(emit bool) *CompilerConfig {
	ret := c.clone()
	ret.emitDebug = emit
	return ret
}

// WithSymbolsSection toggles whether Runtime.Compile writes the optional
// SYMBOLS section ("Class.method" -> bytecode offset), which Read exposes
// as container.Module.Symbols. `dump` and trap diagnostics do not use it;
// they take names from the CLASSES manifest.
func (c *CompilerConfig) WithSymbolsSection(emit bool) *CompilerConfig {
	ret := c.clone()
	ret.emitSymbols = emit
	return ret
}

// WithTrace enables vmtrace output for codegen and linking to out at the
// given scope. Per spec §7, this only ever adds diagnostic output; it
// never changes what Compile produces.
func (c *CompilerConfig) WithTrace(scope vmtrace.Scope, out vmtrace.Writer) *CompilerConfig {
	ret := c.clone()
	ret.traceScope = scope
	ret.traceOut = out
	return ret
}

func (c *CompilerConfig) writeOptions() container.WriteOptions {
	return container.WriteOptions{EmitDebug: c.emitDebug, EmitSymbols: c.emitSymbols}
}

func (c *CompilerConfig) traceContext(ctx context.Context) context.Context {
	if c.traceScope == vmtrace.ScopeNone || c.traceOut == nil {
		return ctx
	}
	return vmtrace.WithLevel(ctx, c.traceScope, c.traceOut)
}

// RuntimeConfig controls internal/engine/interpreter, mirroring
// CompilerConfig's clone-and-return-a-new-value shape.
type RuntimeConfig struct {
	callStackCeiling int
	stdout           io.Writer
	traceScope       vmtrace.Scope
	traceOut         vmtrace.Writer
}

// NewRuntimeConfig returns the default RuntimeConfig: buildoptions'
// CallStackCeiling, stdout as the OUT* sink, tracing off.
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		callStackCeiling: buildoptions.CallStackCeiling,
		stdout:           os.Stdout,
	}
}

func (c *RuntimeConfig) clone() *RuntimeConfig {
	cp := *c
	return &cp
}

// WithCallStackCeiling overrides the VM's call-frame stack depth bound,
// grounded on internal/buildoptions.CallStackCeiling, the teacher-style
// package-level constant this now overrides per instantiation instead of
// fixing process-wide.
func (c *RuntimeConfig) WithCallStackCeiling(n int) *RuntimeConfig {
	ret := c.clone()
	ret.callStackCeiling = n
	return ret
}

// WithStdout redirects OUTINT/OUTSTRING/OUTCHAR/OUTLN, primarily so a host
// embedding the VM (or a test) can capture program output instead of
// writing to the process's real stdout.
func (c *RuntimeConfig) WithStdout(w io.Writer) *RuntimeConfig {
	ret := c.clone()
	ret.stdout = w
	return ret
}

// WithTrace enables vmtrace output for execution to out at the given
// scope. Per spec §7, this only ever adds diagnostic output.
func (c *RuntimeConfig) WithTrace(scope vmtrace.Scope, out vmtrace.Writer) *RuntimeConfig {
	ret := c.clone()
	ret.traceScope = scope
	ret.traceOut = out
	return ret
}

func (c *RuntimeConfig) traceContext(ctx context.Context) context.Context {
	if c.traceScope == vmtrace.ScopeNone || c.traceOut == nil {
		return ctx
	}
	return vmtrace.WithLevel(ctx, c.traceScope, c.traceOut)
}
