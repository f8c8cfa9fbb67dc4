package arxvm

import (
	"context"
	"fmt"
	"os"

	"github.com/arxlang/arxvm/internal/ast"
	"github.com/arxlang/arxvm/internal/bytecode"
	"github.com/arxlang/arxvm/internal/codegen"
	"github.com/arxlang/arxvm/internal/container"
	"github.com/arxlang/arxvm/internal/engine/interpreter"
	"github.com/arxlang/arxvm/internal/linker"
)

// ErrCodegen wraps every error Runtime.Compile's code-generation step
// returns, so callers (notably cmd/arxvm) can tell a codegen failure (spec
// §6 exit code 2) from a link failure (exit code 3) with errors.Is.
var ErrCodegen = fmt.Errorf("codegen failed")

// Runtime is the programmatic entry point a Go caller (or cmd/arxvm) drives
// instead of reaching into internal/codegen, internal/linker,
// internal/container and internal/engine/interpreter directly. It owns no
// state of its own beyond its configs — every Compile/Run call is
// independent, matching spec §5's "there is no cross-run shared state."
type Runtime struct {
	compiler *CompilerConfig
	runtime  *RuntimeConfig
}

// NewRuntime returns a Runtime configured with cc and rc. A nil cc or rc
// uses that config's defaults.
func NewRuntime(cc *CompilerConfig, rc *RuntimeConfig) *Runtime {
	if cc == nil {
		cc = NewCompilerConfig()
	}
	if rc == nil {
		rc = NewRuntimeConfig()
	}
	return &Runtime{compiler: cc, runtime: rc}
}

// Compile runs internal/codegen then internal/linker over prog, per spec
// §2's data flow "parser -> AST -> C4 (code + manifests + strings) -> C5
// (patched code + finalised manifests)". The returned Module is fully
// linked and ready for container.Write or Runtime.Run.
func (r *Runtime) Compile(ctx context.Context, prog *ast.Program) (*container.Module, error) {
	mod, err := codegen.GenerateContext(r.compiler.traceContext(ctx), prog)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodegen, err)
	}
	if err := linker.LinkContext(r.compiler.traceContext(ctx), mod); err != nil {
		return nil, err
	}
	return mod, nil
}

// CompileToFile is Compile followed by container.WriteFile, the "compile"
// CLI surface from spec §6: "input = path to source; output = path to
// .mod".
func (r *Runtime) CompileToFile(ctx context.Context, prog *ast.Program, path string) error {
	mod, err := r.Compile(ctx, prog)
	if err != nil {
		return err
	}
	return container.WriteFile(path, mod, r.compiler.writeOptions())
}

// Run executes a linked Module to completion, returning its final operand
// stack top (0 for a procedure entry point) and any trap. This is the
// "run" CLI surface from spec §6.
func (r *Runtime) Run(ctx context.Context, mod *container.Module) (uint64, error) {
	m := interpreter.New(mod)
	m.SetOutput(r.runtime.stdout)
	m.SetCallStackCeiling(r.runtime.callStackCeiling)
	return m.RunContext(r.runtime.traceContext(ctx))
}

// LoadModuleFile reads a `.mod` file from path, per spec §4.5's reader.
func LoadModuleFile(path string) (*container.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("arxvm: %w", err)
	}
	return container.Read(data)
}

// Dump renders mod as stable text, the "dump" CLI surface from spec §6: the
// entry point, class/string/instruction counts, the APP name, each class
// with its fields and methods, and the disassembled CODE section. The TOC
// and the raw header fields are not printed.
func Dump(mod *container.Module) string {
	var b dumpBuilder
	b.writeHeader(mod)
	b.writeClasses(mod)
	b.writeCode(mod)
	return b.String()
}

type dumpBuilder struct{ buf []byte }

func (d *dumpBuilder) writef(format string, args ...any) {
	d.buf = append(d.buf, []byte(fmt.Sprintf(format, args...))...)
}

func (d *dumpBuilder) String() string { return string(d.buf) }

func (d *dumpBuilder) writeHeader(mod *container.Module) {
	d.writef("entry_point: %d\n", mod.EntryPoint)
	d.writef("classes: %d\n", len(mod.Manifest.Classes))
	d.writef("strings: %d\n", len(mod.Manifest.Strings))
	d.writef("code: %d instructions\n", len(mod.Code))
	if mod.AppName != "" {
		d.writef("app: %s (%d bytes)\n", mod.AppName, len(mod.AppData))
	}
}

func (d *dumpBuilder) writeClasses(mod *container.Module) {
	for _, c := range mod.Manifest.Classes {
		d.writef("class %s (id=%d, instance_size=%d", c.Name, c.ID, c.InstanceSize)
		if c.ParentID != 0 {
			d.writef(", parent_id=%d", c.ParentID)
		}
		d.writef(")\n")
		for _, f := range c.Fields {
			d.writef("  field %s offset=%d size=%d\n", f.Name, f.Offset, f.Size)
		}
		for _, m := range c.Methods {
			d.writef("  method %s offset=%d params=%d\n", m.Name, m.Offset, len(m.ParamTypes))
		}
	}
}

func (d *dumpBuilder) writeCode(mod *container.Module) {
	d.writef("%s", bytecode.Disassemble(mod.Code))
}
