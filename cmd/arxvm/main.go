// Command arxvm is the CLI driver spec §6 names: compile, run, and dump
// against the bytecode toolchain implemented in the root arxvm package.
// The real lexer/parser is an out-of-scope external collaborator (spec §1),
// so "compile" reads a JSON stand-in AST via internal/ast.LoadProgram
// rather than source text in the language's own concrete syntax.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/arxlang/arxvm"
	"github.com/arxlang/arxvm/internal/ast"
	"github.com/arxlang/arxvm/internal/container"
	"github.com/arxlang/arxvm/internal/linker"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run builds and executes the cobra command tree against stdout/stderr
// supplied by the caller, following the teacher's doMain(stdOut, stdErr
// io.Writer) separation so main itself stays a one-line os.Exit wrapper.
func run(args []string, stdout, stderr io.Writer) int {
	exitCode := 0
	root := &cobra.Command{
		Use:           "arxvm",
		Short:         "Compile, run and inspect ARX bytecode modules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newCompileCmd(&exitCode), newRunCmd(&exitCode), newDumpCmd())
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	return exitCode
}

func newCompileCmd(exitCode *int) *cobra.Command {
	var debugSection, symbolsSection bool
	cmd := &cobra.Command{
		Use:   "compile <source.json> <output.mod>",
		Short: "Compile a JSON AST document into a .mod module",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := ast.LoadProgram(args[0])
			if err != nil {
				*exitCode = 1
				return err
			}
			rt := arxvm.NewRuntime(
				arxvm.NewCompilerConfig().WithDebugSection(debugSection).WithSymbolsSection(symbolsSection),
				nil,
			)
			mod, err := rt.Compile(cmd.Context(), prog)
			if err != nil {
				if isLinkError(err) {
					*exitCode = 3
				} else {
					*exitCode = 2
				}
				return err
			}
			if err := container.WriteFile(args[1], mod, container.WriteOptions{
				EmitDebug: debugSection, EmitSymbols: symbolsSection,
			}); err != nil {
				*exitCode = 2
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&debugSection, "debug-section", true, "emit the optional DEBUG section")
	cmd.Flags().BoolVar(&symbolsSection, "symbols-section", true, "emit the optional SYMBOLS section")
	return cmd
}

func isLinkError(err error) bool { return errors.Is(err, linker.ErrLinkFailed) }

func newRunCmd(exitCode *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <module.mod>",
		Short: "Execute a linked .mod module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := arxvm.LoadModuleFile(args[0])
			if err != nil {
				*exitCode = 1
				return err
			}
			rt := arxvm.NewRuntime(nil, arxvm.NewRuntimeConfig().WithStdout(cmd.OutOrStdout()))
			_, err = rt.Run(context.Background(), mod)
			if err != nil {
				*exitCode = 4
				return err
			}
			return nil
		},
	}
	return cmd
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <module.mod>",
		Short: "Print a .mod module's entry point, counts, classes and disassembled code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := arxvm.LoadModuleFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), arxvm.Dump(mod))
			return nil
		},
	}
}
