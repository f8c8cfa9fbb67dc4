package vmdebug

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arxlang/arxvm/internal/container"
	"github.com/arxlang/arxvm/internal/manifest"
	"github.com/arxlang/arxvm/internal/vmtrap"
)

func TestDecorate_PopulatesFieldsFromDebugSection(t *testing.T) {
	m := manifest.New()
	require.NoError(t, m.AddClass(&manifest.Class{
		Name: "App",
		ID:   1,
		Methods: []manifest.Method{
			{Name: "main", Offset: 0},
			{Name: "helper", Offset: 5},
		},
	}))
	mod := &container.Module{
		Manifest: m,
		Debug: manifest.NewCompactDebugTable([]manifest.DebugLine{
			{InstructionIndex: 0, SourceLine: 10},
			{InstructionIndex: 5, SourceLine: 20},
			{InstructionIndex: 7, SourceLine: 21},
		}),
	}

	err := Decorate(mod, 6, vmtrap.ErrDivideByZero)

	var te *TrapError
	require.True(t, errors.As(err, &te))
	require.Equal(t, uint64(6), te.PC)
	require.Equal(t, "App.helper", te.MethodName)
	require.True(t, te.HasLine)
	require.Equal(t, uint32(20), te.Line)
	require.ErrorIs(t, te, vmtrap.ErrDivideByZero)
	require.Contains(t, te.Error(), "App.helper")
	require.Contains(t, te.Error(), "line 20")
}

func TestDecorate_FallsBackToManifestDebugWhenNoCompactTable(t *testing.T) {
	m := manifest.New()
	require.NoError(t, m.AddClass(&manifest.Class{
		Name:    "App",
		ID:      1,
		Methods: []manifest.Method{{Name: "main", Offset: 0}},
	}))
	m.AddDebug(0, 3)
	mod := &container.Module{Manifest: m}

	err := Decorate(mod, 0, vmtrap.ErrStackUnderflow)

	var te *TrapError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "App.main", te.MethodName)
	require.True(t, te.HasLine)
	require.Equal(t, uint32(3), te.Line)
}

func TestDecorate_NoDebugInfoAtAllHasLineFalse(t *testing.T) {
	m := manifest.New()
	require.NoError(t, m.AddClass(&manifest.Class{
		Name:    "App",
		ID:      1,
		Methods: []manifest.Method{{Name: "main", Offset: 0}},
	}))
	mod := &container.Module{Manifest: m}

	err := Decorate(mod, 2, vmtrap.ErrNullReceiver)

	var te *TrapError
	require.True(t, errors.As(err, &te))
	require.False(t, te.HasLine)
	require.Equal(t, uint32(0), te.Line)
	require.Equal(t, "App.main", te.MethodName)
	require.NotContains(t, te.Error(), "line")
}

func TestDecorate_NilModuleLeavesMethodNameAndLineEmpty(t *testing.T) {
	err := Decorate(nil, 9, vmtrap.ErrBadSlot)

	var te *TrapError
	require.True(t, errors.As(err, &te))
	require.Equal(t, uint64(9), te.PC)
	require.Equal(t, "", te.MethodName)
	require.False(t, te.HasLine)
	require.Equal(t, "trap at pc 9: "+vmtrap.ErrBadSlot.Error(), te.Error())
}

func TestDecorate_NonErrorRecoveredValueIsWrapped(t *testing.T) {
	err := Decorate(nil, 1, "something went wrong")

	var te *TrapError
	require.True(t, errors.As(err, &te))
	require.EqualError(t, te.Cause, "something went wrong")
}

func TestIsTrap(t *testing.T) {
	err := Decorate(nil, 0, vmtrap.ErrDivideByZero)
	require.True(t, IsTrap(err))

	require.False(t, IsTrap(errors.New("not a trap")))
	require.False(t, IsTrap(nil))
}
