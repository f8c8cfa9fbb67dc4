package container

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arxlang/arxvm/api"
	"github.com/arxlang/arxvm/internal/bytecode"
	"github.com/arxlang/arxvm/internal/manifest"
)

func sampleModule(t *testing.T) *Module {
	t.Helper()
	m := manifest.New()
	require.NoError(t, m.AddClass(&manifest.Class{
		Name: "Box", ID: 1, InstanceSize: 8,
		Fields:  []manifest.Field{{Name: "v", Type: api.KindInt, Offset: 0, Size: 8}},
		Methods: []manifest.Method{{Name: "get", Offset: 3, ReturnType: api.KindInt}},
	}))
	_, err := m.Intern("hi")
	require.NoError(t, err)
	m.AddDebug(0, 1)
	m.AddDebug(3, 2)

	return &Module{
		Code: []bytecode.Instruction{
			bytecode.New(api.OpLit, 0),
			bytecode.New(api.OpOpr, api.OprOutString),
			bytecode.New(api.OpRet, 0),
		},
		Manifest:   m,
		EntryPoint: 0,
		AppName:    "hello",
		AppData:    []byte("v1"),
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	mod := sampleModule(t)
	data, err := Write(mod, WriteOptions{EmitDebug: true, EmitSymbols: true})
	require.NoError(t, err)

	got, err := Read(data)
	require.NoError(t, err)

	require.Equal(t, mod.Code, got.Code)
	require.Equal(t, mod.Manifest.Strings, got.Manifest.Strings)
	require.Equal(t, mod.EntryPoint, got.EntryPoint)
	require.Equal(t, mod.AppName, got.AppName)
	require.Equal(t, mod.AppData, got.AppData)

	require.Len(t, got.Manifest.Classes, 1)
	require.Equal(t, "Box", got.Manifest.Classes[0].Name)
	require.Equal(t, uint64(8), got.Manifest.Classes[0].InstanceSize)

	require.NotNil(t, got.Debug)
	line, ok := got.Debug.LineFor(3)
	require.True(t, ok)
	require.Equal(t, uint32(2), line)

	require.Equal(t, uint64(3), got.Symbols["Box.get"])
}

func TestReadRejectsBadMagic(t *testing.T) {
	mod := sampleModule(t)
	data, err := Write(mod, WriteOptions{})
	require.NoError(t, err)
	data[0] = 'X'

	_, err = Read(data)
	require.ErrorIs(t, err, ErrInvalidModule)
}

func TestReadRejectsTruncatedFile(t *testing.T) {
	_, err := Read(make([]byte, 10))
	require.ErrorIs(t, err, ErrInvalidModule)
}

func TestMissingOptionalSectionsDecodeEmpty(t *testing.T) {
	mod := sampleModule(t)
	data, err := Write(mod, WriteOptions{}) // no debug, no symbols
	require.NoError(t, err)

	got, err := Read(data)
	require.NoError(t, err)
	require.Nil(t, got.Debug)
	require.Nil(t, got.Symbols)
}

func TestHeaderDataSizeMatchesSectionSizes(t *testing.T) {
	mod := sampleModule(t)
	data, err := Write(mod, WriteOptions{EmitDebug: true, EmitSymbols: true})
	require.NoError(t, err)

	header, err := decodeHeader(data[:HeaderSize])
	require.NoError(t, err)

	var total uint64
	for i := 0; i < TOCEntryCount; i++ {
		raw := data[header.TOCOffset+uint64(i)*TOCEntrySize : header.TOCOffset+uint64(i+1)*TOCEntrySize]
		total += decodeTOCEntry(raw).Size
	}
	require.Equal(t, total, header.DataSize)
}

func TestZeroClassModuleStillLoads(t *testing.T) {
	mod := &Module{Manifest: manifest.New(), Code: nil}
	data, err := Write(mod, WriteOptions{})
	require.NoError(t, err)

	got, err := Read(data)
	require.NoError(t, err)
	require.Empty(t, got.Code)
	require.Empty(t, got.Manifest.Classes)
}
