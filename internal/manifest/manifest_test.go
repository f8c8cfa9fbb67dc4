package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arxlang/arxvm/api"
)

func TestInternDeduplicatesByExactContent(t *testing.T) {
	m := New()
	id1, err := m.Intern("hi")
	require.NoError(t, err)
	id2, err := m.Intern("hi")
	require.NoError(t, err)
	id3, err := m.Intern("bye")
	require.NoError(t, err)

	require.Equal(t, id1, id2)
	require.NotEqual(t, id1, id3)
	require.Len(t, m.Strings, 2)
}

func TestAddClassRejectsDuplicateIDAndName(t *testing.T) {
	m := New()
	require.NoError(t, m.AddClass(&Class{Name: "Box", ID: 1}))
	require.Error(t, m.AddClass(&Class{Name: "Other", ID: 1}))
	require.Error(t, m.AddClass(&Class{Name: "Box", ID: 2}))
}

func TestMethodByNameWalksParentChain(t *testing.T) {
	m := New()
	require.NoError(t, m.AddClass(&Class{
		Name: "Base", ID: 1,
		Methods: []Method{{Name: "greet", Offset: 10}},
	}))
	require.NoError(t, m.AddClass(&Class{Name: "Derived", ID: 2, ParentID: 1}))

	derived, _ := m.ClassByID(2)
	owner, method, ok := m.MethodByName(derived, "greet")
	require.True(t, ok)
	require.Equal(t, "Base", owner.Name)
	require.Equal(t, uint64(10), method.Offset)

	_, _, ok = m.MethodByName(derived, "missing")
	require.False(t, ok)
}

func TestMethodIsFunction(t *testing.T) {
	require.True(t, Method{ReturnType: api.KindInt}.IsFunction())
	require.False(t, Method{ReturnType: api.KindVoid}.IsFunction())
}

func TestLineForReturnsNearestPriorEntry(t *testing.T) {
	m := New()
	m.AddDebug(0, 1)
	m.AddDebug(5, 2)
	m.AddDebug(10, 3)

	line, ok := m.LineFor(7)
	require.True(t, ok)
	require.Equal(t, uint32(2), line)

	_, ok = New().LineFor(0)
	require.False(t, ok)
}
