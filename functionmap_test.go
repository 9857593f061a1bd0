package vmkit

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestFunctionMap_IPToMethodInfo_FindsEnclosingMethod(t *testing.T) {
	m := newFunctionMap()
	m.AddMethodInfo(0x1000, MethodInfo{Owner: "loaderA", Data: "methodA"})
	m.AddMethodInfo(0x2000, MethodInfo{Owner: "loaderA", Data: "methodB"})
	m.AddMethodInfo(0x500, MethodInfo{Owner: "loaderA", Data: "methodZero"})

	info, ok := m.IPToMethodInfo(0x1500)
	require.True(t, ok)
	if diff := cmp.Diff(MethodInfo{Owner: "loaderA", Data: "methodA"}, info); diff != "" {
		t.Errorf("IPToMethodInfo(0x1500) mismatch (-want +got):\n%s", diff)
	}

	info, ok = m.IPToMethodInfo(0x2050)
	require.True(t, ok)
	if diff := cmp.Diff(MethodInfo{Owner: "loaderA", Data: "methodB"}, info); diff != "" {
		t.Errorf("IPToMethodInfo(0x2050) mismatch (-want +got):\n%s", diff)
	}

	info, ok = m.IPToMethodInfo(0x1000)
	require.True(t, ok)
	require.Equal(t, "methodA", info.Data)
}

func TestFunctionMap_IPToMethodInfo_BelowFirstEntry(t *testing.T) {
	m := newFunctionMap()
	m.AddMethodInfo(0x1000, MethodInfo{Data: "methodA"})

	_, ok := m.IPToMethodInfo(0x500)
	require.False(t, ok)
}

func TestFunctionMap_RemoveMethodInfosByOwner(t *testing.T) {
	m := newFunctionMap()
	owner1, owner2 := "loader1", "loader2"
	m.AddMethodInfo(0x1000, MethodInfo{Owner: owner1, Data: "a"})
	m.AddMethodInfo(0x2000, MethodInfo{Owner: owner2, Data: "b"})
	m.AddMethodInfo(0x3000, MethodInfo{Owner: owner1, Data: "c"})
	require.Equal(t, 3, m.Len())

	m.RemoveMethodInfos(owner1)
	require.Equal(t, 1, m.Len())

	info, ok := m.IPToMethodInfo(0x2500)
	require.True(t, ok)
	require.Equal(t, "b", info.Data)

	_, ok = m.IPToMethodInfo(0x1500)
	require.False(t, ok)
}

func TestFunctionMap_IPRangeCoversWholeMethod(t *testing.T) {
	m := newFunctionMap()
	m.AddMethodInfo(0x1000, MethodInfo{Data: "methodA"})
	m.AddMethodInfo(0x2000, MethodInfo{Data: "methodB"})

	for ip := uintptr(0x1000); ip < 0x2000; ip += 0x100 {
		info, ok := m.IPToMethodInfo(ip)
		require.True(t, ok)
		require.Equal(t, "methodA", info.Data)
	}
}
