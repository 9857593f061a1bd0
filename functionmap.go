package vmkit

import (
	"sort"
	"sync"
)

// MethodInfo is the opaque per-method descriptor a front-end registers
// against a code range (spec.md §3, "MethodInfo"). vmkit never looks inside
// it; it is handed back verbatim from IPToMethodInfo and the stack walker.
type MethodInfo struct {
	// Owner identifies whatever registered this method - typically a class
	// loader or assembly - so RemoveMethodInfos can bulk-remove every method
	// it owns when torn down.
	Owner any
	// Data is the front-end's actual descriptor (a *J3Method, an N3
	// equivalent, or anything else); vmkit never inspects it.
	Data any
}

// functionMapEntry is one codeStartAddress -> MethodInfo binding.
type functionMapEntry struct {
	addr uintptr
	info MethodInfo
}

// FunctionMap is an ordered map from code-segment start addresses to
// MethodInfo, used for IP -> method lookups during stack walking (spec.md
// §4.5). Entries are kept sorted by address in a plain slice: lookup is
// O(log n) via binary search; insert finds its position by binary search but
// then shifts every later entry, so it is O(n), not O(log n). Bulk removal by
// owner is an O(n) filter-rebuild.
type FunctionMap struct {
	mu      sync.RWMutex // FunctionMapLock, a plain mutex rather than gcref's spinlock: inserts/removes are rare compared to lookups
	entries []functionMapEntry
}

// newFunctionMap constructs an empty FunctionMap.
func newFunctionMap() *FunctionMap {
	return &FunctionMap{}
}

// AddMethodInfo registers addr as the start of info's code range. addr must
// not already be registered, and must not fall inside another method's
// range (spec.md's non-overlap invariant); vmkit trusts the front-end to
// enforce this, since only it knows where code ranges actually end.
func (m *FunctionMap) AddMethodInfo(addr uintptr, info MethodInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].addr >= addr })
	m.entries = append(m.entries, functionMapEntry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = functionMapEntry{addr: addr, info: info}
}

// IPToMethodInfo returns the MethodInfo of the entry with the largest
// registered address <= ip - the method enclosing ip - and reports whether
// any such entry exists. Used by the stack walker and by reflection
// primitives like getCallingAssembly/getCallerClass.
func (m *FunctionMap) IPToMethodInfo(ip uintptr) (MethodInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// first index whose addr > ip; the entry just before it, if any, is the
	// largest entry with addr <= ip.
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].addr > ip })
	if i == 0 {
		return MethodInfo{}, false
	}
	return m.entries[i-1].info, true
}

// RemoveMethodInfos removes every entry whose MethodInfo.Owner == owner,
// e.g. when a class loader or assembly is torn down. O(n) in the map's
// current size.
func (m *FunctionMap) RemoveMethodInfos(owner any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.info.Owner != owner {
			kept = append(kept, e)
		}
	}
	m.entries = kept
}

// Len reports how many methods are currently registered.
func (m *FunctionMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
