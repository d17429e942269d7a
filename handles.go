package jdeserialize

import (
	"sort"

	"golang.org/x/exp/maps"
)

// handleTable tracks the objects assigned wire handles in the current epoch.
// Handles are allocated sequentially from baseWireHandle; a TC_RESET archives
// the current map and restarts allocation. Allocation and binding are
// separate steps because several grammar rules assign a handle before the
// object is fully read.
type handleTable struct {
	current  map[int32]Content
	next     int32
	archived []map[int32]Content
}

func newHandleTable() *handleTable {
	return &handleTable{
		current: make(map[int32]Content),
		next:    baseWireHandle,
	}
}

func (t *handleTable) allocate() int32 {
	h := t.next
	t.next++
	return h
}

func (t *handleTable) bind(handle int32, c Content) error {
	if _, ok := t.current[handle]; ok {
		return validityErrorf("trying to rebind handle %s", hex(int64(handle)))
	}
	t.current[handle] = c
	return nil
}

func (t *handleTable) lookup(handle int32) (Content, error) {
	c, ok := t.current[handle]
	if !ok {
		return nil, validityErrorf("can't find an entry for handle %s", hex(int64(handle)))
	}
	return c, nil
}

// reset archives the current map (if non-empty) and restarts allocation at
// the base wire handle.
func (t *handleTable) reset() {
	if len(t.current) > 0 {
		t.archived = append(t.archived, t.current)
		t.current = make(map[int32]Content)
	}
	t.next = baseWireHandle
}

// finish archives the final epoch without clearing it, so that HandleMaps
// exposes one map per epoch including the last.
func (t *handleTable) finish() {
	if len(t.current) > 0 {
		t.archived = append(t.archived, maps.Clone(t.current))
	}
}

// sortedHandles returns the map's handles in ascending order, which is the
// order the objects were read from the stream.
func sortedHandles(m map[int32]Content) []int32 {
	handles := maps.Keys(m)
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}
