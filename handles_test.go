package jdeserialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleTable_AllocateSequential(t *testing.T) {
	ht := newHandleTable()
	assert.Equal(t, baseWireHandle, ht.allocate())
	assert.Equal(t, baseWireHandle+1, ht.allocate())
	assert.Equal(t, baseWireHandle+2, ht.allocate())
}

func TestHandleTable_BindAndLookup(t *testing.T) {
	require := require.New(t)
	ht := newHandleTable()
	s := &StringObject{contentBase: contentBase{handle: baseWireHandle}, Value: "zoo"}

	h := ht.allocate()
	require.NoError(ht.bind(h, s))

	c, err := ht.lookup(h)
	require.NoError(err)
	require.Same(s, c)

	_, err = ht.lookup(h + 1)
	require.Error(err)
}

func TestHandleTable_RebindFails(t *testing.T) {
	ht := newHandleTable()
	h := ht.allocate()
	require.NoError(t, ht.bind(h, newBlockData(nil)))
	assert.Error(t, ht.bind(h, newBlockData(nil)))
}

func TestHandleTable_Reset(t *testing.T) {
	require := require.New(t)
	ht := newHandleTable()
	h := ht.allocate()
	require.NoError(ht.bind(h, newBlockData(nil)))

	ht.reset()
	require.Equal(baseWireHandle, ht.allocate())
	require.Len(ht.archived, 1)
	_, err := ht.lookup(h)
	require.Error(err)

	// An empty table is not archived again.
	ht.reset()
	require.Len(ht.archived, 1)
}

func TestHandleTable_Finish(t *testing.T) {
	require := require.New(t)
	ht := newHandleTable()
	h := ht.allocate()
	require.NoError(ht.bind(h, newBlockData(nil)))

	ht.finish()
	require.Len(ht.archived, 1)
	require.Contains(ht.archived[0], h)
}
