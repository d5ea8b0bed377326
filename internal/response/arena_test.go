package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaLimitsNodes(t *testing.T) {
	a := NewArena(2)

	_, err := a.New(TypeNull)
	require.NoError(t, err)
	_, err = a.New(TypeNull)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Remaining())

	_, err = a.New(TypeNull)
	assert.ErrorIs(t, err, ErrNodeLimit)
	assert.Equal(t, 2, a.Used())
}

func TestArenaReserveFailsBeyondBudget(t *testing.T) {
	a := NewArena(4)
	list, err := a.New(TypeList)
	require.NoError(t, err)

	require.NoError(t, list.Reserve(3))
	assert.ErrorIs(t, list.Reserve(4), ErrNodeLimit)
}

func TestUnlimitedArena(t *testing.T) {
	a := NewArena(0)
	list, err := a.New(TypeList)
	require.NoError(t, err)
	require.NoError(t, list.Reserve(1<<20))
	assert.Equal(t, -1, a.Remaining())

	var nilArena *Arena
	assert.Equal(t, 0, nilArena.Used())
	assert.Equal(t, -1, nilArena.Remaining())
}

func TestReserveRejectsNegative(t *testing.T) {
	l := mustNew(t, TypeList)
	require.Error(t, l.Reserve(-1))
}
