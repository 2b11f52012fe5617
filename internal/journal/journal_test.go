package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitRunsStepsInOrder(t *testing.T) {
	h := New(0)
	var log []string
	tx, err := h.Begin("edit")
	require.NoError(t, err)
	tx.Step("one", func() { log = append(log, "do1") }, func() { log = append(log, "undo1") })
	tx.Step("two", func() { log = append(log, "do2") }, func() { log = append(log, "undo2") })
	assert.Empty(t, log, "steps must not run before commit")

	e, err := tx.Commit()
	require.NoError(t, err)
	assert.Equal(t, "edit", e.Name)
	assert.Equal(t, []string{"one", "two"}, e.Steps)
	assert.Equal(t, []string{"do1", "do2"}, log)

	_, err = h.Undo()
	require.NoError(t, err)
	assert.Equal(t, []string{"do1", "do2", "undo2", "undo1"}, log)

	_, err = h.Redo()
	require.NoError(t, err)
	assert.Equal(t, []string{"do1", "do2", "undo2", "undo1", "do1", "do2"}, log)
}

func TestSingleOpenTransaction(t *testing.T) {
	h := New(0)
	tx, err := h.Begin("first")
	require.NoError(t, err)
	_, err = h.Begin("second")
	assert.ErrorIs(t, err, ErrTransactionOpen)
	assert.True(t, h.Open())

	_, err = h.Undo()
	assert.ErrorIs(t, err, ErrTransactionOpen)

	tx.Discard()
	assert.False(t, h.Open())
	_, err = tx.Commit()
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = h.Begin("")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestCommitClearsRedo(t *testing.T) {
	h := New(0)
	commit := func(name string) {
		tx, err := h.Begin(name)
		require.NoError(t, err)
		tx.Step(name, func() {}, func() {})
		_, err = tx.Commit()
		require.NoError(t, err)
	}
	commit("a")
	commit("b")
	_, err := h.Undo()
	require.NoError(t, err)
	u, r := h.Len()
	assert.Equal(t, 1, u)
	assert.Equal(t, 1, r)

	commit("c")
	u, r = h.Len()
	assert.Equal(t, 2, u)
	assert.Equal(t, 0, r)
	assert.Equal(t, []string{"a", "c"}, h.Entries())

	_, err = h.Redo()
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

func TestLimitAndClear(t *testing.T) {
	h := New(2)
	for _, name := range []string{"a", "b", "c"} {
		tx, err := h.Begin(name)
		require.NoError(t, err)
		_, err = tx.Commit()
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"b", "c"}, h.Entries())

	h.Clear()
	_, err := h.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestOnCommit(t *testing.T) {
	h := New(0)
	var got []uint64
	h.OnCommit(func(e *Entry) { got = append(got, e.Seq) })
	for i := 0; i < 3; i++ {
		tx, err := h.Begin("x")
		require.NoError(t, err)
		_, err = tx.Commit()
		require.NoError(t, err)
	}
	assert.Equal(t, []uint64{1, 2, 3}, got)
}
