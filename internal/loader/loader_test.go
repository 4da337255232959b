package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `Q: What does defer do?
It schedules a call to run when the function returns.

Deferred calls run in LIFO order.
----rc----
Think about cleanup of files and locks.
----q----
Q: What is a nil map?
Reading works, writing panics.
----q----
A question without an answer
----q----
Q: What is iota?
A constant generator.
`

func TestParse(t *testing.T) {
	items := Parse(sample, "go", 10)
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, 10, first.GlobalIndex)
	assert.Equal(t, "What does defer do?", first.Question)
	assert.Equal(t, "It schedules a call to run when the function returns.\n\nDeferred calls run in LIFO order.", first.Answer)
	assert.Equal(t, "Think about cleanup of files and locks.", first.Thinking)
	assert.Equal(t, "go", first.Category)

	assert.Equal(t, 11, items[1].GlobalIndex)
	assert.Empty(t, items[1].Thinking)

	// the incomplete section does not consume an index
	assert.Equal(t, 12, items[2].GlobalIndex)
	assert.Equal(t, "What is iota?", items[2].Question)
}

func TestParse_CRLF(t *testing.T) {
	items := Parse("Q: one\r\nanswer one\r\n----q----\r\nQ: two\r\nanswer two", "x", 0)
	require.Len(t, items, 2)
	assert.Equal(t, "answer two", items[1].Answer)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_rust.txt"), []byte("Q: borrow?\nshared or unique"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_go.txt"), []byte(sample), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("Q: ignored\nignored"), 0644))

	items, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, items, 4)

	for i, item := range items {
		assert.Equal(t, i, item.GlobalIndex)
	}
	assert.Equal(t, "a_go", items[0].Category)
	assert.Equal(t, "b_rust", items[3].Category)
	assert.Equal(t, "borrow?", items[3].Question)
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
