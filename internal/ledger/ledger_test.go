package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_AppendGet(t *testing.T) {
	l := New()
	assert.Equal(t, 0, l.Len())

	l.Append([]string{"a", "b"})
	l.Append(nil)
	l.Append([]string{"c"})
	require.Equal(t, 3, l.Len())

	for i, want := range []string{"a", "b", "c"} {
		got, err := l.Get(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := l.Get(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = l.Get(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestLedger_Slice(t *testing.T) {
	l := New()
	l.Append([]string{"a", "b", "c", "d"})

	assert.Equal(t, []string{"c", "d"}, l.Slice(2))
	assert.Equal(t, []string{"a", "b", "c", "d"}, l.Slice(0))
	assert.Equal(t, []string{"a", "b", "c", "d"}, l.Slice(-5))
	assert.Empty(t, l.Slice(4))
	assert.Empty(t, l.Slice(10))

	tail := l.Slice(1)
	tail[0] = "x"
	got, err := l.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "b", got, "Slice must return a copy")
}

func TestLedger_Replace(t *testing.T) {
	l := New()
	l.Append([]string{"a", "b", "c"})

	in := []string{"b", "c"}
	l.Replace(in)
	in[0] = "z"
	require.Equal(t, 2, l.Len())
	got, err := l.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	l.Replace(nil)
	assert.Equal(t, 0, l.Len())
}
