package container

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferFIFOOrder(t *testing.T) {
	t.Parallel()

	rb := NewRingBuffer[int]()
	require.True(t, rb.Empty())
	require.Equal(t, 0, rb.Len())

	_, ok := rb.Pop()
	require.False(t, ok)
	_, ok = rb.Peek()
	require.False(t, ok)

	for i := 0; i < 50; i++ {
		rb.Push(i)
	}
	require.Equal(t, 50, rb.Len())
	require.False(t, rb.Empty())

	head, ok := rb.Peek()
	require.True(t, ok)
	require.Equal(t, 0, head)
	require.Equal(t, 50, rb.Len(), "Peek must not consume")

	for i := 0; i < 50; i++ {
		v, ok := rb.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.True(t, rb.Empty())
}

// Interleaves pushes and pops so the head walks past the end of the backing
// slice many times while the buffer also grows.
func TestRingBufferWraparound(t *testing.T) {
	t.Parallel()

	rb := NewRingBuffer[int]()
	next := 0
	expect := 0

	for round := 0; round < 200; round++ {
		for i := 0; i < 7; i++ {
			rb.Push(next)
			next++
		}
		for i := 0; i < 5; i++ {
			v, ok := rb.Pop()
			require.True(t, ok)
			require.Equal(t, expect, v)
			expect++
		}
	}

	for !rb.Empty() {
		v, ok := rb.Pop()
		require.True(t, ok)
		require.Equal(t, expect, v)
		expect++
	}
	require.Equal(t, next, expect)
}

func TestRingBufferGrowth(t *testing.T) {
	t.Parallel()

	rb := NewRingBuffer[string]()
	for _, n := range []int{10, 100, 1000, 10000} {
		for i := 0; i < n; i++ {
			rb.Push("v")
		}
		require.Equal(t, n, rb.Len())
		for i := 0; i < n; i++ {
			_, ok := rb.Pop()
			require.True(t, ok)
		}
		require.True(t, rb.Empty())
	}
}
