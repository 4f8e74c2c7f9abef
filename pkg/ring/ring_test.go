package ring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushDropPreservesOrder(t *testing.T) {
	var b Buffer
	b.Push([]byte("hello "))
	b.Push([]byte("world"))
	require.Equal(t, 11, b.Len())
	require.Equal(t, []byte("hello world"), b.Peek(11))

	b.Drop(6)
	require.Equal(t, 5, b.Len())
	require.Equal(t, []byte("world"), b.Peek(5))
}

func TestAtMatchesPeek(t *testing.T) {
	var b Buffer
	b.Push([]byte("abcdefgh"))
	for i := 0; i < b.Len(); i++ {
		require.Equal(t, b.Peek(b.Len())[i], b.At(i))
	}
}

func TestCrossesChunkBoundary(t *testing.T) {
	var b Buffer
	big := make([]byte, chunkSize+500)
	for i := range big {
		big[i] = byte(i)
	}
	b.Push(big)
	require.Len(t, b.chunks, 2)
	require.Equal(t, big, b.Peek(len(big)))

	b.Drop(chunkSize - 1)
	require.Equal(t, big[chunkSize-1:], b.Peek(b.Len()))
}

func TestClear(t *testing.T) {
	var b Buffer
	b.Push([]byte("xyz"))
	b.Clear()
	require.Equal(t, 0, b.Len())
}

func TestRandomizedPushDrop(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	var b Buffer
	var model []byte

	for i := 0; i < 500; i++ {
		if len(model) == 0 || r.Intn(2) == 0 {
			n := r.Intn(200) + 1
			chunk := make([]byte, n)
			r.Read(chunk)
			b.Push(chunk)
			model = append(model, chunk...)
		} else {
			n := r.Intn(len(model)) + 1
			require.Equal(t, model[:n], b.Peek(n))
			b.Drop(n)
			model = model[n:]
		}
		require.Equal(t, len(model), b.Len())
	}
}
