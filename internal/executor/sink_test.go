package executor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_WriteAndRead(t *testing.T) {
	s := NewSink(0)

	n, err := s.Write([]byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	_, err = s.Write([]byte("world"))
	require.NoError(t, err)

	assert.Equal(t, "hello world", s.String())
	assert.Equal(t, 11, s.Len())
}

func TestSink_WritesAfterCloseAreRejected(t *testing.T) {
	s := NewSink(0)
	_, _ = s.Write([]byte("kept"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close is idempotent")

	n, err := s.Write([]byte("lost"))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrSinkClosed)
	assert.Equal(t, "kept", s.String(), "contents stay readable after Close")
}

func TestSink_Limit(t *testing.T) {
	s := NewSink(8)

	_, err := s.Write([]byte("12345"))
	require.NoError(t, err)

	n, err := s.Write([]byte("6789"))
	assert.Equal(t, 3, n)
	assert.True(t, errors.Is(err, ErrOutputLimit))
	assert.Equal(t, "12345678", s.String())

	_, err = s.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrOutputLimit)
	assert.Equal(t, 8, s.Len())
}

func TestSink_ConcurrentWriters(t *testing.T) {
	s := NewSink(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Write([]byte("ab"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, s.Len())
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want float64
	}{
		{"zero", 0, 0},
		{"negative", -time.Second, 0},
		{"rounds to four places", 1234567 * time.Microsecond, 1.2346},
		{"tiny positive never rounds to zero", 20 * time.Microsecond, 0.0001},
		{"whole seconds", 2 * time.Second, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Seconds(tt.in))
		})
	}
}
