package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1.String(), id2.String())
	assert.Equal(t, -1, id1.Compare(id2), "monotonic entropy keeps IDs sorted")
}

func TestGenerateString(t *testing.T) {
	assert.Len(t, NewGenerator().GenerateString(), 26)
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{DispatchPrefix, ConnectionPrefix, RequestPrefix} {
		id := gen.GenerateWithPrefix(prefix)

		require.True(t, strings.HasPrefix(id, prefix+"_"), id)
		parts := strings.Split(id, "_")
		require.Len(t, parts, 2)
		assert.True(t, IsValid(parts[1]))
		assert.True(t, IsValid(id))
	}
}

func TestTypedIDGeneration(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewDispatchID().String(), "dsp_"))
	assert.True(t, strings.HasPrefix(NewConnectionID().String(), "conn_"))
	assert.True(t, strings.HasPrefix(NewRequestID().String(), "req_"))
}

func TestIsValid(t *testing.T) {
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("dsp_not-a-ulid"))
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)

	ts, err := Timestamp(NewDispatchID().String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("bogus")
	assert.Error(t, err)
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	var (
		mu  sync.Mutex
		ids = make(map[string]struct{})
		wg  sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := gen.GenerateString()
				mu.Lock()
				ids[s] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1000)
}
