package pool_test

import (
	"sync"
	"testing"

	"github.com/momentics/sockethub/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPoolReuse(t *testing.T) {
	bp := pool.NewBufferPool(128, 4)
	b1 := bp.Get()
	require.Len(t, b1, 128)
	b1[0] = 0xAB
	bp.Put(b1)

	b2 := bp.Get()
	require.Len(t, b2, 128)
	// b2 should reuse underlying storage
	assert.Equal(t, byte(0xAB), b2[0])

	st := bp.Stats()
	assert.Equal(t, uint64(1), st.Allocated)
	assert.Equal(t, uint64(1), st.Reused)
	assert.Equal(t, 0, st.Idle)
}

func TestBufferPoolDropsPastCapacity(t *testing.T) {
	bp := pool.NewBufferPool(64, 2)
	bufs := [][]byte{bp.Get(), bp.Get(), bp.Get()}
	for _, b := range bufs {
		bp.Put(b)
	}
	st := bp.Stats()
	assert.Equal(t, 2, st.Idle)
	assert.Equal(t, uint64(1), st.Dropped)
}

func TestBufferPoolRestoresLength(t *testing.T) {
	bp := pool.NewBufferPool(32, 1)
	b := bp.Get()
	bp.Put(b[:5])
	assert.Len(t, bp.Get(), 32)
}

func TestBufferPoolRejectsUndersized(t *testing.T) {
	bp := pool.NewBufferPool(32, 4)
	bp.Put(make([]byte, 8))
	st := bp.Stats()
	assert.Equal(t, 0, st.Idle)
	assert.Equal(t, uint64(1), st.Dropped)
}

func TestBufferPoolZeroValuesUseDefaults(t *testing.T) {
	bp := pool.NewBufferPool(0, -1)
	assert.Equal(t, pool.DefaultBufferSize, bp.BufferSize())
	assert.Equal(t, 0, bp.Capacity())
	bp.Put(bp.Get())
	assert.Equal(t, 0, bp.Stats().Idle)
}

func TestBufferPoolConcurrent(t *testing.T) {
	bp := pool.NewBufferPool(pool.DefaultBufferSize, pool.DefaultCapacity)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				b := bp.Get()
				b[0] = byte(i)
				bp.Put(b)
			}
		}()
	}
	wg.Wait()
	st := bp.Stats()
	assert.LessOrEqual(t, st.Idle, pool.DefaultCapacity)
	assert.Equal(t, uint64(8000), st.Allocated+st.Reused)
}
