package danmaku

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCell struct {
	id     string
	resets int
}

func (c *stubCell) ReuseIdentifier() string { return c.id }
func (c *stubCell) PrepareForReuse()        { c.resets++ }

func stubFactory(id string) Cell { return &stubCell{id: id} }

func TestCellPool_Dequeue_BuildsThenReuses(t *testing.T) {
	// GIVEN a pool with a factory for "text"
	p := NewCellPool()
	p.Register("text", stubFactory)

	// WHEN a cell is dequeued, released and dequeued again
	first, ok := p.Dequeue("text")
	require.True(t, ok)
	require.True(t, p.Release(first))
	second, ok := p.Dequeue("text")
	require.True(t, ok)

	// THEN the same handle comes back, reset once
	assert.Same(t, first, second)
	assert.Equal(t, 1, second.(*stubCell).resets)
	assert.Equal(t, 0, p.Idle("text"))
}

func TestCellPool_Dequeue_Unregistered_ReturnsNoCell(t *testing.T) {
	p := NewCellPool()
	cell, ok := p.Dequeue("missing")
	assert.False(t, ok)
	assert.Nil(t, cell)
}

func TestCellPool_Release_Twice_PoolsOnce(t *testing.T) {
	// GIVEN a cell taken from the pool
	p := NewCellPool()
	p.Register("text", stubFactory)
	cell, _ := p.Dequeue("text")

	// WHEN it is released three times
	assert.True(t, p.Release(cell))
	assert.False(t, p.Release(cell))
	assert.False(t, p.Release(cell))

	// THEN it is pooled once
	assert.Equal(t, 1, p.Idle("text"))
	assert.False(t, p.Release(nil))
}

func TestCellPool_ConcurrentDequeueRelease_NoDuplicates(t *testing.T) {
	// GIVEN 8 goroutines cycling cells through one pool
	p := NewCellPool()
	p.Register("text", stubFactory)
	var wg sync.WaitGroup
	var mu sync.Mutex
	held := make(map[Cell]bool)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				cell, ok := p.Dequeue("text")
				if !ok {
					t.Error("dequeue failed")
					return
				}
				mu.Lock()
				if held[cell] {
					t.Error("cell handed out twice")
				}
				held[cell] = true
				mu.Unlock()

				mu.Lock()
				delete(held, cell)
				mu.Unlock()
				p.Release(cell)
			}
		}()
	}
	wg.Wait()

	// THEN every cell ends idle exactly once
	assert.LessOrEqual(t, p.Idle("text"), 8)
}

func TestCellPool_Register_NilFactory_Panics(t *testing.T) {
	assert.Panics(t, func() { NewCellPool().Register("x", nil) })
}
