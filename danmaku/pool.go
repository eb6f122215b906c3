package danmaku

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// CellFactory builds a fresh cell for a reuse identifier.
type CellFactory func(reuseID string) Cell

// CellPool keeps idle cells keyed by reuse identifier so display does not
// allocate per item. Dequeue and Release may race (promotion on one runner,
// recycling on another), so every map access holds mu.
type CellPool struct {
	mu        sync.Mutex
	factories map[string]CellFactory
	idle      map[string][]Cell
	pooled    map[Cell]struct{}
}

// NewCellPool creates an empty pool.
func NewCellPool() *CellPool {
	return &CellPool{
		factories: make(map[string]CellFactory),
		idle:      make(map[string][]Cell),
		pooled:    make(map[Cell]struct{}),
	}
}

// Register associates reuseID with a cell constructor, replacing any earlier one.
func (p *CellPool) Register(reuseID string, factory CellFactory) {
	if factory == nil {
		panic("Register: factory must not be nil")
	}
	p.mu.Lock()
	p.factories[reuseID] = factory
	p.mu.Unlock()
}

// Dequeue pops an idle cell for reuseID and resets it, or builds a new one via
// the registered factory. Returns nil, false when reuseID has no idle cell and
// no factory.
func (p *CellPool) Dequeue(reuseID string) (Cell, bool) {
	p.mu.Lock()
	cells := p.idle[reuseID]
	if n := len(cells); n > 0 {
		cell := cells[n-1]
		cells[n-1] = nil
		p.idle[reuseID] = cells[:n-1]
		delete(p.pooled, cell)
		p.mu.Unlock()
		cell.PrepareForReuse()
		return cell, true
	}
	factory, ok := p.factories[reuseID]
	p.mu.Unlock()
	if !ok {
		return nil, false
	}
	cell := factory(reuseID)
	if cell == nil {
		return nil, false
	}
	return cell, true
}

// Release returns cell to its pool. Releasing a cell that is already idle is a
// no-op and returns false.
func (p *CellPool) Release(cell Cell) bool {
	if cell == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.pooled[cell]; dup {
		logrus.Debugf("cell %p already pooled under %q", cell, cell.ReuseIdentifier())
		return false
	}
	id := cell.ReuseIdentifier()
	p.idle[id] = append(p.idle[id], cell)
	p.pooled[cell] = struct{}{}
	return true
}

// Idle returns how many cells are waiting for reuse under reuseID.
func (p *CellPool) Idle(reuseID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[reuseID])
}
