package danmaku

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func agents(ids ...string) []*Agent {
	out := make([]*Agent, len(ids))
	for i, id := range ids {
		out[i] = NewAgent(&Item{ID: id}, false)
	}
	return out
}

func TestPendingQueue_PrependAll_NewestWindowFirst(t *testing.T) {
	// GIVEN a queue holding [A, B]
	pq := &PendingQueue{}
	pq.PrependAll(agents("A", "B"))

	// WHEN a later drain [X, Y] is prepended
	pq.PrependAll(agents("X", "Y"))

	// THEN the later drain sits in front, each batch keeping its order
	assert.Equal(t, []string{"X", "Y", "A", "B"}, agentIDs(pq.Items()))
	assert.Equal(t, "X", pq.Peek().Item.ID)
}

func TestPendingQueue_PrependAll_Empty_NoOp(t *testing.T) {
	pq := &PendingQueue{}
	pq.PrependAll(nil)
	assert.Equal(t, 0, pq.Len())
	assert.Nil(t, pq.Peek())
}

func TestPendingQueue_Retain_ReturnsRemovedInOrder(t *testing.T) {
	// GIVEN [A, B, C, D]
	pq := &PendingQueue{}
	pq.PrependAll(agents("A", "B", "C", "D"))

	// WHEN B and D are rejected
	var visited []string
	removed := pq.Retain(func(a *Agent) bool {
		visited = append(visited, a.Item.ID)
		return a.Item.ID != "B" && a.Item.ID != "D"
	})

	// THEN keep saw every agent once front to back, and both lists keep order
	assert.Equal(t, []string{"A", "B", "C", "D"}, visited)
	assert.Equal(t, []string{"B", "D"}, agentIDs(removed))
	assert.Equal(t, []string{"A", "C"}, agentIDs(pq.Items()))
}

func TestPendingQueue_Clear(t *testing.T) {
	pq := &PendingQueue{}
	pq.PrependAll(agents("A", "B", "C"))

	assert.Equal(t, 3, pq.Clear())
	assert.Equal(t, 0, pq.Len())
	assert.Equal(t, "[]", pq.String())
}
