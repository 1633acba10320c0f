package compress

import (
	"container/heap"

	"github.com/unbound-force/shrinkowners/internal/ownership"
)

// item is a tree node waiting to be materialized under parent.
type item struct {
	node   ownership.NodeID
	parent *entry
	size   int
	seq    int
}

// queue pops the largest subtree first; equal sizes pop in push order.
type queue struct {
	items []item
	seq   int
}

func (q *queue) Len() int { return len(q.items) }

func (q *queue) Less(i, j int) bool {
	if q.items[i].size != q.items[j].size {
		return q.items[i].size > q.items[j].size
	}
	return q.items[i].seq < q.items[j].seq
}

func (q *queue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *queue) Push(x any) { q.items = append(q.items, x.(item)) }

func (q *queue) Pop() any {
	old := q.items
	it := old[len(old)-1]
	q.items = old[:len(old)-1]
	return it
}

func (q *queue) push(node ownership.NodeID, size int, parent *entry) {
	heap.Push(q, item{node: node, parent: parent, size: size, seq: q.seq})
	q.seq++
}

func (q *queue) pop() item {
	return heap.Pop(q).(item)
}
