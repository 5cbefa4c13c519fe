package heavykeeper

import (
	"container/heap"
	"sort"
	"sync"
)

type node struct {
	key   string
	count uint32
	index int
}

// nodeHeap is a min-heap on count.
type nodeHeap []*node

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].count < h[j].count }
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*node)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	n.index = -1
	return n
}

// topK tracks the k heaviest keys seen so far. All methods take the single lock.
type topK struct {
	mu    sync.Mutex
	k     int
	nodes nodeHeap
	index map[string]*node
}

func newTopK(k int) *topK {
	return &topK{
		k:     k,
		nodes: make(nodeHeap, 0, k),
		index: make(map[string]*node, k),
	}
}

// refresh updates the count of a tracked key. It reports whether the key is tracked.
func (t *topK) refresh(key string, count uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshLocked(key, count)
}

func (t *topK) refreshLocked(key string, count uint32) bool {
	n, ok := t.index[key]
	if !ok {
		return false
	}
	n.count = count
	heap.Fix(&t.nodes, n.index)
	return true
}

// offer refreshes or admits key. When admitting into a full structure the current
// minimum is evicted and returned.
func (t *topK) offer(key string, count uint32) (hot bool, expelled *Item) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refreshLocked(key, count) {
		return true, nil
	}

	if len(t.nodes) < t.k {
		t.pushLocked(key, count)
		return true, nil
	}

	if min := t.nodes[0]; count > min.count {
		heap.Pop(&t.nodes)
		delete(t.index, min.key)
		t.pushLocked(key, count)
		return true, &Item{Key: min.key, Count: min.count}
	}
	return false, nil
}

func (t *topK) pushLocked(key string, count uint32) {
	n := &node{key: key, count: count}
	heap.Push(&t.nodes, n)
	t.index[key] = n
}

func (t *topK) contains(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.index[key]
	return ok
}

func (t *topK) list() []Item {
	t.mu.Lock()
	items := make([]Item, 0, len(t.nodes))
	for _, n := range t.nodes {
		items = append(items, Item{Key: n.key, Count: n.count})
	}
	t.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Key < items[j].Key
	})
	return items
}

func (t *topK) halve() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.nodes {
		n.count >>= 1
	}
	heap.Init(&t.nodes)
}
