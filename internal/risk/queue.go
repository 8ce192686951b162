package risk

import (
	"container/heap"

	"github.com/shopspring/decimal"
)

// Pending 是等待下单的买入。
type Pending struct {
	Instrument string          `json:"instrument"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Priority   decimal.Decimal `json:"priority"`
	Reason     string          `json:"reason"`

	seq int
}

// BuyQueue 是按 Priority 升序出队的最小堆，相同优先级按入队顺序。
type BuyQueue struct {
	items pendingHeap
	seq   int
}

func (q *BuyQueue) Push(p Pending) {
	q.seq++
	p.seq = q.seq
	heap.Push(&q.items, p)
}

func (q *BuyQueue) Pop() (Pending, bool) {
	if len(q.items) == 0 {
		return Pending{}, false
	}
	return heap.Pop(&q.items).(Pending), true
}

func (q *BuyQueue) Len() int { return len(q.items) }

// Items 按出队顺序返回队列内容，不修改队列。
func (q *BuyQueue) Items() []Pending {
	clone := BuyQueue{items: append(pendingHeap(nil), q.items...)}
	out := make([]Pending, 0, clone.Len())
	for {
		p, ok := clone.Pop()
		if !ok {
			return out
		}
		out = append(out, p)
	}
}

type pendingHeap []Pending

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if c := h[i].Priority.Cmp(h[j].Priority); c != 0 {
		return c < 0
	}
	return h[i].seq < h[j].seq
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) { *h = append(*h, x.(Pending)) }

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
