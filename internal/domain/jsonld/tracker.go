package jsonld

import "sort"

// Tracker remembers which post ids already produced output during one
// render pass. It is not safe for concurrent use.
type Tracker struct {
	seen map[int]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[int]struct{})}
}

func (t *Tracker) Seen(id int) bool {
	_, ok := t.seen[id]
	return ok
}

func (t *Tracker) Mark(id int) {
	t.seen[id] = struct{}{}
}

func (t *Tracker) Unmark(id int) {
	delete(t.seen, id)
}

// IDs returns the marked ids in ascending order.
func (t *Tracker) IDs() []int {
	ids := make([]int, 0, len(t.seen))
	for id := range t.seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
