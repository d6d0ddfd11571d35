package pathfinding

type node struct {
	idx int
	g   float64
	h   float64
	f   float64
	seq uint64
}

// frontier is a min-heap ordered by (f, h, seq).
type frontier []*node

func (q frontier) Len() int { return len(q) }

func (q frontier) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

func (q frontier) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}

func (q *frontier) Push(x any) {
	*q = append(*q, x.(*node))
}

func (q *frontier) Pop() any {
	old := *q
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return n
}
