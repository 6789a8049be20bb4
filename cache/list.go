package cache

// node is an element of the recency list. Owned by exactly one TTL cache.
type node[K comparable, V any] struct {
	next  *node[K, V]
	prev  *node[K, V]
	entry entry[K, V]
}

// list is a minimal doubly linked list tracking recency: front is the most
// recently used entry, back the eviction candidate.
type list[K comparable, V any] struct {
	head *node[K, V]
	tail *node[K, V]
}

func (l *list[K, V]) back() *node[K, V] { return l.tail }

func (l *list[K, V]) pushFront(e entry[K, V]) *node[K, V] {
	n := &node[K, V]{entry: e, next: l.head}
	if l.head != nil {
		l.head.prev = n
	} else {
		l.tail = n
	}
	l.head = n
	return n
}

func (l *list[K, V]) remove(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.next, n.prev = nil, nil
}

func (l *list[K, V]) moveToFront(n *node[K, V]) {
	if l.head == n {
		return
	}
	l.remove(n)
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	} else {
		l.tail = n
	}
	l.head = n
}
