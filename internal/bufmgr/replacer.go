package bufmgr

// twoQueueReplacer implements the FIFO→LRU replacement scheme from §4.4:
// a frame lands in FIFO on its first unpin since being loaded, and is
// promoted to LRU on every unpin after that. Both queues are tail-insert,
// head-evict. This adapts the teacher's pool_lru.go doubly-linked list
// (there built from parallel nextLRU/prevLRU index arrays over a fixed
// frame array) into two intrusive lists of *frame, since our frames are
// heap objects rather than array slots.
//
// All methods assume the caller holds the BufferManager's directory latch.
type twoQueueReplacer struct {
	fifo queueList
	lru  queueList
}

// queueList is one intrusive doubly-linked list of frames, threaded through
// frame.qPrev/qNext.
type queueList struct {
	kind         queueKind
	head, tail   *frame
	length       int
}

func (q *queueList) pushBack(f *frame) {
	f.queue = q.kind
	f.qPrev = q.tail
	f.qNext = nil
	if q.tail != nil {
		q.tail.qNext = f
	} else {
		q.head = f
	}
	q.tail = f
	q.length++
}

func (q *queueList) remove(f *frame) {
	if f.qPrev != nil {
		f.qPrev.qNext = f.qNext
	} else if q.head == f {
		q.head = f.qNext
	}
	if f.qNext != nil {
		f.qNext.qPrev = f.qPrev
	} else if q.tail == f {
		q.tail = f.qPrev
	}
	f.qPrev, f.qNext = nil, nil
	f.queue = queueNone
	q.length--
}

func (q *queueList) popFront() *frame {
	f := q.head
	if f == nil {
		return nil
	}
	q.remove(f)
	return f
}

func (q *queueList) ids() []int {
	ids := make([]int, 0, q.length)
	for f := q.head; f != nil; f = f.qNext {
		ids = append(ids, f.id)
	}
	return ids
}

// touch records that a frame is about to be queued as unpinned: per §4.4,
// the frame goes to FIFO the first time (seenBefore == false) and to LRU
// on every subsequent unpin.
func (r *twoQueueReplacer) touch(f *frame) {
	if f.seenBefore {
		r.lru.pushBack(f)
		return
	}
	f.seenBefore = true
	r.fifo.pushBack(f)
}

// unqueue removes a frame from whichever queue (if any) currently holds
// it, used when a frame in a queue is pinned again.
func (r *twoQueueReplacer) unqueue(f *frame) {
	switch f.queue {
	case queueFIFO:
		r.fifo.remove(f)
	case queueLRU:
		r.lru.remove(f)
	}
}

// victim selects and removes an evictable frame: FIFO head first, else LRU
// head, else nil (which admitFrame turns into ErrNoFreeFrame) — eviction
// fails rather than waits (§9),
// since every unpinned frame is, by invariant I2/P2, sitting in one of
// these two queues. The returned queueKind names which queue the victim
// came from, since popFront already clears f.queue to queueNone.
func (r *twoQueueReplacer) victim() (*frame, queueKind) {
	if f := r.fifo.popFront(); f != nil {
		return f, queueFIFO
	}
	if f := r.lru.popFront(); f != nil {
		return f, queueLRU
	}
	return nil, queueNone
}
