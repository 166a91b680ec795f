package bufmgr

import (
	"sync"
	"sync/atomic"

	"github.com/nvquocbuu/pagebuf/internal/storage/page"
	util "github.com/nvquocbuu/pagebuf/internal/utils"
)

// frameState mirrors the spec's Loading/Resident/Evicting states. It is
// read without the directory latch on the FixPage hit path (to decide
// whether to wait on ioLock), so it is stored atomically; every write to it
// happens under the directory latch.
type frameState int32

const (
	frameLoading frameState = iota
	frameResident
	frameEvicting
)

// queueKind names which of the two replacement queues, if any, a frame
// currently sits in. A frame is in exactly one of {FIFO, LRU, pinned}.
type queueKind int8

const (
	queueNone queueKind = iota
	queueFIFO
	queueLRU
)

// frame is one in-memory slot: exactly the attributes §3 assigns it. All
// fields except accessLock/ioLock/state are guarded by the owning
// BufferManager's directory latch; accessLock guards data independently,
// and ioLock is held for the duration of a disk read or write on this
// frame.
type frame struct {
	id   int
	addr util.PageAddress
	data page.Page

	// checksum is the inert field the original page header reserved.
	// Never computed or validated (checksums are an explicit Non-goal);
	// kept only so a future implementation has somewhere to put one.
	checksum uint32

	state atomic.Int32 // frameState

	users      int  // outstanding PageRef pins
	dirty      bool // modified since last write-back
	seenBefore bool // has this frame ever been queued since its last load?
	queue      queueKind

	qPrev, qNext *frame // intrusive doubly-linked list link, within `queue`

	accessLock sync.RWMutex
	ioLock     sync.Mutex
}

func newFrame(id int, pageSize int) *frame {
	f := &frame{id: id, data: page.New(pageSize)}
	f.state.Store(int32(frameLoading))
	return f
}

func (f *frame) getState() frameState { return frameState(f.state.Load()) }
func (f *frame) setState(s frameState) { f.state.Store(int32(s)) }

// rebind re-points an existing frame at a new page address, resetting the
// per-load bookkeeping. Called only on a cache miss, under the directory
// latch, before the frame's ioLock is taken for the load.
func (f *frame) rebind(addr util.PageAddress) {
	f.addr = addr
	f.checksum = 0
	f.users = 1
	f.dirty = false
	f.seenBefore = false
	f.queue = queueNone
	f.qPrev, f.qNext = nil, nil
	f.setState(frameLoading)
}
