package bufmgr

import (
	"sync"
	"sync/atomic"

	util "github.com/nvquocbuu/pagebuf/internal/utils"
)

// FileRef is a shared handle onto one open backing file, returned by
// OpenFile. Every FixPage a caller performs runs through a FileRef; the
// last FileRef.Close for a path releases the file's resources once its
// dirty pages are flushed (§4.6).
type FileRef struct {
	bm       *BufferManager
	fileID   util.FileID
	closed   atomic.Bool
	closeErr error
	once     sync.Once
}

// GetFileID returns the stable file id assigned when this path was first
// opened.
func (r *FileRef) GetFileID() util.FileID { return r.fileID }

// FixPage pins page_id, loading it on a miss. The returned PageRef must be
// released with Release before this FileRef is closed.
func (r *FileRef) FixPage(pageID util.PageID, exclusive bool) (*PageRef, error) {
	if r.closed.Load() {
		return nil, util.ErrFileClosed
	}
	return r.bm.fixPage(r.fileID, pageID, exclusive)
}

// Flush writes every dirty page owned by this file and returns only after
// all of that I/O completes. A file with no dirty pages is a no-op.
func (r *FileRef) Flush() error {
	if r.closed.Load() {
		return util.ErrFileClosed
	}
	return r.bm.flushFile(r.fileID)
}

// Truncate sets the file's logical size and resizes the backing file to
// match. Shrinking discards (without write-back) any resident, unpinned page
// beyond the new end; pinned pages there stay resident. Growing leaves
// resident pages alone — pages between the old and new end read back as
// zero-filled once pinned.
func (r *FileRef) Truncate(newSizeBytes int64) error {
	if r.closed.Load() {
		return util.ErrFileClosed
	}
	return r.bm.truncateFile(r.fileID, newSizeBytes)
}

// Close releases this handle. Idempotent — a second Close is a no-op and
// returns the outcome of the first.
func (r *FileRef) Close() error {
	r.once.Do(func() {
		r.closed.Store(true)
		r.closeErr = r.bm.closeFile(r.fileID)
	})
	return r.closeErr
}

// PageRef is a pin handle returned by FixPage. While live, its frame will
// not be evicted or re-bound and its bytes are stable; an exclusive PageRef
// excludes every other holder, shared PageRefs may coexist with each other.
type PageRef struct {
	bm        *BufferManager
	frame     *frame
	exclusive bool
	released  atomic.Bool
}

// GetData returns the page's in-memory buffer. Its length always equals
// the buffer manager's page size. Mutating it is only meaningful under an
// exclusive pin; call MarkAsDirty afterward so the change survives eviction
// or Flush.
func (p *PageRef) GetData() []byte {
	return p.frame.data
}

// MarkAsDirty records that the page has been modified. Requires an
// exclusive pin — a shared holder has no business claiming a write it
// didn't make exclusive access to guarantee.
func (p *PageRef) MarkAsDirty() error {
	if p.released.Load() {
		return util.ErrPageReleased
	}
	if !p.exclusive {
		return util.ErrNotExclusive
	}
	p.bm.markDirty(p.frame)
	return nil
}

// Release unpins the page. Calling Release more than once is a no-op after
// the first call.
func (p *PageRef) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return nil
	}
	p.bm.releasePage(p.frame, p.exclusive)
	return nil
}
