package bufmgr

import (
	"fmt"

	"github.com/nvquocbuu/pagebuf/internal/storage/fsys"
	util "github.com/nvquocbuu/pagebuf/internal/utils"
)

// fileEntry is the file registry's record for one backing file (§4.6): a
// stable FileID, the open handle, the logical size (which may exceed the
// on-disk size after a growing Truncate — the extra bytes are zero-filled
// on read), and how many live FileRefs point at it.
type fileEntry struct {
	id     util.FileID
	path   string
	handle fsys.File
	size   int64
	refs   int
}

// OpenFile opens path, or hands back a FileRef to the already-open entry
// if this buffer manager already has it open. FileID assignment is
// sequential starting at 0 and never reused.
func (bm *BufferManager) OpenFile(path string) (*FileRef, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if e, ok := bm.filesByPath[path]; ok {
		e.refs++
		return &FileRef{bm: bm, fileID: e.id}, nil
	}

	h, err := bm.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", path, err)
	}
	size, err := h.Size()
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("stat file %s: %w", path, err)
	}

	id := bm.nextFileID
	bm.nextFileID++
	e := &fileEntry{id: id, path: path, handle: h, size: size, refs: 1}
	bm.filesByPath[path] = e
	bm.filesByID[id] = e
	bm.log.Debug("file opened", "path", path, "file_id", id, "size", size)

	return &FileRef{bm: bm, fileID: id}, nil
}

// flushFile writes back every dirty resident frame belonging to fileID.
// I/O runs without the directory latch held; each frame's ioLock serialises
// against a concurrent eviction or load of that same frame.
func (bm *BufferManager) flushFile(fileID util.FileID) error {
	bm.mu.Lock()
	entry, ok := bm.filesByID[fileID]
	if !ok {
		bm.mu.Unlock()
		return util.ErrFileClosed
	}
	handle := entry.handle
	pageSize := bm.pageSize
	var dirty []*frame
	for _, f := range bm.frames {
		if f.addr.FileID == fileID && f.getState() == frameResident && f.dirty {
			dirty = append(dirty, f)
		}
	}
	bm.mu.Unlock()

	for _, f := range dirty {
		f.ioLock.Lock()

		bm.mu.Lock()
		stillDirty := f.addr.FileID == fileID && f.getState() == frameResident && f.dirty
		addr := f.addr
		bm.mu.Unlock()
		if !stillDirty {
			f.ioLock.Unlock()
			continue
		}

		off := int64(addr.PageID) * int64(pageSize)
		if _, err := handle.WriteAt(f.data, off); err != nil {
			f.ioLock.Unlock()
			return fmt.Errorf("flush file %d page %d: %w", fileID, addr.PageID, err)
		}

		bm.mu.Lock()
		f.dirty = false
		bm.mu.Unlock()
		f.ioLock.Unlock()
	}
	return nil
}

// truncateFile implements §4.6 Truncate: update the logical size, discard
// (without write-back) any resident, unpinned frame now past the new end,
// and resize the backing file.
func (bm *BufferManager) truncateFile(fileID util.FileID, newSize int64) error {
	bm.mu.Lock()
	entry, ok := bm.filesByID[fileID]
	if !ok {
		bm.mu.Unlock()
		return util.ErrFileClosed
	}
	entry.size = newSize

	for _, f := range bm.frames {
		if f.addr.FileID != fileID || f.getState() != frameResident {
			continue
		}
		if int64(f.addr.PageID)*int64(bm.pageSize) < newSize {
			continue
		}
		if f.users > 0 {
			// Can't safely discard a page a client still holds pinned;
			// leave it resident. Not exercised by any spec'd scenario.
			continue
		}
		bm.replacer.unqueue(f)
		delete(bm.directory, f.addr)
		bm.recycle(f)
	}
	handle := entry.handle
	bm.mu.Unlock()

	if err := handle.Truncate(newSize); err != nil {
		return fmt.Errorf("truncate file %d: %w", fileID, err)
	}
	return nil
}

// closeFile drops one reference to fileID; on the last reference it
// flushes and closes the handle, per I6 only if no pinned frame remains.
func (bm *BufferManager) closeFile(fileID util.FileID) error {
	bm.mu.Lock()
	entry, ok := bm.filesByID[fileID]
	if !ok {
		bm.mu.Unlock()
		return util.ErrFileClosed
	}
	entry.refs--
	if entry.refs > 0 {
		bm.mu.Unlock()
		return nil
	}
	bm.mu.Unlock()

	if err := bm.flushFile(fileID); err != nil {
		return fmt.Errorf("flush on close: %w", err)
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	for _, f := range bm.frames {
		if f.addr.FileID == fileID && f.getState() != frameLoading && f.users > 0 {
			bm.log.Debug("deferring file close: page still pinned", "file_id", fileID)
			return nil
		}
	}
	if err := entry.handle.Close(); err != nil {
		return fmt.Errorf("close file %d: %w", fileID, err)
	}
	delete(bm.filesByID, fileID)
	delete(bm.filesByPath, entry.path)
	return nil
}
