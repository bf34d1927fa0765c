package fatvfs

import "github.com/boljen/go-bitmap"

// dirBufferMode selects one of the two buffering strategies described in
// §3.5/§4.4.
type dirBufferMode uint8

const (
	dirBufSimple dirBufferMode = iota
	dirBufFull
)

const maxFullBufferedSize = 64 * 1024

// dirBuffer serves slot-aligned 32-byte directory entry views to the
// directory engine, either from a full in-memory image of the directory or
// from a single sliding sector window, per §4.4.
type dirBuffer struct {
	vol *Volume
	obj *fatObject

	// fixedBase is nonzero for the FAT12/16 linear root directory, whose
	// bytes live at a flat disk offset rather than behind a cluster chain.
	// Such a root is always addressed in full mode, whatever its size; the
	// region is contiguous by construction.
	fixedBase int64
	fixedSize int64

	mode dirBufferMode

	// full mode
	data            []byte
	dirtySectors    bitmap.Bitmap
	sectorsBuffered int

	// simple mode
	simpleBuf    []byte
	simpleOffset int64 // byte offset in dir of the buffered sector, -1 if none
	simpleDirty  bool
}

// newDirBuffer constructs the buffer for a directory object and loads it.
// fixedBase/fixedSize are nonzero only for the FAT12/16 root.
func newDirBuffer(vol *Volume, obj *fatObject, fixedBase, fixedSize int64) (*dirBuffer, FSError) {
	db := &dirBuffer{vol: vol, obj: obj, fixedBase: fixedBase, fixedSize: fixedSize, simpleOffset: -1}

	size := obj.size
	if fixedBase != 0 || (fixedBase == 0 && fixedSize != 0) {
		size = fixedSize
	}

	canFull := fixedBase != 0 || (obj.chain != nil && obj.chain.isContiguous())
	if fixedBase != 0 || (canFull && size <= maxFullBufferedSize) {
		if err := db.loadFull(size); err != nil {
			return nil, err
		}
	} else {
		db.mode = dirBufSimple
		db.simpleBuf = make([]byte, vol.sectorSize)
	}
	return db, nil
}

func (db *dirBuffer) loadFull(size int64) FSError {
	db.mode = dirBufFull
	sectors := int((size + db.vol.sectorSize - 1) / db.vol.sectorSize)
	if sectors == 0 {
		sectors = 1
	}
	db.sectorsBuffered = sectors
	db.data = make([]byte, int64(sectors)*db.vol.sectorSize)
	db.dirtySectors = bitmap.NewSlice(sectors)

	if db.fixedBase != 0 {
		return asIOError(db.vol.backing.ReadAt(db.fixedBase, db.data))
	}
	off := int64(0)
	for off < int64(sectors)*db.vol.sectorSize {
		diskOff, err := db.diskOffsetForChain(off)
		if err != nil {
			return err
		}
		if err := asIOError(db.vol.backing.ReadAt(diskOff, db.data[off:off+db.vol.sectorSize])); err != nil {
			return err
		}
		off += db.vol.sectorSize
	}
	return nil
}

func (db *dirBuffer) diskOffsetForChain(offInDir int64) (int64, FSError) {
	if db.obj.chain == nil || db.obj.chain.count == 0 {
		return 0, ErrCorruption.WithMessage("directory has no cluster chain")
	}
	return db.obj.chain.fileOffsetToDisk(offInDir, db.vol.clusterToDisk), nil
}

// diskOffsetAt returns the disk byte offset of offInDir, valid whether this
// directory is the fixed root or a cluster-chain directory.
func (db *dirBuffer) diskOffsetAt(offInDir int64) (int64, FSError) {
	if db.fixedBase != 0 {
		return db.fixedBase + offInDir, nil
	}
	return db.diskOffsetForChain(offInDir)
}

// getEntriesAt returns a view into the directory's entries starting at
// offInDir, per §4.4. The returned slice is valid until the next call that
// changes the buffer window (simple mode) or indefinitely (full mode).
func (db *dirBuffer) getEntriesAt(offInDir int64, forUpdate bool) ([]byte, FSError) {
	if offInDir%sizeDirEntry != 0 {
		return nil, ErrInvalidParameter.WithMessage("entry offset not aligned")
	}
	limit := db.size()
	if offInDir >= limit {
		return nil, ErrNotFound
	}

	if db.mode == dirBufFull {
		return db.data[offInDir:], nil
	}

	sectorOff := offInDir &^ (db.vol.sectorSize - 1)
	if db.simpleOffset != sectorOff {
		if db.simpleDirty {
			if err := db.flush(); err != nil {
				return nil, err
			}
		}
		diskOff, err := db.diskOffsetAt(sectorOff)
		if err != nil {
			return nil, err
		}
		if err := asIOError(db.vol.backing.ReadAt(diskOff, db.simpleBuf)); err != nil {
			return nil, err
		}
		db.simpleOffset = sectorOff
	}
	withinSector := offInDir - sectorOff
	return db.simpleBuf[withinSector:], nil
}

// size returns the directory's current byte length as seen by the buffer.
func (db *dirBuffer) size() int64 {
	if db.fixedBase != 0 {
		return db.fixedSize
	}
	return db.obj.size
}

// putEntryAfterUpdate marks the sector containing offInDir dirty (in simple
// mode, the buffered sector), after the entry there was changed through a
// view obtained from getEntriesAt(..., true).
func (db *dirBuffer) putEntryAfterUpdate(offInDir int64) {
	if db.mode == dirBufFull {
		sector := int(offInDir / db.vol.sectorSize)
		db.dirtySectors.Set(sector, true)
		return
	}
	db.simpleDirty = true
}

// flush writes back dirty sectors per §4.4.
func (db *dirBuffer) flush() FSError {
	if db.mode == dirBufFull {
		for i := 0; i < db.sectorsBuffered; i++ {
			if !db.dirtySectors.Get(i) {
				continue
			}
			off := int64(i) * db.vol.sectorSize
			diskOff, err := db.diskOffsetAt(off)
			if err != nil {
				return err
			}
			if err := asIOError(db.vol.backing.WriteAt(diskOff, db.data[off:off+db.vol.sectorSize])); err != nil {
				return err
			}
			db.dirtySectors.Set(i, false)
		}
		return nil
	}
	if db.simpleDirty && db.simpleOffset >= 0 {
		diskOff, err := db.diskOffsetAt(db.simpleOffset)
		if err != nil {
			return err
		}
		if err := asIOError(db.vol.backing.WriteAt(diskOff, db.simpleBuf)); err != nil {
			return err
		}
		db.simpleDirty = false
	}
	return nil
}

// downgradeToSimple switches a full-mode buffer to sliding-window mode, used
// when growth would push it past maxFullBufferedSize (§3.5). Pending dirty
// sectors are flushed first so no buffered write is lost in the switch.
func (db *dirBuffer) downgradeToSimple() FSError {
	if db.mode != dirBufFull {
		return nil
	}
	if err := db.flush(); err != nil {
		return err
	}
	db.mode = dirBufSimple
	db.data = nil
	db.dirtySectors = nil
	db.sectorsBuffered = 0
	db.simpleBuf = make([]byte, db.vol.sectorSize)
	db.simpleOffset = -1
	db.simpleDirty = false
	return nil
}

// growFull extends a full-mode buffer to newSize bytes after the
// directory's chain grew. The new tail sectors are zero-filled in memory and
// marked dirty, so the next flush writes them to disk.
func (db *dirBuffer) growFull(newSize int64) FSError {
	newSectors := int((newSize + db.vol.sectorSize - 1) / db.vol.sectorSize)
	if newSectors <= db.sectorsBuffered {
		return nil
	}
	newData := make([]byte, int64(newSectors)*db.vol.sectorSize)
	copy(newData, db.data)
	newDirty := bitmap.NewSlice(newSectors)
	copy(newDirty, db.dirtySectors)
	db.data = newData
	db.dirtySectors = newDirty
	for i := db.sectorsBuffered; i < newSectors; i++ {
		db.dirtySectors.Set(i, true) // newly zero-filled area is dirty until flushed
	}
	db.sectorsBuffered = newSectors
	return nil
}
