package fatvfs

import (
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// maxPathHops bounds path-traversal depth, mirroring the common VFS
// contract's symlink-loop guard (§4.8, §9). FAT has no symlinks, so this
// never actually fires off redirection; it only caps pathological path
// nesting depth the way a symlink-aware VFS would cap hop count.
const maxPathHops = 20

// maxFileSize is the largest byte length a FAT file's 32-bit size field can
// hold, §4.7/§6.2. Growing a file past this, or seeking past it, fails
// rather than silently truncating the on-disk size field.
const maxFileSize = 1<<32 - 1

// OpenMode selects create-on-open behavior for Dir.OpenFile, §6.2.
type OpenMode uint8

const (
	ModeOpenExisting OpenMode = iota
	ModeCreateNew             // fail if it already exists
	ModeOpenOrCreate
	ModeCreateReplace // truncate an existing file to zero first
)

// AccessMode selects the read/write/append intent for Dir.OpenFile, §4.8.
type AccessMode uint8

const (
	AccessRead AccessMode = iota
	AccessWrite
	AccessReadWrite
	AccessAppend
)

func (a AccessMode) wants() bool {
	return a == AccessWrite || a == AccessReadWrite || a == AccessAppend
}

// Dir is a handle onto an open directory. Multiple Dir handles may share
// the same underlying fatObject (and therefore the same dirBuffer); the
// object is only released once every handle sharing it is closed, per
// §4.5.
type Dir struct {
	obj *fatObject
	db  *dirBuffer
}

// File is a handle onto an open regular file.
type File struct {
	obj    *fatObject
	access AccessMode
	pos    int64
}

func (d *Dir) vol() *Volume { return d.obj.vol }

// openRootObject constructs the root directory's fatObject and dirBuffer.
// Called once from Mount, §4.9.
func (v *Volume) openRootObject() (*Dir, FSError) {
	obj := &fatObject{
		vol:                 v,
		refcount:            1,
		entryOffsetInParent: noParentOffset,
		attr:                attrDirectory,
		isDir:               true,
	}

	d := &Dir{obj: obj}
	obj.ownerDir = d

	var fixedBase, fixedSize int64
	if v.fatType == fatTypeFAT32 {
		chain := newClusterChain(v.clusterSize, v.clusterShift)
		if err := v.cache.readChain(v.rootCluster, chain); err != nil {
			return nil, err
		}
		obj.chain = chain
		obj.size = chain.byteLength()
	} else {
		fixedBase = v.rootOffset
		fixedSize = int64(v.rootEntries) * sizeDirEntry
		obj.size = fixedSize
	}

	db, err := newDirBuffer(v, obj, fixedBase, fixedSize)
	if err != nil {
		return nil, err
	}
	d.db = db
	return d, nil
}

// findVolumeLabelEntry scans the root directory for the synthetic volume
// label entry (ATTR_VOLUME_ID), per §C.2. Returns "" if none is present.
func (d *Dir) findVolumeLabelEntry() string {
	if d == nil || d.db == nil {
		return ""
	}
	var name string
	_ = iterateEntries(d.db, func(rec dirEntryRecord) (bool, FSError) {
		if rec.Attr&attrVolumeID != 0 && rec.Attr&attrLongName != attrLongName {
			name = decodeVolumeLabel(rec.ShortName)
			return false, nil
		}
		return true, nil
	})
	return name
}

// decodeVolumeLabel converts an 11-byte volume-label field (no base.ext
// split, unlike an 8.3 filename) to a display string.
func decodeVolumeLabel(raw [11]byte) string {
	var sb strings.Builder
	for _, b := range raw {
		sb.WriteRune(cp437DisplayToRune(b))
	}
	return strings.TrimRight(sb.String(), " ")
}

// SetLabel rewrites the volume label (§C.2), validating label against the
// CP437 code page before packing it, rather than silently substituting
// unrepresentable characters the way the formatter's own best-effort
// packVolumeLabel fallback does.
func (v *Volume) SetLabel(label string) FSError {
	if v.readOnly {
		return ErrWriteProtect
	}
	if _, _, err := transform.String(charmap.CodePage437.NewEncoder(), label); err != nil {
		return ErrInvalidName.WithMessage("label contains characters outside CP437")
	}

	v.lock.Lock()
	defer v.lock.Unlock()

	raw := packVolumeLabel(label)
	now := v.nowLocal()
	db := v.root.db

	var existingOff int64 = -1
	_ = iterateEntries(db, func(rec dirEntryRecord) (bool, FSError) {
		if rec.Attr&attrVolumeID != 0 && rec.Attr&attrLongName != attrLongName {
			existingOff = rec.ShortOffset
			return false, nil
		}
		return true, nil
	})

	var off int64
	if existingOff >= 0 {
		off = existingOff
	} else {
		s, ferr := findFreeRun(db, 1)
		if ferr != nil {
			return ferr
		}
		if s < 0 {
			if ferr := growDirectory(v, v.root.obj, db); ferr != nil {
				return ferr
			}
			s, ferr = findFreeRun(db, 1)
			if ferr != nil {
				return ferr
			}
			if s < 0 {
				return ErrDiskFull
			}
		}
		off = s
	}

	entryRaw, ferr := db.getEntriesAt(off, true)
	if ferr != nil {
		return ferr
	}
	encodeShortEntry(entryRaw[:sizeDirEntry], dirEntryRecord{
		ShortName:  raw,
		Attr:       attrVolumeID,
		CreatedAt:  now,
		ModifiedAt: now,
		AccessedAt: now,
	})
	db.putEntryAfterUpdate(off)
	if ferr := db.flush(); ferr != nil {
		return ferr
	}

	copy(v.label[:], raw[:])
	return nil
}

// writeBackEntry rewrites o's size/cluster/timestamp fields in this
// directory's on-disk data, implementing the parent-dir half of §4.5's
// flushMetadata.
func (d *Dir) writeBackEntry(o *fatObject) FSError {
	if o.entryOffsetInParent == noParentOffset {
		return nil
	}
	if err := writeBackEntryFields(d.db, o.entryOffsetInParent, o.firstCluster(), uint32(o.size), o.modifiedAt); err != nil {
		return err
	}
	return d.db.flush()
}

// openChildObject resolves rec to a live fatObject, reusing an already-open
// object for the same on-disk entry if one of this directory's children
// matches (shared-handle semantics, §4.5), or constructing a fresh one and
// reading its cluster chain otherwise.
func (d *Dir) openChildObject(rec dirEntryRecord) (*fatObject, FSError) {
	for _, c := range d.obj.children {
		if c.entryOffsetInParent == rec.ShortOffset {
			c.retain()
			return c, nil
		}
	}

	obj := &fatObject{
		vol:                 d.vol(),
		refcount:            1,
		entryOffsetInParent: rec.ShortOffset,
		attr:                rec.Attr,
		isDir:               rec.Attr&attrDirectory != 0,
		name:                rec.Name,
		createdAt:           rec.CreatedAt,
		modifiedAt:          rec.ModifiedAt,
		accessedAt:          rec.AccessedAt,
		size:                int64(rec.Size),
	}
	if rec.Cluster != 0 {
		chain := newClusterChain(d.vol().clusterSize, d.vol().clusterShift)
		if err := d.vol().cache.readChain(rec.Cluster, chain); err != nil {
			return nil, err
		}
		obj.chain = chain
		if obj.isDir {
			obj.size = chain.byteLength()
		}
	}

	d.obj.addChild(obj)
	return obj, nil
}

// wrapDir builds the Dir/dirBuffer pair around an already-resolved
// directory fatObject that has no ownerDir yet.
func wrapDir(vol *Volume, obj *fatObject) (*Dir, FSError) {
	nd := &Dir{obj: obj}
	obj.ownerDir = nd
	db, err := newDirBuffer(vol, obj, 0, 0)
	if err != nil {
		return nil, err
	}
	nd.db = db
	return nd, nil
}

// OpenDir resolves name within d and returns a handle on it, per §4.8.
func (d *Dir) OpenDir(name string) (*Dir, FSError) {
	v := d.vol()
	v.lock.Lock()
	defer v.lock.Unlock()

	if name == "." {
		d.obj.retain()
		return d, nil
	}
	if name == ".." {
		parent := d.obj.parent
		if parent == nil {
			d.obj.retain()
			return d, nil
		}
		parent.obj.retain()
		return parent, nil
	}

	rec, err := findEntry(d.db, name)
	if err != nil {
		return nil, err
	}
	if rec.Attr&attrDirectory == 0 {
		return nil, ErrNotADirectory
	}
	obj, err := d.openChildObject(rec)
	if err != nil {
		return nil, err
	}
	if obj.ownerDir != nil {
		return obj.ownerDir, nil
	}
	return wrapDir(v, obj)
}

// OpenFile resolves or creates name within d according to mode/access,
// per §4.8.
func (d *Dir) OpenFile(name string, mode OpenMode, access AccessMode) (*File, FSError) {
	v := d.vol()
	v.lock.Lock()
	defer v.lock.Unlock()

	if !isValidLFNName(name) {
		return nil, ErrInvalidName
	}
	if access.wants() && v.readOnly {
		return nil, ErrWriteProtect
	}

	rec, err := findEntry(d.db, name)
	exists := err == nil
	if err != nil && err.Kind() != ErrNotFound {
		return nil, err
	}

	if exists && rec.Attr&attrDirectory != 0 {
		return nil, ErrIsADirectory
	}
	if exists && mode == ModeCreateNew {
		return nil, ErrAlreadyExists
	}
	if !exists && mode == ModeOpenExisting {
		return nil, ErrNotFound
	}
	if v.readOnly && (!exists || mode == ModeCreateReplace) {
		return nil, ErrWriteProtect
	}

	if exists && rec.Attr&attrReadOnly != 0 && access.wants() {
		return nil, ErrAccessDenied
	}

	var obj *fatObject
	if !exists {
		now := v.nowLocal()
		rec, err = createEntry(v, d.obj, d.db, name, attrArchive, 0, 0, now)
		if err != nil {
			return nil, err
		}
		if err := d.db.flush(); err != nil {
			return nil, err
		}
		obj, err = d.openChildObject(rec)
		if err != nil {
			return nil, err
		}
	} else {
		obj, err = d.openChildObject(rec)
		if err != nil {
			return nil, err
		}
		if mode == ModeCreateReplace {
			if err := truncateObject(v, obj, 0); err != nil {
				obj.release()
				return nil, err
			}
		}
	}

	f := &File{obj: obj, access: access}
	if access == AccessAppend {
		f.pos = obj.size
	}
	return f, nil
}

// CreateDir creates an empty subdirectory named name within d, writing its
// initial "." and ".." entries, per §4.6.6/§4.8.
func (d *Dir) CreateDir(name string) (*Dir, FSError) {
	v := d.vol()
	v.lock.Lock()
	defer v.lock.Unlock()

	if v.readOnly {
		return nil, ErrWriteProtect
	}
	if !isValidLFNName(name) {
		return nil, ErrInvalidName
	}
	if _, err := findEntry(d.db, name); err == nil {
		return nil, ErrAlreadyExists
	} else if err.Kind() != ErrNotFound {
		return nil, err
	}

	now := v.nowLocal()
	chain := newClusterChain(v.clusterSize, v.clusterShift)
	if err := v.cache.allocateMany(chain, 1); err != nil {
		return nil, err
	}
	firstCluster := chain.firstCluster()
	// Clear the new cluster so stale bytes are not read back as entries.
	if err := asIOError(v.backing.WriteAt(v.clusterToDisk(firstCluster), make([]byte, v.clusterSize))); err != nil {
		v.cache.freeChain(chain, 0)
		return nil, err
	}

	rec, err := createEntry(v, d.obj, d.db, name, attrDirectory, firstCluster, 0, now)
	if err != nil {
		v.cache.freeChain(chain, 0)
		return nil, err
	}
	if err := d.db.flush(); err != nil {
		return nil, err
	}

	obj, err := d.openChildObject(rec)
	if err != nil {
		return nil, err
	}
	newDir, err := wrapDir(v, obj)
	if err != nil {
		return nil, err
	}

	dotRec := dirEntryRecord{
		ShortName: pack83(".", ""), Attr: attrDirectory,
		Cluster: firstCluster, CreatedAt: now, ModifiedAt: now, AccessedAt: now,
	}
	dotdotRec := dirEntryRecord{
		ShortName: pack83("..", ""), Attr: attrDirectory,
		Cluster: d.obj.firstCluster(), CreatedAt: now, ModifiedAt: now, AccessedAt: now,
	}
	for i, r := range []dirEntryRecord{dotRec, dotdotRec} {
		raw, err := newDir.db.getEntriesAt(int64(i)*sizeDirEntry, true)
		if err != nil {
			return nil, err
		}
		encodeShortEntry(raw[:sizeDirEntry], r)
		newDir.db.putEntryAfterUpdate(int64(i) * sizeDirEntry)
	}
	if err := newDir.db.flush(); err != nil {
		return nil, err
	}
	return newDir, nil
}

// Unlink removes name from d. Removing a non-empty directory is rejected
// (§9 Open Question (a): only plain removal is in scope, no recursive
// delete).
func (d *Dir) Unlink(name string) FSError {
	v := d.vol()
	v.lock.Lock()
	defer v.lock.Unlock()

	if v.readOnly {
		return ErrWriteProtect
	}
	rec, err := findEntry(d.db, name)
	if err != nil {
		return err
	}

	if rec.Attr&attrDirectory != 0 {
		empty, err := directoryIsEmpty(v, rec.Cluster)
		if err != nil {
			return err
		}
		if !empty {
			return ErrNotSupported.WithMessage("directory not empty")
		}
	}

	if rec.Cluster != 0 {
		chain := newClusterChain(v.clusterSize, v.clusterShift)
		if err := v.cache.readChain(rec.Cluster, chain); err != nil {
			return err
		}
		if err := v.cache.freeChain(chain, 0); err != nil {
			return err
		}
	}
	if err := deleteEntry(d.db, rec); err != nil {
		return err
	}
	return d.db.flush()
}

// Rename renames oldName to newName within the same directory. Cross-
// directory rename is out of scope (§9 Open Question (a)).
func (d *Dir) Rename(oldName, newName string) FSError {
	v := d.vol()
	v.lock.Lock()
	defer v.lock.Unlock()

	if v.readOnly {
		return ErrWriteProtect
	}
	if !isValidLFNName(newName) {
		return ErrInvalidName
	}
	old, err := findEntry(d.db, oldName)
	if err != nil {
		return err
	}
	if _, err := findEntry(d.db, newName); err == nil {
		return ErrAlreadyExists
	} else if err.Kind() != ErrNotFound {
		return err
	}

	rec, err := createEntry(v, d.obj, d.db, newName, old.Attr, old.Cluster, old.Size, old.CreatedAt)
	if err != nil {
		return err
	}
	if err := deleteEntry(d.db, old); err != nil {
		return err
	}
	if err := d.db.flush(); err != nil {
		return err
	}

	for _, c := range d.obj.children {
		if c.entryOffsetInParent == old.ShortOffset {
			c.entryOffsetInParent = rec.ShortOffset
			c.name = newName
		}
	}
	return nil
}

// DirEntryInfo is the caller-facing view of one listed directory entry.
type DirEntryInfo struct {
	Name       string
	IsDir      bool
	Size       int64
	ModifiedAt time.Time
}

// ForEach lists d's entries, synthesizing "." and ".." first and skipping
// on-disk duplicates of them (real subdirectories store their own "."/".."
// entries at offsets 0 and 32; those are never surfaced a second time) and
// the volume-label entry, per §4.6.7/§4.8.
func (d *Dir) ForEach(visit func(DirEntryInfo) bool) FSError {
	v := d.vol()
	v.lock.RLock()
	defer v.lock.RUnlock()

	if !visit(DirEntryInfo{Name: ".", IsDir: true, ModifiedAt: d.obj.modifiedAt}) {
		return nil
	}
	parentMod := d.obj.modifiedAt
	if d.obj.parent != nil {
		parentMod = d.obj.parent.obj.modifiedAt
	}
	if !visit(DirEntryInfo{Name: "..", IsDir: true, ModifiedAt: parentMod}) {
		return nil
	}

	return iterateEntries(d.db, func(rec dirEntryRecord) (bool, FSError) {
		if rec.Name == "." || rec.Name == ".." {
			return true, nil
		}
		if rec.Attr&attrVolumeID != 0 && rec.Attr&attrLongName != attrLongName {
			return true, nil
		}
		cont := visit(DirEntryInfo{
			Name: rec.Name, IsDir: rec.Attr&attrDirectory != 0,
			Size: int64(rec.Size), ModifiedAt: rec.ModifiedAt,
		})
		return cont, nil
	})
}

// Close releases this Dir handle.
func (d *Dir) Close() FSError {
	v := d.vol()
	v.lock.Lock()
	defer v.lock.Unlock()
	return d.obj.release()
}

// directoryIsEmpty reports whether the directory whose data starts at
// cluster holds nothing but "." and "..".
func directoryIsEmpty(v *Volume, cluster uint32) (bool, FSError) {
	tmp := &fatObject{vol: v, refcount: 1, isDir: true, attr: attrDirectory}
	if cluster != 0 {
		chain := newClusterChain(v.clusterSize, v.clusterShift)
		if err := v.cache.readChain(cluster, chain); err != nil {
			return false, err
		}
		tmp.chain = chain
		tmp.size = chain.byteLength()
	}
	db, err := newDirBuffer(v, tmp, 0, 0)
	if err != nil {
		return false, err
	}
	empty := true
	ferr := iterateEntries(db, func(rec dirEntryRecord) (bool, FSError) {
		if rec.Name == "." || rec.Name == ".." {
			return true, nil
		}
		empty = false
		return false, nil
	})
	if ferr != nil {
		return false, ferr
	}
	return empty, nil
}

// nowLocal returns the current time expressed in the volume's local FAT
// wall-clock convention (see datetime.go).
func (v *Volume) nowLocal() time.Time {
	return v.utcToLocal(currentTime().UTC())
}

// currentTime is the only place in the package that calls time.Now.
func currentTime() time.Time { return time.Now() }

// truncateObject frees clusters beyond newSize and updates obj's in-memory
// size. newSize == 0 frees the entire chain and resets to cluster 0, per
// §9 Open Question (b).
func truncateObject(v *Volume, obj *fatObject, newSize int64) FSError {
	if obj.chain == nil {
		obj.size = newSize
		return nil
	}
	if newSize == 0 {
		if err := v.cache.freeChain(obj.chain, 0); err != nil {
			return err
		}
		obj.chain = nil
		obj.size = 0
		obj.fatDirty = true
		obj.dirEntryDirty = true
		return nil
	}
	keep := (newSize + v.clusterSize - 1) >> v.clusterShift
	if keep < obj.chain.count {
		if err := v.cache.freeChain(obj.chain, keep); err != nil {
			return err
		}
		obj.chain.shrinkTo(keep)
		obj.fatDirty = true
	}
	obj.size = newSize
	obj.dirEntryDirty = true
	return nil
}

// Read reads up to len(buf) bytes starting at the file's current position
// and advances it, per §4.7.
func (f *File) Read(buf []byte) (int, FSError) {
	n, err := f.ReadAt(buf, f.pos)
	f.pos += int64(n)
	return n, err
}

// ReadAt reads up to len(buf) bytes starting at off without touching the
// file's cursor.
func (f *File) ReadAt(buf []byte, off int64) (int, FSError) {
	v := f.obj.vol
	v.lock.RLock()
	defer v.lock.RUnlock()

	if off >= f.obj.size || len(buf) == 0 {
		return 0, nil
	}
	end := off + int64(len(buf))
	if end > f.obj.size {
		end = f.obj.size
	}
	toRead := end - off
	var read int64
	for read < toRead {
		pos := off + read
		diskOff := f.obj.chain.fileOffsetToDisk(pos, v.clusterToDisk)
		withinCluster := pos & (v.clusterSize - 1)
		chunk := v.clusterSize - withinCluster
		if chunk > toRead-read {
			chunk = toRead - read
		}
		if err := asIOError(v.backing.ReadAt(diskOff, buf[read:read+chunk])); err != nil {
			return int(read), err
		}
		read += chunk
	}
	return int(read), nil
}

// Write writes buf at the file's current position and advances it.
func (f *File) Write(buf []byte) (int, FSError) {
	n, err := f.WriteAt(buf, f.pos)
	f.pos += int64(n)
	return n, err
}

// WriteAt writes buf at off, growing the file (allocating clusters) as
// needed, per §4.7.
func (f *File) WriteAt(buf []byte, off int64) (int, FSError) {
	v := f.obj.vol
	if v.readOnly {
		return 0, ErrWriteProtect
	}
	v.lock.Lock()
	defer v.lock.Unlock()

	if len(buf) == 0 {
		return 0, nil
	}
	end := off + int64(len(buf))
	if end > maxFileSize {
		return 0, ErrFileTooBig
	}
	if f.obj.chain == nil {
		f.obj.chain = newClusterChain(v.clusterSize, v.clusterShift)
	}
	curBytes := f.obj.chain.byteLength()
	if end > curBytes {
		extra := (end - curBytes + v.clusterSize - 1) >> v.clusterShift
		if err := v.cache.allocateMany(f.obj.chain, extra); err != nil {
			return 0, err
		}
		f.obj.fatDirty = true
	}

	var written int64
	toWrite := int64(len(buf))
	for written < toWrite {
		pos := off + written
		diskOff := f.obj.chain.fileOffsetToDisk(pos, v.clusterToDisk)
		withinCluster := pos & (v.clusterSize - 1)
		chunk := v.clusterSize - withinCluster
		if chunk > toWrite-written {
			chunk = toWrite - written
		}
		if err := asIOError(v.backing.WriteAt(diskOff, buf[written:written+chunk])); err != nil {
			return int(written), err
		}
		written += chunk
	}

	if end > f.obj.size {
		f.obj.size = end
	}
	f.obj.modifiedAt = v.nowLocal()
	f.obj.dirEntryDirty = true
	return int(written), nil
}

// Seek whence values, matching io.Seeker's conventions.
const (
	SeekStart   = 0
	SeekCurrent = 1
	SeekEnd     = 2
)

// Seek repositions the file's cursor.
func (f *File) Seek(offset int64, whence int) (int64, FSError) {
	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = f.pos
	case SeekEnd:
		f.obj.vol.lock.RLock()
		base = f.obj.size
		f.obj.vol.lock.RUnlock()
	default:
		return 0, ErrInvalidParameter
	}
	newPos := base + offset
	if newPos < 0 || newPos > maxFileSize {
		return 0, ErrInvalidParameter
	}
	f.pos = newPos
	return newPos, nil
}

// SetSize truncates or extends the file to exactly size bytes, per §4.7.
func (f *File) SetSize(size int64) FSError {
	v := f.obj.vol
	if v.readOnly {
		return ErrWriteProtect
	}
	if size < 0 {
		return ErrInvalidParameter
	}
	if size > maxFileSize {
		return ErrFileTooBig
	}
	v.lock.Lock()
	defer v.lock.Unlock()

	if size > f.obj.size {
		if f.obj.chain == nil {
			f.obj.chain = newClusterChain(v.clusterSize, v.clusterShift)
		}
		curBytes := f.obj.chain.byteLength()
		if size > curBytes {
			extra := (size - curBytes + v.clusterSize - 1) >> v.clusterShift
			if err := v.cache.allocateMany(f.obj.chain, extra); err != nil {
				return err
			}
			f.obj.fatDirty = true
		}
		f.obj.size = size
		f.obj.dirEntryDirty = true
		return nil
	}
	return truncateObject(v, f.obj, size)
}

// Flush writes back this file's metadata and asks the backing store to
// persist pending writes.
func (f *File) Flush() FSError {
	v := f.obj.vol
	v.lock.Lock()
	defer v.lock.Unlock()
	if err := f.obj.flushMetadata(); err != nil {
		return err
	}
	return asIOError(v.backing.Flush())
}

// Close releases this File handle. The object's metadata is flushed when
// its last handle is released.
func (f *File) Close() FSError {
	v := f.obj.vol
	v.lock.Lock()
	defer v.lock.Unlock()
	return f.obj.release()
}

// Size returns the file's current byte length.
func (f *File) Size() int64 { return f.obj.size }

// MaxSize returns the largest byte length a file can grow to on this
// volume, fixed at 2^32-1 by the FAT on-disk size field, §6.2.
func (f *File) MaxSize() int64 { return maxFileSize }

// IsReadOnly reports whether the file's ATTR_READ_ONLY bit is set.
func (f *File) IsReadOnly() bool { return f.obj.attr&attrReadOnly != 0 }

// splitPath normalizes a '/'-separated path into its non-empty components.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// OpenDirPath resolves a '/'-separated path to a directory starting from
// root, per §4.8's path-parser-driven traversal. The caller must Close the
// returned Dir. When the path resolves to root itself (an empty path, for
// instance), the result is root with one more reference, not a new handle.
func OpenDirPath(root *Dir, path string) (*Dir, FSError) {
	comps := splitPath(path)
	if len(comps) > maxPathHops {
		return nil, ErrTooManySymlinks
	}
	if len(comps) == 0 {
		root.obj.retain()
		return root, nil
	}

	cur := root
	ownsCur := false
	for _, comp := range comps {
		next, err := cur.OpenDir(comp)
		if ownsCur {
			cur.Close()
		}
		if err != nil {
			return nil, err
		}
		cur = next
		ownsCur = true
	}
	return cur, nil
}

// OpenFilePath resolves dirPath relative to root, then opens fileName
// within it according to mode/access, closing the intermediate directory
// handle on return.
func OpenFilePath(root *Dir, dirPath, fileName string, mode OpenMode, access AccessMode) (*File, FSError) {
	dir, err := OpenDirPath(root, dirPath)
	if err != nil {
		return nil, err
	}
	defer dir.Close()
	return dir.OpenFile(fileName, mode, access)
}
