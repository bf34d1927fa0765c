package fatvfs

import (
	"log/slog"

	"github.com/hashicorp/go-multierror"
)

// clusterMapCache is the in-memory FAT sector cache described in §3.4: a
// small number of fixed-size entries, each tracking which of its bytes have
// been written since the last flush via a 64-bit dirty-line bitmap.
//
// Geometry (§3.4 "cache geometry rules"): if the whole FAT fits in 512 KiB,
// one entry covers it entirely; otherwise there are 8 entries, each one
// sector wide. FAT12/16 always use the single-entry geometry because the
// odd/even 12-bit packing arithmetic (setEntry12) assumes the whole table is
// addressable as one contiguous buffer.
type clusterMapCache struct {
	vol *Volume

	entries []cacheLine

	entryBytes     int64
	entryIdxShift  uint
	entryIdxMask   int64
	entryOffMask   int64
	dirtyLineBytes int64
	dirtyLineShift uint

	fatSize      int64  // bytes per FAT copy
	fatOffsets   []int64 // disk byte offset of each FAT copy
	clusterCount uint32  // data cluster count (excludes reserved 0,1)
	fatType      fatType

	searchHint uint32 // next cluster to start an allocation scan from
}

// cacheLine is one entry of the cluster-map cache.
type cacheLine struct {
	// offset is the byte offset within FAT copy 0 this line mirrors, or
	// -1 if the line holds no valid data (sentinel, per §3.4 invariants).
	offset int64
	data   []byte
	dirty  uint64 // bit i set => dirty-line i (dirtyLineBytes wide) needs flushing
}

func log2i(n int64) uint {
	var s uint
	for n > 1 {
		n >>= 1
		s++
	}
	return s
}

func nextPow2(n int64) int64 {
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// newClusterMapCache builds the cache for a freshly mounted volume.
// primaryFAT512 is the first 512 bytes of FAT copy 0, already read by the
// mount path (§4.3.1); when the single-entry geometry needs more than that,
// the rest of the FAT is read from disk here.
func newClusterMapCache(vol *Volume, fatSize int64, sectorSize int64, clusterCount uint32, fatOffsets []int64, ft fatType, primaryFAT512 []byte) (*clusterMapCache, FSError) {
	const singleEntryMax = 512 * 1024

	c := &clusterMapCache{
		vol:          vol,
		fatSize:      fatSize,
		fatOffsets:   fatOffsets,
		clusterCount: clusterCount,
		fatType:      ft,
		searchHint:   2,
	}

	var entryBytes int64
	var numEntries int
	if fatSize <= singleEntryMax || ft != fatTypeFAT32 {
		entryBytes = fatSize
		numEntries = 1
	} else {
		entryBytes = sectorSize
		numEntries = 8
	}

	dirtyLine := nextPow2(maxI64(sectorSize, entryBytes/64))
	c.entryBytes = entryBytes
	// Round the addressing span up to a power of two so a single entry over a
	// FAT whose size is not a power of two still maps every offset to itself.
	span := nextPow2(entryBytes)
	c.entryIdxShift = log2i(span)
	c.entryIdxMask = int64(numEntries - 1)
	c.entryOffMask = span - 1
	c.dirtyLineBytes = dirtyLine
	c.dirtyLineShift = log2i(dirtyLine)

	c.entries = make([]cacheLine, numEntries)
	for i := range c.entries {
		c.entries[i] = cacheLine{offset: -1, data: make([]byte, entryBytes)}
	}

	// Prime entry 0 with the bytes already read during bootstrap, pulling
	// the remainder from disk if the single-entry geometry needs more than
	// what was handed in.
	line := &c.entries[0]
	line.offset = 0
	n := copy(line.data, primaryFAT512)
	if int64(n) < entryBytes {
		if err := asIOError(vol.backing.ReadAt(c.fatOffsets[0]+int64(n), line.data[n:])); err != nil {
			line.offset = -1
			return nil, err
		}
	}

	vol.trace("cluster cache initialized", slog.Int("entries", numEntries), slog.Int64("entry_bytes", entryBytes))
	return c, nil
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// getEntry returns a slice into the cache line covering the FAT byte offset
// off, fetching/evicting lines as needed per §4.3.2.
func (c *clusterMapCache) getEntry(off int64) ([]byte, FSError) {
	entryAligned := off &^ c.entryOffMask
	idx := (off >> c.entryIdxShift) & c.entryIdxMask
	line := &c.entries[idx]
	if line.offset == entryAligned {
		offInEntry := off & c.entryOffMask
		return line.data[offInEntry:], nil
	}
	if line.dirty != 0 {
		if err := c.flushLine(line); err != nil {
			return nil, err
		}
	}
	if err := asIOError(c.vol.backing.ReadAt(c.fatOffsets[0]+entryAligned, line.data)); err != nil {
		line.offset = -1
		return nil, err
	}
	line.offset = entryAligned
	offInEntry := off & c.entryOffMask
	return line.data[offInEntry:], nil
}

func (c *clusterMapCache) markDirty(off int64, n int) {
	entryAligned := off &^ c.entryOffMask
	idx := (off >> c.entryIdxShift) & c.entryIdxMask
	line := &c.entries[idx]
	if line.offset != entryAligned {
		return // defensive; getEntry must have been called first
	}
	offInEntry := off & c.entryOffMask
	firstLine := offInEntry >> c.dirtyLineShift
	lastLine := (offInEntry + int64(n) - 1) >> c.dirtyLineShift
	for l := firstLine; l <= lastLine; l++ {
		line.dirty |= 1 << uint(l)
	}
}

// --- FAT12/16/32 entry decode/encode, §3.2 and §4.3.3/§4.3.4 ---

func fatEntryByteOffset(ft fatType, n uint32) int64 {
	switch ft {
	case fatTypeFAT12:
		return int64(n) * 3 / 2
	case fatTypeFAT16:
		return int64(n) * 2
	default:
		return int64(n) * 4
	}
}

func eocThreshold(ft fatType) uint32 {
	switch ft {
	case fatTypeFAT12:
		return 0xFF8
	case fatTypeFAT16:
		return 0xFFF8
	default:
		return 0x0FFFFFF8
	}
}

// getClusterEntry reads the raw FAT entry for cluster n.
func (c *clusterMapCache) getClusterEntry(n uint32) (uint32, FSError) {
	off := fatEntryByteOffset(c.fatType, n)
	switch c.fatType {
	case fatTypeFAT12:
		buf, err := c.getEntry(off)
		if err != nil {
			return 0, err
		}
		if len(buf) < 2 {
			// crosses the end of the cached line; re-fetch the second byte
			b2, err := c.getEntry(off + 1)
			if err != nil {
				return 0, err
			}
			buf = []byte{buf[0], b2[0]}
		}
		v := uint16(buf[0]) | uint16(buf[1])<<8
		if n&1 == 0 {
			return uint32(v & 0x0FFF), nil
		}
		return uint32(v >> 4), nil
	case fatTypeFAT16:
		buf, err := c.getEntry(off)
		if err != nil {
			return 0, err
		}
		return uint32(buf[0]) | uint32(buf[1])<<8, nil
	default:
		buf, err := c.getEntry(off)
		if err != nil {
			return 0, err
		}
		v := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
		return v & 0x0FFFFFFF, nil
	}
}

// countFreeClusters scans the whole map and counts unallocated (zero)
// entries. Used to refresh the FSInfo free-count hint on clean unmount
// (§C.1); not cached since nothing tracks frees/allocs incrementally.
func (c *clusterMapCache) countFreeClusters() (uint32, FSError) {
	var free uint32
	for n := uint32(2); n < c.clusterCount+2; n++ {
		v, err := c.getClusterEntry(n)
		if err != nil {
			return 0, err
		}
		if v == 0 {
			free++
		}
	}
	return free, nil
}

// setClusterEntry writes value v into cluster n's FAT entry, per the
// type-specific bit manipulation of §4.3.4, and marks the touched bytes
// dirty.
func (c *clusterMapCache) setClusterEntry(n uint32, v uint32) FSError {
	off := fatEntryByteOffset(c.fatType, n)
	switch c.fatType {
	case fatTypeFAT12:
		buf, err := c.getEntry(off)
		if err != nil {
			return err
		}
		// FAT12 entries may straddle a cache-line boundary; handle via two
		// single-byte accesses so we never index past a short slice.
		b0off, b1off := off, off+1
		b0, err := c.getEntry(b0off)
		if err != nil {
			return err
		}
		b1, err := c.getEntry(b1off)
		if err != nil {
			return err
		}
		cur := uint16(b0[0]) | uint16(b1[0])<<8
		var nv uint16
		if n&1 == 0 {
			nv = (cur & 0xF000) | uint16(v&0x0FFF)
		} else {
			nv = (cur & 0x000F) | uint16(v&0x0FFF)<<4
		}
		b0[0] = byte(nv)
		b1[0] = byte(nv >> 8)
		_ = buf
		c.markDirty(b0off, 1)
		c.markDirty(b1off, 1)
		return nil
	case fatTypeFAT16:
		buf, err := c.getEntry(off)
		if err != nil {
			return err
		}
		buf[0] = byte(v)
		buf[1] = byte(v >> 8)
		c.markDirty(off, 2)
		return nil
	default:
		buf, err := c.getEntry(off)
		if err != nil {
			return err
		}
		cur := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
		nv := (cur & 0xF0000000) | (v & 0x0FFFFFFF)
		buf[0] = byte(nv)
		buf[1] = byte(nv >> 8)
		buf[2] = byte(nv >> 16)
		buf[3] = byte(nv >> 24)
		c.markDirty(off, 4)
		return nil
	}
}

// readChain appends the cluster chain starting at start to chain, stopping
// at an EOC marker or cluster 0 (§4.3.3).
func (c *clusterMapCache) readChain(start uint32, chain *clusterChain) FSError {
	cur := start
	for cur != 0 {
		if cur >= c.clusterCount+2 && cur < eocThreshold(c.fatType) {
			return ErrBogusOffset.WithMessage("cluster index out of range")
		}
		if cur >= eocThreshold(c.fatType) {
			return nil
		}
		chain.append(cur)
		next, err := c.getClusterEntry(cur)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// allocate implements §4.3.5: find a free cluster, link it after prev (if
// given), and advance the search hint.
func (c *clusterMapCache) allocate(prev uint32) (uint32, FSError) {
	if prev != 0 {
		v, err := c.getClusterEntry(prev)
		if err != nil {
			return 0, err
		}
		if v < eocThreshold(c.fatType) {
			return 0, ErrBogusOffset.WithMessage("previous cluster is not end-of-chain")
		}
	}

	found := uint32(0)
	start := c.searchHint
	if start < 2 {
		start = 2
	}
	last := c.clusterCount + 2
	for pass := 0; pass < 2 && found == 0; pass++ {
		from, to := start, last
		if pass == 1 {
			from, to = 2, start
		}
		for n := from; n < to; n++ {
			v, err := c.getClusterEntry(n)
			if err != nil {
				return 0, err
			}
			if v == 0 {
				found = n
				break
			}
		}
	}
	if found == 0 {
		return 0, ErrDiskFull
	}
	if err := c.setClusterEntry(found, eocThreshold(c.fatType)); err != nil {
		return 0, err
	}
	if prev != 0 {
		if err := c.setClusterEntry(prev, found); err != nil {
			// roll back the newly allocated entry
			c.setClusterEntry(found, 0)
			return 0, err
		}
	}
	c.searchHint = found + 1
	return found, nil
}

// allocateMany grows chain by count clusters, rolling back everything it
// allocated this call on failure (§4.3.6).
func (c *clusterMapCache) allocateMany(chain *clusterChain, count int64) FSError {
	prevLen := chain.count
	origLast := chain.lastCluster() // the chain's last cluster before this call, untouched by rollback
	prev := origLast
	allocated := make([]uint32, 0, count)
	for i := int64(0); i < count; i++ {
		cl, err := c.allocate(prev)
		if err != nil {
			for _, a := range allocated {
				c.setClusterEntry(a, 0)
			}
			if prevLen > 0 {
				c.setClusterEntry(origLast, eocThreshold(c.fatType))
			}
			chain.shrinkTo(prevLen)
			return err
		}
		allocated = append(allocated, cl)
		chain.append(cl)
		prev = cl
	}
	return nil
}

// freeChain zeroes every FAT entry for the clusters in chain starting at
// ordinal index from (inclusive).
func (c *clusterMapCache) freeChain(chain *clusterChain, from int64) FSError {
	for i := from; i < chain.count; i++ {
		if err := c.setClusterEntry(chain.get(i), 0); err != nil {
			return err
		}
	}
	return nil
}

// flushLine writes a single dirty cache line out to every FAT copy,
// coalescing adjacent dirty-lines into scatter/gather segments (up to 8 per
// job, per §4.3.7). Segment offsets are stored relative to FAT copy 0 and
// rebased per copy at write time.
func (c *clusterMapCache) flushLine(line *cacheLine) FSError {
	if line.dirty == 0 || line.offset < 0 {
		return nil
	}

	// submitJob writes one batch of at most 8 segments to every FAT copy,
	// rebasing the segment offsets (stored relative to FAT copy 0) per copy.
	submitJob := func(segs []Segment) FSError {
		var merr error
		for _, fatOff := range c.fatOffsets {
			adjusted := make([]Segment, len(segs))
			for i, s := range segs {
				adjusted[i] = Segment{Offset: fatOff + s.Offset, Buf: s.Buf}
			}
			if err := c.vol.backing.ScatterWriteAt(adjusted); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
		if merr != nil {
			return asIOError(merr)
		}
		return nil
	}

	var segs []Segment
	extending := false
	for i := int64(0); i*c.dirtyLineBytes < c.entryBytes; i++ {
		if line.dirty&(1<<uint(i)) == 0 {
			extending = false
			continue
		}
		start := i * c.dirtyLineBytes
		end := start + c.dirtyLineBytes
		if end > int64(len(line.data)) {
			end = int64(len(line.data))
		}
		if extending && len(segs) > 0 {
			last := &segs[len(segs)-1]
			segStart := last.Offset - line.offset
			last.Buf = line.data[segStart:end]
			continue
		}
		if len(segs) == 8 {
			if err := submitJob(segs); err != nil {
				return err
			}
			segs = nil
			extending = false
		}
		segs = append(segs, Segment{Offset: line.offset + start, Buf: line.data[start:end]})
		extending = true
	}
	if len(segs) > 0 {
		if err := submitJob(segs); err != nil {
			return err
		}
	}
	line.dirty = 0
	return nil
}

// flush writes back every dirty cache line (§4.3.7).
func (c *clusterMapCache) flush() FSError {
	var merr error
	for i := range c.entries {
		if err := c.flushLine(&c.entries[i]); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if merr != nil {
		return wrapError(ErrIO, merr)
	}
	return nil
}
