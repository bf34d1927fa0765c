package fatvfs

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/fatvfs/fatvfs/internal/utf16x"
)

// Directory entry byte offsets, §3.6.
const (
	deName      = 0
	deAttr      = 11
	deCaseFlags = 12
	deBirthCs   = 13
	deBirthTime = 14
	deBirthDate = 16
	deAccDate   = 18
	deClusterHi = 20
	deModTime   = 22
	deModDate   = 24
	deClusterLo = 26
	deSize      = 28

	attrReadOnly  = 0x01
	attrHidden    = 0x02
	attrSystem    = 0x04
	attrVolumeID  = 0x08
	attrDirectory = 0x10
	attrArchive   = 0x20
	attrLongName  = 0x0F

	caseBaseLower = 0x08
	caseExtLower  = 0x10

	lfnLastFlag = 0x40
	lfnSeqMask  = 0x1F

	deleteMarker = 0xE5
	endMarker    = 0x00
	escapedE5    = 0x05
)

// lfnSlotOffsets gives the byte offset of each of the 13 UTF-16 code units
// within an LFN slot (§3.6).
var lfnSlotOffsets = [13]int{1, 3, 5, 7, 9, 14, 16, 18, 20, 22, 24, 28, 30}

// to8dot3 implements §4.6.1: convert a UTF-8 name to its packed 11-byte 8.3
// form, or report that it can't be represented.
func to8dot3(name string) ([11]byte, bool) {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	runes := []rune(name)
	if len(runes) == 0 || len(runes) > 12 {
		return out, false
	}

	dot := -1
	for i, r := range runes {
		if r == '.' {
			if dot != -1 {
				return out, false // more than one dot
			}
			dot = i
		}
	}

	base := runes
	ext := []rune{}
	if dot != -1 {
		base = runes[:dot]
		ext = runes[dot+1:]
	}
	if len(base) == 0 || len(base) > 8 || len(ext) > 3 {
		return out, false
	}

	for i, r := range base {
		b, ok := runeTo8dot3(r)
		if !ok {
			return out, false
		}
		if b == deleteMarker {
			b = escapedE5
		}
		out[i] = b
	}
	for i, r := range ext {
		b, ok := runeTo8dot3(r)
		if !ok {
			return out, false
		}
		out[8+i] = b
	}
	return out, true
}

// checksum8dot3 implements §4.6.2: the rotate-right accumulator over the
// 11-byte short name.
func checksum8dot3(name11 [11]byte) byte {
	var sum byte
	for _, b := range name11 {
		sum = (sum>>1 | sum<<7) + b
	}
	return sum
}

// decode8dot3 converts a raw 11-byte short name back to a display string,
// inserting the '.' separator and stripping trailing spaces from each
// component, translating each CP437 byte via the display table.
func decode8dot3(name11 [11]byte, caseFlags byte) string {
	base := strings.TrimRight(string(name11[:8]), " ")
	ext := strings.TrimRight(string(name11[8:11]), " ")

	var sb strings.Builder
	for _, b := range []byte(base) {
		sb.WriteRune(cp437DisplayToRune(b))
	}
	baseStr := sb.String()
	if caseFlags&caseBaseLower != 0 {
		baseStr = strings.ToLower(baseStr)
	}

	sb.Reset()
	for _, b := range []byte(ext) {
		sb.WriteRune(cp437DisplayToRune(b))
	}
	extStr := sb.String()
	if caseFlags&caseExtLower != 0 {
		extStr = strings.ToLower(extStr)
	}

	if extStr == "" {
		return baseStr
	}
	return baseStr + "." + extStr
}

// lfnSlotCount returns how many 32-byte slots name needs to hold its UTF-16
// code units, 13 per slot.
func lfnSlotCount(utf16Units int) int {
	return (utf16Units + 12) / 13
}

// encodeLFNSlots builds the LFN slots for name in ascending sequence order
// (slots[0] holds the first 13 code units; the last slot carries
// lfnLastFlag), checksummed against the 8.3 alias shortCk. On disk they are
// laid out in reverse, last slot first.
func encodeLFNSlots(name string, shortCk byte) [][32]byte {
	u16 := make([]byte, 0, len(name)*2+4)
	tmp := make([]byte, 8)
	for _, r := range name {
		n := utf16x.EncodeRune(tmp, r, binary.LittleEndian)
		u16 = append(u16, tmp[:n]...)
	}
	units := len(u16) / 2
	nslots := lfnSlotCount(units)

	slots := make([][32]byte, nslots)
	for slotIdx := 0; slotIdx < nslots; slotIdx++ {
		var slot [32]byte
		slot[11] = attrLongName
		slot[13] = shortCk
		seq := byte(slotIdx + 1)
		if slotIdx == nslots-1 {
			seq |= lfnLastFlag
		}
		slot[0] = seq

		for unitIdx := 0; unitIdx < 13; unitIdx++ {
			globalUnit := slotIdx*13 + unitIdx
			off := lfnSlotOffsets[unitIdx]
			if globalUnit < units {
				slot[off] = u16[globalUnit*2]
				slot[off+1] = u16[globalUnit*2+1]
			} else if globalUnit == units {
				slot[off], slot[off+1] = 0, 0 // NUL terminator
			} else {
				slot[off], slot[off+1] = 0xFF, 0xFF // padding
			}
		}
		slots[slotIdx] = slot
	}
	return slots
}

// lfnAccumulator rebuilds a long name from LFN slots encountered while
// scanning a directory in descending slot-ID order, per §4.6.3.
type lfnAccumulator struct {
	active      bool
	expectedSeq int
	totalSlots  int
	checksum    byte
	wideBuf     []byte
}

func newLFNAccumulator() *lfnAccumulator {
	return &lfnAccumulator{wideBuf: make([]byte, 0, 512)}
}

func (a *lfnAccumulator) reset() {
	a.active = false
	a.expectedSeq = 0
	a.wideBuf = a.wideBuf[:0]
}

// feed processes one LFN slot. It returns false if the slot is inconsistent
// with the running group (in which case the group is abandoned and reset).
func (a *lfnAccumulator) feed(slot []byte) bool {
	seq := slot[0]
	cksum := slot[13]
	isLast := seq&lfnLastFlag != 0
	seqNum := int(seq & lfnSeqMask)
	if seqNum == 0 || seqNum > 20 {
		a.reset()
		return false
	}

	if isLast {
		a.active = true
		a.expectedSeq = seqNum
		a.totalSlots = seqNum
		a.checksum = cksum
		n := seqNum * 13 * 2
		a.wideBuf = append(a.wideBuf[:0], make([]byte, n)...)
	} else {
		if !a.active || seqNum != a.expectedSeq-1 || cksum != a.checksum {
			a.reset()
			return false
		}
		a.expectedSeq = seqNum
	}

	base := (seqNum - 1) * 13
	for unitIdx := 0; unitIdx < 13; unitIdx++ {
		off := lfnSlotOffsets[unitIdx]
		globalUnit := base + unitIdx
		byteOff := globalUnit * 2
		if byteOff+2 <= len(a.wideBuf) {
			a.wideBuf[byteOff] = slot[off]
			a.wideBuf[byteOff+1] = slot[off+1]
		}
	}
	return true
}

// complete reports whether a full group (expectedSeq reached 1) is pending,
// and decodes it to UTF-8, trimming the NUL terminator and 0xFFFF padding.
func (a *lfnAccumulator) complete() (string, bool) {
	if !a.active || a.expectedSeq != 1 {
		return "", false
	}
	n := 0
	for n+1 < len(a.wideBuf) {
		if a.wideBuf[n] == 0 && a.wideBuf[n+1] == 0 {
			break
		}
		n += 2
	}
	dst := make([]byte, n*2)
	written, err := utf16x.ToUTF8(dst, a.wideBuf[:n], binary.LittleEndian)
	if err != nil {
		return "", false
	}
	return string(dst[:written]), true
}

// isValidLFNName rejects "." and ".." and anything containing characters
// not legal in a long filename (§4.6.5, §8.3 boundary).
func isValidLFNName(name string) bool {
	if name == "." || name == ".." || name == "" || len(name) > 255 {
		return false
	}
	for _, r := range name {
		if !runeValidForLFN(r) {
			return false
		}
	}
	return true
}

// needsLongName reports whether name requires LFN slots: it has no valid
// 8.3 form, or its case can't be represented by the two case-flag bits
// (mixed case in either the base or extension component).
func needsLongName(name string, short [11]byte, ok bool) bool {
	if !ok {
		return true
	}
	// Reconstruct what decode8dot3 with each case-flag combination would
	// produce and see if any matches name exactly; if so, 8.3 + case flags
	// suffice and no LFN is needed.
	for _, flags := range []byte{0, caseBaseLower, caseExtLower, caseBaseLower | caseExtLower} {
		if decode8dot3(short, flags) == name {
			return false
		}
	}
	return true
}

// dirEntryRecord is one logical directory entry as seen by the engine: a
// short (8.3) entry plus whatever LFN slots preceded it, flattened into a
// single view per §4.6.3.
type dirEntryRecord struct {
	ShortName [11]byte
	CaseFlags byte
	Name      string
	Attr      byte
	Cluster   uint32
	Size      uint32

	CreatedAt  time.Time
	ModifiedAt time.Time
	AccessedAt time.Time

	// ShortOffset is the byte offset of the 8.3 entry itself.
	ShortOffset int64
	// LFNOffset is the byte offset of the first (lowest-offset, highest
	// sequence number) LFN slot belonging to this entry, or equal to
	// ShortOffset if there is no LFN group.
	LFNOffset int64
}

// parseShortEntry decodes the fixed 32-byte fields of a short directory
// entry. raw must be at least sizeDirEntry bytes; name/offsets are filled in
// by the caller.
func parseShortEntry(raw []byte) dirEntryRecord {
	var rec dirEntryRecord
	copy(rec.ShortName[:], raw[deName:deName+11])
	rec.Attr = raw[deAttr]
	rec.CaseFlags = raw[deCaseFlags]
	rec.Cluster = uint32(binary.LittleEndian.Uint16(raw[deClusterHi:]))<<16 | uint32(binary.LittleEndian.Uint16(raw[deClusterLo:]))
	rec.Size = binary.LittleEndian.Uint32(raw[deSize:])

	rec.CreatedAt = fatTime{
		date: binary.LittleEndian.Uint16(raw[deBirthDate:]),
		time: binary.LittleEndian.Uint16(raw[deBirthTime:]),
		fine: raw[deBirthCs],
	}.decode()
	rec.ModifiedAt = fatTime{
		date: binary.LittleEndian.Uint16(raw[deModDate:]),
		time: binary.LittleEndian.Uint16(raw[deModTime:]),
	}.decode()
	rec.AccessedAt = fatTime{date: binary.LittleEndian.Uint16(raw[deAccDate:])}.decode()
	return rec
}

// encodeShortEntry writes rec's fixed fields into raw (sizeDirEntry bytes),
// per §3.6: the 8.3 name, attribute, case flags, timestamps, first cluster
// and size.
func encodeShortEntry(raw []byte, rec dirEntryRecord) {
	copy(raw[deName:deName+11], rec.ShortName[:])
	raw[deAttr] = rec.Attr
	raw[deCaseFlags] = rec.CaseFlags

	birth := encodeFATTime(rec.CreatedAt)
	binary.LittleEndian.PutUint16(raw[deBirthDate:], birth.date)
	binary.LittleEndian.PutUint16(raw[deBirthTime:], birth.time)
	raw[deBirthCs] = birth.fine

	mod := encodeFATTime(rec.ModifiedAt)
	binary.LittleEndian.PutUint16(raw[deModDate:], mod.date)
	binary.LittleEndian.PutUint16(raw[deModTime:], mod.time)

	acc := encodeFATTime(rec.AccessedAt)
	binary.LittleEndian.PutUint16(raw[deAccDate:], acc.date)

	binary.LittleEndian.PutUint16(raw[deClusterHi:], uint16(rec.Cluster>>16))
	binary.LittleEndian.PutUint16(raw[deClusterLo:], uint16(rec.Cluster))
	binary.LittleEndian.PutUint32(raw[deSize:], rec.Size)
}

// iterateEntries walks a directory's logical entries (LFN groups flattened
// with their short entry) in on-disk order, per §4.6.7. Synthetic "." and
// ".." entries are the caller's responsibility (the vfs layer synthesizes
// them for every directory, the root included); this only reflects what's
// actually on disk.
// visit returns (continue, err); returning continue=false stops iteration
// without error.
func iterateEntries(db *dirBuffer, visit func(rec dirEntryRecord) (bool, FSError)) FSError {
	acc := newLFNAccumulator()
	limit := db.size()
	off := int64(0)
	for off < limit {
		raw, ferr := db.getEntriesAt(off, false)
		if ferr != nil {
			if ferr.Kind() == ErrNotFound {
				break
			}
			return ferr
		}
		entry := raw[:sizeDirEntry]
		first := entry[deName]

		if first == endMarker {
			break
		}
		if first == deleteMarker {
			acc.reset()
			off += sizeDirEntry
			continue
		}
		if entry[deAttr]&attrLongName == attrLongName {
			acc.feed(entry)
			off += sizeDirEntry
			continue
		}

		rec := parseShortEntry(entry)
		rec.ShortOffset = off
		if longName, ok := acc.complete(); ok {
			rec.Name = longName
			rec.LFNOffset = off - int64(acc.totalSlots)*sizeDirEntry
		} else {
			rec.Name = decode8dot3(rec.ShortName, entry[deCaseFlags])
			rec.LFNOffset = off
		}
		acc.reset()

		cont, ferr := visit(rec)
		if ferr != nil {
			return ferr
		}
		if !cont {
			return nil
		}
		off += sizeDirEntry
	}
	return nil
}

// findEntry implements §4.6.3: locate a logical entry by name, case folding
// the way FAT does (8.3 names are case-insensitive by construction; long
// names compare case-insensitively too, since FAT has no case-sensitive
// lookup mode). The volume-label entry is never matched.
func findEntry(db *dirBuffer, name string) (dirEntryRecord, FSError) {
	var found dirEntryRecord
	hit := false
	ferr := iterateEntries(db, func(rec dirEntryRecord) (bool, FSError) {
		if rec.Attr&attrVolumeID != 0 {
			return true, nil
		}
		if strings.EqualFold(rec.Name, name) {
			found = rec
			hit = true
			return false, nil
		}
		return true, nil
	})
	if ferr != nil {
		return dirEntryRecord{}, ferr
	}
	if !hit {
		return dirEntryRecord{}, ErrNotFound
	}
	return found, nil
}

// shortNameSeed splits a long name into the uppercased, space-stripped seed
// strings generateShortName mangles into a short alias, per the
// first step of §4.6.4.
func shortNameSeed(longName string) (base, ext string) {
	name := strings.ToUpper(longName)
	name = strings.TrimLeft(name, ".")
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		ext = name[dot+1:]
		name = name[:dot]
	}
	name = strings.ReplaceAll(name, " ", "")
	ext = strings.ReplaceAll(ext, " ", "")
	if len(ext) > 3 {
		ext = ext[:3]
	}
	return name, ext
}

// sanitizeFor83 truncates s to maxLen runes translatable to CP437,
// substituting '_' for anything that isn't (reserved punctuation, runes
// with no CP437 form).
func sanitizeFor83(s string, maxLen int) string {
	var sb strings.Builder
	for _, r := range s {
		if sb.Len() >= maxLen {
			break
		}
		b, ok := runeTo8dot3(r)
		if !ok || b == ' ' || b == '.' {
			b = '_'
		}
		if b == deleteMarker {
			b = escapedE5
		}
		sb.WriteByte(b)
	}
	out := sb.String()
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}

func pack83(base, ext string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	copy(out[:8], base)
	copy(out[8:11], ext)
	return out
}

// generateShortName implements §4.6.4: derive a unique 8.3 alias for
// longName against the entries already present in db, trying the bare
// mangled name first, then the numeric-tail fallback chain
// BBBBBB~D.EXT -> BBBBB~DD.EXT -> BB~XXXXX.EXT.
func generateShortName(db *dirBuffer, longName string) ([11]byte, FSError) {
	baseSeed, extSeed := shortNameSeed(longName)
	base := sanitizeFor83(baseSeed, 8)
	ext := sanitizeFor83(extSeed, 3)
	if base == "" {
		base = "_"
	}

	existing := make(map[[11]byte]bool)
	ferr := iterateEntries(db, func(rec dirEntryRecord) (bool, FSError) {
		existing[rec.ShortName] = true
		return true, nil
	})
	if ferr != nil {
		return [11]byte{}, ferr
	}

	if cand := pack83(base, ext); !existing[cand] {
		return cand, nil
	}

	for digits := 1; digits <= 2; digits++ {
		maxN := 1
		for i := 0; i < digits; i++ {
			maxN *= 10
		}
		baseLen := 8 - digits - 1
		if baseLen < 1 {
			baseLen = 1
		}
		trimmed := base
		if len(trimmed) > baseLen {
			trimmed = trimmed[:baseLen]
		}
		for n := 1; n < maxN; n++ {
			candBase := fmt.Sprintf("%s~%d", trimmed, n)
			if len(candBase) > 8 {
				continue
			}
			if cand := pack83(candBase, ext); !existing[cand] {
				return cand, nil
			}
		}
	}

	prefix := base
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	for n := 0; n < 0x100000; n++ {
		candBase := fmt.Sprintf("%s~%05X", prefix, n)
		if len(candBase) > 8 {
			candBase = candBase[len(candBase)-8:]
		}
		if cand := pack83(candBase, ext); !existing[cand] {
			return cand, nil
		}
	}
	return [11]byte{}, ErrDiskFull.WithMessage("exhausted short-name fallback chain")
}

// findFreeRun scans for need contiguous free (deleted or past-end) entry
// slots, returning the offset of the run's first slot. It returns
// (-1, nil) if the directory's current allocation has no such run (the
// caller must grow the directory and retry).
func findFreeRun(db *dirBuffer, need int) (int64, FSError) {
	limit := db.size()
	run := 0
	var runStart int64 = -1
	off := int64(0)
	for off < limit {
		raw, ferr := db.getEntriesAt(off, false)
		if ferr != nil {
			return -1, ferr
		}
		first := raw[deName]
		switch first {
		case deleteMarker:
			if run == 0 {
				runStart = off
			}
			run++
			if run >= need {
				return runStart, nil
			}
		case endMarker:
			if run == 0 {
				runStart = off
			}
			run += int((limit - off) / sizeDirEntry)
			if run >= need {
				return runStart, nil
			}
			return -1, nil
		default:
			run = 0
		}
		off += sizeDirEntry
	}
	return -1, nil
}

// growDirectory implements §4.6.6: extend a directory by one cluster. The
// FAT12/16 fixed root has no cluster chain to extend and reports disk-full
// instead, per §3.1's "root directory is a fixed-size region" invariant.
func growDirectory(vol *Volume, obj *fatObject, db *dirBuffer) FSError {
	if db.fixedBase != 0 {
		return ErrDiskFull.WithMessage("root directory is full")
	}
	oldSize := obj.size
	if err := vol.cache.allocateMany(obj.chain, 1); err != nil {
		return err
	}
	obj.fatDirty = true
	newSize := oldSize + vol.clusterSize
	obj.size = newSize
	obj.dirEntryDirty = true

	// Zero-fill the new cluster on disk so a sliding-window read (simple
	// mode) or a later full reload never sees a previous file's leftover
	// bytes as directory entries.
	diskOff := obj.chain.fileOffsetToDisk(oldSize, vol.clusterToDisk)
	if err := asIOError(vol.backing.WriteAt(diskOff, make([]byte, vol.clusterSize))); err != nil {
		return err
	}

	if db.mode == dirBufFull {
		if newSize <= maxFullBufferedSize {
			return db.growFull(newSize)
		}
		return db.downgradeToSimple()
	}
	return nil
}

// createEntry implements §4.6.5: allocate a logical directory entry for
// name (writing LFN slots if the name isn't 8.3-representable or collides),
// and returns the record with its ShortOffset/LFNOffset filled in. On a
// disk error partway through the write, already-written slots are marked
// deleted (0xE5) so the directory never keeps a half-written LFN group.
func createEntry(vol *Volume, obj *fatObject, db *dirBuffer, name string, attr byte, cluster uint32, size uint32, now time.Time) (dirEntryRecord, FSError) {
	if !isValidLFNName(name) {
		return dirEntryRecord{}, ErrInvalidName
	}
	if _, ferr := findEntry(db, name); ferr == nil {
		return dirEntryRecord{}, ErrAlreadyExists
	} else if ferr.Kind() != ErrNotFound {
		return dirEntryRecord{}, ferr
	}

	short, directOK := to8dot3(name)
	useLFN := needsLongName(name, short, directOK)
	var caseFlags byte
	if !useLFN {
		for _, flags := range []byte{0, caseBaseLower, caseExtLower, caseBaseLower | caseExtLower} {
			if decode8dot3(short, flags) == name {
				caseFlags = flags
				break
			}
		}
	}
	if useLFN {
		generated, ferr := generateShortName(db, name)
		if ferr != nil {
			return dirEntryRecord{}, ferr
		}
		short = generated
	} else {
		// Even a valid direct 8.3 alias might collide with an existing
		// entry that happens to share it; fall back to generation.
		collided := false
		_ = iterateEntries(db, func(rec dirEntryRecord) (bool, FSError) {
			if rec.ShortName == short {
				collided = true
				return false, nil
			}
			return true, nil
		})
		if collided {
			generated, ferr := generateShortName(db, name)
			if ferr != nil {
				return dirEntryRecord{}, ferr
			}
			short = generated
			useLFN = true
			caseFlags = 0
		}
	}

	ck := checksum8dot3(short)
	var slots [][32]byte
	if useLFN {
		slots = encodeLFNSlots(name, ck)
	}
	need := len(slots) + 1

	var start int64
	for attempt := 0; attempt < 2; attempt++ {
		s, ferr := findFreeRun(db, need)
		if ferr != nil {
			return dirEntryRecord{}, ferr
		}
		if s >= 0 {
			start = s
			break
		}
		if attempt == 1 {
			return dirEntryRecord{}, ErrDiskFull
		}
		if ferr := growDirectory(vol, obj, db); ferr != nil {
			return dirEntryRecord{}, ferr
		}
	}

	rec := dirEntryRecord{
		ShortName:  short,
		CaseFlags:  caseFlags,
		Name:       name,
		Attr:       attr,
		Cluster:    cluster,
		Size:       size,
		CreatedAt:  now,
		ModifiedAt: now,
		AccessedAt: now,
	}

	written := 0
	rollback := func() {
		off := start
		for i := 0; i < written; i++ {
			raw, ferr := db.getEntriesAt(off, true)
			if ferr == nil {
				raw[deName] = deleteMarker
				db.putEntryAfterUpdate(off)
			}
			off += sizeDirEntry
		}
	}

	off := start
	for i := len(slots) - 1; i >= 0; i-- {
		raw, ferr := db.getEntriesAt(off, true)
		if ferr != nil {
			rollback()
			return dirEntryRecord{}, ferr
		}
		copy(raw[:sizeDirEntry], slots[i][:])
		db.putEntryAfterUpdate(off)
		written++
		off += sizeDirEntry
	}

	raw, ferr := db.getEntriesAt(off, true)
	if ferr != nil {
		rollback()
		return dirEntryRecord{}, ferr
	}
	encodeShortEntry(raw[:sizeDirEntry], rec)
	db.putEntryAfterUpdate(off)

	rec.ShortOffset = off
	rec.LFNOffset = start
	return rec, nil
}

// deleteEntry implements the removal half of §4.6.5: mark every slot of the
// logical entry (LFN group plus short entry) as deleted.
func deleteEntry(db *dirBuffer, rec dirEntryRecord) FSError {
	off := rec.LFNOffset
	for off <= rec.ShortOffset {
		raw, ferr := db.getEntriesAt(off, true)
		if ferr != nil {
			return ferr
		}
		raw[deName] = deleteMarker
		db.putEntryAfterUpdate(off)
		off += sizeDirEntry
	}
	return nil
}

// writeBackEntryFields rewrites the size/cluster/timestamp fields of an
// existing short entry without touching its name or any LFN slots,
// implementing the metadata flush half of §4.5's flushMetadata.
func writeBackEntryFields(db *dirBuffer, offset int64, cluster uint32, size uint32, modifiedAt time.Time) FSError {
	raw, ferr := db.getEntriesAt(offset, true)
	if ferr != nil {
		return ferr
	}
	binary.LittleEndian.PutUint16(raw[deClusterHi:], uint16(cluster>>16))
	binary.LittleEndian.PutUint16(raw[deClusterLo:], uint16(cluster))
	binary.LittleEndian.PutUint32(raw[deSize:], size)
	mod := encodeFATTime(modifiedAt)
	binary.LittleEndian.PutUint16(raw[deModDate:], mod.date)
	binary.LittleEndian.PutUint16(raw[deModTime:], mod.time)
	db.putEntryAfterUpdate(offset)
	return nil
}
