package fatvfs

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync"
	"time"
)

// fatType tags which on-disk FAT flavor a volume was formatted with.
type fatType uint8

const (
	fatTypeFAT12 fatType = iota
	fatTypeFAT16
	fatTypeFAT32
)

func (t fatType) String() string {
	switch t {
	case fatTypeFAT12:
		return "FAT12"
	case fatTypeFAT16:
		return "FAT16"
	case fatTypeFAT32:
		return "FAT32"
	default:
		return "unknown"
	}
}

// BPB byte offsets, §6.3. Layout is externally mandated for interoperability
// with every other FAT implementation.
const (
	bsJmpBoot     = 0
	bsOEMName     = 3
	bpbBytsPerSec = 11
	bpbSecPerClus = 13
	bpbRsvdSecCnt = 14
	bpbNumFATs    = 16
	bpbRootEntCnt = 17
	bpbTotSec16   = 19
	bpbMedia      = 21
	bpbFATSz16    = 22
	bpbSecPerTrk  = 24
	bpbNumHeads   = 26
	bpbHiddSec    = 28
	bpbTotSec32   = 32

	// FAT12/16 extended BPB tail.
	bsDrvNum16   = 36
	bsBootSig16  = 38
	bsVolID16    = 39
	bsVolLab16   = 43
	bsFilSysType16 = 54

	// FAT32 EBPB, inserted between BPB 3.31 and the drive/signature tail.
	bpbFATSz32     = 36
	bpbExtFlags32  = 40
	bpbFSVer32     = 42
	bpbRootClus32  = 44
	bpbFSInfo32    = 48
	bpbBkBootSec32 = 50
	bsDrvNum32     = 64
	bsBootSig32    = 66
	bsVolID32      = 67
	bsVolLab32     = 71
	bsFilSysType32 = 82

	bs55AAOffset = 510

	fsiLeadSig    = 0
	fsiStrucSig   = 484
	fsiFreeCount  = 488
	fsiNextFree   = 492
	fsiTrailSig   = 508
	fsiLeadSigVal  = 0x41615252
	fsiStrucSigVal = 0x61417272
	fsiTrailSigVal = 0xAA550000

	sizeDirEntry = 32

	clustMaxFAT12 = 0xFF5
	clustMaxFAT16 = 0xFFF5
	clustMaxFAT32 = 0x0FFFFFF5
)

// Volume is a mounted FAT12/16/32 filesystem. It owns the backing store,
// the cluster-map cache, and the root directory object, and serializes
// concurrent access with a single RW lock per §5.
type Volume struct {
	backing  BackingStore
	readOnly bool
	bootOff  int64 // byte offset of the boot sector within backing

	fatType      fatType
	sectorSize   int64
	clusterSize  int64
	clusterShift uint

	numFATs     int
	fatSize     int64   // bytes per FAT copy
	fatOffsets  []int64 // disk offsets of each FAT copy
	rootOffset  int64   // FAT12/16: disk offset of fixed root region
	rootEntries int     // FAT12/16: fixed entry count; 0 on FAT32
	rootCluster uint32  // FAT32: starting cluster of root dir
	dataOffset  int64   // disk offset of cluster 2
	dataClusters uint32

	serial uint32
	label  [11]byte
	fsType [8]byte

	fsInfoOffset int64 // 0 if absent

	utcOffset time.Duration

	cache *clusterMapCache

	lock sync.RWMutex // §5 per-volume RW lock
	root *Dir

	log *slog.Logger
}

// MountOptions configures Mount.
type MountOptions struct {
	// ReadOnly mounts the volume write-protected regardless of what the
	// backing store otherwise allows.
	ReadOnly bool
	// BootSectorOffset is the byte offset of the FAT boot sector within
	// the backing store (0 for a bare FAT image, nonzero when the FAT
	// filesystem lives inside a larger container the caller has already
	// navigated to, e.g. a partition).
	BootSectorOffset int64
	// UTCOffset converts between the host's UTC clock and the local time
	// FAT timestamps are stored in (§3.7). Defaults to the zero offset.
	UTCOffset time.Duration
	// Logger receives structured trace/debug/info/warn/error events for
	// every subsystem. A nil Logger disables logging.
	Logger *slog.Logger
}

const slogLevelTrace = slog.LevelDebug - 2

func (v *Volume) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if v.log != nil {
		v.log.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
func (v *Volume) trace(msg string, attrs ...slog.Attr) { v.logattrs(slogLevelTrace, msg, attrs...) }
func (v *Volume) debug(msg string, attrs ...slog.Attr)  { v.logattrs(slog.LevelDebug, msg, attrs...) }
func (v *Volume) info(msg string, attrs ...slog.Attr)   { v.logattrs(slog.LevelInfo, msg, attrs...) }
func (v *Volume) warn(msg string, attrs ...slog.Attr)   { v.logattrs(slog.LevelWarn, msg, attrs...) }
func (v *Volume) logerror(msg string, attrs ...slog.Attr) {
	v.logattrs(slog.LevelError, msg, attrs...)
}

// Mount parses the boot sector at opts.BootSectorOffset, validates BPB
// geometry, classifies the FAT type, and returns a mounted Volume (§4.9,
// §6.2 fat_mount).
func Mount(backing BackingStore, opts MountOptions) (*Volume, FSError) {
	v := &Volume{
		backing:   backing,
		readOnly:  opts.ReadOnly,
		bootOff:   opts.BootSectorOffset,
		utcOffset: opts.UTCOffset,
		log:       opts.Logger,
	}

	boot := make([]byte, 512)
	if err := asIOError(backing.ReadAt(v.bootOff, boot)); err != nil {
		return nil, err
	}

	if err := checkBootSignature(boot); err != nil {
		return nil, err
	}

	sectorSize := int64(binary.LittleEndian.Uint16(boot[bpbBytsPerSec:]))
	if !isValidSectorSize(sectorSize) {
		return nil, ErrBogusFormat.WithMessage("unsupported sector size")
	}
	v.sectorSize = sectorSize

	secPerClus := int64(boot[bpbSecPerClus])
	if secPerClus == 0 || !isPow2(secPerClus) {
		return nil, ErrBogusFormat.WithMessage("invalid sectors per cluster")
	}
	v.clusterSize = secPerClus * sectorSize
	v.clusterShift = log2i(v.clusterSize)

	reservedSectors := int64(binary.LittleEndian.Uint16(boot[bpbRsvdSecCnt:]))
	numFATs := int(boot[bpbNumFATs])
	if numFATs < 1 || numFATs > 4 {
		return nil, ErrBogusFormat.WithMessage("invalid FAT copy count")
	}
	v.numFATs = numFATs

	rootEntCnt := int(binary.LittleEndian.Uint16(boot[bpbRootEntCnt:]))

	fatSz16 := int64(binary.LittleEndian.Uint16(boot[bpbFATSz16:]))
	fatSz32 := int64(binary.LittleEndian.Uint32(boot[bpbFATSz32:]))
	fatSzSectors := fatSz16
	if fatSzSectors == 0 {
		fatSzSectors = fatSz32
	}
	if fatSzSectors == 0 {
		return nil, ErrBogusFormat.WithMessage("zero FAT size")
	}
	v.fatSize = fatSzSectors * sectorSize

	totSec16 := int64(binary.LittleEndian.Uint16(boot[bpbTotSec16:]))
	totSec32 := int64(binary.LittleEndian.Uint32(boot[bpbTotSec32:]))
	totSec := totSec16
	if totSec == 0 {
		totSec = totSec32
	}

	rootDirSectors := int64((rootEntCnt*sizeDirEntry + int(sectorSize) - 1)) / sectorSize

	v.fatOffsets = make([]int64, numFATs)
	for i := 0; i < numFATs; i++ {
		v.fatOffsets[i] = v.bootOff + (reservedSectors+int64(i)*fatSzSectors)*sectorSize
	}
	v.rootOffset = v.bootOff + (reservedSectors+int64(numFATs)*fatSzSectors)*sectorSize
	v.dataOffset = v.rootOffset + rootDirSectors*sectorSize
	v.rootEntries = rootEntCnt

	dataSectors := totSec - (reservedSectors + int64(numFATs)*fatSzSectors + rootDirSectors)
	if dataSectors < 0 || secPerClus == 0 {
		return nil, ErrBogusFormat.WithMessage("negative data region")
	}
	dataClusters := uint32(dataSectors / secPerClus)
	v.dataClusters = dataClusters

	// FAT type classification by cluster count, §3.1 (shared with the
	// formatter's own geometry solver in format.go).
	v.fatType = classifyFATType(dataClusters)

	if v.fatType == fatTypeFAT32 {
		v.rootCluster = binary.LittleEndian.Uint32(boot[bpbRootClus32:])
		fsInfoSec := binary.LittleEndian.Uint16(boot[bpbFSInfo32:])
		if fsInfoSec != 0 && fsInfoSec != 0xFFFF {
			v.fsInfoOffset = v.bootOff + int64(fsInfoSec)*sectorSize
		}
		v.serial = binary.LittleEndian.Uint32(boot[bsVolID32:])
		copy(v.label[:], boot[bsVolLab32:bsVolLab32+11])
		copy(v.fsType[:], boot[bsFilSysType32:bsFilSysType32+8])
	} else {
		v.serial = binary.LittleEndian.Uint32(boot[bsVolID16:])
		copy(v.label[:], boot[bsVolLab16:bsVolLab16+11])
		copy(v.fsType[:], boot[bsFilSysType16:bsFilSysType16+8])
	}

	searchHint := uint32(2)
	if v.fsInfoOffset != 0 {
		fsinfo := make([]byte, 512)
		if err := asIOError(backing.ReadAt(v.fsInfoOffset, fsinfo)); err == nil {
			if binary.LittleEndian.Uint32(fsinfo[fsiLeadSig:]) == fsiLeadSigVal &&
				binary.LittleEndian.Uint32(fsinfo[fsiStrucSig:]) == fsiStrucSigVal {
				next := binary.LittleEndian.Uint32(fsinfo[fsiNextFree:])
				if next != 0xFFFFFFFF && next >= 2 {
					searchHint = next
				}
			}
		}
	}

	primary := make([]byte, 512)
	if err := asIOError(backing.ReadAt(v.fatOffsets[0], primary)); err != nil {
		return nil, err
	}
	cache, err := newClusterMapCache(v, v.fatSize, sectorSize, dataClusters, v.fatOffsets, v.fatType, primary)
	if err != nil {
		return nil, err
	}
	cache.searchHint = searchHint
	v.cache = cache

	root, ferr := v.openRootObject()
	if ferr != nil {
		return nil, ferr
	}
	v.root = root

	v.info("mounted volume", slog.String("type", v.fatType.String()), slog.Int64("cluster_size", v.clusterSize))
	return v, nil
}

func checkBootSignature(boot []byte) FSError {
	if len(boot) < 512 {
		return ErrUnknownFormat
	}
	if boot[bs55AAOffset] != 0x55 || boot[bs55AAOffset+1] != 0xAA {
		return ErrUnknownFormat.WithMessage("missing boot sector signature")
	}
	// DOS 1.x heuristic: a valid jump instruction opcode at byte 0.
	jmp := boot[bsJmpBoot]
	if jmp != 0xEB && jmp != 0xE9 {
		return ErrUnknownFormat.WithMessage("invalid jump instruction")
	}
	return nil
}

func isValidSectorSize(n int64) bool {
	return n == 128 || n == 512 || n == 1024 || n == 4096
}

func isPow2(n int64) bool {
	return n > 0 && n&(n-1) == 0
}

// clusterToDisk converts a cluster index to its disk byte offset.
func (v *Volume) clusterToDisk(cluster uint32) int64 {
	if cluster < 2 {
		return v.dataOffset
	}
	return v.dataOffset + int64(cluster-2)*v.clusterSize
}

// Close flushes all dirty state and releases the volume. On a FAT32 volume
// with an FSInfo sector, the free-cluster count and next-free hint are
// refreshed before unmount (§C.1).
func (v *Volume) Close() FSError {
	v.lock.Lock()
	defer v.lock.Unlock()
	if err := v.cache.flush(); err != nil {
		return err
	}
	if v.fsInfoOffset == 0 || v.readOnly {
		return nil
	}
	free, err := v.cache.countFreeClusters()
	if err != nil {
		return err
	}
	fsinfo := buildFSInfoSector(v.sectorSize, free, v.cache.searchHint)
	return asIOError(v.backing.WriteAt(v.fsInfoOffset, fsinfo))
}

// Label returns the volume label, preferring the synthetic root-directory
// label entry over the BPB field if a label entry exists (§C.2).
func (v *Volume) Label() string {
	v.lock.RLock()
	defer v.lock.RUnlock()
	if name := v.root.findVolumeLabelEntry(); name != "" {
		return name
	}
	return trimSpaces(v.label[:])
}

func trimSpaces(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

// FSType returns the type string recorded in the extended BPB, with its
// trailing space padding trimmed (e.g. "FAT12").
func (v *Volume) FSType() string { return trimSpaces(v.fsType[:]) }

// Serial returns the volume serial number.
func (v *Volume) Serial() uint32 { return v.serial }

// Type returns the classified FAT variant.
func (v *Volume) Type() string { return v.fatType.String() }
