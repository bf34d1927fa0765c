package fatvfs

// clusterPartSize is the number of cluster indices held in each segment of
// a clusterChain, matching the segmented parts-list design in §3.3. The
// constant itself carries no special meaning (per the DESIGN NOTES, any
// growable container would do); it is kept because it gives chains of
// real-world file sizes a predictable, small number of allocations.
const clusterPartSize = 252

// clusterChainPart is one segment of a clusterChain's backing storage.
type clusterChainPart struct {
	clusters [clusterPartSize]uint32
	next     *clusterChainPart
}

// clusterChain is the in-memory representation of a file or directory's
// cluster allocation: an ordered list of cluster indices, represented as a
// singly-linked list of fixed-size parts so that appends never need to copy
// or reallocate existing data (§3.3).
type clusterChain struct {
	clusterSize  int64 // bytes per cluster
	clusterShift uint  // log2(clusterSize)
	count        int64 // total cluster count across all parts
	head         *clusterChainPart
	tail         *clusterChainPart
}

func newClusterChain(clusterSize int64, clusterShift uint) *clusterChain {
	return &clusterChain{clusterSize: clusterSize, clusterShift: clusterShift}
}

// byteLength returns the chain's total length in bytes; always a multiple
// of clusterSize.
func (c *clusterChain) byteLength() int64 {
	return c.count << c.clusterShift
}

func (c *clusterChain) Count() int64 { return c.count }

// append adds cluster to the end of the chain in amortized O(1), growing a
// new part when the current tail is full. Allocation failure (out of Go
// heap) is not something this package can recover from gracefully, so this
// panics via the normal Go allocator failure path rather than returning a
// distinct out-of-memory error; callers that pre-validate sizes never hit
// it in practice for FAT's 32-bit length limits.
func (c *clusterChain) append(cluster uint32) {
	if c.tail == nil || c.count%clusterPartSize == 0 && c.count > 0 {
		part := &clusterChainPart{}
		if c.tail != nil {
			c.tail.next = part
		} else {
			c.head = part
		}
		c.tail = part
	}
	idx := c.count % clusterPartSize
	c.tail.clusters[idx] = cluster
	c.count++
}

// get returns the cluster at ordinal index, walking parts linearly. index
// must be in [0, count).
func (c *clusterChain) get(index int64) uint32 {
	partIdx := index / clusterPartSize
	offInPart := index % clusterPartSize
	part := c.head
	for i := int64(0); i < partIdx; i++ {
		part = part.next
	}
	return part.clusters[offInPart]
}

func (c *clusterChain) firstCluster() uint32 {
	if c.count == 0 {
		return 0
	}
	return c.get(0)
}

func (c *clusterChain) lastCluster() uint32 {
	if c.count == 0 {
		return 0
	}
	return c.get(c.count - 1)
}

// isContiguous reports whether every cluster in the chain immediately
// follows its predecessor on disk, which full-mode directory buffering
// (§3.5) and some allocation fast paths rely on.
func (c *clusterChain) isContiguous() bool {
	if c.count < 2 {
		return true
	}
	prev := c.get(0)
	part := c.head
	idx := int64(1)
	for part != nil {
		start := int64(0)
		if part == c.head {
			start = 1
		}
		for i := start; i < clusterPartSize && idx < c.count; i, idx = i+1, idx+1 {
			cur := part.clusters[i]
			if cur != prev+1 {
				return false
			}
			prev = cur
		}
		part = part.next
	}
	return true
}

// shrinkTo truncates the chain to count clusters, dropping references to
// the tail parts. The caller is responsible for freeing the corresponding
// FAT entries; this only updates the in-memory view.
func (c *clusterChain) shrinkTo(count int64) {
	if count >= c.count {
		return
	}
	if count == 0 {
		c.head, c.tail, c.count = nil, nil, 0
		return
	}
	partIdx := (count - 1) / clusterPartSize
	part := c.head
	for i := int64(0); i < partIdx; i++ {
		part = part.next
	}
	part.next = nil
	c.tail = part
	c.count = count
}

// fileOffsetToDisk maps a byte offset within the chain's data to a disk
// byte offset, valid up to the end of the cluster containing off.
// clusterToDisk converts a cluster index to its disk byte offset via the
// volume's geometry.
func (c *clusterChain) fileOffsetToDisk(off int64, clusterToDisk func(cluster uint32) int64) int64 {
	clusterIdx := off >> c.clusterShift
	cluster := c.get(clusterIdx)
	withinCluster := off & (c.clusterSize - 1)
	return clusterToDisk(cluster) + withinCluster
}
