package fatvfs

import "testing"

func TestClusterChainAppendAndGet(t *testing.T) {
	c := newClusterChain(4096, 12)
	for i := uint32(2); i < 600; i++ { // spans multiple parts (clusterPartSize=252)
		c.append(i)
	}
	if c.Count() != 598 {
		t.Fatalf("Count() = %d, want 598", c.Count())
	}
	if got := c.get(0); got != 2 {
		t.Errorf("get(0) = %d, want 2", got)
	}
	if got := c.get(597); got != 599 {
		t.Errorf("get(597) = %d, want 599", got)
	}
	if got := c.firstCluster(); got != 2 {
		t.Errorf("firstCluster() = %d, want 2", got)
	}
	if got := c.lastCluster(); got != 599 {
		t.Errorf("lastCluster() = %d, want 599", got)
	}
	if got, want := c.byteLength(), int64(598)*4096; got != want {
		t.Errorf("byteLength() = %d, want %d", got, want)
	}
}

func TestClusterChainIsContiguous(t *testing.T) {
	c := newClusterChain(512, 9)
	c.append(5)
	c.append(6)
	c.append(7)
	if !c.isContiguous() {
		t.Error("isContiguous() = false, want true for 5,6,7")
	}
	c.append(9)
	if c.isContiguous() {
		t.Error("isContiguous() = true, want false after a gap")
	}
}

func TestClusterChainShrinkTo(t *testing.T) {
	c := newClusterChain(512, 9)
	for i := uint32(2); i < 10; i++ {
		c.append(i)
	}
	c.shrinkTo(3)
	if c.Count() != 3 {
		t.Fatalf("Count() after shrinkTo(3) = %d, want 3", c.Count())
	}
	if got := c.lastCluster(); got != 4 {
		t.Errorf("lastCluster() after shrink = %d, want 4", got)
	}
}

func TestClusterChainFileOffsetToDisk(t *testing.T) {
	c := newClusterChain(512, 9)
	c.append(2)
	c.append(3)
	toDisk := func(cluster uint32) int64 { return 1024 + int64(cluster-2)*512 }
	if got, want := c.fileOffsetToDisk(0, toDisk), int64(1024); got != want {
		t.Errorf("fileOffsetToDisk(0) = %d, want %d", got, want)
	}
	if got, want := c.fileOffsetToDisk(600, toDisk), int64(1024+512+88); got != want {
		t.Errorf("fileOffsetToDisk(600) = %d, want %d", got, want)
	}
}
