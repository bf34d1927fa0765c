package fatvfs

import "testing"

// TestAllocateManyRollbackRestoresOriginalLastCluster drives allocateMany
// into a partial failure (enough free clusters for one more allocation, not
// enough for the whole request) and checks the rollback path restores the
// chain's pre-call last cluster to end-of-chain rather than leaving it
// pointing at a cluster the rollback just zeroed.
func TestAllocateManyRollbackRestoresOriginalLastCluster(t *testing.T) {
	vol, _ := formatAndMount(t, 65536, FormatOptions{})
	cache := vol.cache
	total := vol.dataClusters

	chain := newClusterChain(vol.clusterSize, vol.clusterShift)
	if err := cache.allocateMany(chain, 2); err != nil {
		t.Fatalf("initial allocateMany(2): %v", err)
	}
	origLast := chain.lastCluster()

	// Drain every free cluster except exactly one, so the next grow request
	// succeeds on its first cluster and fails on its second.
	drain := int64(total) - 2 - 1
	for i := int64(0); i < drain; i++ {
		if _, err := cache.allocate(0); err != nil {
			t.Fatalf("draining cluster %d: %v", i, err)
		}
	}

	freeBefore, err := cache.countFreeClusters()
	if err != nil {
		t.Fatalf("countFreeClusters: %v", err)
	}
	if freeBefore != 1 {
		t.Fatalf("freeBefore = %d, want 1", freeBefore)
	}

	err = cache.allocateMany(chain, 3)
	if err == nil || err.Kind() != ErrDiskFull {
		t.Fatalf("allocateMany(3) with only 1 free cluster = %v, want ErrDiskFull", err)
	}

	if chain.Count() != 2 {
		t.Errorf("chain.Count() after rollback = %d, want 2 (unchanged)", chain.Count())
	}
	gotEntry, ferr := cache.getClusterEntry(origLast)
	if ferr != nil {
		t.Fatalf("getClusterEntry(origLast): %v", ferr)
	}
	if gotEntry < eocThreshold(cache.fatType) {
		t.Errorf("FAT entry for original last cluster = %#x, want an end-of-chain marker (rollback restored the wrong cluster)", gotEntry)
	}

	freeAfter, err := cache.countFreeClusters()
	if err != nil {
		t.Fatalf("countFreeClusters: %v", err)
	}
	if freeAfter != freeBefore {
		t.Errorf("freeAfter = %d, want %d (the partially-allocated cluster must be freed on rollback)", freeAfter, freeBefore)
	}
}
