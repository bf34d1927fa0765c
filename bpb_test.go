package fatvfs

import (
	"encoding/binary"
	"testing"

	"github.com/fatvfs/fatvfs/internal/membacking"
)

func TestMountRejectsMissingBootSignature(t *testing.T) {
	store := formatStore(t, 64<<20, FormatOptions{})
	buf := store.Bytes()
	buf[bs55AAOffset] = 0
	if _, err := Mount(store, MountOptions{}); err == nil || err.Kind() != ErrUnknownFormat {
		t.Fatalf("got %v, want ErrUnknownFormat", err)
	}
}

func TestCloseRewritesFSInfoFreeCount(t *testing.T) {
	const size = 256 << 20 // FAT32
	store := formatStore(t, size, FormatOptions{Type: FATType32})

	vol, err := Mount(store, MountOptions{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	root := vol.root
	f, err := root.OpenFile("X.TXT", ModeCreateNew, AccessWrite)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := f.SetSize(1 << 20); err != nil {
		t.Fatalf("SetSize: %v", err)
	}
	f.Close()

	fsInfoOff := vol.fsInfoOffset
	if fsInfoOff == 0 {
		t.Fatal("fsInfoOffset == 0, want a real FSInfo sector for FAT32")
	}
	beforeFree := binary.LittleEndian.Uint32(store.Bytes()[fsInfoOff+fsiFreeCount : fsInfoOff+fsiFreeCount+4])

	if err := vol.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	afterFree := binary.LittleEndian.Uint32(store.Bytes()[fsInfoOff+fsiFreeCount : fsInfoOff+fsiFreeCount+4])
	if afterFree >= beforeFree {
		t.Errorf("FSInfo free count after Close = %d, want less than format-time value %d (a file was allocated)", afterFree, beforeFree)
	}
}

// formatStore is like formatAndMount but returns only the unmounted store,
// for tests that want to mutate bytes before mounting.
func formatStore(t *testing.T, size int64, opts FormatOptions) *membacking.Store {
	t.Helper()
	store := membacking.New(size)
	opts.TotalSize = size
	if err := Format(store, opts); err != nil {
		t.Fatalf("Format: %v", err)
	}
	return store
}
