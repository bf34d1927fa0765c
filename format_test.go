package fatvfs

import (
	"testing"

	"github.com/fatvfs/fatvfs/internal/membacking"
)

// formatAndMount is the shared fixture every higher-level test in this
// package builds on: a freshly formatted volume of the given size, mounted
// read-write with default options.
func formatAndMount(t *testing.T, size int64, opts FormatOptions) (*Volume, *membacking.Store) {
	t.Helper()
	store := membacking.New(size)
	opts.TotalSize = size
	if err := Format(store, opts); err != nil {
		t.Fatalf("Format: %v", err)
	}
	vol, err := Mount(store, MountOptions{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() {
		if err := vol.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return vol, store
}

// TestFormatFloppyGeometry reproduces the 1.44 MiB floppy scenario: FAT
// size 9 sectors, root directory at byte 9728, first data cluster at byte
// 16896, 2847 data clusters.
func TestFormatFloppyGeometry(t *testing.T) {
	const size = 1474560 // 1.44 MiB
	store := membacking.New(size)
	if err := Format(store, FormatOptions{TotalSize: size, Label: "FLOPPY"}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	vol, err := Mount(store, MountOptions{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer vol.Close()

	if vol.Type() != "FAT12" {
		t.Errorf("Type() = %q, want FAT12", vol.Type())
	}
	if got, want := vol.dataClusters, uint32(2847); got != want {
		t.Errorf("dataClusters = %d, want %d", got, want)
	}
	if got, want := vol.rootOffset, int64(9728); got != want {
		t.Errorf("rootOffset = %d, want %d", got, want)
	}
	if got, want := vol.dataOffset, int64(16896); got != want {
		t.Errorf("dataOffset = %d, want %d", got, want)
	}
	if got, want := vol.Label(), "FLOPPY"; got != want {
		t.Errorf("Label() = %q, want %q", got, want)
	}
}

func TestFormatClassifiesFAT16AndFAT32(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want string
	}{
		{"16MiB", 16 << 20, "FAT16"},
		{"64MiB", 64 << 20, "FAT16"},
		{"256MiB", 256 << 20, "FAT32"},
		{"1GiB", 1 << 30, "FAT32"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := membacking.New(tt.size)
			if err := Format(store, FormatOptions{TotalSize: tt.size}); err != nil {
				t.Fatalf("Format: %v", err)
			}
			vol, err := Mount(store, MountOptions{})
			if err != nil {
				t.Fatalf("Mount: %v", err)
			}
			defer vol.Close()
			if vol.Type() != tt.want {
				t.Errorf("Type() = %q, want %q", vol.Type(), tt.want)
			}
		})
	}
}

func TestFormatForcedType(t *testing.T) {
	const size = 64 << 20
	store := membacking.New(size)
	if err := Format(store, FormatOptions{TotalSize: size, Type: FATType32}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	vol, err := Mount(store, MountOptions{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer vol.Close()
	if vol.Type() != "FAT32" {
		t.Errorf("Type() = %q, want FAT32 (forced)", vol.Type())
	}
}

func TestFormatRejectsUndersizedVolume(t *testing.T) {
	store := membacking.New(1024)
	if err := Format(store, FormatOptions{TotalSize: 1024}); err == nil {
		t.Fatal("Format: want error for undersized volume, got nil")
	}
}

func TestFAT32BackupBootSectorMirrorsPrimary(t *testing.T) {
	const size = 256 << 20
	store := membacking.New(size)
	if err := Format(store, FormatOptions{TotalSize: size, Type: FATType32}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	buf := store.Bytes()
	primary := buf[:512]
	backup := buf[fat32BkBootSec*512 : fat32BkBootSec*512+512]
	for i := range primary {
		if primary[i] != backup[i] {
			t.Fatalf("backup boot sector diverges from primary at byte %d: %#x != %#x", i, primary[i], backup[i])
		}
	}
}
