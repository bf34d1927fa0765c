package fatvfs

import (
	"bytes"
	"testing"

	"github.com/fatvfs/fatvfs/internal/membacking"
)

func mustRoot(t *testing.T, vol *Volume) *Dir {
	t.Helper()
	return vol.root
}

func TestCreateWriteReadFile(t *testing.T) {
	vol, _ := formatAndMount(t, 16<<20, FormatOptions{})
	root := mustRoot(t, vol)

	f, err := root.OpenFile("HELLO.TXT", ModeCreateNew, AccessReadWrite)
	if err != nil {
		t.Fatalf("OpenFile(create): %v", err)
	}
	want := []byte("hello, fat world")
	if _, err := f.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f2, err := root.OpenFile("HELLO.TXT", ModeOpenExisting, AccessRead)
	if err != nil {
		t.Fatalf("OpenFile(existing): %v", err)
	}
	defer f2.Close()
	got := make([]byte, len(want))
	n, err := f2.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(want) || !bytes.Equal(got, want) {
		t.Fatalf("Read = %q, want %q", got[:n], want)
	}
	if f2.Size() != int64(len(want)) {
		t.Errorf("Size() = %d, want %d", f2.Size(), len(want))
	}
}

func TestCreateNewRejectsExisting(t *testing.T) {
	vol, _ := formatAndMount(t, 16<<20, FormatOptions{})
	root := mustRoot(t, vol)

	f, err := root.OpenFile("A.TXT", ModeCreateNew, AccessWrite)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	f.Close()

	if _, err := root.OpenFile("A.TXT", ModeCreateNew, AccessWrite); err == nil || err.Kind() != ErrAlreadyExists {
		t.Fatalf("second create: got %v, want ErrAlreadyExists", err)
	}
}

func TestOpenExistingMissingFails(t *testing.T) {
	vol, _ := formatAndMount(t, 16<<20, FormatOptions{})
	root := mustRoot(t, vol)
	if _, err := root.OpenFile("NOPE.TXT", ModeOpenExisting, AccessRead); err == nil || err.Kind() != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestCreateReplaceTruncates(t *testing.T) {
	vol, _ := formatAndMount(t, 16<<20, FormatOptions{})
	root := mustRoot(t, vol)

	f, _ := root.OpenFile("T.TXT", ModeCreateNew, AccessWrite)
	f.Write(bytes.Repeat([]byte{'x'}, 4096))
	f.Close()

	f2, err := root.OpenFile("T.TXT", ModeCreateReplace, AccessReadWrite)
	if err != nil {
		t.Fatalf("OpenFile(replace): %v", err)
	}
	defer f2.Close()
	if f2.Size() != 0 {
		t.Errorf("Size() after replace = %d, want 0", f2.Size())
	}
}

func TestCreateAndOpenSubdirectory(t *testing.T) {
	vol, _ := formatAndMount(t, 16<<20, FormatOptions{})
	root := mustRoot(t, vol)

	sub, err := root.CreateDir("SUBDIR")
	if err != nil {
		t.Fatalf("CreateDir: %v", err)
	}
	defer sub.Close()

	f, err := sub.OpenFile("NESTED.TXT", ModeCreateNew, AccessWrite)
	if err != nil {
		t.Fatalf("OpenFile in subdir: %v", err)
	}
	f.Write([]byte("nested"))
	f.Close()

	reopened, err := root.OpenDir("SUBDIR")
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	defer reopened.Close()

	var names []string
	err = reopened.ForEach(func(e DirEntryInfo) bool {
		names = append(names, e.Name)
		return true
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	found := false
	for _, n := range names {
		if n == "NESTED.TXT" {
			found = true
		}
	}
	if !found {
		t.Errorf("ForEach = %v, want NESTED.TXT present", names)
	}
}

func TestDotAndDotDot(t *testing.T) {
	vol, _ := formatAndMount(t, 16<<20, FormatOptions{})
	root := mustRoot(t, vol)

	sub, err := root.CreateDir("KID")
	if err != nil {
		t.Fatalf("CreateDir: %v", err)
	}
	defer sub.Close()

	self, err := sub.OpenDir(".")
	if err != nil {
		t.Fatalf("OpenDir(.): %v", err)
	}
	defer self.Close()

	parent, err := sub.OpenDir("..")
	if err != nil {
		t.Fatalf("OpenDir(..): %v", err)
	}
	defer parent.Close()
}

func TestUnlinkRemovesFile(t *testing.T) {
	vol, _ := formatAndMount(t, 16<<20, FormatOptions{})
	root := mustRoot(t, vol)

	f, _ := root.OpenFile("DOOMED.TXT", ModeCreateNew, AccessWrite)
	f.Close()

	if err := root.Unlink("DOOMED.TXT"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if _, err := root.OpenFile("DOOMED.TXT", ModeOpenExisting, AccessRead); err == nil || err.Kind() != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound after unlink", err)
	}
}

func TestRenameWithinSameDirectory(t *testing.T) {
	vol, _ := formatAndMount(t, 16<<20, FormatOptions{})
	root := mustRoot(t, vol)

	f, _ := root.OpenFile("OLD.TXT", ModeCreateNew, AccessWrite)
	f.Write([]byte("payload"))
	f.Close()

	if err := root.Rename("OLD.TXT", "NEW.TXT"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := root.OpenFile("OLD.TXT", ModeOpenExisting, AccessRead); err == nil {
		t.Fatal("OLD.TXT still present after rename")
	}
	f2, err := root.OpenFile("NEW.TXT", ModeOpenExisting, AccessRead)
	if err != nil {
		t.Fatalf("open renamed file: %v", err)
	}
	defer f2.Close()
	got := make([]byte, 7)
	f2.Read(got)
	if string(got) != "payload" {
		t.Errorf("content after rename = %q, want %q", got, "payload")
	}
}

func TestSetSizeGrowsAndShrinks(t *testing.T) {
	vol, _ := formatAndMount(t, 16<<20, FormatOptions{})
	root := mustRoot(t, vol)

	f, _ := root.OpenFile("SIZE.TXT", ModeCreateNew, AccessReadWrite)
	defer f.Close()

	if err := f.SetSize(8192); err != nil {
		t.Fatalf("SetSize(grow): %v", err)
	}
	if f.Size() != 8192 {
		t.Errorf("Size() = %d, want 8192", f.Size())
	}

	if err := f.SetSize(0); err != nil {
		t.Fatalf("SetSize(0): %v", err)
	}
	if f.Size() != 0 {
		t.Errorf("Size() = %d, want 0", f.Size())
	}
}

func TestWriteAtAndReadAt(t *testing.T) {
	vol, _ := formatAndMount(t, 16<<20, FormatOptions{})
	root := mustRoot(t, vol)

	f, _ := root.OpenFile("SPARSE.TXT", ModeCreateNew, AccessReadWrite)
	defer f.Close()

	payload := []byte("middle")
	if _, err := f.WriteAt(payload, 100); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := make([]byte, len(payload))
	if _, err := f.ReadAt(got, 100); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadAt = %q, want %q", got, payload)
	}
}

func TestSeek(t *testing.T) {
	vol, _ := formatAndMount(t, 16<<20, FormatOptions{})
	root := mustRoot(t, vol)

	f, _ := root.OpenFile("SEEK.TXT", ModeCreateNew, AccessReadWrite)
	defer f.Close()
	f.Write([]byte("0123456789"))

	pos, err := f.Seek(3, 0)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if pos != 3 {
		t.Fatalf("Seek returned %d, want 3", pos)
	}
	got := make([]byte, 4)
	n, err := f.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got[:n]) != "3456" {
		t.Errorf("Read after seek = %q, want %q", got[:n], "3456")
	}
}

func TestSetLabel(t *testing.T) {
	vol, _ := formatAndMount(t, 16<<20, FormatOptions{Label: "INITIAL"})
	if got := vol.Label(); got != "INITIAL" {
		t.Fatalf("Label() = %q, want INITIAL", got)
	}
	if err := vol.SetLabel("RENAMED"); err != nil {
		t.Fatalf("SetLabel: %v", err)
	}
	if got := vol.Label(); got != "RENAMED" {
		t.Errorf("Label() after SetLabel = %q, want RENAMED", got)
	}
}

func TestReadOnlyMountRejectsWrites(t *testing.T) {
	store := membacking.New(16 << 20)
	if err := Format(store, FormatOptions{TotalSize: 16 << 20}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	vol, err := Mount(store, MountOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("Mount(read-only): %v", err)
	}
	defer vol.Close()

	if _, err := vol.root.OpenFile("X.TXT", ModeCreateNew, AccessWrite); err == nil || err.Kind() != ErrWriteProtect {
		t.Fatalf("got %v, want ErrWriteProtect", err)
	}
}
