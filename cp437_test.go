package fatvfs

import "testing"

func TestRuneTo8dot3RoundTrip(t *testing.T) {
	for _, r := range []rune{'A', 'Z', '0', '9', '_', '~'} {
		b, ok := runeTo8dot3(r)
		if !ok {
			t.Errorf("runeTo8dot3(%q): want ok", r)
			continue
		}
		if got := cp437DisplayToRune(b); got != r {
			t.Errorf("cp437DisplayToRune(runeTo8dot3(%q)) = %q, want %q", r, got, r)
		}
	}
}

func TestRuneTo8dot3UppercasesInput(t *testing.T) {
	b, ok := runeTo8dot3('a')
	if !ok || b != 'A' {
		t.Errorf("runeTo8dot3('a') = (%q, %v), want ('A', true)", b, ok)
	}
}

func TestRuneTo8dot3RejectsDot(t *testing.T) {
	if _, ok := runeTo8dot3('.'); ok {
		t.Error("runeTo8dot3('.'): want !ok, '.' is the base/ext separator")
	}
}

func TestIsReservedIn83(t *testing.T) {
	for _, b := range []byte{'"', '*', '+', ',', '/', ':', ';', '<', '=', '>', '?', '[', ']', '|'} {
		if !isReservedIn83(b) {
			t.Errorf("isReservedIn83(%q) = false, want true", b)
		}
	}
	if isReservedIn83('A') {
		t.Error("isReservedIn83('A') = true, want false")
	}
}

func TestRuneValidForLFN(t *testing.T) {
	if !runeValidForLFN('a') {
		t.Error("runeValidForLFN('a') = false, want true (lowercase allowed in LFN)")
	}
	if runeValidForLFN('/') {
		t.Error("runeValidForLFN('/') = true, want false (path separator)")
	}
}
