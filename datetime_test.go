package fatvfs

import (
	"testing"
	"time"
)

func TestEncodeDecodeFATTimeRoundTrip(t *testing.T) {
	in := time.Date(2024, time.March, 15, 13, 37, 42, 0, time.UTC)
	ft := encodeFATTime(in)
	out := ft.decode()
	if !out.Equal(in) {
		t.Errorf("round trip = %v, want %v", out, in)
	}
}

func TestEncodeFATTimeClampsBeforeEpoch(t *testing.T) {
	in := time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	ft := encodeFATTime(in)
	out := ft.decode()
	if !out.Equal(minFATTime) {
		t.Errorf("clamped time = %v, want %v", out, minFATTime)
	}
}

func TestEncodeFATTimeOddSecondResolution(t *testing.T) {
	in := time.Date(2024, time.March, 15, 13, 37, 43, 0, time.UTC)
	ft := encodeFATTime(in)
	out := ft.decode()
	if !out.Equal(in) {
		t.Errorf("odd-second round trip = %v, want %v", out, in)
	}
}

func TestUTCOffsetRoundTrip(t *testing.T) {
	v := &Volume{utcOffset: -5 * time.Hour}
	utc := time.Date(2024, time.March, 15, 13, 0, 0, 0, time.UTC)
	local := v.utcToLocal(utc)
	if got := v.localToUTC(local); !got.Equal(utc) {
		t.Errorf("localToUTC(utcToLocal(t)) = %v, want %v", got, utc)
	}
}
