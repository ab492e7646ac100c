package common

import "testing"

func TestWipeByteArray(t *testing.T) {
	buf := []byte("passphrase")
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
	WipeByteArray(nil)
}

func TestGenerateRandByteArray(t *testing.T) {
	a := GenerateRandByteArray(16)
	b := GenerateRandByteArray(16)
	if len(a) != 16 || len(b) != 16 {
		t.Fatalf("unexpected lengths: %d, %d", len(a), len(b))
	}
	if string(a) == string(b) {
		t.Logf("warning: two 16-byte random arrays are identical; extremely unlikely")
	}
}
