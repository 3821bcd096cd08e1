package chain

import "testing"

func TestDecodeBytes32TrimsAtFirstZero(t *testing.T) {
	var b [32]byte
	copy(b[:], "openai")
	if got := decodeBytes32(b); got != "openai" {
		t.Fatalf("decodeBytes32 = %q, want %q", got, "openai")
	}
}

func TestDecodeBytes32FullyPopulated(t *testing.T) {
	var b [32]byte
	for i := range b {
		b[i] = 'a'
	}
	if got := decodeBytes32(b); got != string(b[:]) {
		t.Fatalf("decodeBytes32 = %q, want full 32 bytes", got)
	}
}

func TestDecodeBytes32Empty(t *testing.T) {
	var b [32]byte
	if got := decodeBytes32(b); got != "" {
		t.Fatalf("decodeBytes32 = %q, want empty string", got)
	}
}

func TestGasLimitRoundsDownIntegerMath(t *testing.T) {
	cases := map[uint64]uint64{
		100000: 120000,
		21000:  25200,
		1:      1, // 1*12/10 = 1 (integer division)
		5:      6,
	}
	for estimate, want := range cases {
		got := estimate * 12 / 10
		if got != want {
			t.Errorf("estimate=%d: gasLimit = %d, want %d", estimate, got, want)
		}
	}
}
