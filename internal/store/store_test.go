package store

import (
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := New(t.TempDir())

	for _, b := range [][]byte{[]byte("hello"), []byte(""), []byte("ping")} {
		hash, err := s.Put(b)
		if err != nil {
			t.Fatalf("Put(%q): %v", b, err)
		}

		got, ok := s.Get(hash)
		if !ok {
			t.Fatalf("Get(%s): not found", hash)
		}
		if string(got) != string(b) {
			t.Fatalf("Get(%s) = %q, want %q", hash, got, b)
		}

		hash2, err := s.Put(b)
		if err != nil {
			t.Fatalf("second Put(%q): %v", b, err)
		}
		if hash2 != hash {
			t.Fatalf("Put not deterministic: %s != %s", hash2, hash)
		}
	}
}

func TestGetAbsent(t *testing.T) {
	s := New(t.TempDir())

	if _, ok := s.Get("00000000000000000000000000000000000000000000000000000000000000000"); ok {
		t.Fatalf("Get of too-long hash should fail")
	}
	if _, ok := s.Get("not-a-hash"); ok {
		t.Fatalf("Get of malformed hash should fail")
	}

	valid := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if _, ok := s.Get(valid); ok {
		t.Fatalf("Get of well-formed but missing hash should fail")
	}
}

func TestHas(t *testing.T) {
	s := New(t.TempDir())
	hash, err := s.Put([]byte("ping"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !s.Has(hash) {
		t.Fatalf("Has(%s) = false, want true", hash)
	}
	if s.Has("deadbeef") {
		t.Fatalf("Has of malformed hash should be false")
	}
}

func TestValidHash(t *testing.T) {
	cases := map[string]bool{
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855": true,
		"E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855": false,
		"short": false,
		"":      false,
	}
	for h, want := range cases {
		if got := ValidHash(h); got != want {
			t.Errorf("ValidHash(%q) = %v, want %v", h, got, want)
		}
	}
}
