package engine

import (
	"testing"
)

func TestFloats(t *testing.T) {
	seeds := Seeds{Server: "test_server_seed", Client: "test_client_seed"}

	tests := []struct {
		name    string
		cursor  uint64
		count   int
		wantLen int
	}{
		{name: "basic float generation", cursor: 0, count: 1, wantLen: 1},
		{name: "multiple floats", cursor: 0, count: 8, wantLen: 8},
		{name: "cursor boundary test", cursor: 31, count: 2, wantLen: 2},
		{name: "crosses several rounds", cursor: 0, count: 40, wantLen: 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			floats := Floats(seeds, 1, tt.cursor, tt.count)

			if len(floats) != tt.wantLen {
				t.Errorf("Floats() returned %d floats, want %d", len(floats), tt.wantLen)
			}

			for i, f := range floats {
				if f < 0 || f >= 1 {
					t.Errorf("Float %d is out of range [0, 1): %f", i, f)
				}
			}
		})
	}
}

func TestDeterministicFloats(t *testing.T) {
	seeds := Seeds{Server: "deterministic_test", Client: "client_test"}

	floats1 := Floats(seeds, 42, 0, 5)
	floats2 := Floats(seeds, 42, 0, 5)

	for i := range floats1 {
		if floats1[i] != floats2[i] {
			t.Errorf("Float %d differs: %f != %f", i, floats1[i], floats2[i])
		}
	}

	other := Floats(seeds, 43, 0, 5)
	same := true
	for i := range floats1 {
		if floats1[i] != other[i] {
			same = false
		}
	}
	if same {
		t.Error("different nonces produced identical floats")
	}
}

func TestCursorMatchesSequentialRead(t *testing.T) {
	seeds := Seeds{Server: "cursor_server", Client: "cursor_client"}
	all := Floats(seeds, 7, 0, 12)
	// Each float is four bytes, so float 9 begins at byte 36.
	tail := Floats(seeds, 7, 36, 3)
	for i := range tail {
		if tail[i] != all[9+i] {
			t.Errorf("float %d from cursor differs: %f != %f", 9+i, tail[i], all[9+i])
		}
	}
}

func TestBytesToFloat(t *testing.T) {
	tests := []struct {
		name     string
		bytes    [4]byte
		expected float64
	}{
		{name: "all zeros", bytes: [4]byte{0, 0, 0, 0}, expected: 0.0},
		{name: "first byte half", bytes: [4]byte{128, 0, 0, 0}, expected: 0.5},
		{name: "second byte one", bytes: [4]byte{0, 1, 0, 0}, expected: 1.0 / 65536.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bytesToFloat(tt.bytes); got != tt.expected {
				t.Errorf("bytesToFloat(%v) = %v, want %v", tt.bytes, got, tt.expected)
			}
		})
	}

	if top := bytesToFloat([4]byte{255, 255, 255, 255}); top >= 1 {
		t.Errorf("max bytes should stay below 1, got %v", top)
	}
}

func TestIntNAndRange(t *testing.T) {
	s := NewStream(Seeds{Server: "a", Client: "b"}, 1, 0)
	for i := 0; i < 200; i++ {
		if v := s.IntN(6); v < 0 || v >= 6 {
			t.Fatalf("IntN(6) returned %d", v)
		}
		if v := s.Range(2, 4); v < 2 || v > 4 {
			t.Fatalf("Range(2,4) returned %d", v)
		}
	}
	if s.IntN(0) != 0 {
		t.Error("IntN(0) should be 0")
	}
	if s.Range(5, 5) != 5 {
		t.Error("Range(5,5) should be 5")
	}
}

func TestHashSeed(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashSeed("abc"); got != want {
		t.Errorf("HashSeed(abc) = %s", got)
	}
	if HashSeed("") != "" {
		t.Error("empty seed should hash to empty string")
	}

	seed, err := NewServerSeed()
	if err != nil {
		t.Fatal(err)
	}
	if len(seed) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(seed))
	}
}
