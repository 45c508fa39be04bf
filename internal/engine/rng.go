package engine

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// Seeds pairs the secret server seed with the player's client seed.
type Seeds struct {
	Server string `json:"server"` // ASCII; do NOT hex-decode
	Client string `json:"client"`
}

// Stream is a provably fair byte stream: HMAC-SHA256 keyed by the server
// seed over "client:nonce:round", 32 bytes per round.
type Stream struct {
	seeds Seeds
	nonce uint64
	round uint64
	pos   int
	buf   [32]byte
}

// NewStream starts a stream at the given byte cursor.
func NewStream(seeds Seeds, nonce uint64, cursor uint64) *Stream {
	s := &Stream{
		seeds: seeds,
		nonce: nonce,
		round: cursor / 32,
		pos:   int(cursor % 32),
	}
	s.fill()
	return s
}

func (s *Stream) fill() {
	h := hmac.New(sha256.New, []byte(s.seeds.Server))
	fmt.Fprintf(h, "%s:%d:%d", s.seeds.Client, s.nonce, s.round)
	copy(s.buf[:], h.Sum(nil))
}

// Byte returns the next byte.
func (s *Stream) Byte() byte {
	if s.pos >= len(s.buf) {
		s.round++
		s.pos = 0
		s.fill()
	}
	b := s.buf[s.pos]
	s.pos++
	return b
}

// Float returns the next float in [0, 1), built from exactly four bytes.
func (s *Stream) Float() float64 {
	var b [4]byte
	for i := range b {
		b[i] = s.Byte()
	}
	return bytesToFloat(b)
}

// IntN returns an integer in [0, n). n <= 0 yields 0.
func (s *Stream) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	idx := int(math.Floor(s.Float() * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// Range returns an integer in [lo, hi].
func (s *Stream) Range(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.IntN(hi-lo+1)
}

func bytesToFloat(bytes [4]byte) float64 {
	result := 0.0
	for i, b := range bytes {
		result += float64(b) / math.Pow(256, float64(i+1))
	}
	return result
}

// Floats generates count floats starting from the given cursor.
func Floats(seeds Seeds, nonce uint64, cursor uint64, count int) []float64 {
	s := NewStream(seeds, nonce, cursor)
	out := make([]float64, count)
	for i := range out {
		out[i] = s.Float()
	}
	return out
}

// HashSeed returns the hex SHA-256 of a seed, which is what gets shown to a
// player before the seed itself is revealed.
func HashSeed(seed string) string {
	if seed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// NewServerSeed draws a fresh 32-byte server seed, hex encoded.
func NewServerSeed() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate server seed: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
