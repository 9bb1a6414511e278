package pow

import (
	"math"
	"testing"
)

// TestLeadingZeros verifies the bit count over crafted hashes.
func TestLeadingZeros(t *testing.T) {
	tests := []struct {
		name string
		hash [32]byte
		want uint64
	}{
		{"first bit set", [32]byte{0x80}, 0},
		{"one byte zero", [32]byte{0x00, 0x80}, 8},
		{"half byte", [32]byte{0x08}, 4},
		{"two bytes zero", [32]byte{0x00, 0x00, 0x01}, 23},
		{"all zero", [32]byte{}, 256},
	}
	for _, tt := range tests {
		if got := LeadingZeros(tt.hash); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

// TestScoreSaturates verifies 2^difficulty scoring and the uint64 ceiling.
func TestScoreSaturates(t *testing.T) {
	if got := Score(0); got != 1 {
		t.Errorf("Score(0) = %d, want 1", got)
	}
	if got := Score(12); got != 4096 {
		t.Errorf("Score(12) = %d, want 4096", got)
	}
	if got := Score(63); got != 1<<63 {
		t.Errorf("Score(63) = %d, want %d", got, uint64(1)<<63)
	}
	if got := Score(64); got != math.MaxUint64 {
		t.Errorf("Score(64) = %d, want MaxUint64", got)
	}
}

// TestMineProducesValidSolution mines a low difficulty and checks the digest
// derivation, validity and recomputed difficulty agree.
func TestMineProducesValidSolution(t *testing.T) {
	var challenge [ChallengeSize]byte
	challenge[0] = 0xAB

	sol, ok := Mine(challenge, 4, 0, 1<<20)
	if !ok {
		t.Fatal("no solution of difficulty 4 in 2^20 nonces")
	}
	if !sol.IsValid(challenge) {
		t.Fatal("mined solution fails digest validity")
	}
	if d := sol.Difficulty(challenge); d < 4 {
		t.Fatalf("difficulty = %d, want >= 4", d)
	}

	// A foreign digest for the same nonce must not validate.
	bad := sol
	bad.Digest[0] ^= 0xFF
	if bad.IsValid(challenge) {
		t.Fatal("tampered digest validated")
	}
}

// TestSolutionBytesRoundTrip checks the signed byte layout digest || nonce.
func TestSolutionBytesRoundTrip(t *testing.T) {
	var digest [DigestSize]byte
	for i := range digest {
		digest[i] = byte(i + 1)
	}
	s := NewSolution(digest, 0xDEADBEEF)

	b := s.Bytes()
	if len(b) != SolutionSize {
		t.Fatalf("len = %d, want %d", len(b), SolutionSize)
	}
	back, ok := SolutionFromBytes(b)
	if !ok || back != s {
		t.Fatalf("round trip mismatch: %+v != %+v", back, s)
	}
	if back.NonceUint64() != 0xDEADBEEF {
		t.Fatalf("nonce = %#x, want 0xDEADBEEF", back.NonceUint64())
	}

	if _, ok := SolutionFromBytes(b[:SolutionSize-1]); ok {
		t.Fatal("short input accepted")
	}
}
