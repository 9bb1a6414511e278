// Package pow implements the hash puzzle that pool contributions are scored
// against. A solution is a 16-byte digest plus an 8-byte little-endian nonce;
// the digest must be derivable from the round challenge and the nonce, and the
// difficulty of a solution is the number of leading zero bits of
// keccak256(challenge || nonce || digest).
package pow

import (
	"encoding/binary"
	"math"
	"math/bits"

	"golang.org/x/crypto/sha3"
)

const (
	// DigestSize is the byte length of the miner-produced digest.
	DigestSize = 16
	// NonceSize is the byte length of the nonce.
	NonceSize = 8
	// SolutionSize is the wire size of a solution: digest || nonce.
	SolutionSize = DigestSize + NonceSize
)

// ChallengeSize is the byte length of a round challenge.
const ChallengeSize = 32

// Solution is a candidate answer to a challenge.
type Solution struct {
	Digest [DigestSize]byte
	Nonce  [NonceSize]byte
}

// NewSolution builds a solution from a digest and a numeric nonce.
func NewSolution(digest [DigestSize]byte, nonce uint64) Solution {
	var s Solution
	s.Digest = digest
	binary.LittleEndian.PutUint64(s.Nonce[:], nonce)
	return s
}

// SolutionFromBytes parses digest || nonce. ok is false on a length mismatch.
func SolutionFromBytes(b []byte) (Solution, bool) {
	if len(b) != SolutionSize {
		return Solution{}, false
	}
	var s Solution
	copy(s.Digest[:], b[:DigestSize])
	copy(s.Nonce[:], b[DigestSize:])
	return s, true
}

// Bytes returns digest || nonce. This is the exact byte string a contributor
// signs when submitting the solution.
func (s Solution) Bytes() []byte {
	out := make([]byte, 0, SolutionSize)
	out = append(out, s.Digest[:]...)
	out = append(out, s.Nonce[:]...)
	return out
}

// NonceUint64 returns the nonce as the number the partition check operates on.
func (s Solution) NonceUint64() uint64 {
	return binary.LittleEndian.Uint64(s.Nonce[:])
}

// Digest derives the only digest valid for (challenge, nonce).
func Digest(challenge [ChallengeSize]byte, nonce [NonceSize]byte) [DigestSize]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(challenge[:])
	h.Write(nonce[:])
	var d [DigestSize]byte
	copy(d[:], h.Sum(nil))
	return d
}

// IsValid reports whether the digest is the one derived from the challenge and
// nonce. Score and winner selection only ever consider valid solutions.
func (s Solution) IsValid(challenge [ChallengeSize]byte) bool {
	want := Digest(challenge, s.Nonce)
	return s.Digest == want
}

// Hash computes the difficulty hash keccak256(challenge || nonce || digest).
func (s Solution) Hash(challenge [ChallengeSize]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(challenge[:])
	h.Write(s.Nonce[:])
	h.Write(s.Digest[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Difficulty returns the number of leading zero bits of the solution's
// difficulty hash. Recomputed by the operator; never taken from the wire.
func (s Solution) Difficulty(challenge [ChallengeSize]byte) uint64 {
	return LeadingZeros(s.Hash(challenge))
}

// LeadingZeros counts leading zero bits of a 32-byte hash.
func LeadingZeros(h [32]byte) uint64 {
	var n uint64
	for _, b := range h {
		if b == 0 {
			n += 8
			continue
		}
		n += uint64(bits.LeadingZeros8(b))
		break
	}
	return n
}

// Score converts a difficulty into its contribution weight 2^difficulty,
// saturating at the top of the uint64 range.
func Score(difficulty uint64) uint64 {
	if difficulty > 63 {
		return math.MaxUint64
	}
	return 1 << difficulty
}

// Mine searches the nonce range [from, to] for a solution of at least
// minDifficulty. Used by tooling and tests; the operator itself never mines.
func Mine(challenge [ChallengeSize]byte, minDifficulty, from, to uint64) (Solution, bool) {
	for nonce := from; ; nonce++ {
		var nb [NonceSize]byte
		binary.LittleEndian.PutUint64(nb[:], nonce)
		s := Solution{Digest: Digest(challenge, nb), Nonce: nb}
		if s.Difficulty(challenge) >= minDifficulty {
			return s, true
		}
		if nonce == to {
			return Solution{}, false
		}
	}
}
