package pool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/sha3"
)

// Aggregator accumulates the unique contributions of one round and tracks the
// running winner and total score. It is not safe for concurrent use; the
// Operator serializes access through its round lock.
type Aggregator struct {
	challenge  Challenge
	numMembers uint64

	contributions map[solana.PublicKey]*Contribution
	order         []solana.PublicKey // insertion order, fixed for attestation
	winner        *Winner
	totalScore    uint64

	closed bool // set between cutoff and the next install
}

// NewAggregator returns an aggregator with no round installed; inserts are
// rejected until the first Install.
func NewAggregator() *Aggregator {
	return &Aggregator{
		contributions: make(map[solana.PublicKey]*Contribution),
		closed:        true,
	}
}

// Install binds the aggregator to a new round and resets all accumulated
// state. numMembers is the member-count snapshot the nonce partition uses for
// the whole lifetime of this round.
func (a *Aggregator) Install(ch Challenge, numMembers uint64) {
	a.challenge = ch
	a.numMembers = numMembers
	a.contributions = make(map[solana.PublicKey]*Contribution)
	a.order = a.order[:0]
	a.winner = nil
	a.totalScore = 0
	a.closed = false
}

// Close stops further inserts until the next Install. Called at cutoff so
// that late contributions cannot race the in-flight submission.
func (a *Aggregator) Close() {
	a.closed = true
}

// Closed reports whether the aggregator is between rounds.
func (a *Aggregator) Closed() bool { return a.closed }

// Challenge returns the installed round.
func (a *Aggregator) Challenge() Challenge { return a.challenge }

// NumMembers returns the member-count snapshot taken at install time.
func (a *Aggregator) NumMembers() uint64 { return a.numMembers }

// TotalScore returns the sum of accepted contribution scores.
func (a *Aggregator) TotalScore() uint64 { return a.totalScore }

// Len returns the number of accepted contributions.
func (a *Aggregator) Len() int { return len(a.contributions) }

// Winner returns the current best contribution, or nil.
func (a *Aggregator) Winner() *Winner {
	if a.winner == nil {
		return nil
	}
	w := *a.winner
	return &w
}

// Insert adds a contribution to the round. One contribution per member: a
// second solution from the same authority is dropped regardless of score.
// A contribution stamped for a different round is dropped too; an admitted
// solution still queued when the round rotates must never leak into the next
// one, where its solution would be invalid. A strictly greater difficulty
// replaces the winner; on ties the earlier contribution stands so the
// attestation and the winner agree.
func (a *Aggregator) Insert(c *Contribution) bool {
	if a.closed {
		return false
	}
	if c.Round != a.challenge.LastHashAt {
		return false
	}
	if _, ok := a.contributions[c.Member]; ok {
		return false
	}
	a.contributions[c.Member] = c
	a.order = append(a.order, c.Member)
	a.totalScore += c.Score
	if a.winner == nil || c.Difficulty > a.winner.Difficulty {
		a.winner = &Winner{Solution: c.Solution, Difficulty: c.Difficulty}
	}
	return true
}

// Attestation hashes the accepted contributions in insertion order:
// SHA3-256 over one "{authority} {digest_hex} {nonce}\n" line per
// contribution. The ordering is part of the on-chain commitment.
func (a *Aggregator) Attestation() [32]byte {
	h := sha3.New256()
	for _, member := range a.order {
		c := a.contributions[member]
		fmt.Fprintf(h, "%s %x %d\n", member.String(), c.Solution.Digest, c.Solution.NonceUint64())
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// RoundSnapshot is the frozen outcome of a round, taken at cutoff.
type RoundSnapshot struct {
	Challenge     Challenge
	Contributions []*Contribution // accepted order
	Winner        *Winner
	TotalScore    uint64
	Attestation   [32]byte
}

// Snapshot freezes the current round and closes the aggregator. The caller
// installs the next round once rotation has completed.
func (a *Aggregator) Snapshot() *RoundSnapshot {
	snap := &RoundSnapshot{
		Challenge:     a.challenge,
		Contributions: make([]*Contribution, 0, len(a.order)),
		Winner:        a.Winner(),
		TotalScore:    a.totalScore,
		Attestation:   a.Attestation(),
	}
	for _, member := range a.order {
		snap.Contributions = append(snap.Contributions, a.contributions[member])
	}
	a.Close()
	return snap
}
