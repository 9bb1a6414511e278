package pool

import (
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/sha3"

	"github.com/regolith-labs/ore-pool-sub000/pow"
)

func contrib(member solana.PublicKey, difficulty uint64, nonce uint64) *Contribution {
	return &Contribution{
		Member:     member,
		Round:      100,
		Score:      pow.Score(difficulty),
		Difficulty: difficulty,
		Solution:   pow.NewSolution([16]byte{byte(nonce)}, nonce),
	}
}

func newTestRound(t *testing.T, numMembers uint64) *Aggregator {
	t.Helper()
	a := NewAggregator()
	a.Install(Challenge{LastHashAt: 100, MinDifficulty: 1, CutoffSeconds: 55}, numMembers)
	return a
}

// TestAggregatorUniquePerMember: one contribution per member per round; later
// arrivals from the same authority are dropped even at higher difficulty.
func TestAggregatorUniquePerMember(t *testing.T) {
	a := newTestRound(t, 2)
	m := solana.NewWallet().PublicKey()

	if !a.Insert(contrib(m, 12, 1)) {
		t.Fatal("first insert rejected")
	}
	if a.Insert(contrib(m, 14, 2)) {
		t.Fatal("duplicate insert accepted")
	}
	if a.Len() != 1 {
		t.Fatalf("len = %d, want 1", a.Len())
	}
	if w := a.Winner(); w == nil || w.Difficulty != 12 {
		t.Fatalf("winner = %+v, want difficulty 12", w)
	}
	if a.TotalScore() != pow.Score(12) {
		t.Fatalf("total score = %d, want %d", a.TotalScore(), pow.Score(12))
	}
}

// TestAggregatorWinnerSelection: strictly greater difficulty replaces the
// winner; an equal difficulty keeps the earlier contribution.
func TestAggregatorWinnerSelection(t *testing.T) {
	a := newTestRound(t, 4)
	m1 := solana.NewWallet().PublicKey()
	m2 := solana.NewWallet().PublicKey()
	m3 := solana.NewWallet().PublicKey()

	c1 := contrib(m1, 10, 1)
	a.Insert(c1)
	if w := a.Winner(); w.Difficulty != 10 {
		t.Fatalf("winner difficulty = %d, want 10", w.Difficulty)
	}

	// Equal difficulty does not displace the incumbent.
	a.Insert(contrib(m2, 10, 2))
	if w := a.Winner(); w.Solution != c1.Solution {
		t.Fatal("tie displaced the earlier winner")
	}

	c3 := contrib(m3, 11, 3)
	a.Insert(c3)
	if w := a.Winner(); w.Solution != c3.Solution || w.Difficulty != 11 {
		t.Fatal("higher difficulty did not take the win")
	}

	want := pow.Score(10) + pow.Score(10) + pow.Score(11)
	if a.TotalScore() != want {
		t.Fatalf("total score = %d, want %d", a.TotalScore(), want)
	}
}

// TestAggregatorClosedRejects: no inserts before the first install or after
// the cutoff snapshot.
func TestAggregatorClosedRejects(t *testing.T) {
	a := NewAggregator()
	if a.Insert(contrib(solana.NewWallet().PublicKey(), 9, 1)) {
		t.Fatal("insert accepted before first install")
	}

	a.Install(Challenge{LastHashAt: 100}, 1)
	a.Snapshot()
	if a.Insert(contrib(solana.NewWallet().PublicKey(), 9, 1)) {
		t.Fatal("insert accepted after snapshot")
	}
}

// TestAggregatorRejectsStaleRound: a contribution stamped for an earlier round
// never enters the one currently installed.
func TestAggregatorRejectsStaleRound(t *testing.T) {
	a := newTestRound(t, 2)
	stale := contrib(solana.NewWallet().PublicKey(), 9, 1)
	a.Install(Challenge{LastHashAt: 200, MinDifficulty: 1}, 2)

	if a.Insert(stale) {
		t.Fatal("stale-round contribution accepted")
	}
	if a.Len() != 0 || a.Winner() != nil || a.TotalScore() != 0 {
		t.Fatal("stale-round contribution mutated the aggregator")
	}

	fresh := contrib(solana.NewWallet().PublicKey(), 9, 2)
	fresh.Round = 200
	if !a.Insert(fresh) {
		t.Fatal("current-round contribution rejected")
	}
}

// TestAttestationInsertionOrder recomputes the attestation by hand in the
// accepted order and checks ordering sensitivity.
func TestAttestationInsertionOrder(t *testing.T) {
	a := newTestRound(t, 2)
	m1 := solana.NewWallet().PublicKey()
	m2 := solana.NewWallet().PublicKey()
	c1 := contrib(m1, 9, 41)
	c2 := contrib(m2, 10, 42)
	a.Insert(c1)
	a.Insert(c2)

	h := sha3.New256()
	for _, c := range []*Contribution{c1, c2} {
		fmt.Fprintf(h, "%s %x %d\n", c.Member.String(), c.Solution.Digest, c.Solution.NonceUint64())
	}
	var want [32]byte
	copy(want[:], h.Sum(nil))

	if got := a.Attestation(); got != want {
		t.Fatalf("attestation mismatch: %x != %x", got, want)
	}

	// Reversed order yields a different commitment.
	b := newTestRound(t, 2)
	b.Insert(c2)
	b.Insert(c1)
	if b.Attestation() == want {
		t.Fatal("attestation insensitive to insertion order")
	}
}

// TestSnapshotFreezesRound: the snapshot carries contributions in order, the
// winner, the total score and the attestation; installing the next round
// resets everything.
func TestSnapshotFreezesRound(t *testing.T) {
	a := newTestRound(t, 2)
	m1 := solana.NewWallet().PublicKey()
	m2 := solana.NewWallet().PublicKey()
	a.Insert(contrib(m1, 9, 1))
	a.Insert(contrib(m2, 13, 2))

	att := a.Attestation()
	snap := a.Snapshot()
	if len(snap.Contributions) != 2 || snap.Contributions[0].Member != m1 {
		t.Fatal("snapshot lost contribution order")
	}
	if snap.Winner == nil || snap.Winner.Difficulty != 13 {
		t.Fatal("snapshot lost winner")
	}
	if snap.Attestation != att {
		t.Fatal("snapshot attestation mismatch")
	}

	a.Install(Challenge{LastHashAt: 200}, 5)
	if a.Len() != 0 || a.Winner() != nil || a.TotalScore() != 0 {
		t.Fatal("install did not reset state")
	}
	if a.NumMembers() != 5 {
		t.Fatalf("num members = %d, want 5", a.NumMembers())
	}
}

// TestWindowEviction: the attribution window retains the last N rounds only.
func TestWindowEviction(t *testing.T) {
	w := newWindow(3)
	for i := int64(1); i <= 4; i++ {
		w.push(i, &RoundSnapshot{Challenge: Challenge{LastHashAt: i}})
	}
	if w.len() != 3 {
		t.Fatalf("window len = %d, want 3", w.len())
	}
	if w.contains(1) {
		t.Fatal("oldest bucket not evicted")
	}
	for i := int64(2); i <= 4; i++ {
		if !w.contains(i) {
			t.Fatalf("bucket %d missing", i)
		}
	}

	// Re-pushing an existing key refreshes without eviction.
	w.push(4, &RoundSnapshot{TotalScore: 9})
	if w.len() != 3 || w.get(4).TotalScore != 9 {
		t.Fatal("re-push did not refresh in place")
	}
}
