package pool

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/regolith-labs/ore-pool-sub000/ore"
)

func TestCutoff(t *testing.T) {
	tests := []struct {
		name       string
		lastHashAt int64
		now        int64
		want       uint64
	}{
		{"round just started", 1000, 1000, 55},
		{"mid round", 1000, 1030, 25},
		{"at deadline", 1000, 1055, 0},
		{"past deadline", 1000, 1100, 0},
		{"one second left", 1000, 1054, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cutoff(tt.lastHashAt, tt.now); got != tt.want {
				t.Errorf("Cutoff(%d, %d) = %d, want %d", tt.lastHashAt, tt.now, got, tt.want)
			}
		})
	}
}

// TestCurrentAppliesDifficultyFloor: the served minimum difficulty is the max
// of the network config and the operator floor.
func TestCurrentAppliesDifficultyFloor(t *testing.T) {
	back := &fakeBackend{
		proofs: []ore.Proof{{Challenge: testChallenge, LastHashAt: 1000}},
		config: ore.Config{MinDifficulty: 3},
	}
	r := NewReader(back, solana.PublicKey{}, 7)
	r.now = func() int64 { return 1000 }

	ch, err := r.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if ch.MinDifficulty != 7 {
		t.Fatalf("min difficulty = %d, want operator floor 7", ch.MinDifficulty)
	}
	if ch.CutoffSeconds != 55 {
		t.Fatalf("cutoff = %d, want 55", ch.CutoffSeconds)
	}
	if ch.Challenge != testChallenge || ch.LastHashAt != 1000 {
		t.Fatalf("challenge = %+v", ch)
	}

	// A network minimum above the floor wins.
	back.config.MinDifficulty = 9
	back.proofIdx = 0
	ch, err = r.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if ch.MinDifficulty != 9 {
		t.Fatalf("min difficulty = %d, want network minimum 9", ch.MinDifficulty)
	}
}

// TestAwaitRotation: stale reads are retried until last_hash_at advances.
func TestAwaitRotation(t *testing.T) {
	back := &fakeBackend{
		proofs: []ore.Proof{
			{Challenge: testChallenge, LastHashAt: 1000},
			{Challenge: [32]byte{2}, LastHashAt: 1060},
		},
	}
	r := NewReader(back, solana.PublicKey{}, 0)
	r.now = func() int64 { return 1060 }
	r.delay = time.Millisecond

	ch, err := r.AwaitRotation(context.Background(), 1000)
	if err != nil {
		t.Fatalf("AwaitRotation: %v", err)
	}
	if ch.LastHashAt != 1060 {
		t.Fatalf("last_hash_at = %d, want 1060", ch.LastHashAt)
	}
}

// TestAwaitRotationExhausts: a chain that never rotates yields a transient
// error after the retry budget.
func TestAwaitRotationExhausts(t *testing.T) {
	back := &fakeBackend{
		proofs: []ore.Proof{{Challenge: testChallenge, LastHashAt: 1000}},
	}
	r := NewReader(back, solana.PublicKey{}, 0)
	r.delay = time.Millisecond

	_, err := r.AwaitRotation(context.Background(), 1000)
	if ErrKind(err) != KindChainTransient {
		t.Fatalf("err = %v, want chain transient", err)
	}
}
