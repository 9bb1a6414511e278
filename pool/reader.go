package pool

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/inconshreveable/log15"

	"github.com/regolith-labs/ore-pool-sub000/params"
)

// Reader derives the current round from on-chain proof state.
type Reader struct {
	back Backend
	pool solana.PublicKey

	floor uint64 // operator minimum difficulty
	now   func() int64
	delay time.Duration // rotation poll interval
	log   log15.Logger
}

// NewReader builds a challenge reader for a pool PDA.
func NewReader(back Backend, pool solana.PublicKey, floor uint64) *Reader {
	return &Reader{
		back:  back,
		pool:  pool,
		floor: floor,
		now:   func() int64 { return time.Now().Unix() },
		delay: params.RotationDelay,
		log:   log15.New("module", "reader"),
	}
}

// Cutoff returns the seconds left to accept contributions for a round that
// started at lastHashAt: the chain tick minus the operator buffer, floored
// at zero.
func Cutoff(lastHashAt, now int64) uint64 {
	deadline := lastHashAt + params.ChainTickSeconds - params.OperatorBuffer
	if deadline <= now {
		return 0
	}
	return uint64(deadline - now)
}

// Current reads the proof and config and derives the active challenge.
func (r *Reader) Current(ctx context.Context) (Challenge, error) {
	proof, err := r.back.Proof(ctx, r.pool)
	if err != nil {
		return Challenge{}, errTransient("proof read", err)
	}
	cfg, err := r.back.Config(ctx)
	if err != nil {
		return Challenge{}, errTransient("config read", err)
	}
	minDifficulty := cfg.MinDifficulty
	if r.floor > minDifficulty {
		minDifficulty = r.floor
	}
	return Challenge{
		Challenge:     proof.Challenge,
		LastHashAt:    proof.LastHashAt,
		MinDifficulty: minDifficulty,
		CutoffSeconds: Cutoff(proof.LastHashAt, r.now()),
	}, nil
}

// AwaitRotation polls the proof until last_hash_at advances past prev, with a
// bounded retry budget. The returned challenge is the freshly rotated round.
func (r *Reader) AwaitRotation(ctx context.Context, prev int64) (Challenge, error) {
	for attempt := 0; attempt < params.RotationAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Challenge{}, ctx.Err()
			case <-time.After(r.delay):
			}
		}
		ch, err := r.Current(ctx)
		if err != nil {
			r.log.Warn("rotation poll failed", "attempt", attempt+1, "err", err)
			continue
		}
		if ch.LastHashAt > prev {
			return ch, nil
		}
	}
	return Challenge{}, errTransient("challenge did not rotate", nil)
}
