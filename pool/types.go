// Package pool implements the off-chain coordinator for the mining pool: the
// per-round contribution aggregator, the admission filter, the challenge
// rotation and submission loop, and the attribution engine that streams
// member earnings back on-chain.
package pool

import (
	"github.com/gagliardetto/solana-go"

	"github.com/regolith-labs/ore-pool-sub000/ore"
	"github.com/regolith-labs/ore-pool-sub000/pow"
)

// Challenge is one mining round, immutable while active.
type Challenge struct {
	Challenge     [pow.ChallengeSize]byte
	LastHashAt    int64
	MinDifficulty uint64
	CutoffSeconds uint64
}

// Contribution is an accepted solution from one member. Score and difficulty
// are recomputed by the admission filter, never taken from the wire. Round is
// the last_hash_at of the challenge the solution was admitted against; the
// aggregator refuses contributions stamped for any other round.
type Contribution struct {
	Member     solana.PublicKey
	Round      int64
	Score      uint64
	Difficulty uint64
	Solution   pow.Solution
}

// Winner is the best contribution of a round.
type Winner struct {
	Solution   pow.Solution
	Difficulty uint64
}

// MiningEvent is the reconstructed outcome of one landed submission,
// keyed by the round's last_hash_at.
type MiningEvent struct {
	Signature     solana.Signature  `json:"signature"`
	Block         uint64            `json:"block"`
	Timestamp     int64             `json:"timestamp"`
	Raw           ore.MineEvent     `json:"mine_event"`
	MemberRewards map[string]uint64 `json:"member_rewards"`
	MemberScores  map[string]uint64 `json:"member_scores"`
}

// WebhookEvent is the raw chain-side payload delivered for a landed
// submission; Logs carries the transaction log messages.
type WebhookEvent struct {
	Signature solana.Signature
	Slot      uint64
	Timestamp int64
	Logs      []string
}

// ContributionRequest is the decoded, not yet admitted, wire payload.
type ContributionRequest struct {
	Authority solana.PublicKey
	Solution  pow.Solution
	Signature solana.Signature
}
