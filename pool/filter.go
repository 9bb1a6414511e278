package pool

import (
	"math"

	"github.com/regolith-labs/ore-pool-sub000/pow"
)

// Admit validates a decoded contribution against the current round. Checks
// run in a fixed order: signature, recomputed difficulty, digest validity,
// nonce partition, member status. Nothing from the wire is trusted beyond the
// raw solution bytes; score and difficulty are always recomputed.
func (o *Operator) Admit(req *ContributionRequest) (*Contribution, error) {
	if !req.Signature.Verify(req.Authority, req.Solution.Bytes()) {
		contributionsRejected.WithLabelValues("signature").Inc()
		return nil, errAuth("signature does not match authority %s", req.Authority)
	}

	member, err := o.directory.Get(req.Authority)
	if err != nil {
		contributionsRejected.WithLabelValues("unknown_member").Inc()
		return nil, err
	}

	o.mu.RLock()
	ch := o.agg.Challenge()
	numMembers := o.agg.NumMembers()
	closed := o.agg.Closed()
	_, duplicate := o.agg.contributions[req.Authority]
	o.mu.RUnlock()

	if closed {
		contributionsRejected.WithLabelValues("round_closed").Inc()
		return nil, errProtocol("round closed, rotation in progress")
	}
	if duplicate {
		o.log.Info("duplicate contribution dropped", "member", req.Authority)
		contributionsRejected.WithLabelValues("duplicate").Inc()
		return nil, errProtocol("one contribution per member per round")
	}

	difficulty := req.Solution.Difficulty(ch.Challenge)
	if difficulty < ch.MinDifficulty {
		contributionsRejected.WithLabelValues("difficulty").Inc()
		return nil, errProtocol("difficulty %d below minimum %d", difficulty, ch.MinDifficulty)
	}
	if !req.Solution.IsValid(ch.Challenge) {
		contributionsRejected.WithLabelValues("digest").Inc()
		return nil, errProtocol("digest does not derive from challenge and nonce")
	}

	// Nonce partition: each member id owns a disjoint slice of the u64
	// space so two members cannot mine the same nonce. Skipped while the
	// pool has no registered members on-chain.
	if numMembers > 0 {
		unit := math.MaxUint64 / numMembers
		lo := uint64(member.MemberID) * unit
		hi := lo + unit
		if hi < lo {
			// Tail of the space, or a member registered after the count
			// snapshot: saturate instead of wrapping to an empty slice.
			hi = math.MaxUint64
		}
		nonce := req.Solution.NonceUint64()
		if nonce < lo || nonce > hi {
			contributionsRejected.WithLabelValues("partition").Inc()
			return nil, errAuth("nonce %d outside partition [%d, %d] of member %d", nonce, lo, hi, member.MemberID)
		}
	}

	if !member.IsApproved {
		contributionsRejected.WithLabelValues("unapproved").Inc()
		return nil, errAuth("member %s is not approved", req.Authority)
	}

	return &Contribution{
		Member:     req.Authority,
		Round:      ch.LastHashAt,
		Score:      pow.Score(difficulty),
		Difficulty: difficulty,
		Solution:   req.Solution,
	}, nil
}
