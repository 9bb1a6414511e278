package pool

import (
	"context"
	"math/big"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/compute-budget"

	"github.com/regolith-labs/ore-pool-sub000/database"
	"github.com/regolith-labs/ore-pool-sub000/ore"
	"github.com/regolith-labs/ore-pool-sub000/params"
)

// splitReward divides a round's net reward: the operator takes its commission
// plus the integer-division residual, members split the rest pro rata by
// score. Total paid always equals netReward exactly.
func splitReward(netReward, commission uint64, snap *RoundSnapshot) (rewards map[string]uint64, scores map[string]uint64, operator uint64) {
	rewards = make(map[string]uint64, len(snap.Contributions))
	scores = make(map[string]uint64, len(snap.Contributions))

	net := new(big.Int).SetUint64(netReward)
	operatorShare := new(big.Int).Div(
		new(big.Int).Mul(net, new(big.Int).SetUint64(commission)),
		big.NewInt(100),
	)
	distributable := new(big.Int).Sub(net, operatorShare)

	paid := new(big.Int)
	if snap.TotalScore > 0 {
		total := new(big.Int).SetUint64(snap.TotalScore)
		for _, c := range snap.Contributions {
			share := new(big.Int).Div(
				new(big.Int).Mul(distributable, new(big.Int).SetUint64(c.Score)),
				total,
			)
			auth := c.Member.String()
			rewards[auth] = share.Uint64()
			scores[auth] = c.Score
			paid.Add(paid, share)
		}
	}

	// Commission plus rounding residual.
	residual := new(big.Int).Sub(distributable, paid)
	operator = new(big.Int).Add(operatorShare, residual).Uint64()
	return rewards, scores, operator
}

// attribute credits a finalized round: persists per-member increments, credits
// the operator row, and caches the reconstructed mining event.
func (o *Operator) attribute(ctx context.Context, we *WebhookEvent, ev ore.MineEvent) error {
	o.mu.RLock()
	snap := o.window.get(ev.LastHashAt)
	o.mu.RUnlock()
	if snap == nil {
		o.log.Warn("mine event outside attribution window, dropped",
			"last_hash_at", ev.LastHashAt, "sig", we.Signature)
		eventsDropped.Inc()
		return nil
	}

	rewards, scores, operatorReward := splitReward(ev.NetReward, o.commission, snap)

	for _, c := range snap.Contributions {
		reward := rewards[c.Member.String()]
		addr := o.directory.memberAddress(c.Member)
		if err := o.directory.Credit(addr.String(), reward); err != nil {
			// Row stays uncredited; surfaced loudly, round is not retried.
			o.log.Error("member credit failed", "member", c.Member, "reward", reward, "err", err)
		}
	}
	operatorRow := o.directory.memberAddress(o.authority)
	if err := o.directory.Credit(operatorRow.String(), operatorReward); err != nil {
		o.log.Error("operator credit failed", "reward", operatorReward, "err", err)
	}

	event := &MiningEvent{
		Signature:     we.Signature,
		Block:         we.Slot,
		Timestamp:     we.Timestamp,
		Raw:           ev,
		MemberRewards: rewards,
		MemberScores:  scores,
	}
	o.mu.Lock()
	o.recentEvents.Add(ev.LastHashAt, event)
	o.lastEventKey = ev.LastHashAt
	o.mu.Unlock()

	o.log.Info("round attributed",
		"last_hash_at", ev.LastHashAt,
		"net_reward", ev.NetReward,
		"operator_reward", operatorReward,
		"members", len(rewards))
	return nil
}

// reconcileLoop streams unsynced balances on-chain on a fixed cadence.
func (o *Operator) reconcileLoop(ctx context.Context) error {
	ticker := time.NewTicker(params.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.ReconcileOnce(ctx); err != nil {
				o.log.Warn("reconciliation pass failed", "err", err)
			}
		}
	}
}

// ReconcileOnce drains the unsynced rows in bounded batches. Each batch is one
// transaction of up to AttributeBatchSize attribute instructions; rows are
// marked synced only after the transaction confirmed, so a failed batch is
// simply retried by a later pass. Replaying a confirmed batch is safe because
// attribute is idempotent on-chain over the monotonic total balance.
func (o *Operator) ReconcileOnce(ctx context.Context) error {
	for {
		rows, err := o.directory.Unsynced(params.AttributeBatchSize)
		if err != nil {
			return errInternal("unsynced query", err)
		}
		if len(rows) == 0 {
			return nil
		}

		ixs := []solana.Instruction{
			computebudget.NewSetComputeUnitLimitInstruction(params.ComputeUnitLimit).Build(),
			computebudget.NewSetComputeUnitPriceInstruction(params.ComputeUnitPrice).Build(),
		}
		for _, row := range rows {
			authority, err := solana.PublicKeyFromBase58(row.Authority)
			if err != nil {
				return errInternal("stored authority unparsable", err)
			}
			ixs = append(ixs, ore.NewAttributeInstruction(o.authority, authority, uint64(row.TotalBalance)))
		}

		sig, err := o.back.SendAndConfirm(ctx, func(blockhash solana.Hash) (*solana.Transaction, error) {
			tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(o.authority))
			if err != nil {
				return nil, err
			}
			if _, err := tx.Sign(o.signerFor); err != nil {
				return nil, err
			}
			return tx, nil
		})
		if err != nil {
			attributionFailures.Inc()
			return errTransient("attribute batch", err)
		}
		// Each row is marked synced only if its balance still equals the
		// total this batch streamed; a credit landing mid-flight leaves the
		// row unsynced for the next pass.
		if err := o.directory.MarkSynced(rows); err != nil {
			return errInternal("mark synced", err)
		}
		attributionBatches.Inc()
		o.log.Info("attribution batch landed", "sig", sig, "members", len(rows))
		if len(rows) < params.AttributeBatchSize {
			return nil
		}
	}
}

// CommitBalance validates, co-signs and lands a member-built transaction of
// the shape [compute budget..., attribute(authority, X)] with an optional
// trailing claim(authority, Y). X must equal the member's stored lifetime
// balance and the fee payer must not be the operator.
func (o *Operator) CommitBalance(ctx context.Context, authority solana.PublicKey, rawTx []byte) (uint64, solana.Signature, error) {
	member, err := o.directory.Get(authority)
	if err != nil {
		return 0, solana.Signature{}, err
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(rawTx))
	if err != nil {
		return 0, solana.Signature{}, errMalformed("transaction undecodable: %v", err)
	}
	if len(tx.Message.AccountKeys) == 0 {
		return 0, solana.Signature{}, errMalformed("transaction has no accounts")
	}
	if tx.Message.AccountKeys[0].Equals(o.authority) {
		return 0, solana.Signature{}, errProtocol("operator must not be the fee payer")
	}

	if err := o.checkCommitShape(tx, authority, uint64(member.TotalBalance)); err != nil {
		return 0, solana.Signature{}, err
	}

	if _, err := tx.PartialSign(o.signerFor); err != nil {
		return 0, solana.Signature{}, errInternal("co-sign", err)
	}
	sig, err := o.back.SendAndConfirm(ctx, func(solana.Hash) (*solana.Transaction, error) {
		// The member picked the blockhash; the transaction is sent as built.
		return tx, nil
	})
	if err != nil {
		return 0, solana.Signature{}, errTransient("commit transaction", err)
	}
	if err := o.directory.MarkSynced([]database.MemberRecord{*member}); err != nil {
		return 0, solana.Signature{}, errInternal("mark synced", err)
	}
	o.log.Info("balance committed", "member", authority, "total_balance", member.TotalBalance, "sig", sig)
	return uint64(member.TotalBalance), sig, nil
}

// checkCommitShape enforces the instruction layout of a commit transaction.
func (o *Operator) checkCommitShape(tx *solana.Transaction, authority solana.PublicKey, wantTotal uint64) error {
	expectedMember := o.directory.memberAddress(authority)

	sawAttribute := false
	sawClaim := false
	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(tx.Message.AccountKeys) {
			return errMalformed("instruction program index out of range")
		}
		program := tx.Message.AccountKeys[ix.ProgramIDIndex]

		switch {
		case program.Equals(computebudget.ProgramID):
			if sawAttribute || sawClaim {
				return errProtocol("compute budget instructions must lead")
			}
		case program.Equals(params.PoolProgramID):
			data := []byte(ix.Data)
			if total, ok := ore.ParseAttribute(data); ok {
				if sawAttribute || sawClaim {
					return errProtocol("unexpected extra pool instruction")
				}
				if total != wantTotal {
					return errProtocol("attribute total %d does not match stored balance %d", total, wantTotal)
				}
				if err := checkTouchesMember(tx, ix, expectedMember); err != nil {
					return err
				}
				sawAttribute = true
			} else if _, ok := ore.ParseClaim(data); ok {
				if !sawAttribute || sawClaim {
					return errProtocol("claim must follow attribute")
				}
				sawClaim = true
			} else {
				return errProtocol("unrecognized pool instruction")
			}
		default:
			return errProtocol("foreign program %s in commit transaction", program)
		}
	}
	if !sawAttribute {
		return errProtocol("missing attribute instruction")
	}
	return nil
}

// checkTouchesMember verifies the attribute instruction targets the caller's
// member account.
func checkTouchesMember(tx *solana.Transaction, ix solana.CompiledInstruction, member solana.PublicKey) error {
	for _, accIdx := range ix.Accounts {
		if int(accIdx) >= len(tx.Message.AccountKeys) {
			return errMalformed("instruction account index out of range")
		}
		if tx.Message.AccountKeys[accIdx].Equals(member) {
			return nil
		}
	}
	return errProtocol("attribute instruction does not touch caller's member account")
}
