// Package chain wraps the Solana RPC endpoint with the typed account reads and
// the transaction plumbing the pool operator needs. One blockhash is fetched
// per transaction attempt; retries always re-fetch.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/inconshreveable/log15"

	"github.com/regolith-labs/ore-pool-sub000/ore"
	"github.com/regolith-labs/ore-pool-sub000/params"
)

var log = log15.New("module", "chain")

// ErrAccountNotFound is returned for reads of accounts that do not exist.
var ErrAccountNotFound = errors.New("chain: account not found")

// ErrNotConfirmed is returned when a transaction did not reach confirmed
// commitment within the polling budget.
var ErrNotConfirmed = errors.New("chain: transaction not confirmed")

// Client is a typed wrapper over one RPC endpoint.
type Client struct {
	c *rpc.Client
}

// Dial connects a client to the given RPC URL.
func Dial(endpoint string) *Client {
	return &Client{c: rpc.New(endpoint)}
}

// NewClient wraps an existing RPC client.
func NewClient(c *rpc.Client) *Client {
	return &Client{c: c}
}

func (cl *Client) accountData(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	res, err := cl.c.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if res == nil || res.Value == nil {
		return nil, ErrAccountNotFound
	}
	return res.Value.Data.GetBinary(), nil
}

// Proof reads the pool's mining proof account.
func (cl *Client) Proof(ctx context.Context, pool solana.PublicKey) (ore.Proof, error) {
	addr, _ := ore.ProofAddress(pool)
	data, err := cl.accountData(ctx, addr)
	if err != nil {
		return ore.Proof{}, err
	}
	return ore.DecodeProof(data)
}

// Config reads the global mining config account.
func (cl *Client) Config(ctx context.Context) (ore.Config, error) {
	addr, _ := ore.ConfigAddress()
	data, err := cl.accountData(ctx, addr)
	if err != nil {
		return ore.Config{}, err
	}
	return ore.DecodeConfig(data)
}

// Pool reads the pool account for an operator authority.
func (cl *Client) Pool(ctx context.Context, authority solana.PublicKey) (ore.Pool, error) {
	addr, _ := ore.PoolAddress(authority)
	data, err := cl.accountData(ctx, addr)
	if err != nil {
		return ore.Pool{}, err
	}
	return ore.DecodePool(data)
}

// Member reads a member account by miner authority.
func (cl *Client) Member(ctx context.Context, authority, pool solana.PublicKey) (ore.Member, error) {
	addr, _ := ore.MemberAddress(authority, pool)
	data, err := cl.accountData(ctx, addr)
	if err != nil {
		return ore.Member{}, err
	}
	return ore.DecodeMember(data)
}

// LatestBlockhash fetches a fresh blockhash at confirmed commitment.
func (cl *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	res, err := cl.c.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, err
	}
	return res.Value.Blockhash, nil
}

// Send submits a signed transaction without waiting for confirmation.
func (cl *Client) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return cl.c.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
}

// Confirm polls signature status until confirmed commitment or the polling
// budget runs out.
func (cl *Client) Confirm(ctx context.Context, sig solana.Signature) error {
	for i := 0; i < params.ConfirmAttempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(params.ConfirmPollDelay):
		}
		res, err := cl.c.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			log.Warn("signature status fetch failed", "sig", sig, "err", err)
			continue
		}
		if len(res.Value) == 0 || res.Value[0] == nil {
			continue
		}
		status := res.Value[0]
		if status.Err != nil {
			return fmt.Errorf("chain: transaction %s failed: %v", sig, status.Err)
		}
		switch status.ConfirmationStatus {
		case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
			return nil
		}
	}
	return ErrNotConfirmed
}

// SendAndConfirm runs the build-sign-send-confirm cycle with bounded retries.
// build receives a fresh blockhash on every attempt.
func (cl *Client) SendAndConfirm(ctx context.Context, build func(blockhash solana.Hash) (*solana.Transaction, error)) (solana.Signature, error) {
	var lastErr error
	for attempt := 0; attempt < params.SubmitAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return solana.Signature{}, ctx.Err()
			case <-time.After(params.SubmitRetryDelay):
			}
		}
		blockhash, err := cl.LatestBlockhash(ctx)
		if err != nil {
			lastErr = err
			log.Warn("blockhash fetch failed", "attempt", attempt+1, "err", err)
			continue
		}
		tx, err := build(blockhash)
		if err != nil {
			return solana.Signature{}, err
		}
		sig, err := cl.Send(ctx, tx)
		if err != nil {
			lastErr = err
			log.Warn("transaction send failed", "attempt", attempt+1, "err", err)
			continue
		}
		if err := cl.Confirm(ctx, sig); err != nil {
			lastErr = err
			log.Warn("transaction not confirmed", "sig", sig, "attempt", attempt+1, "err", err)
			continue
		}
		return sig, nil
	}
	return solana.Signature{}, fmt.Errorf("chain: send retries exhausted: %w", lastErr)
}
