// Package params holds protocol constants for the pool operator.
package params

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Round timing. The chain resets the proof challenge once per minute; the
// operator stops accepting contributions OperatorBuffer seconds before the
// earliest moment the submission may land.
const (
	ChainTickSeconds = 60
	OperatorBuffer   = 5
)

// OperatorMinDifficulty is the floor the operator enforces regardless of the
// on-chain config. Contributions below max(on-chain, floor) are rejected.
const OperatorMinDifficulty = 7

// Aggregator sizing.
const (
	AttributionWindow   = 12  // challenges whose contributions may still be credited
	RecentEventsCap     = 100 // PoolMiningEvent LRU entries
	ContributionBacklog = 4096
)

// Submission and confirmation budgets.
const (
	SubmitAttempts   = 5
	SubmitRetryDelay = 2 * time.Second
	ConfirmAttempts  = 10
	ConfirmPollDelay = 2 * time.Second
	RotationAttempts = 5
	RotationDelay    = 2 * time.Second
)

// Attribution batching.
const (
	AttributeBatchSize  = 10
	ReconcileInterval   = 30 * time.Second
	ComputeUnitLimit    = 500_000
	ComputeUnitPrice    = 20_000 // micro-lamports per CU
	TipLamports         = 10_000
	MaxDevicesPerMember = 5
)

// OreProgramID is the proof-of-work program that owns proof accounts and pays
// out mining rewards.
var OreProgramID = solana.MustPublicKeyFromBase58("oreV2ZymfyeXgNgBdqMkumTqqAprVqgBWQfoYkrtKWQ")

// PoolProgramID is the delegated-pool program driven by this operator.
var PoolProgramID = solana.MustPublicKeyFromBase58("Poo1Program11111111111111111111111111111111")

// TipAccounts is the fixed set of tip destinations; the submission transaction
// transfers TipLamports to one of them picked at random.
var TipAccounts = []solana.PublicKey{
	solana.MustPublicKeyFromBase58("96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"),
	solana.MustPublicKeyFromBase58("HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe"),
	solana.MustPublicKeyFromBase58("Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY"),
	solana.MustPublicKeyFromBase58("ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49"),
	solana.MustPublicKeyFromBase58("DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh"),
	solana.MustPublicKeyFromBase58("ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt"),
	solana.MustPublicKeyFromBase58("DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL"),
	solana.MustPublicKeyFromBase58("3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT"),
}
