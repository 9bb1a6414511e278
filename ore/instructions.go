package ore

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/regolith-labs/ore-pool-sub000/params"
	"github.com/regolith-labs/ore-pool-sub000/pow"
)

// Pool program instruction tags (first data byte).
const (
	InstrJoin      = 0
	InstrClaim     = 1
	InstrAttribute = 2
	InstrSubmit    = 3
)

// NewSubmitInstruction posts the winning solution and the contribution
// attestation on behalf of the pool. The operator authority must sign.
func NewSubmitInstruction(authority solana.PublicKey, sol pow.Solution, attestation [32]byte) solana.Instruction {
	pool, _ := PoolAddress(authority)
	proof, _ := ProofAddress(pool)
	config, _ := ConfigAddress()

	data := make([]byte, 0, 1+32+pow.SolutionSize)
	data = append(data, InstrSubmit)
	data = append(data, attestation[:]...)
	data = append(data, sol.Digest[:]...)
	data = append(data, sol.Nonce[:]...)

	return solana.NewInstruction(
		params.PoolProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(authority, true, true),
			solana.NewAccountMeta(pool, true, false),
			solana.NewAccountMeta(proof, true, false),
			solana.NewAccountMeta(config, false, false),
			solana.NewAccountMeta(params.OreProgramID, false, false),
			solana.NewAccountMeta(solana.SysVarSlotHashesPubkey, false, false),
		},
		data,
	)
}

// NewAttributeInstruction advances a member's on-chain lifetime balance to
// totalBalance. Idempotent on-chain: the program credits
// max(0, totalBalance - stored_total).
func NewAttributeInstruction(authority, memberAuthority solana.PublicKey, totalBalance uint64) solana.Instruction {
	pool, _ := PoolAddress(authority)
	member, _ := MemberAddress(memberAuthority, pool)

	data := make([]byte, 1+8)
	data[0] = InstrAttribute
	binary.LittleEndian.PutUint64(data[1:], totalBalance)

	return solana.NewInstruction(
		params.PoolProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(authority, false, true),
			solana.NewAccountMeta(pool, true, false),
			solana.NewAccountMeta(member, true, false),
		},
		data,
	)
}

// ParseAttribute extracts the total balance from attribute instruction data.
func ParseAttribute(data []byte) (uint64, bool) {
	if len(data) != 1+8 || data[0] != InstrAttribute {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data[1:]), true
}

// ParseClaim extracts the claim amount from claim instruction data.
func ParseClaim(data []byte) (uint64, bool) {
	if len(data) != 1+8 || data[0] != InstrClaim {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data[1:]), true
}
