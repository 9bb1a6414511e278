// Package ore binds the on-chain mining and pool programs: account addresses,
// account layouts, instruction builders and the mine-event return data.
package ore

import (
	"github.com/gagliardetto/solana-go"

	"github.com/regolith-labs/ore-pool-sub000/params"
)

// PDA seeds, fixed by the on-chain programs.
var (
	poolSeed   = []byte("pool")
	memberSeed = []byte("member")
	proofSeed  = []byte("proof")
	configSeed = []byte("config")
)

// PoolAddress derives the pool account for an operator authority.
func PoolAddress(authority solana.PublicKey) (solana.PublicKey, uint8) {
	addr, bump, err := solana.FindProgramAddress(
		[][]byte{poolSeed, authority.Bytes()},
		params.PoolProgramID,
	)
	if err != nil {
		// Seeds are fixed; derivation cannot fail for a valid authority.
		panic(err)
	}
	return addr, bump
}

// MemberAddress derives the member account for a miner authority within a pool.
func MemberAddress(authority, pool solana.PublicKey) (solana.PublicKey, uint8) {
	addr, bump, err := solana.FindProgramAddress(
		[][]byte{memberSeed, authority.Bytes(), pool.Bytes()},
		params.PoolProgramID,
	)
	if err != nil {
		panic(err)
	}
	return addr, bump
}

// ProofAddress derives the mining proof account owned by the pool.
func ProofAddress(pool solana.PublicKey) (solana.PublicKey, uint8) {
	addr, bump, err := solana.FindProgramAddress(
		[][]byte{proofSeed, pool.Bytes()},
		params.OreProgramID,
	)
	if err != nil {
		panic(err)
	}
	return addr, bump
}

// ConfigAddress derives the global mining config account.
func ConfigAddress() (solana.PublicKey, uint8) {
	addr, bump, err := solana.FindProgramAddress(
		[][]byte{configSeed},
		params.OreProgramID,
	)
	if err != nil {
		panic(err)
	}
	return addr, bump
}
