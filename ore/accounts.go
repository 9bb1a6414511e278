package ore

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Account discriminators. Every program account starts with an 8-byte
// little-endian tag identifying its type.
const (
	discriminatorLen = 8

	ProofDiscriminator  = 102
	ConfigDiscriminator = 100
	PoolDiscriminator   = 100
	MemberDiscriminator = 101
)

var errAccountTooShort = errors.New("ore: account data too short")

// Proof is the mining state of the pool on the mining program. The challenge
// and last_hash_at drive round rotation.
type Proof struct {
	Authority    solana.PublicKey
	Balance      uint64
	Challenge    [32]byte
	LastHash     [32]byte
	LastHashAt   int64
	LastStakeAt  int64
	Miner        solana.PublicKey
	TotalHashes  uint64
	TotalRewards uint64
}

// Config is the global mining program config; the operator only consumes the
// network minimum difficulty.
type Config struct {
	BaseRewardRate   uint64
	LastEpochAt      int64
	MinDifficulty    uint64
	TopBalance       uint64
	TotalSubmissions uint64
}

// Pool is the pool program account for one operator.
type Pool struct {
	Authority        solana.PublicKey
	URL              [128]byte
	Attestation      [32]byte
	Bump             uint64
	LastTotalMembers uint64
	LastHashAt       int64
	TotalMembers     uint64
	TotalSubmissions uint64
	TotalRewards     uint64
}

// Member is the pool program account for one miner.
type Member struct {
	Authority    solana.PublicKey
	Balance      uint64
	ID           uint64
	Pool         solana.PublicKey
	TotalBalance uint64
}

// decodeAccount strips the discriminator and bin-decodes the fixed layout.
func decodeAccount(data []byte, disc uint64, v interface{}) error {
	if len(data) < discriminatorLen {
		return errAccountTooShort
	}
	got := bin.LE.Uint64(data[:discriminatorLen])
	if got != disc {
		return fmt.Errorf("ore: account discriminator mismatch: have %d, want %d", got, disc)
	}
	return bin.NewBinDecoder(data[discriminatorLen:]).Decode(v)
}

// DecodeProof parses a proof account.
func DecodeProof(data []byte) (Proof, error) {
	var p Proof
	err := decodeAccount(data, ProofDiscriminator, &p)
	return p, err
}

// DecodeConfig parses the mining config account.
func DecodeConfig(data []byte) (Config, error) {
	var c Config
	err := decodeAccount(data, ConfigDiscriminator, &c)
	return c, err
}

// DecodePool parses a pool account.
func DecodePool(data []byte) (Pool, error) {
	var p Pool
	err := decodeAccount(data, PoolDiscriminator, &p)
	return p, err
}

// DecodeMember parses a member account.
func DecodeMember(data []byte) (Member, error) {
	var m Member
	err := decodeAccount(data, MemberDiscriminator, &m)
	return m, err
}
