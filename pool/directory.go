package pool

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/inconshreveable/log15"

	"github.com/regolith-labs/ore-pool-sub000/chain"
	"github.com/regolith-labs/ore-pool-sub000/database"
	"github.com/regolith-labs/ore-pool-sub000/ore"
)

// MemberStore is the durable half of the member directory.
type MemberStore interface {
	Member(address string) (*database.MemberRecord, error)
	InsertMember(rec *database.MemberRecord) error
	IncrementTotalBalance(address string, delta uint64) error
	MarkSynced(rows []database.MemberRecord) error
	UnsyncedMembers(limit int) ([]database.MemberRecord, error)
}

// Backend is the subset of the chain client the coordinator consumes.
type Backend interface {
	Proof(ctx context.Context, pool solana.PublicKey) (ore.Proof, error)
	Config(ctx context.Context) (ore.Config, error)
	Pool(ctx context.Context, authority solana.PublicKey) (ore.Pool, error)
	Member(ctx context.Context, authority, pool solana.PublicKey) (ore.Member, error)
	SendAndConfirm(ctx context.Context, build func(blockhash solana.Hash) (*solana.Transaction, error)) (solana.Signature, error)
}

// Directory maps miner authorities to member rows. The database is the source
// of truth; the chain is consulted only to admit members it already knows.
type Directory struct {
	store MemberStore
	back  Backend

	authority solana.PublicKey // operator authority
	pool      solana.PublicKey // pool PDA
	log       log15.Logger
}

// NewDirectory builds a directory for the pool derived from the operator
// authority.
func NewDirectory(store MemberStore, back Backend, authority solana.PublicKey) *Directory {
	pool, _ := ore.PoolAddress(authority)
	return &Directory{
		store:     store,
		back:      back,
		authority: authority,
		pool:      pool,
		log:       log15.New("module", "directory"),
	}
}

// PoolAddress returns the pool PDA the directory is bound to.
func (d *Directory) PoolAddress() solana.PublicKey { return d.pool }

// memberAddress derives the member PDA for an authority within this pool.
func (d *Directory) memberAddress(authority solana.PublicKey) solana.PublicKey {
	addr, _ := ore.MemberAddress(authority, d.pool)
	return addr
}

// Get returns the locally known member row for an authority.
func (d *Directory) Get(authority solana.PublicKey) (*database.MemberRecord, error) {
	rec, err := d.store.Member(d.memberAddress(authority).String())
	if errors.Is(err, database.ErrMemberNotFound) {
		return nil, errNotFound("member %s unknown", authority)
	}
	if err != nil {
		return nil, errInternal("member lookup", err)
	}
	return rec, nil
}

// GetOrRegister returns the member row, importing it from the chain when it is
// absent locally. The operator never creates the on-chain account: a miner
// whose member account does not exist yet must create it first, so ids stay
// chain-assigned and collision free.
func (d *Directory) GetOrRegister(ctx context.Context, authority solana.PublicKey) (*database.MemberRecord, error) {
	addr := d.memberAddress(authority)
	rec, err := d.store.Member(addr.String())
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, database.ErrMemberNotFound) {
		return nil, errInternal("member lookup", err)
	}

	onchain, err := d.back.Member(ctx, authority, d.pool)
	if errors.Is(err, chain.ErrAccountNotFound) {
		return nil, errNotFound("member %s does not exist", authority)
	}
	if err != nil {
		return nil, errTransient("member account read", err)
	}

	// Seed the local row from chain state so the first reconciliation pass
	// has nothing to re-attribute.
	rec = &database.MemberRecord{
		Address:      addr.String(),
		MemberID:     int64(onchain.ID),
		Authority:    authority.String(),
		PoolAddress:  d.pool.String(),
		TotalBalance: int64(onchain.TotalBalance),
		IsApproved:   false,
		IsKYC:        false,
		IsSynced:     true,
	}
	if err := d.store.InsertMember(rec); err != nil {
		return nil, errInternal("member insert", err)
	}
	d.log.Info("registered member", "authority", authority, "id", rec.MemberID)
	return rec, nil
}

// Credit adds delta to the member's lifetime balance and flags the row for
// reconciliation. Lifetime balances only ever grow.
func (d *Directory) Credit(address string, delta uint64) error {
	if delta == 0 {
		return nil
	}
	return d.store.IncrementTotalBalance(address, delta)
}

// MarkSynced records that a batch of rows landed on-chain, guarded by the
// balance each row carried when the batch was built.
func (d *Directory) MarkSynced(rows []database.MemberRecord) error {
	return d.store.MarkSynced(rows)
}

// Unsynced returns up to limit rows awaiting on-chain attribution.
func (d *Directory) Unsynced(limit int) ([]database.MemberRecord, error) {
	return d.store.UnsyncedMembers(limit)
}
