// Package database persists pool membership in a relational store. The
// members table is the source of truth for balances; every mutation writes
// through before returning, and total_balance updates are strictly additive.
package database

import (
	"errors"

	"github.com/inconshreveable/log15"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
)

var log = log15.New("module", "database")

// ErrMemberNotFound is returned for lookups of unknown members.
var ErrMemberNotFound = errors.New("database: member not found")

// MemberRecord is one row of the members table. Address is the member PDA and
// is unique; id is the dense chain-assigned member id, immutable after insert.
type MemberRecord struct {
	Address      string `gorm:"column:address;primary_key" json:"address"`
	MemberID     int64  `gorm:"column:id" json:"id"`
	Authority    string `gorm:"column:authority" json:"authority"`
	PoolAddress  string `gorm:"column:pool_address" json:"pool_address"`
	TotalBalance int64  `gorm:"column:total_balance" json:"total_balance"`
	IsApproved   bool   `gorm:"column:is_approved" json:"is_approved"`
	IsKYC        bool   `gorm:"column:is_kyc" json:"is_kyc"`
	IsSynced     bool   `gorm:"column:is_synced" json:"is_synced"`
}

// TableName pins the table name regardless of gorm pluralization rules.
func (MemberRecord) TableName() string { return "members" }

// Store wraps the members table.
type Store struct {
	db *gorm.DB
}

// Open connects to the database at url and ensures the members table exists.
func Open(url string) (*Store, error) {
	db, err := gorm.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	db.SetLogger(gormLogger{})
	if err := db.AutoMigrate(&MemberRecord{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Member fetches one row by member address.
func (s *Store) Member(address string) (*MemberRecord, error) {
	var rec MemberRecord
	err := s.db.Where("address = ?", address).First(&rec).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertMember writes a new row; a concurrent insert of the same address is
// harmless because the row content is identical (chain-assigned id).
func (s *Store) InsertMember(rec *MemberRecord) error {
	return s.db.Where("address = ?", rec.Address).FirstOrCreate(rec).Error
}

// IncrementTotalBalance adds delta to a member's lifetime balance and clears
// the synced flag in one statement. Additive only, preserving monotonicity.
func (s *Store) IncrementTotalBalance(address string, delta uint64) error {
	res := s.db.Model(&MemberRecord{}).
		Where("address = ?", address).
		Updates(map[string]interface{}{
			"total_balance": gorm.Expr("total_balance + ?", int64(delta)),
			"is_synced":     false,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// MarkSynced flags a batch of rows as reconciled on-chain. Each update is
// guarded by the lifetime balance the row carried when the batch was built: a
// credit landing while the batch was in flight leaves the row unsynced for
// the next pass instead of being absorbed silently.
func (s *Store) MarkSynced(rows []MemberRecord) error {
	for _, rec := range rows {
		err := s.db.Model(&MemberRecord{}).
			Where("address = ? AND total_balance = ?", rec.Address, rec.TotalBalance).
			Update("is_synced", true).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// SetApproved flips the admission flag for one member.
func (s *Store) SetApproved(address string, approved bool) error {
	res := s.db.Model(&MemberRecord{}).
		Where("address = ?", address).
		Update("is_approved", approved)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// UnsyncedMembers returns up to limit rows whose on-chain balance lags the
// local lifetime balance.
func (s *Store) UnsyncedMembers(limit int) ([]MemberRecord, error) {
	var recs []MemberRecord
	err := s.db.Where("is_synced = ?", false).
		Order("address").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// gormLogger routes gorm output through the operator logger.
type gormLogger struct{}

func (gormLogger) Print(v ...interface{}) {
	log.Debug("gorm", "msg", v)
}
