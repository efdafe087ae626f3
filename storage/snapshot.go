package storage

import (
	"encoding/json"
	"fmt"
)

var snapshotKey = []byte("wallet/snapshot")

// Snapshot is the durable wallet state written after every successful
// mutation. Pending approvals and staged transactions are deliberately
// absent: a restart behaves as a bulk invalidation, matching the effect of
// any governance change.
type Snapshot struct {
	Owners             []string `json:"owners"`
	Required           int      `json:"required"`
	DailyLimit         string   `json:"dailyLimit"`
	SpentToday         string   `json:"spentToday"`
	LastResetDay       uint64   `json:"lastResetDay"`
	DispatchSeq        uint64   `json:"dispatchSeq"`
	WithdrawnTotal     string   `json:"withdrawnTotal"`
	WithdrawalOccurred bool     `json:"withdrawalOccurred"`
	Destroyed          bool     `json:"destroyed"`
}

// WalletStore persists wallet snapshots into a Database under a fixed key.
type WalletStore struct {
	db Database
}

// NewWalletStore wraps the database in a snapshot store.
func NewWalletStore(db Database) *WalletStore {
	return &WalletStore{db: db}
}

// Save marshals and writes the snapshot.
func (s *WalletStore) Save(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("storage: nil snapshot")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("storage: marshal snapshot: %w", err)
	}
	return s.db.Put(snapshotKey, raw)
}

// Load reads the stored snapshot. The boolean reports whether one existed.
func (s *WalletStore) Load() (*Snapshot, bool, error) {
	ok, err := s.db.Has(snapshotKey)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	raw, err := s.db.Get(snapshotKey)
	if err != nil {
		return nil, false, err
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, false, fmt.Errorf("storage: unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}
