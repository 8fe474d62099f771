package syndicate

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"tokensyndicate/core/state"
)

// Storage abstracts the subset of the KV store required to persist pools.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPutBatch(entries ...state.KVEntry) error
	KVGetList(key []byte, out interface{}) error
}

var ledgerIndexKey = []byte("syndicate/index")

type storedConfig struct {
	Address               [20]byte
	Creator               [20]byte
	Token                 [20]byte
	ExchangeRate          uint64
	BountyRatePerThousand uint32
	MaxPoolCapacity       *big.Int
	RefundEligibleFrom    uint64
	CreatedAt             uint64
}

type storedPool struct {
	Status            uint8
	TotalNetPresale   *big.Int
	TotalBounty       *big.Int
	TotalDeposited    *big.Int
	Held              *big.Int
	Winner            [20]byte
	WinnerSet         bool
	PurchasedUnits    *big.Int
	TokensDistributed *big.Int
	BountyWithdrawn   bool
}

type storedRecord struct {
	Address    [20]byte
	NetPresale *big.Int
	Bounty     *big.Int
	Settled    bool
	Settlement uint8
}

// Change is the set of writes produced by one committed ledger operation.
type Change struct {
	Pool    *Pool
	Records []*DepositorRecord
	// Depositors is the full depositor index; nil when it did not grow.
	Depositors [][20]byte
}

// Store persists pool configuration, aggregate state and depositor records.
type Store struct {
	kv Storage
}

// NewStore binds a store to the provided KV backend.
func NewStore(kv Storage) *Store {
	return &Store{kv: kv}
}

func hexKey(addr [20]byte) string { return hex.EncodeToString(addr[:]) }

func configKey(id [20]byte) []byte { return []byte("syndicate/" + hexKey(id) + "/config") }

func poolKey(id [20]byte) []byte { return []byte("syndicate/" + hexKey(id) + "/pool") }

func depositorsKey(id [20]byte) []byte { return []byte("syndicate/" + hexKey(id) + "/depositors") }

func recordKey(id, depositor [20]byte) []byte {
	return []byte("syndicate/" + hexKey(id) + "/record/" + hexKey(depositor))
}

func factoryNonceKey(factory [20]byte) []byte {
	return []byte("syndicate/factory/" + hexKey(factory) + "/nonce")
}

func (s *Store) ready() error {
	if s == nil || s.kv == nil {
		return fmt.Errorf("syndicate store: backend not configured")
	}
	return nil
}

// CreateLedger writes a new pool, appends it to the ledger index and advances
// the factory nonce in a single batch.
func (s *Store) CreateLedger(factory [20]byte, nextNonce uint64, cfg *Config, pool *Pool) error {
	if err := s.ready(); err != nil {
		return err
	}
	if cfg == nil || pool == nil {
		return fmt.Errorf("syndicate store: config and pool required")
	}
	var index [][]byte
	if err := s.kv.KVGetList(ledgerIndexKey, &index); err != nil {
		return err
	}
	index = append(index, append([]byte(nil), cfg.Address[:]...))
	return s.kv.KVPutBatch(
		state.KVEntry{Key: configKey(cfg.Address), Value: toStoredConfig(cfg)},
		state.KVEntry{Key: poolKey(cfg.Address), Value: toStoredPool(pool)},
		state.KVEntry{Key: ledgerIndexKey, Value: index},
		state.KVEntry{Key: factoryNonceKey(factory), Value: nextNonce},
	)
}

// Commit writes the pool, touched records and (when grown) the depositor index
// atomically.
func (s *Store) Commit(id [20]byte, change Change) error {
	if err := s.ready(); err != nil {
		return err
	}
	entries := make([]state.KVEntry, 0, len(change.Records)+2)
	if change.Pool != nil {
		entries = append(entries, state.KVEntry{Key: poolKey(id), Value: toStoredPool(change.Pool)})
	}
	for _, rec := range change.Records {
		if rec == nil {
			continue
		}
		entries = append(entries, state.KVEntry{Key: recordKey(id, rec.Address), Value: toStoredRecord(rec)})
	}
	if change.Depositors != nil {
		entries = append(entries, state.KVEntry{Key: depositorsKey(id), Value: change.Depositors})
	}
	return s.kv.KVPutBatch(entries...)
}

// LedgerIDs returns every persisted pool address in creation order.
func (s *Store) LedgerIDs() ([][20]byte, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var index [][]byte
	if err := s.kv.KVGetList(ledgerIndexKey, &index); err != nil {
		return nil, err
	}
	ids := make([][20]byte, 0, len(index))
	for _, raw := range index {
		if len(raw) != 20 {
			return nil, fmt.Errorf("syndicate store: malformed index entry %x", raw)
		}
		var id [20]byte
		copy(id[:], raw)
		ids = append(ids, id)
	}
	return ids, nil
}

// FactoryNonce returns the next nonce the factory should use.
func (s *Store) FactoryNonce(factory [20]byte) (uint64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var nonce uint64
	if _, err := s.kv.KVGet(factoryNonceKey(factory), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// LoadLedger reads a pool's configuration, aggregate state and records.
func (s *Store) LoadLedger(id [20]byte) (*Config, *Pool, []*DepositorRecord, error) {
	if err := s.ready(); err != nil {
		return nil, nil, nil, err
	}
	var cfg storedConfig
	ok, err := s.kv.KVGet(configKey(id), &cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if !ok {
		return nil, nil, nil, fmt.Errorf("syndicate store: ledger %x not found", id)
	}
	var pool storedPool
	ok, err = s.kv.KVGet(poolKey(id), &pool)
	if err != nil {
		return nil, nil, nil, err
	}
	if !ok {
		return nil, nil, nil, fmt.Errorf("syndicate store: pool %x missing", id)
	}
	var depositors [][20]byte
	if err := s.kv.KVGetList(depositorsKey(id), &depositors); err != nil {
		return nil, nil, nil, err
	}
	records := make([]*DepositorRecord, 0, len(depositors))
	for _, addr := range depositors {
		var stored storedRecord
		ok, err := s.kv.KVGet(recordKey(id, addr), &stored)
		if err != nil {
			return nil, nil, nil, err
		}
		if !ok {
			return nil, nil, nil, fmt.Errorf("syndicate store: record %x missing for ledger %x", addr, id)
		}
		records = append(records, fromStoredRecord(&stored))
	}
	restoredPool, err := fromStoredPool(&pool)
	if err != nil {
		return nil, nil, nil, err
	}
	return fromStoredConfig(&cfg), restoredPool, records, nil
}

func toStoredConfig(cfg *Config) storedConfig {
	return storedConfig{
		Address:               cfg.Address,
		Creator:               cfg.Creator,
		Token:                 cfg.Token,
		ExchangeRate:          cfg.ExchangeRate,
		BountyRatePerThousand: cfg.BountyRatePerThousand,
		MaxPoolCapacity:       cloneBigInt(cfg.MaxPoolCapacity),
		RefundEligibleFrom:    cfg.RefundEligibleFrom,
		CreatedAt:             cfg.CreatedAt,
	}
}

func fromStoredConfig(s *storedConfig) *Config {
	return &Config{
		Address:               s.Address,
		Creator:               s.Creator,
		Token:                 s.Token,
		ExchangeRate:          s.ExchangeRate,
		BountyRatePerThousand: s.BountyRatePerThousand,
		MaxPoolCapacity:       cloneBigInt(s.MaxPoolCapacity),
		RefundEligibleFrom:    s.RefundEligibleFrom,
		CreatedAt:             s.CreatedAt,
	}
}

func toStoredPool(p *Pool) storedPool {
	return storedPool{
		Status:            uint8(p.Status),
		TotalNetPresale:   cloneBigInt(p.TotalNetPresale),
		TotalBounty:       cloneBigInt(p.TotalBounty),
		TotalDeposited:    cloneBigInt(p.TotalDeposited),
		Held:              cloneBigInt(p.Held),
		Winner:            p.Winner,
		WinnerSet:         p.WinnerSet,
		PurchasedUnits:    cloneBigInt(p.PurchasedUnits),
		TokensDistributed: cloneBigInt(p.TokensDistributed),
		BountyWithdrawn:   p.BountyWithdrawn,
	}
}

func fromStoredPool(s *storedPool) (*Pool, error) {
	status := Status(s.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("syndicate store: invalid pool status %d", s.Status)
	}
	return &Pool{
		Status:            status,
		TotalNetPresale:   cloneBigInt(s.TotalNetPresale),
		TotalBounty:       cloneBigInt(s.TotalBounty),
		TotalDeposited:    cloneBigInt(s.TotalDeposited),
		Held:              cloneBigInt(s.Held),
		Winner:            s.Winner,
		WinnerSet:         s.WinnerSet,
		PurchasedUnits:    cloneBigInt(s.PurchasedUnits),
		TokensDistributed: cloneBigInt(s.TokensDistributed),
		BountyWithdrawn:   s.BountyWithdrawn,
	}, nil
}

func toStoredRecord(r *DepositorRecord) storedRecord {
	return storedRecord{
		Address:    r.Address,
		NetPresale: cloneBigInt(r.NetPresale),
		Bounty:     cloneBigInt(r.Bounty),
		Settled:    r.Settled,
		Settlement: uint8(r.Settlement),
	}
}

func fromStoredRecord(s *storedRecord) *DepositorRecord {
	return &DepositorRecord{
		Address:    s.Address,
		NetPresale: cloneBigInt(s.NetPresale),
		Bounty:     cloneBigInt(s.Bounty),
		Settled:    s.Settled,
		Settlement: Settlement(s.Settlement),
	}
}
