package presale

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"tokensyndicate/core/state"
)

// Storage is the subset of the KV store the token persists through.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPutBatch(entries ...state.KVEntry) error
	KVGetList(key []byte, out interface{}) error
}

type storedTotals struct {
	Supply *big.Int
	Raised *big.Int
}

func tokenPrefix(token [20]byte) string { return "presale/" + hex.EncodeToString(token[:]) }

func totalsKey(token [20]byte) []byte { return []byte(tokenPrefix(token) + "/totals") }

func holdersKey(token [20]byte) []byte { return []byte(tokenPrefix(token) + "/holders") }

func balanceKey(token, holder [20]byte) []byte {
	return []byte(tokenPrefix(token) + "/balance/" + hex.EncodeToString(holder[:]))
}

// SetStore attaches persistence and loads any previously stored balances.
func (t *Token) SetStore(store Storage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if store == nil {
		t.store = nil
		return nil
	}
	var totals storedTotals
	ok, err := store.KVGet(totalsKey(t.params.Address), &totals)
	if err != nil {
		return fmt.Errorf("presale: load totals: %w", err)
	}
	var holders [][20]byte
	if err := store.KVGetList(holdersKey(t.params.Address), &holders); err != nil {
		return fmt.Errorf("presale: load holders: %w", err)
	}
	balances := make(map[[20]byte]*uint256.Int, len(holders))
	for _, holder := range holders {
		var raw *big.Int
		if _, err := store.KVGet(balanceKey(t.params.Address, holder), &raw); err != nil {
			return fmt.Errorf("presale: load balance %x: %w", holder, err)
		}
		bal, _ := uint256.FromBig(orZero(raw))
		balances[holder] = bal
	}
	t.store = store
	if ok {
		t.supply, _ = uint256.FromBig(orZero(totals.Supply))
		t.raised, _ = uint256.FromBig(orZero(totals.Raised))
	}
	t.balances = balances
	t.holders = holders
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// persistLocked writes the supplied totals and balances in one batch. Holders
// not seen before are appended to the index.
func (t *Token) persistLocked(supply, raised *uint256.Int, balances map[[20]byte]*uint256.Int) ([][20]byte, error) {
	holders := t.holders
	grown := false
	for holder := range balances {
		if _, known := t.balances[holder]; !known {
			holders = append(append([][20]byte(nil), holders...), holder)
			grown = true
		}
	}
	if t.store == nil {
		return holders, nil
	}
	entries := []state.KVEntry{{
		Key:   totalsKey(t.params.Address),
		Value: storedTotals{Supply: supply.ToBig(), Raised: raised.ToBig()},
	}}
	for holder, bal := range balances {
		entries = append(entries, state.KVEntry{Key: balanceKey(t.params.Address, holder), Value: bal.ToBig()})
	}
	if grown {
		entries = append(entries, state.KVEntry{Key: holdersKey(t.params.Address), Value: holders})
	}
	if err := t.store.KVPutBatch(entries...); err != nil {
		return nil, fmt.Errorf("presale: persist: %w", err)
	}
	return holders, nil
}
