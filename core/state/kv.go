package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"tokensyndicate/storage"
)

var kvNamespace = []byte("kv/")

// KVEntry is a single value written as part of an atomic batch.
type KVEntry struct {
	Key   []byte
	Value interface{}
}

// KVStore layers RLP encoding over a raw key-value database. Keys are hashed
// so callers can use arbitrary, human-readable paths.
type KVStore struct {
	db storage.Database
}

// NewKVStore binds a store to the provided database.
func NewKVStore(db storage.Database) *KVStore {
	return &KVStore{db: db}
}

func kvKey(key []byte) []byte {
	return append(append([]byte(nil), kvNamespace...), ethcrypto.Keccak256(key)...)
}

func (s *KVStore) ready() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("kv: store not configured")
	}
	return nil
}

// KVPut RLP-encodes value and stores it under key.
func (s *KVStore) KVPut(key []byte, value interface{}) error {
	return s.KVPutBatch(KVEntry{Key: key, Value: value})
}

// KVPutBatch encodes every entry first and writes them in one atomic batch. An
// encoding failure aborts before anything is written.
func (s *KVStore) KVPutBatch(entries ...KVEntry) error {
	if err := s.ready(); err != nil {
		return err
	}
	batch := make([]storage.Entry, 0, len(entries))
	for _, entry := range entries {
		if len(entry.Key) == 0 {
			return fmt.Errorf("kv: key must not be empty")
		}
		encoded, err := rlp.EncodeToBytes(entry.Value)
		if err != nil {
			return fmt.Errorf("kv: encode %q: %w", entry.Key, err)
		}
		batch = append(batch, storage.Entry{Key: kvKey(entry.Key), Value: encoded})
	}
	if len(batch) == 0 {
		return nil
	}
	return s.db.PutBatch(batch)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed.
func (s *KVStore) KVGet(key []byte, out interface{}) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := s.db.Get(kvKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (s *KVStore) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := s.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return s.KVPut(key, list)
}

// KVGetList decodes the list stored under key into out, which must point to a
// slice. A missing key yields an empty slice.
func (s *KVStore) KVGetList(key []byte, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("kv: destination must be a non-nil pointer")
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must point to a slice")
	}
	ok, err := s.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok {
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
	}
	return nil
}
