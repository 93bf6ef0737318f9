// Package store persists the engine state snapshot and the published
// accumulator roots in a leveldb key-value database.
package store

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/veilcash/go-veil/logger"
	"github.com/veilcash/go-veil/mixer"
)

var (
	stateKey   = []byte("s")   // -> rlp(mixer.StateSnapshot)
	rootPrefix = []byte("r")   // rootPrefix + seq (uint64 big endian) -> root
)

// Store is the persistent storage working over a physical key-value
// database.
type Store struct {
	db *leveldb.DB

	logger.Instance
}

// NewStore opens (or creates) a store at the given filesystem path.
func NewStore(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb at %s", path)
	}
	return &Store{
		db:       db,
		Instance: logger.New("store"),
	}, nil
}

// NewMemStore creates a memory-backed store for tests and simulations.
func NewMemStore() *Store {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		panic(err)
	}
	return &Store{
		db:       db,
		Instance: logger.New("mem-store"),
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "close leveldb")
}

// SaveState overwrites the persisted engine state snapshot.
func (s *Store) SaveState(snap *mixer.StateSnapshot) error {
	buf, err := rlp.EncodeToBytes(snap)
	if err != nil {
		return errors.Wrap(err, "encode state snapshot")
	}
	if err := s.db.Put(stateKey, buf, nil); err != nil {
		return errors.Wrap(err, "write state snapshot")
	}
	s.Log.Debug("State snapshot saved", "bytes", len(buf))
	return nil
}

// LoadState returns the persisted engine state snapshot, or nil if none
// was ever saved.
func (s *Store) LoadState() (*mixer.StateSnapshot, error) {
	buf, err := s.db.Get(stateKey, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read state snapshot")
	}
	snap := new(mixer.StateSnapshot)
	if err := rlp.DecodeBytes(buf, snap); err != nil {
		return nil, errors.Wrap(err, "decode state snapshot")
	}
	return snap, nil
}

// HasState reports whether a state snapshot was ever saved.
func (s *Store) HasState() (bool, error) {
	has, err := s.db.Has(stateKey, nil)
	return has, errors.Wrap(err, "probe state snapshot")
}

func rootKey(seq uint64) []byte {
	key := make([]byte, 0, len(rootPrefix)+8)
	key = append(key, rootPrefix...)
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], seq)
	return append(key, enc[:]...)
}

// SaveRoot records the accumulator root published with the given rebuild
// sequence number.
func (s *Store) SaveRoot(seq uint64, root common.Hash) error {
	return errors.Wrapf(s.db.Put(rootKey(seq), root.Bytes(), nil), "write root %d", seq)
}

// RootAt returns the recorded root for a rebuild sequence number.
func (s *Store) RootAt(seq uint64) (common.Hash, bool, error) {
	buf, err := s.db.Get(rootKey(seq), nil)
	if err == leveldb.ErrNotFound {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, errors.Wrapf(err, "read root %d", seq)
	}
	return common.BytesToHash(buf), true, nil
}
