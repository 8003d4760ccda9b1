package state

import (
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"Canada28Bot/internal/model"
)

var snapshotKey = []byte("engine_state")

// BadgerStore keeps the snapshot under a single key in an embedded Badger DB.
// Each save is one transaction, so readers see either the old or the new value.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the database directory.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state: badger dir is required")
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Load() (*model.EngineState, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.NewEngineState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	return decodeOrFresh(data, "badger:"+string(snapshotKey)), nil
}

func (b *BadgerStore) Save(s *model.EngineState) error {
	data, err := encode(s)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey, data)
	})
}

func (b *BadgerStore) Clear() error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey)
	})
}

func (b *BadgerStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
