package boltdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/codec"
	"xdao.co/w3slot/storage"
)

var (
	bucketSlots    = []byte("slots")
	bucketBalances = []byte("balances")
)

// Ledger is a storage.Ledger persisted in a single bbolt file.
//
// Every Update is one bbolt read-write transaction, which gives the
// all-or-nothing commit the slot protocol relies on.
type Ledger struct {
	db     *bbolt.DB
	logger zerolog.Logger
	noSync bool
}

var _ storage.Ledger = (*Ledger)(nil)

// Option configures a Ledger.
type Option func(*Ledger)

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithNoSync disables fsync per transaction. Tests only.
func WithNoSync(noSync bool) Option {
	return func(l *Ledger) { l.noSync = noSync }
}

// Open opens (creating if needed) the ledger file at path.
func Open(path string, opts ...Option) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("boltdb: path is required")
	}
	l := &Ledger{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
		NoSync:  l.noSync,
	})
	if err != nil {
		return nil, fmt.Errorf("boltdb: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSlots, bucketBalances} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.db = db
	l.logger.Debug().Str("path", path).Bool("no_sync", l.noSync).Msg("opened ledger")
	return l, nil
}

func (l *Ledger) View(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.db == nil {
		return storage.ErrClosed
	}
	return l.db.View(func(btx *bbolt.Tx) error {
		return fn(&tx{btx: btx})
	})
}

func (l *Ledger) Update(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.db == nil {
		return storage.ErrClosed
	}
	return l.db.Update(func(btx *bbolt.Tx) error {
		return fn(&tx{btx: btx})
	})
}

func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	l.logger.Debug().Msg("closing ledger")
	err := l.db.Close()
	l.db = nil
	return err
}

type tx struct {
	btx *bbolt.Tx
}

func (t *tx) Slot(addr address.Address) (storage.Slot, error) {
	v := t.btx.Bucket(bucketSlots).Get(addr[:])
	if v == nil {
		return storage.Slot{}, storage.ErrNotFound
	}
	return decodeSlot(addr, v)
}

func (t *tx) PutSlot(s storage.Slot) error {
	if !t.btx.Writable() {
		return storage.ErrReadOnly
	}
	b, err := codec.Marshal(s)
	if err != nil {
		return err
	}
	return t.btx.Bucket(bucketSlots).Put(s.Address[:], b)
}

func (t *tx) Balance(addr address.Address) (uint64, error) {
	v := t.btx.Bucket(bucketBalances).Get(addr[:])
	if v == nil {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("%w: balance of %s is %d bytes", storage.ErrCorrupt, addr, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func (t *tx) SetBalance(addr address.Address, amount uint64) error {
	if !t.btx.Writable() {
		return storage.ErrReadOnly
	}
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], amount)
	return t.btx.Bucket(bucketBalances).Put(addr[:], v[:])
}

func (t *tx) ForEachSlot(fn func(storage.Slot) error) error {
	// bbolt iterates keys in byte order, which is ascending address order.
	return t.btx.Bucket(bucketSlots).ForEach(func(k, v []byte) error {
		addr, err := address.FromBytes(k)
		if err != nil {
			return fmt.Errorf("%w: slot key: %v", storage.ErrCorrupt, err)
		}
		s, err := decodeSlot(addr, v)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

func (t *tx) ForEachBalance(fn func(address.Address, uint64) error) error {
	return t.btx.Bucket(bucketBalances).ForEach(func(k, v []byte) error {
		addr, err := address.FromBytes(k)
		if err != nil {
			return fmt.Errorf("%w: balance key: %v", storage.ErrCorrupt, err)
		}
		if len(v) != 8 {
			return fmt.Errorf("%w: balance of %s is %d bytes", storage.ErrCorrupt, addr, len(v))
		}
		return fn(addr, binary.BigEndian.Uint64(v))
	})
}

// decodeSlot copies out of bbolt memory, which is only valid inside the tx.
func decodeSlot(addr address.Address, v []byte) (storage.Slot, error) {
	var s storage.Slot
	if err := codec.Unmarshal(v, &s); err != nil {
		return storage.Slot{}, fmt.Errorf("%w: slot %s: %v", storage.ErrCorrupt, addr, err)
	}
	if s.Address != addr {
		return storage.Slot{}, fmt.Errorf("%w: slot stored under %s claims %s", storage.ErrCorrupt, addr, s.Address)
	}
	if s.Data == nil {
		s.Data = []byte{}
	}
	return s, nil
}
