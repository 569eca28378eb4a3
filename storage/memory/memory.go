package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/storage"
)

// Ledger is an in-process storage.Ledger.
//
// Update stages writes in an overlay and merges them only when fn succeeds,
// so a failed operation leaves no trace. Updates hold an exclusive lock for
// their whole duration.
type Ledger struct {
	mu       sync.RWMutex
	slots    map[address.Address]storage.Slot
	balances map[address.Address]uint64
	closed   bool
}

var _ storage.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{
		slots:    map[address.Address]storage.Slot{},
		balances: map[address.Address]uint64{},
	}
}

func (l *Ledger) View(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return storage.ErrClosed
	}
	return fn(&tx{ledger: l, readOnly: true})
}

func (l *Ledger) Update(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return storage.ErrClosed
	}
	t := &tx{
		ledger:   l,
		slots:    map[address.Address]storage.Slot{},
		balances: map[address.Address]uint64{},
	}
	if err := fn(t); err != nil {
		return err
	}
	for k, v := range t.slots {
		l.slots[k] = v
	}
	for k, v := range t.balances {
		l.balances[k] = v
	}
	return nil
}

func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

type tx struct {
	ledger   *Ledger
	readOnly bool

	// staged writes, nil for read-only transactions
	slots    map[address.Address]storage.Slot
	balances map[address.Address]uint64
}

func (t *tx) Slot(addr address.Address) (storage.Slot, error) {
	if s, ok := t.slots[addr]; ok {
		return s.Clone(), nil
	}
	s, ok := t.ledger.slots[addr]
	if !ok {
		return storage.Slot{}, storage.ErrNotFound
	}
	return s.Clone(), nil
}

func (t *tx) PutSlot(s storage.Slot) error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	t.slots[s.Address] = s.Clone()
	return nil
}

func (t *tx) Balance(addr address.Address) (uint64, error) {
	if v, ok := t.balances[addr]; ok {
		return v, nil
	}
	return t.ledger.balances[addr], nil
}

func (t *tx) SetBalance(addr address.Address, amount uint64) error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	t.balances[addr] = amount
	return nil
}

func (t *tx) ForEachSlot(fn func(storage.Slot) error) error {
	merged := make(map[address.Address]storage.Slot, len(t.ledger.slots)+len(t.slots))
	for k, v := range t.ledger.slots {
		merged[k] = v
	}
	for k, v := range t.slots {
		merged[k] = v
	}
	keys := make([]address.Address, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sortAddresses(keys)
	for _, k := range keys {
		if err := fn(merged[k].Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) ForEachBalance(fn func(address.Address, uint64) error) error {
	merged := make(map[address.Address]uint64, len(t.ledger.balances)+len(t.balances))
	for k, v := range t.ledger.balances {
		merged[k] = v
	}
	for k, v := range t.balances {
		merged[k] = v
	}
	keys := make([]address.Address, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sortAddresses(keys)
	for _, k := range keys {
		if err := fn(k, merged[k]); err != nil {
			return err
		}
	}
	return nil
}

func sortAddresses(keys []address.Address) {
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
}
