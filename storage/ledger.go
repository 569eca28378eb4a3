package storage

import (
	"context"

	"xdao.co/w3slot/address"
)

// Slot is the persisted unit: a program-owned, funded, address-keyed byte
// payload. Its size is len(Data).
type Slot struct {
	Address address.Address `cbor:"address"`
	Owner   address.Address `cbor:"owner"`
	Balance uint64          `cbor:"balance"`
	Data    []byte          `cbor:"data"`
}

func (s Slot) Size() int { return len(s.Data) }

// Clone returns a deep copy so callers never alias ledger memory.
func (s Slot) Clone() Slot {
	out := s
	if s.Data != nil {
		out.Data = make([]byte, len(s.Data))
		copy(out.Data, s.Data)
	}
	return out
}

// Ledger is the application-side state: slots plus payer funding balances.
//
// Contract:
//   - Update runs fn against a transaction that commits all of its writes, or
//     none of them when fn returns an error.
//   - Updates are serialized; readers never observe a partially applied Update.
//   - Tx values must not be retained after fn returns.
type Ledger interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Tx is a view of the ledger inside View or Update. Write methods fail when
// called from View.
type Tx interface {
	// Slot returns ErrNotFound when no slot exists at addr.
	Slot(addr address.Address) (Slot, error)
	PutSlot(s Slot) error
	// Balance of a payer account; absent accounts hold zero.
	Balance(addr address.Address) (uint64, error)
	SetBalance(addr address.Address, amount uint64) error
	// ForEachSlot visits slots in ascending address order.
	ForEachSlot(fn func(Slot) error) error
	// ForEachBalance visits funded accounts in ascending address order.
	ForEachBalance(fn func(addr address.Address, amount uint64) error) error
}
