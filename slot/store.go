// Package slot implements the lifecycle of a single storage slot: the
// create-or-grow write, the write-once claim, and the rent rule that every
// slot's balance covers its size.
//
// Store methods run inside a storage.Tx. The ledger commits all of an
// operation's writes or none of them, so an error from any method leaves
// both the slot and the payer untouched.
package slot

import (
	"fmt"
	"math"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/storage"
)

// Target pairs the address an operation declares with the derivation the
// application side computed on its own.
type Target struct {
	Declared address.Address
	Derived  address.Derivation
}

// Outcome describes what a successful write did.
type Outcome struct {
	Address  address.Address
	Created  bool
	OldSize  int
	NewSize  int
	Charged  uint64
	Refunded uint64
}

// Store applies slot writes for one program.
type Store struct {
	Program address.Address
	Rent    Rent
}

func NewStore(program address.Address, rent Rent) *Store {
	if rent == nil {
		rent = DefaultRent
	}
	return &Store{Program: program, Rent: rent}
}

func (s *Store) rent() Rent {
	if s.Rent == nil {
		return DefaultRent
	}
	return s.Rent
}

// MinimumBalance is the balance a slot of size bytes must hold.
func (s *Store) MinimumBalance(size int) uint64 {
	return s.rent().MinimumBalance(size)
}

// Write stores payload at target.
//
// An absent slot is created with exactly the minimum balance for
// len(payload), debited from payer. A present slot is topped up by the
// shortfall (or refunds its excess to payer when it shrinks), resized and
// fully overwritten, even when the size is unchanged.
func (s *Store) Write(tx storage.Tx, payer address.Address, target Target, payload []byte) (Outcome, error) {
	if err := s.checkTarget(target); err != nil {
		return Outcome{}, err
	}
	addr := target.Derived.Address

	existing, err := tx.Slot(addr)
	if storage.IsNotFound(err) {
		return s.create(tx, payer, addr, payload)
	}
	if err != nil {
		return Outcome{}, WrapError(KindInternal, "SLOT-IO-001", fmt.Sprintf("reading slot %s", addr), err)
	}
	if existing.Owner != s.Program {
		return Outcome{}, NewError(KindIntegrityMismatch, "SLOT-INT-002",
			fmt.Sprintf("slot %s is owned by %s, not %s", addr, existing.Owner, s.Program))
	}

	out := Outcome{Address: addr, OldSize: existing.Size(), NewSize: len(payload)}
	need := s.MinimumBalance(len(payload))
	payerBalance, err := tx.Balance(payer)
	if err != nil {
		return Outcome{}, WrapError(KindInternal, "SLOT-IO-002", "reading payer balance", err)
	}

	switch {
	case existing.Balance < need:
		delta := need - existing.Balance
		if payerBalance < delta {
			return Outcome{}, NewError(KindInsufficientFunding, "SLOT-FUND-002",
				fmt.Sprintf("payer %s holds %d, top-up of slot %s needs %d", payer, payerBalance, addr, delta))
		}
		payerBalance -= delta
		out.Charged = delta
	case existing.Balance > need:
		excess := existing.Balance - need
		if excess > math.MaxUint64-payerBalance {
			return Outcome{}, NewError(KindInternal, "SLOT-FUND-003", fmt.Sprintf("refund to payer %s overflows", payer))
		}
		payerBalance += excess
		out.Refunded = excess
	}

	if out.Charged > 0 || out.Refunded > 0 {
		if err := tx.SetBalance(payer, payerBalance); err != nil {
			return Outcome{}, WrapError(KindInternal, "SLOT-IO-003", "updating payer balance", err)
		}
	}
	next := storage.Slot{Address: addr, Owner: s.Program, Balance: need, Data: clone(payload)}
	if err := tx.PutSlot(next); err != nil {
		return Outcome{}, WrapError(KindInternal, "SLOT-IO-004", fmt.Sprintf("writing slot %s", addr), err)
	}
	return out, nil
}

// Claim creates the slot at target once. A second claim of the same
// address fails with KindAlreadyClaimed and changes nothing.
func (s *Store) Claim(tx storage.Tx, payer address.Address, target Target, payload []byte) (Outcome, error) {
	if err := s.checkTarget(target); err != nil {
		return Outcome{}, err
	}
	addr := target.Derived.Address
	_, err := tx.Slot(addr)
	if err == nil {
		return Outcome{}, NewError(KindAlreadyClaimed, "SLOT-CLAIM-001", fmt.Sprintf("slot %s is already claimed", addr))
	}
	if !storage.IsNotFound(err) {
		return Outcome{}, WrapError(KindInternal, "SLOT-IO-001", fmt.Sprintf("reading slot %s", addr), err)
	}
	return s.create(tx, payer, addr, payload)
}

// Exists reports whether a slot is present at addr.
func (s *Store) Exists(tx storage.Tx, addr address.Address) (bool, error) {
	_, err := tx.Slot(addr)
	if storage.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) create(tx storage.Tx, payer, addr address.Address, payload []byte) (Outcome, error) {
	need := s.MinimumBalance(len(payload))
	payerBalance, err := tx.Balance(payer)
	if err != nil {
		return Outcome{}, WrapError(KindInternal, "SLOT-IO-002", "reading payer balance", err)
	}
	if payerBalance < need {
		return Outcome{}, NewError(KindInsufficientFunding, "SLOT-FUND-001",
			fmt.Sprintf("payer %s holds %d, creating slot %s needs %d", payer, payerBalance, addr, need))
	}
	if err := tx.SetBalance(payer, payerBalance-need); err != nil {
		return Outcome{}, WrapError(KindInternal, "SLOT-IO-003", "updating payer balance", err)
	}
	next := storage.Slot{Address: addr, Owner: s.Program, Balance: need, Data: clone(payload)}
	if err := tx.PutSlot(next); err != nil {
		return Outcome{}, WrapError(KindInternal, "SLOT-IO-004", fmt.Sprintf("writing slot %s", addr), err)
	}
	return Outcome{Address: addr, Created: true, NewSize: len(payload), Charged: need}, nil
}

func (s *Store) checkTarget(target Target) error {
	if target.Declared != target.Derived.Address {
		return NewError(KindIntegrityMismatch, "SLOT-INT-001",
			fmt.Sprintf("declared address %s does not match derived address %s", target.Declared, target.Derived.Address))
	}
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
