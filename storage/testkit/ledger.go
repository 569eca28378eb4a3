package testkit

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/storage"
)

// NewLedger constructs a fresh, empty ledger for a test.
// The returned ledger MUST be isolated from other tests.
type NewLedger func(t *testing.T) storage.Ledger

func addr(b byte) address.Address {
	var a address.Address
	a[0] = b
	a[31] = ^b
	return a
}

func RunLedgerConformance(t *testing.T, newLedger NewLedger) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		l := newLedger(t)
		want := storage.Slot{Address: addr(1), Owner: addr(2), Balance: 99, Data: []byte("hello, slot")}
		if err := l.Update(ctx, func(tx storage.Tx) error { return tx.PutSlot(want) }); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		err := l.View(ctx, func(tx storage.Tx) error {
			got, err := tx.Slot(want.Address)
			if err != nil {
				return err
			}
			if got.Address != want.Address || got.Owner != want.Owner || got.Balance != want.Balance {
				t.Fatalf("slot header mismatch: %+v", got)
			}
			if !bytes.Equal(got.Data, want.Data) {
				t.Fatalf("slot data mismatch")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("View failed: %v", err)
		}
	})

	t.Run("EmptyDataSlot", func(t *testing.T) {
		l := newLedger(t)
		s := storage.Slot{Address: addr(3), Owner: addr(2), Data: []byte{}}
		if err := l.Update(ctx, func(tx storage.Tx) error { return tx.PutSlot(s) }); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		err := l.View(ctx, func(tx storage.Tx) error {
			got, err := tx.Slot(s.Address)
			if err != nil {
				return err
			}
			if got.Size() != 0 {
				t.Fatalf("size = %d, want 0", got.Size())
			}
			return nil
		})
		if err != nil {
			t.Fatalf("zero-size slot must still exist: %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		l := newLedger(t)
		err := l.View(ctx, func(tx storage.Tx) error {
			_, err := tx.Slot(addr(9))
			return err
		})
		if !storage.IsNotFound(err) {
			t.Fatalf("got err=%v want ErrNotFound", err)
		}
		err = l.View(ctx, func(tx storage.Tx) error {
			bal, err := tx.Balance(addr(9))
			if err != nil {
				return err
			}
			if bal != 0 {
				t.Fatalf("absent account balance = %d", bal)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Balance failed: %v", err)
		}
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		l := newLedger(t)
		boom := errors.New("boom")
		err := l.Update(ctx, func(tx storage.Tx) error {
			if err := tx.SetBalance(addr(4), 1000); err != nil {
				return err
			}
			if err := tx.PutSlot(storage.Slot{Address: addr(5), Data: []byte("x")}); err != nil {
				return err
			}
			// Reads inside the tx see staged writes.
			if bal, _ := tx.Balance(addr(4)); bal != 1000 {
				t.Fatalf("staged balance = %d", bal)
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Update err=%v want boom", err)
		}
		err = l.View(ctx, func(tx storage.Tx) error {
			if bal, _ := tx.Balance(addr(4)); bal != 0 {
				t.Fatalf("balance leaked from failed update: %d", bal)
			}
			if _, err := tx.Slot(addr(5)); !storage.IsNotFound(err) {
				t.Fatalf("slot leaked from failed update: %v", err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("View failed: %v", err)
		}
	})

	t.Run("ViewIsReadOnly", func(t *testing.T) {
		l := newLedger(t)
		err := l.View(ctx, func(tx storage.Tx) error {
			return tx.SetBalance(addr(1), 1)
		})
		if err == nil {
			t.Fatalf("expected write inside View to fail")
		}
	})

	t.Run("ForEachSlotOrdered", func(t *testing.T) {
		l := newLedger(t)
		err := l.Update(ctx, func(tx storage.Tx) error {
			for _, b := range []byte{0x30, 0x10, 0x20} {
				if err := tx.PutSlot(storage.Slot{Address: addr(b), Data: []byte{b}}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		var seen []byte
		err = l.View(ctx, func(tx storage.Tx) error {
			return tx.ForEachSlot(func(s storage.Slot) error {
				seen = append(seen, s.Data[0])
				return nil
			})
		})
		if err != nil {
			t.Fatalf("ForEachSlot failed: %v", err)
		}
		if !bytes.Equal(seen, []byte{0x10, 0x20, 0x30}) {
			t.Fatalf("order = %x", seen)
		}
	})

	t.Run("ForEachBalanceOrdered", func(t *testing.T) {
		l := newLedger(t)
		err := l.Update(ctx, func(tx storage.Tx) error {
			for _, b := range []byte{0x03, 0x01, 0x02} {
				if err := tx.SetBalance(addr(b), uint64(b)*10); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		var got []uint64
		err = l.View(ctx, func(tx storage.Tx) error {
			return tx.ForEachBalance(func(_ address.Address, amount uint64) error {
				got = append(got, amount)
				return nil
			})
		})
		if err != nil {
			t.Fatalf("ForEachBalance failed: %v", err)
		}
		if len(got) != 3 || got[0] != 10 || got[1] != 20 || got[2] != 30 {
			t.Fatalf("balances = %v", got)
		}
	})

	t.Run("ReturnedSlotsDoNotAlias", func(t *testing.T) {
		l := newLedger(t)
		s := storage.Slot{Address: addr(6), Data: []byte("abc")}
		if err := l.Update(ctx, func(tx storage.Tx) error { return tx.PutSlot(s) }); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		s.Data[0] = 'X'
		_ = l.View(ctx, func(tx storage.Tx) error {
			got, err := tx.Slot(addr(6))
			if err != nil {
				t.Fatalf("Slot failed: %v", err)
			}
			if string(got.Data) != "abc" {
				t.Fatalf("ledger aliased caller memory: %q", got.Data)
			}
			got.Data[1] = 'Y'
			return nil
		})
		_ = l.View(ctx, func(tx storage.Tx) error {
			got, _ := tx.Slot(addr(6))
			if string(got.Data) != "abc" {
				t.Fatalf("ledger aliased returned memory: %q", got.Data)
			}
			return nil
		})
	})

	t.Run("CanceledContext", func(t *testing.T) {
		l := newLedger(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if err := l.Update(cctx, func(storage.Tx) error { return nil }); !errors.Is(err, context.Canceled) {
			t.Fatalf("Update err=%v want context.Canceled", err)
		}
	})
}
