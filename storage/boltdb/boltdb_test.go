package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/storage"
	"xdao.co/w3slot/storage/testkit"
)

func TestBoltLedgerConformance(t *testing.T) {
	testkit.RunLedgerConformance(t, func(t *testing.T) storage.Ledger {
		l, err := Open(filepath.Join(t.TempDir(), "ledger.db"), WithNoSync(true))
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		t.Cleanup(func() { _ = l.Close() })
		return l
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	var a, payer address.Address
	a[0], payer[0] = 1, 2

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	err = l.Update(ctx, func(tx storage.Tx) error {
		if err := tx.PutSlot(storage.Slot{Address: a, Owner: payer, Balance: 10, Data: []byte("kept")}); err != nil {
			return err
		}
		return tx.SetBalance(payer, 77)
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := l.View(ctx, func(storage.Tx) error { return nil }); err != storage.ErrClosed {
		t.Fatalf("View after Close: %v", err)
	}

	l, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer l.Close()
	err = l.View(ctx, func(tx storage.Tx) error {
		s, err := tx.Slot(a)
		if err != nil {
			return err
		}
		if string(s.Data) != "kept" || s.Balance != 10 || s.Owner != payer {
			t.Fatalf("slot after reopen: %+v", s)
		}
		bal, err := tx.Balance(payer)
		if err != nil {
			return err
		}
		if bal != 77 {
			t.Fatalf("balance after reopen = %d", bal)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}
