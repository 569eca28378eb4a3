package bundle_test

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/codec"
	"xdao.co/w3slot/storage"
	"xdao.co/w3slot/storage/bundle"
	"xdao.co/w3slot/storage/memory"
)

func seeded(t *testing.T) storage.Ledger {
	t.Helper()
	l := memory.New()
	var program, payer address.Address
	program[0], payer[0] = 0xAA, 0xBB
	err := l.Update(context.Background(), func(tx storage.Tx) error {
		for i, body := range []string{"hello", "world", ""} {
			var a address.Address
			a[0], a[1] = byte(i+1), 0x42
			if err := tx.PutSlot(storage.Slot{Address: a, Owner: program, Balance: uint64(100 + i), Data: []byte(body)}); err != nil {
				return err
			}
		}
		return tx.SetBalance(payer, 5000)
	})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestBundle_ExportIsDeterministic(t *testing.T) {
	ctx := context.Background()
	for _, c := range []bundle.Compression{bundle.CompressionNone, bundle.CompressionZstd, bundle.CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			var outA, outB bytes.Buffer
			if err := bundle.Export(ctx, &outA, seeded(t), bundle.ExportOptions{Compression: c, IncludeIndex: true}); err != nil {
				t.Fatal(err)
			}
			if err := bundle.Export(ctx, &outB, seeded(t), bundle.ExportOptions{Compression: c, IncludeIndex: true}); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(outA.Bytes(), outB.Bytes()) {
				t.Fatalf("expected deterministic bundle bytes")
			}
		})
	}
}

func TestBundle_ImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, c := range []bundle.Compression{bundle.CompressionNone, bundle.CompressionZstd, bundle.CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			src := seeded(t)
			var buf bytes.Buffer
			if err := bundle.Export(ctx, &buf, src, bundle.ExportOptions{Compression: c, IncludeIndex: true}); err != nil {
				t.Fatal(err)
			}

			dst := memory.New()
			if err := bundle.Import(ctx, bytes.NewReader(buf.Bytes()), dst); err != nil {
				t.Fatalf("Import: %v", err)
			}

			var want, got bytes.Buffer
			if err := bundle.Export(ctx, &want, src, bundle.ExportOptions{}); err != nil {
				t.Fatal(err)
			}
			if err := bundle.Export(ctx, &got, dst, bundle.ExportOptions{}); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(want.Bytes(), got.Bytes()) {
				t.Fatalf("imported ledger differs from source")
			}

			// Importing the same snapshot again is a no-op.
			if err := bundle.Import(ctx, bytes.NewReader(buf.Bytes()), dst); err != nil {
				t.Fatalf("re-Import: %v", err)
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "zstd", "lz4"} {
		c, err := bundle.ParseCompression(name)
		if err != nil {
			t.Fatalf("ParseCompression(%q): %v", name, err)
		}
		if c.String() != name {
			t.Fatalf("String() = %q, want %q", c.String(), name)
		}
	}
	if _, err := bundle.ParseCompression("gzip"); err == nil {
		t.Fatalf("expected error for unsupported compression")
	}
}

func TestBundle_RejectsMislabeledSlot(t *testing.T) {
	var a, b address.Address
	a[0], b[0] = 1, 2
	body, err := codec.Marshal(storage.Slot{Address: b, Data: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Name: "slots/" + a.String(), Mode: 0o644, Size: int64(len(body)), ModTime: time.Unix(0, 0), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	dst := memory.New()
	err = bundle.Import(context.Background(), bytes.NewReader(buf.Bytes()), dst)
	if !errors.Is(err, bundle.ErrSlotMismatch) {
		t.Fatalf("expected ErrSlotMismatch, got %v", err)
	}
	_ = dst.View(context.Background(), func(tx storage.Tx) error {
		if _, err := tx.Slot(b); !storage.IsNotFound(err) {
			t.Fatalf("failed import must not write: %v", err)
		}
		return nil
	})
}

func TestBundle_RejectsConflictingSlot(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	if err := bundle.Export(ctx, &buf, seeded(t), bundle.ExportOptions{}); err != nil {
		t.Fatal(err)
	}

	dst := seeded(t)
	var a address.Address
	a[0], a[1] = 1, 0x42
	err := dst.Update(ctx, func(tx storage.Tx) error {
		return tx.PutSlot(storage.Slot{Address: a, Data: []byte("changed")})
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := bundle.Import(ctx, bytes.NewReader(buf.Bytes()), dst); !errors.Is(err, bundle.ErrSlotMismatch) {
		t.Fatalf("expected ErrSlotMismatch, got %v", err)
	}
	if err := bundle.ImportWithOptions(ctx, bytes.NewReader(buf.Bytes()), dst, bundle.ImportOptions{Overwrite: true}); err != nil {
		t.Fatalf("Import with Overwrite: %v", err)
	}
}

func TestBundle_RejectsUnknownEntriesByDefault(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Name: "extra.txt", Mode: 0o644, Size: 1, ModTime: time.Unix(0, 0), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	if err := bundle.Import(context.Background(), bytes.NewReader(buf.Bytes()), memory.New()); err == nil {
		t.Fatalf("expected error for unknown entry")
	}
	if err := bundle.ImportWithOptions(context.Background(), bytes.NewReader(buf.Bytes()), memory.New(), bundle.ImportOptions{IgnoreUnknown: true}); err != nil {
		t.Fatalf("expected IgnoreUnknown to accept bundle, got %v", err)
	}
}
