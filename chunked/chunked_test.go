package chunked

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/record"
	"xdao.co/w3slot/slot"
	"xdao.co/w3slot/storage"
	"xdao.co/w3slot/storage/memory"
)

var (
	testProgram = address.Address{0x11, 0x22}
	testPayer   = address.Address{0x33}
)

func TestSplitSizes(t *testing.T) {
	const chunkSize = 512
	tests := []struct {
		size      int
		wantCount int
		wantLast  int
	}{
		{size: 1, wantCount: 1, wantLast: 1},
		{size: chunkSize, wantCount: 1, wantLast: chunkSize},
		{size: chunkSize + 1, wantCount: 2, wantLast: 1},
		{size: 3*chunkSize + 17, wantCount: 4, wantLast: 17},
		{size: 255 * chunkSize, wantCount: 255, wantLast: chunkSize},
	}
	for _, tt := range tests {
		payload := bytes.Repeat([]byte{0xAB}, tt.size)
		chunks, err := Split(payload, chunkSize)
		if err != nil {
			t.Fatalf("Split(%d): %v", tt.size, err)
		}
		if len(chunks) != tt.wantCount {
			t.Fatalf("Split(%d) = %d chunks, want %d", tt.size, len(chunks), tt.wantCount)
		}
		for i, c := range chunks[:len(chunks)-1] {
			if len(c) != chunkSize {
				t.Fatalf("chunk %d has %d bytes", i, len(c))
			}
		}
		if got := len(chunks[len(chunks)-1]); got != tt.wantLast {
			t.Fatalf("last chunk %d bytes, want %d", got, tt.wantLast)
		}
		if !bytes.Equal(bytes.Join(chunks, nil), payload) {
			t.Fatalf("chunks do not reassemble")
		}
	}
}

func TestSplitLimits(t *testing.T) {
	if _, err := Split(make([]byte, 255*4+1), 4); !errors.Is(err, ErrTooManyChunks) {
		t.Fatalf("expected ErrTooManyChunks, got %v", err)
	}
	if _, err := Split([]byte("x"), 0); !errors.Is(err, ErrInvalidChunkSize) {
		t.Fatalf("expected ErrInvalidChunkSize, got %v", err)
	}
	if NeedsChunking(512, 512) || !NeedsChunking(513, 512) {
		t.Fatalf("NeedsChunking boundary wrong")
	}
}

type fixture struct {
	t      *testing.T
	ledger *memory.Ledger
	store  *Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := memory.New()
	err := l.Update(context.Background(), func(tx storage.Tx) error {
		return tx.SetBalance(testPayer, 1<<50)
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{t: t, ledger: l, store: NewStore(slot.NewStore(testProgram, nil))}
}

func (f *fixture) op(path string, no, count int, body []byte) Op {
	f.t.Helper()
	d, err := f.store.Deriver.Chunk(path, uint8(no))
	if err != nil {
		f.t.Fatal(err)
	}
	md, err := f.store.Deriver.Meta(path)
	if err != nil {
		f.t.Fatal(err)
	}
	return Op{Path: path, ChunkNo: uint8(no), ChunkCount: uint8(count), Body: body, Target: d.Address, Meta: md.Address}
}

func (f *fixture) apply(op Op) (Result, error) {
	var res Result
	err := f.ledger.Update(context.Background(), func(tx storage.Tx) error {
		var err error
		res, err = f.store.WriteChunk(tx, testPayer, op)
		return err
	})
	return res, err
}

func (f *fixture) assemble(path string) ([]byte, error) {
	var out []byte
	err := f.ledger.View(context.Background(), func(tx storage.Tx) error {
		var err error
		out, err = Assemble(tx, f.store.Deriver, path)
		return err
	})
	return out, err
}

func TestChunkedWriteProducesMetaLast(t *testing.T) {
	f := newFixture(t)
	const chunkSize = 8
	payload := []byte("0123456789abcdefghijkl") // 2*8 + 6
	chunks, err := Split(payload, chunkSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks", len(chunks))
	}

	for i, c := range chunks {
		res, err := f.apply(f.op("/big.bin", i, len(chunks), c))
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		final := i == len(chunks)-1
		if (res.Meta != nil) != final {
			t.Fatalf("chunk %d: meta written=%v, final=%v", i, res.Meta != nil, final)
		}
		if !final {
			// No meta yet: readers see the path as not chunked.
			if _, err := f.assemble("/big.bin"); !errors.Is(err, ErrNotChunked) {
				t.Fatalf("before final chunk: %v", err)
			}
		}
	}

	err = f.ledger.View(context.Background(), func(tx storage.Tx) error {
		m, ok, err := ReadMeta(tx, f.store.Deriver, "/big.bin")
		if err != nil || !ok {
			t.Fatalf("ReadMeta: ok=%v err=%v", ok, err)
		}
		if m.ChunkCount != 3 {
			t.Fatalf("ChunkCount = %d", m.ChunkCount)
		}
		md, _ := f.store.Deriver.Meta("/big.bin")
		s, _ := tx.Slot(md.Address)
		if s.Size() != record.MetaSize {
			t.Fatalf("meta slot is %d bytes", s.Size())
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := f.assemble("/big.bin")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("assembled %q", got)
	}
}

func TestAssembleDetectsMissingChunks(t *testing.T) {
	f := newFixture(t)
	// Only the final chunk lands; chunks 0 and 1 failed upstream.
	if _, err := f.apply(f.op("/partial", 2, 3, []byte("tail"))); err != nil {
		t.Fatal(err)
	}
	_, err := f.assemble("/partial")
	var inc *IncompleteError
	if !errors.As(err, &inc) {
		t.Fatalf("expected IncompleteError, got %v", err)
	}
	if inc.ChunkCount != 3 || len(inc.Missing) != 2 || inc.Missing[0] != 0 || inc.Missing[1] != 1 {
		t.Fatalf("unexpected incomplete report %+v", inc)
	}
	if !IsIncomplete(err) {
		t.Fatalf("IsIncomplete = false")
	}
}

func TestWriteChunkRejectsBadOps(t *testing.T) {
	f := newFixture(t)
	op := f.op("/x", 0, 2, []byte("a"))

	bad := op
	bad.ChunkCount = 0
	if _, err := f.apply(bad); !slot.IsKind(err, slot.KindMalformed) {
		t.Fatalf("count 0: %v", err)
	}
	bad = op
	bad.ChunkNo = 2
	if _, err := f.apply(bad); !slot.IsKind(err, slot.KindMalformed) {
		t.Fatalf("index past count: %v", err)
	}

	// Declared chunk address for index 1 while claiming index 0.
	other := f.op("/x", 1, 2, []byte("a"))
	bad = op
	bad.Target = other.Target
	if _, err := f.apply(bad); !slot.IsKind(err, slot.KindIntegrityMismatch) {
		t.Fatalf("wrong chunk target: %v", err)
	}

	// A bad meta declaration on the final chunk rolls back the chunk too.
	final := f.op("/x", 1, 2, []byte("b"))
	final.Meta = address.Address{0x99}
	if _, err := f.apply(final); !slot.IsKind(err, slot.KindIntegrityMismatch) {
		t.Fatalf("wrong meta target: %v", err)
	}
	err := f.ledger.View(context.Background(), func(tx storage.Tx) error {
		_, err := tx.Slot(final.Target)
		return err
	})
	if !storage.IsNotFound(err) {
		t.Fatalf("chunk written despite rejected meta: %v", err)
	}
}

func TestResetMeta(t *testing.T) {
	f := newFixture(t)
	reset := func(path string) bool {
		var ok bool
		err := f.ledger.Update(context.Background(), func(tx storage.Tx) error {
			var err error
			ok, err = f.store.ResetMeta(tx, testPayer, path)
			return err
		})
		if err != nil {
			t.Fatalf("ResetMeta: %v", err)
		}
		return ok
	}

	if reset("/never-chunked") {
		t.Fatalf("ResetMeta created a meta slot")
	}

	for i, c := range [][]byte{[]byte("aa"), []byte("b")} {
		if _, err := f.apply(f.op("/shrunk", i, 2, c)); err != nil {
			t.Fatal(err)
		}
	}
	if !reset("/shrunk") {
		t.Fatalf("ResetMeta skipped an existing meta slot")
	}
	if _, err := f.assemble("/shrunk"); !errors.Is(err, ErrNotChunked) {
		t.Fatalf("after reset: %v", err)
	}
}

func TestResolveFallsBackToContent(t *testing.T) {
	f := newFixture(t)
	d, err := f.store.Deriver.Content("/small.txt")
	if err != nil {
		t.Fatal(err)
	}
	err = f.ledger.Update(context.Background(), func(tx storage.Tx) error {
		_, err := f.store.Slots.Write(tx, testPayer, slot.Target{Declared: d.Address, Derived: d}, []byte("small"))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = f.ledger.View(context.Background(), func(tx storage.Tx) error {
		got, err := Resolve(tx, f.store.Deriver, "/small.txt")
		if err != nil || string(got) != "small" {
			t.Fatalf("Resolve = %q, %v", got, err)
		}
		return nil
	})
}
