package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/chunked"
	"xdao.co/w3slot/keys"
	"xdao.co/w3slot/slot"
	"xdao.co/w3slot/storage"
	"xdao.co/w3slot/storage/memory"
	"xdao.co/w3slot/wire"
)

var testProgram = address.Address{0xC0, 0xFF, 0xEE}

type harness struct {
	t      *testing.T
	ctx    context.Context
	ledger *memory.Ledger
	engine *Engine
	signer keys.Signer
	clock  time.Time
}

func newHarness(t *testing.T, funding uint64) *harness {
	t.Helper()
	signer, err := keys.NewEd25519Signer(bytes.Repeat([]byte{0x01}, keys.SeedSize), "")
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{t: t, ctx: context.Background(), ledger: memory.New(), signer: signer, clock: time.Unix(1700000000, 0)}
	h.engine = New(testProgram, h.ledger, WithNow(func() time.Time { return h.clock }), WithAirdrop(0))
	if funding > 0 {
		if _, err := h.engine.Airdrop(h.ctx, signer.Payer(), funding); err != nil {
			t.Fatal(err)
		}
	}
	return h
}

func (h *harness) submit(msg wire.Message) (Receipt, error) {
	h.t.Helper()
	env, err := wire.Seal(msg, h.signer)
	if err != nil {
		h.t.Fatalf("Seal: %v", err)
	}
	return h.engine.Apply(h.ctx, env)
}

func (h *harness) derive(f func(address.Deriver) (address.Derivation, error)) address.Address {
	h.t.Helper()
	d, err := f(h.engine.Deriver())
	if err != nil {
		h.t.Fatal(err)
	}
	return d.Address
}

func (h *harness) content(path string) address.Address {
	return h.derive(func(d address.Deriver) (address.Derivation, error) { return d.Content(path) })
}

func (h *harness) slotCount() int {
	n := 0
	_ = h.ledger.View(h.ctx, func(tx storage.Tx) error {
		return tx.ForEachSlot(func(storage.Slot) error { n++; return nil })
	})
	return n
}

func TestPutContentRoundTrip(t *testing.T) {
	h := newHarness(t, 1<<40)
	payload := []byte("<h1>hello</h1>")
	r, err := h.submit(wire.PutContent{Path: "/index.html", Body: payload, Target: h.content("/index.html")})
	if err != nil {
		t.Fatalf("PutContent: %v", err)
	}
	if r.Confirmation == "" || len(r.Slots) != 1 || !r.Slots[0].Created {
		t.Fatalf("unexpected receipt %+v", r)
	}
	got, err := h.engine.ReadPath(h.ctx, "/index.html")
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("ReadPath = %q, %v", got, err)
	}
	bal, _ := h.engine.Balance(h.ctx, h.signer.Payer())
	if bal != 1<<40-h.engine.MinimumBalance(len(payload)) {
		t.Fatalf("payer balance %d", bal)
	}
}

func TestPutContentIntegrityMismatch(t *testing.T) {
	h := newHarness(t, 1<<40)
	before, _ := h.engine.Balance(h.ctx, h.signer.Payer())
	_, err := h.submit(wire.PutContent{Path: "/a", Body: []byte("b"), Target: h.content("/b")})
	if !slot.IsKind(err, slot.KindIntegrityMismatch) {
		t.Fatalf("expected IntegrityMismatch, got %v", err)
	}
	if h.slotCount() != 0 {
		t.Fatalf("mismatched write created slots")
	}
	if after, _ := h.engine.Balance(h.ctx, h.signer.Payer()); after != before {
		t.Fatalf("payer charged for rejected write")
	}
}

func TestChunkedThenSingleResetsMeta(t *testing.T) {
	h := newHarness(t, 1<<40)
	const path = "/app.js"
	payload := bytes.Repeat([]byte("abcdefgh"), 5) // 40 bytes
	chunks, err := chunked.Split(payload, 16)
	if err != nil {
		t.Fatal(err)
	}
	meta := h.derive(func(d address.Deriver) (address.Derivation, error) { return d.Meta(path) })
	for i, c := range chunks {
		target := h.derive(func(d address.Deriver) (address.Derivation, error) { return d.Chunk(path, uint8(i)) })
		r, err := h.submit(wire.PutChunk{Path: path, ChunkNo: uint8(i), ChunkCount: uint8(len(chunks)), Body: c, Target: target, Meta: meta})
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		if want := 1 + btoi(i == len(chunks)-1); len(r.Slots) != want {
			t.Fatalf("chunk %d touched %d slots, want %d", i, len(r.Slots), want)
		}
	}
	got, err := h.engine.ReadPath(h.ctx, path)
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("ReadPath after chunks = %q, %v", got, err)
	}

	if _, err := h.submit(wire.PutContent{Path: path, Body: []byte("small"), Target: h.content(path)}); err != nil {
		t.Fatalf("PutContent: %v", err)
	}
	got, err = h.engine.ReadPath(h.ctx, path)
	if err != nil || string(got) != "small" {
		t.Fatalf("ReadPath after single write = %q, %v", got, err)
	}
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestClaimNameWriteOnce(t *testing.T) {
	h := newHarness(t, 1<<40)
	target := h.derive(func(d address.Deriver) (address.Derivation, error) { return d.Name("w3sol") })
	site := address.Address{0x5E}
	if _, err := h.submit(wire.ClaimName{Name: "w3sol", TargetProgram: site, DefaultPage: "/index.html", Target: target}); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	h.clock = h.clock.Add(time.Hour)
	other, err := keys.NewEd25519Signer(bytes.Repeat([]byte{0x02}, keys.SeedSize), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.Airdrop(h.ctx, other.Payer(), 1<<40); err != nil {
		t.Fatal(err)
	}
	h.signer = other
	_, err = h.submit(wire.ClaimName{Name: "w3sol", TargetProgram: address.Address{0x66}, DefaultPage: "/x.html", Target: target})
	if !slot.IsKind(err, slot.KindAlreadyClaimed) {
		t.Fatalf("expected AlreadyClaimed, got %v", err)
	}

	rec, err := h.engine.ReadName(h.ctx, "w3sol")
	if err != nil {
		t.Fatalf("ReadName: %v", err)
	}
	if rec.CreatedAt != 1700000000 || rec.Creator == other.Payer() || rec.Program != site || rec.DefaultPage != "/index.html" {
		t.Fatalf("name record changed: %+v", rec)
	}
}

func TestRejectsBadSignature(t *testing.T) {
	h := newHarness(t, 1<<40)
	env, err := wire.Seal(wire.PutContent{Path: "/a", Body: []byte("x"), Target: h.content("/a")}, h.signer)
	if err != nil {
		t.Fatal(err)
	}
	env.Auth.Signature[0] ^= 0xFF
	if _, err := h.engine.Apply(h.ctx, env); !slot.IsKind(err, slot.KindUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if h.slotCount() != 0 {
		t.Fatalf("unauthorized write landed")
	}
}

func TestInsufficientFunding(t *testing.T) {
	h := newHarness(t, 0)
	_, err := h.submit(wire.PutContent{Path: "/a", Body: []byte("x"), Target: h.content("/a")})
	if !slot.IsKind(err, slot.KindInsufficientFunding) {
		t.Fatalf("expected InsufficientFunding, got %v", err)
	}
}

func TestSubmitEncodedConfirmation(t *testing.T) {
	h := newHarness(t, 1<<40)
	env, err := wire.Seal(wire.PutContent{Path: "/a", Body: []byte("x"), Target: h.content("/a")}, h.signer)
	if err != nil {
		t.Fatal(err)
	}
	b, err := env.Encode()
	if err != nil {
		t.Fatal(err)
	}
	id, err := h.engine.SubmitEncoded(h.ctx, b)
	if err != nil {
		t.Fatalf("SubmitEncoded: %v", err)
	}
	if id != wire.Confirmation(b) {
		t.Fatalf("confirmation %s, want %s", id, wire.Confirmation(b))
	}
	if _, err := h.engine.SubmitEncoded(h.ctx, []byte("junk")); !slot.IsKind(err, slot.KindMalformed) {
		t.Fatalf("expected Malformed, got %v", err)
	}
}

func TestAirdropDisabledByDefault(t *testing.T) {
	e := New(testProgram, memory.New())
	if _, err := e.Airdrop(context.Background(), address.Address{1}, 10); !slot.IsKind(err, slot.KindUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	limited := New(testProgram, memory.New(), WithAirdrop(5))
	if _, err := limited.Airdrop(context.Background(), address.Address{1}, 10); !slot.IsKind(err, slot.KindUnauthorized) {
		t.Fatalf("expected limit rejection, got %v", err)
	}
	bal, err := limited.Airdrop(context.Background(), address.Address{1}, 5)
	if err != nil || bal != 5 {
		t.Fatalf("Airdrop = %d, %v", bal, err)
	}
}
