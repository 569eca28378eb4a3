// Package chunked stores payloads too large for one slot as an ordered set
// of chunk slots plus one meta slot holding the chunk count.
//
// Ordering: the meta slot is written together with the final chunk, so a
// meta record is only ever updated after every chunk of that version was
// submitted. There is no atomicity across chunks. Readers treat a meta
// count whose chunks are not all present as incomplete and retry.
//
// Only absent chunks are detected. When a re-upload of an existing path
// loses a middle chunk but lands the final one, the old chunk slot is still
// present and Assemble returns a mix of both versions without error.
package chunked

import (
	"errors"
	"fmt"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/record"
	"xdao.co/w3slot/slot"
	"xdao.co/w3slot/storage"
)

// Op is one chunk write as applied by the engine.
type Op struct {
	Path       string
	ChunkNo    uint8
	ChunkCount uint8
	Body       []byte
	// Target is the declared chunk slot address.
	Target address.Address
	// Meta is the declared meta slot address. Checked on the final chunk.
	Meta address.Address
}

// Final reports whether op carries the last chunk of its set.
func (op Op) Final() bool {
	return op.ChunkCount > 0 && op.ChunkNo == op.ChunkCount-1
}

// Result reports the slot writes performed for one chunk.
type Result struct {
	Chunk slot.Outcome
	// Meta is set when the chunk was final and the meta slot was written.
	Meta *slot.Outcome
}

// Store applies chunk and meta writes on top of a slot.Store.
type Store struct {
	Slots   *slot.Store
	Deriver address.Deriver
}

func NewStore(slots *slot.Store) *Store {
	return &Store{Slots: slots, Deriver: address.NewDeriver(slots.Program)}
}

// WriteChunk writes one chunk. When op is the final chunk it also writes
// the meta slot with op.ChunkCount.
func (s *Store) WriteChunk(tx storage.Tx, payer address.Address, op Op) (Result, error) {
	if op.ChunkCount == 0 {
		return Result{}, slot.NewError(slot.KindMalformed, "CHUNK-OP-001", "chunk_count must be at least 1")
	}
	if op.ChunkNo >= op.ChunkCount {
		return Result{}, slot.NewError(slot.KindMalformed, "CHUNK-OP-002",
			fmt.Sprintf("chunk_no %d out of range for chunk_count %d", op.ChunkNo, op.ChunkCount))
	}

	d, err := s.Deriver.Chunk(op.Path, op.ChunkNo)
	if err != nil {
		return Result{}, DerivationError(err)
	}
	chunkOut, err := s.Slots.Write(tx, payer, slot.Target{Declared: op.Target, Derived: d}, op.Body)
	if err != nil {
		return Result{}, err
	}
	res := Result{Chunk: chunkOut}
	if !op.Final() {
		return res, nil
	}

	md, err := s.Deriver.Meta(op.Path)
	if err != nil {
		return Result{}, DerivationError(err)
	}
	meta, err := record.Meta{ChunkCount: op.ChunkCount}.Encode()
	if err != nil {
		return Result{}, slot.WrapError(slot.KindInternal, "CHUNK-META-001", "encoding meta record", err)
	}
	metaOut, err := s.Slots.Write(tx, payer, slot.Target{Declared: op.Meta, Derived: md}, meta)
	if err != nil {
		return Result{}, err
	}
	res.Meta = &metaOut
	return res, nil
}

// ResetMeta marks path as no longer chunked by setting an existing meta
// slot's count to zero. Chunk slots left behind become unreachable. When no
// meta slot exists nothing is written and ResetMeta returns false.
func (s *Store) ResetMeta(tx storage.Tx, payer address.Address, path string) (bool, error) {
	md, err := s.Deriver.Meta(path)
	if err != nil {
		return false, DerivationError(err)
	}
	ok, err := s.Slots.Exists(tx, md.Address)
	if err != nil {
		return false, slot.WrapError(slot.KindInternal, "SLOT-IO-001", fmt.Sprintf("reading slot %s", md.Address), err)
	}
	if !ok {
		return false, nil
	}
	meta, err := record.Meta{}.Encode()
	if err != nil {
		return false, slot.WrapError(slot.KindInternal, "CHUNK-META-001", "encoding meta record", err)
	}
	if _, err := s.Slots.Write(tx, payer, slot.Target{Declared: md.Address, Derived: md}, meta); err != nil {
		return false, err
	}
	return true, nil
}

// DerivationError classifies an address derivation failure.
func DerivationError(err error) error {
	if errors.Is(err, address.ErrDerivationExhausted) {
		return slot.WrapError(slot.KindDerivationExhausted, "ADDR-001", "address derivation exhausted", err)
	}
	return slot.WrapError(slot.KindMalformed, "ADDR-002", "address derivation rejected input", err)
}
