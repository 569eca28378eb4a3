// Package wire defines the operation messages that cross the submission /
// application boundary and the signed envelope that carries them.
//
// Everything is CBOR with Core Deterministic Encoding, so a message has
// exactly one byte form and signatures and confirmation ids are stable.
package wire

import (
	"fmt"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/codec"
)

// Kind tags the operation carried by an envelope.
type Kind string

const (
	KindPutContent Kind = "put_content"
	KindPutChunk   Kind = "put_chunk"
	KindClaimName  Kind = "claim_name"
)

// Message is an operation body.
type Message interface {
	Kind() Kind
}

// PutContent writes a whole payload to the path's single content slot.
type PutContent struct {
	Path string `cbor:"path"`
	Body []byte `cbor:"body"`
	// Target is the content slot address the submitter derived.
	Target address.Address `cbor:"target"`
}

// PutChunk writes chunk ChunkNo of ChunkCount. The final chunk also
// updates the meta slot.
type PutChunk struct {
	Path       string          `cbor:"path"`
	ChunkNo    uint8           `cbor:"chunk_no"`
	ChunkCount uint8           `cbor:"chunk_count"`
	Body       []byte          `cbor:"body"`
	Target     address.Address `cbor:"target"`
	Meta       address.Address `cbor:"meta"`
}

// ClaimName claims a human readable name, once.
type ClaimName struct {
	Name          string          `cbor:"name"`
	TargetProgram address.Address `cbor:"target_program"`
	DefaultPage   string          `cbor:"default_page"`
	Target        address.Address `cbor:"target"`
}

func (PutContent) Kind() Kind { return KindPutContent }
func (PutChunk) Kind() Kind   { return KindPutChunk }
func (ClaimName) Kind() Kind  { return KindClaimName }

// DecodeMessage decodes body according to kind.
func DecodeMessage(kind Kind, body []byte) (Message, error) {
	switch kind {
	case KindPutContent:
		var m PutContent
		if err := codec.Unmarshal(body, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, kind, err)
		}
		return m, nil
	case KindPutChunk:
		var m PutChunk
		if err := codec.Unmarshal(body, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, kind, err)
		}
		return m, nil
	case KindClaimName:
		var m ClaimName
		if err := codec.Unmarshal(body, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, kind, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, kind)
	}
}

// AirdropRequest asks a development daemon to fund a payer.
type AirdropRequest struct {
	Payer  address.Address `cbor:"payer"`
	Amount uint64          `cbor:"amount"`
}
