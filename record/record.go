// Package record defines the fixed-layout payloads stored in meta and name
// slots.
//
// Records use borsh, the layout readers of the hosting environment already
// decode: little-endian integers, u32 length-prefixed strings, fixed arrays
// written inline.
package record

import (
	"errors"
	"fmt"

	"github.com/near/borsh-go"

	"xdao.co/w3slot/address"
)

// MetaSize is the encoded size of Meta. Meta slots never grow beyond it.
const MetaSize = 1

// MaxChunkCount is the largest chunk count a Meta record can describe.
const MaxChunkCount = 255

var ErrMalformed = errors.New("record: malformed record")

// Meta describes how many chunk slots make up a chunked path.
//
// ChunkCount 0 means the path currently lives in its single content slot and
// any chunk slots left behind are stale.
type Meta struct {
	ChunkCount uint8
}

func (m Meta) Encode() ([]byte, error) {
	return borsh.Serialize(m)
}

func DecodeMeta(data []byte) (Meta, error) {
	var m Meta
	if len(data) != MetaSize {
		return m, fmt.Errorf("%w: meta is %d bytes, want %d", ErrMalformed, len(data), MetaSize)
	}
	if err := borsh.Deserialize(&m, data); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}

// Name is the write-once record claimed for a human readable name.
type Name struct {
	Name        string
	Program     address.Address
	Creator     address.Address
	CreatedAt   uint64
	DefaultPage string
}

func (n Name) Encode() ([]byte, error) {
	return borsh.Serialize(n)
}

func DecodeName(data []byte) (Name, error) {
	var n Name
	if len(data) == 0 {
		return n, fmt.Errorf("%w: empty name record", ErrMalformed)
	}
	if err := borsh.Deserialize(&n, data); err != nil {
		return Name{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return n, nil
}
