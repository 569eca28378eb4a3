package address

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/mr-tron/base58"
)

// Size is the byte length of an Address.
const Size = 32

// Address identifies a storage slot, a program, or a payer.
//
// The text form is base58, matching how the hosting environment renders keys.
type Address [Size]byte

// Zero is the all-zero address.
var Zero Address

var ErrInvalidAddress = errors.New("address: invalid address")

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) IsZero() bool { return a == Zero }

func (a Address) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, a[:])
	return out
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalCBOR encodes a as a byte string of exactly Size bytes.
func (a Address) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(a[:])
}

// UnmarshalCBOR accepts only a byte string of exactly Size bytes. Without
// it a fixed array would silently zero-pad short values and truncate long
// ones.
func (a *Address) UnmarshalCBOR(data []byte) error {
	if len(data) == 0 || data[0]>>5 != 2 {
		return fmt.Errorf("%w: expected CBOR byte string", ErrInvalidAddress)
	}
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	parsed, err := FromBytes(b)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Parse decodes a base58 address string.
func Parse(s string) (Address, error) {
	var a Address
	if s == "" {
		return a, ErrInvalidAddress
	}
	b, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(b) != Size {
		return a, fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalidAddress, len(b), Size)
	}
	copy(a[:], b)
	return a, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromBytes copies b into an Address. b must be exactly Size bytes.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidAddress, len(b), Size)
	}
	copy(a[:], b)
	return a, nil
}
