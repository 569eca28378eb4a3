package address

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math"

	"filippo.io/edwards25519"
)

// MaxSeedLength bounds the length of a single derivation component.
const MaxSeedLength = 32

const pdaMarker = "ProgramDerivedAddress"

var (
	ErrSeedTooLong         = errors.New("address: derivation component longer than 32 bytes")
	ErrOnCurve             = errors.New("address: derived address is on the ed25519 curve")
	ErrDerivationExhausted = errors.New("address: no valid bump found")
)

// onCurve is swapped in tests to force the bump search to fail.
var onCurve = isOnCurve

// CreateProgramAddress hashes components (which must already include the
// bump as the final component) with the program identity.
//
// It fails with ErrOnCurve when the digest is a valid ed25519 point, because
// such an address could have a private key.
func CreateProgramAddress(components [][]byte, program Address) (Address, error) {
	h := sha256.New()
	for _, c := range components {
		if len(c) > MaxSeedLength {
			return Zero, fmt.Errorf("%w: %d bytes", ErrSeedTooLong, len(c))
		}
		_, _ = h.Write(c)
	}
	_, _ = h.Write(program[:])
	_, _ = h.Write([]byte(pdaMarker))

	var out Address
	copy(out[:], h.Sum(nil))
	if onCurve(out[:]) {
		return Zero, ErrOnCurve
	}
	return out, nil
}

// FindProgramAddress searches the bump from 255 down to 1 and returns the
// first address that is off the curve.
func FindProgramAddress(components [][]byte, program Address) (Address, uint8, error) {
	withBump := make([][]byte, len(components)+1)
	copy(withBump, components)
	bump := []byte{0}
	withBump[len(components)] = bump

	for b := math.MaxUint8; b > 0; b-- {
		bump[0] = uint8(b)
		addr, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return addr, uint8(b), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrDerivationExhausted
}

// IsOnCurve reports whether b decodes to a point on the ed25519 curve.
func IsOnCurve(a Address) bool { return isOnCurve(a[:]) }

func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
