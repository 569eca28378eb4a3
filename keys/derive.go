package keys

import (
	"crypto/sha256"
	"fmt"
)

// SeedSize is the size of every key seed in the store.
const SeedSize = 32

// DeriveRoleSeed deterministically derives a role-specific seed from a
// root seed, so one root can fund several independent payers (one per
// site, say) without storing unrelated secrets.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", SeedSize)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("xdao-w3slot-payer-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("role:"))
	_, _ = h.Write([]byte(role))
	return h.Sum(nil)[:SeedSize], nil
}
