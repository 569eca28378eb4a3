// Package cidutil names byte payloads with CIDv1 (raw codec, sha2-256).
//
// The slot protocol itself never stores CIDs. They are used for submission
// confirmations, upload reports and snapshot integrity checks.
package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// PayloadCID returns the CIDv1 (raw + sha2-256) of data.
func PayloadCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// PayloadCIDString is PayloadCID rendered as a string, or "" on failure.
func PayloadCIDString(data []byte) string {
	id, err := PayloadCID(data)
	if err != nil {
		// multihash.Sum only errors for unknown codes; unreachable with SHA2_256.
		return ""
	}
	return id.String()
}

// Confirmation is the identifier returned for an accepted submission: the
// CID of the exact envelope bytes.
func Confirmation(envelope []byte) string {
	return PayloadCIDString(envelope)
}
