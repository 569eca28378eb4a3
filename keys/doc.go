// Package keys manages payer keys: the signers that authorize slot
// operations and the addresses funding is debited from.
//
// Two algorithms are supported, both created from a 32-byte seed:
//   - ed25519: the payer address is the public key itself.
//   - dilithium3: the payer address is sha256(public key).
//
// KeyStore is a local-first, filesystem-backed store of those seeds.
package keys
