// Package address derives deterministic slot addresses from a program
// identity, a namespace tag, a seed and an optional suffix.
//
// Derivation rules:
//   - The namespace tag, terminated by ":", is the first component.
//   - A seed longer than 32 bytes is split into consecutive 32-byte pieces,
//     each fed as its own component; shorter seeds are one component.
//     Nothing is truncated or hashed away, so every seed byte affects the result.
//   - A suffix (for example a one-byte chunk index) is one trailing component.
//   - The bump counter is searched from 255 downwards until the digest is not
//     a valid ed25519 point.
//
// The package has no I/O and no mutable state. The same code runs on the
// submitting side and inside the engine that applies operations.
package address
