package address

import "fmt"

// Namespace separates derivation domains so that the same seed never maps
// two logically different slots to one address.
type Namespace string

const (
	NamespaceContent Namespace = "content"
	NamespaceChunk   Namespace = "content-chunk"
	NamespaceMeta    Namespace = "meta"
	NamespaceName    Namespace = "name-config"
)

// component terminates the tag so that no namespace component is a prefix of
// another. The primitive concatenates components, so without the terminator
// "content" + "-chunk/x" would hash like "content-chunk" + "/x".
func (ns Namespace) component() []byte {
	return []byte(string(ns) + ":")
}

// Derivation is a derived address together with the bump that produced it.
// The bump is never chosen by callers; both sides recompute it.
type Derivation struct {
	Address Address
	Bump    uint8
}

// Deriver maps (namespace, seed, suffix) to addresses owned by Program.
//
// Deriver is pure and safe for concurrent use. The same Deriver value is
// used on the submitting side and inside the engine.
type Deriver struct {
	Program Address
}

func NewDeriver(program Address) Deriver {
	return Deriver{Program: program}
}

// SeedComponents splits seed into ordered components of at most
// MaxSeedLength bytes. Seeds up to MaxSeedLength (including the empty seed)
// are a single component.
func SeedComponents(seed []byte) [][]byte {
	if len(seed) <= MaxSeedLength {
		return [][]byte{seed}
	}
	out := make([][]byte, 0, (len(seed)+MaxSeedLength-1)/MaxSeedLength)
	for start := 0; start < len(seed); start += MaxSeedLength {
		end := start + MaxSeedLength
		if end > len(seed) {
			end = len(seed)
		}
		out = append(out, seed[start:end])
	}
	return out
}

// Components returns the full ordered component list for a derivation,
// excluding the bump. A nil suffix means "no suffix"; an empty non-nil suffix
// is a component of its own.
func Components(ns Namespace, seed []byte, suffix []byte) ([][]byte, error) {
	tag := ns.component()
	if len(tag) > MaxSeedLength {
		return nil, fmt.Errorf("%w: namespace %q", ErrSeedTooLong, ns)
	}
	if len(suffix) > MaxSeedLength {
		return nil, fmt.Errorf("%w: suffix", ErrSeedTooLong)
	}
	parts := SeedComponents(seed)
	out := make([][]byte, 0, len(parts)+2)
	out = append(out, tag)
	out = append(out, parts...)
	if suffix != nil {
		out = append(out, suffix)
	}
	return out, nil
}

func (d Deriver) Derive(ns Namespace, seed []byte) (Derivation, error) {
	return d.derive(ns, seed, nil)
}

// DeriveWithSuffix appends suffix as one trailing component after all seed
// pieces. It is never merged into a seed piece.
func (d Deriver) DeriveWithSuffix(ns Namespace, seed []byte, suffix []byte) (Derivation, error) {
	if suffix == nil {
		suffix = []byte{}
	}
	return d.derive(ns, seed, suffix)
}

func (d Deriver) derive(ns Namespace, seed []byte, suffix []byte) (Derivation, error) {
	components, err := Components(ns, seed, suffix)
	if err != nil {
		return Derivation{}, err
	}
	addr, bump, err := FindProgramAddress(components, d.Program)
	if err != nil {
		return Derivation{}, err
	}
	return Derivation{Address: addr, Bump: bump}, nil
}

// Content is the single-slot address of path.
func (d Deriver) Content(path string) (Derivation, error) {
	return d.Derive(NamespaceContent, []byte(path))
}

// Meta is the chunk-count slot of a chunked path.
func (d Deriver) Meta(path string) (Derivation, error) {
	return d.Derive(NamespaceMeta, []byte(path))
}

// Chunk is the slot holding chunk index of path.
func (d Deriver) Chunk(path string, index uint8) (Derivation, error) {
	return d.DeriveWithSuffix(NamespaceChunk, []byte(path), []byte{index})
}

// Name is the write-once name record slot.
func (d Deriver) Name(name string) (Derivation, error) {
	return d.Derive(NamespaceName, []byte(name))
}
