package address

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func testProgram() Address {
	var p Address
	for i := range p {
		p[i] = byte(i + 1)
	}
	return p
}

func mustDerive(t *testing.T) func(Derivation, error) Derivation {
	return func(d Derivation, err error) Derivation {
		t.Helper()
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		return d
	}
}

func TestDeriveDeterministic(t *testing.T) {
	d := NewDeriver(testProgram())
	seeds := []string{"", "/", "/index.html", strings.Repeat("x", 32), strings.Repeat("y", 33), strings.Repeat("/deep/path", 40)}
	for _, s := range seeds {
		a := mustDerive(t)(d.Derive(NamespaceContent, []byte(s)))
		b := mustDerive(t)(d.Derive(NamespaceContent, []byte(s)))
		if a != b {
			t.Fatalf("seed %q: derivation not deterministic: %v vs %v", s, a, b)
		}
		if IsOnCurve(a.Address) {
			t.Fatalf("seed %q: derived address is on curve", s)
		}
	}
}

func TestDeriveNamespacesDiffer(t *testing.T) {
	d := NewDeriver(testProgram())
	path := "/images/logo.png"
	content := mustDerive(t)(d.Content(path))
	meta := mustDerive(t)(d.Meta(path))
	chunk0 := mustDerive(t)(d.Chunk(path, 0))
	chunk1 := mustDerive(t)(d.Chunk(path, 1))
	name := mustDerive(t)(d.Name(path))

	seen := map[Address]string{}
	for label, got := range map[string]Derivation{"content": content, "meta": meta, "chunk0": chunk0, "chunk1": chunk1, "name": name} {
		if other, ok := seen[got.Address]; ok {
			t.Fatalf("%s collides with %s", label, other)
		}
		seen[got.Address] = label
	}
}

func TestDeriveNamespacePrefixDoesNotCollide(t *testing.T) {
	d := NewDeriver(testProgram())
	// Without a terminated namespace tag these two concatenate to the same bytes.
	content := mustDerive(t)(d.Derive(NamespaceContent, []byte("-chunk/x\x00")))
	chunk := mustDerive(t)(d.Chunk("/x", 0))
	if content.Address == chunk.Address {
		t.Fatalf("content and chunk namespaces collide")
	}
}

func TestDeriveLongSeedNotTruncated(t *testing.T) {
	d := NewDeriver(testProgram())
	seed := []byte(strings.Repeat("a", 100))
	base := mustDerive(t)(d.Derive(NamespaceContent, seed))
	for _, pos := range []int{32, 33, 40, 63, 64, 99} {
		changed := append([]byte(nil), seed...)
		changed[pos] = 'b'
		got := mustDerive(t)(d.Derive(NamespaceContent, changed))
		if got.Address == base.Address {
			t.Fatalf("changing byte %d did not change the address", pos)
		}
	}
}

func TestDeriveProgramMatters(t *testing.T) {
	other := testProgram()
	other[0] ^= 0xff
	a := mustDerive(t)(NewDeriver(testProgram()).Content("/a"))
	b := mustDerive(t)(NewDeriver(other).Content("/a"))
	if a.Address == b.Address {
		t.Fatalf("different programs derived the same address")
	}
}

func TestSeedComponents(t *testing.T) {
	tests := []struct {
		name    string
		seedLen int
		want    []int
	}{
		{"empty", 0, []int{0}},
		{"short", 5, []int{5}},
		{"exact", 32, []int{32}},
		{"one over", 33, []int{32, 1}},
		{"two full", 64, []int{32, 32}},
		{"ragged", 70, []int{32, 32, 6}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seed := bytes.Repeat([]byte{'s'}, tc.seedLen)
			got := SeedComponents(seed)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d components, want %d", len(got), len(tc.want))
			}
			var joined []byte
			for i, c := range got {
				if len(c) != tc.want[i] {
					t.Fatalf("component %d: got len %d want %d", i, len(c), tc.want[i])
				}
				joined = append(joined, c...)
			}
			if !bytes.Equal(joined, seed) {
				t.Fatalf("components do not reassemble the seed")
			}
		})
	}
}

func TestComponentsSuffixIsTrailing(t *testing.T) {
	seed := bytes.Repeat([]byte{'p'}, 40)
	got, err := Components(NamespaceChunk, seed, []byte{7})
	if err != nil {
		t.Fatalf("Components: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d components, want 4 (tag, 2 seed pieces, suffix)", len(got))
	}
	if string(got[0]) != "content-chunk:" {
		t.Fatalf("unexpected tag component %q", got[0])
	}
	if !bytes.Equal(got[3], []byte{7}) {
		t.Fatalf("suffix was not the trailing component: %v", got[3])
	}
}

func TestCreateProgramAddressRejectsLongComponent(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{bytes.Repeat([]byte{1}, 33)}, testProgram())
	if !errors.Is(err, ErrSeedTooLong) {
		t.Fatalf("got %v, want ErrSeedTooLong", err)
	}
}

func TestCreateProgramAddressMatchesFind(t *testing.T) {
	program := testProgram()
	components, err := Components(NamespaceMeta, []byte("/docs/readme.md"), nil)
	if err != nil {
		t.Fatalf("Components: %v", err)
	}
	addr, bump, err := FindProgramAddress(components, program)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	again, err := CreateProgramAddress(append(components, []byte{bump}), program)
	if err != nil {
		t.Fatalf("CreateProgramAddress: %v", err)
	}
	if again != addr {
		t.Fatalf("verifying side computed %s, want %s", again, addr)
	}
}

func TestFindProgramAddressExhausted(t *testing.T) {
	prev := onCurve
	onCurve = func([]byte) bool { return true }
	defer func() { onCurve = prev }()

	_, err := NewDeriver(testProgram()).Content("/a")
	if !errors.Is(err, ErrDerivationExhausted) {
		t.Fatalf("got %v, want ErrDerivationExhausted", err)
	}
}

func TestAddressTextRoundTrip(t *testing.T) {
	a := mustDerive(t)(NewDeriver(testProgram()).Content("/index.html")).Address
	parsed, err := Parse(a.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != a {
		t.Fatalf("round trip mismatch")
	}
	if _, err := Parse("not-base58-0OIl"); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := Parse("abc"); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for short input, got %v", err)
	}
}

func TestAddressCBORRequiresExactLength(t *testing.T) {
	a := mustDerive(t)(NewDeriver(testProgram()).Content("/index.html")).Address
	b, err := cbor.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if want := append([]byte{0x58, Size}, a[:]...); !bytes.Equal(b, want) {
		t.Fatalf("encoded %x, want %x", b, want)
	}
	var got Address
	if err := cbor.Unmarshal(b, &got); err != nil || got != a {
		t.Fatalf("round trip = %s, %v", got, err)
	}

	for _, n := range []int{0, 5, 31, 33, 40} {
		raw, err := cbor.Marshal(bytes.Repeat([]byte{0x07}, n))
		if err != nil {
			t.Fatal(err)
		}
		var bad Address
		if err := cbor.Unmarshal(raw, &bad); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("%d-byte string: expected ErrInvalidAddress, got %v", n, err)
		}
	}
	raw, err := cbor.Marshal(a.String())
	if err != nil {
		t.Fatal(err)
	}
	var text Address
	if err := cbor.Unmarshal(raw, &text); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("text string: expected ErrInvalidAddress, got %v", err)
	}
}
