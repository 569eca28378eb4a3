package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"xdao.co/w3slot/address"
)

const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"

	DefaultHashAlg = "sha256"
)

var ErrBadSignature = errors.New("keys: signature verification failed")

// Signer signs envelopes on behalf of one payer.
type Signer interface {
	Algorithm() string
	HashAlg() string
	PublicKey() []byte
	// Payer is the funding account charged for operations signed by this key.
	Payer() address.Address
	// Sign signs hash(message) with HashAlg.
	Sign(message []byte) ([]byte, error)
}

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

type ed25519Signer struct {
	priv    ed25519.PrivateKey
	hashAlg string
}

// NewEd25519Signer returns a signer for the ed25519 key derived from seed.
// An empty hashAlg selects DefaultHashAlg.
func NewEd25519Signer(seed []byte, hashAlg string) (Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	if hashAlg == "" {
		hashAlg = DefaultHashAlg
	}
	if _, err := digestFor(hashAlg, nil); err != nil {
		return nil, err
	}
	return &ed25519Signer{priv: ed25519.NewKeyFromSeed(seed), hashAlg: hashAlg}, nil
}

func (s *ed25519Signer) Algorithm() string { return AlgEd25519 }
func (s *ed25519Signer) HashAlg() string   { return s.hashAlg }

func (s *ed25519Signer) PublicKey() []byte {
	return append([]byte(nil), s.priv.Public().(ed25519.PublicKey)...)
}

func (s *ed25519Signer) Payer() address.Address {
	var a address.Address
	copy(a[:], s.priv.Public().(ed25519.PublicKey))
	return a
}

func (s *ed25519Signer) Sign(message []byte) ([]byte, error) {
	digest, err := digestFor(s.hashAlg, message)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(s.priv, digest), nil
}

type dilithium3Signer struct {
	pk      *mode3.PublicKey
	sk      *mode3.PrivateKey
	hashAlg string
}

// NewDilithium3Signer returns a signer for the dilithium3 key derived from
// seed. An empty hashAlg selects DefaultHashAlg.
func NewDilithium3Signer(seed []byte, hashAlg string) (Signer, error) {
	if len(seed) != mode3.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", mode3.SeedSize, len(seed))
	}
	if hashAlg == "" {
		hashAlg = DefaultHashAlg
	}
	if _, err := digestFor(hashAlg, nil); err != nil {
		return nil, err
	}
	var s [mode3.SeedSize]byte
	copy(s[:], seed)
	pk, sk := mode3.NewKeyFromSeed(&s)
	return &dilithium3Signer{pk: pk, sk: sk, hashAlg: hashAlg}, nil
}

func (s *dilithium3Signer) Algorithm() string { return AlgDilithium3 }
func (s *dilithium3Signer) HashAlg() string   { return s.hashAlg }
func (s *dilithium3Signer) PublicKey() []byte { return s.pk.Bytes() }

func (s *dilithium3Signer) Payer() address.Address {
	return address.Address(sha256.Sum256(s.pk.Bytes()))
}

func (s *dilithium3Signer) Sign(message []byte) ([]byte, error) {
	digest, err := digestFor(s.hashAlg, message)
	if err != nil {
		return nil, err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.sk, digest, sig)
	return sig, nil
}

// NewSigner dispatches on alg.
func NewSigner(alg string, seed []byte, hashAlg string) (Signer, error) {
	switch alg {
	case "", AlgEd25519:
		return NewEd25519Signer(seed, hashAlg)
	case AlgDilithium3:
		return NewDilithium3Signer(seed, hashAlg)
	default:
		return nil, fmt.Errorf("unsupported key algorithm: %q", alg)
	}
}

// PayerAddress returns the funding account controlled by pub.
func PayerAddress(alg string, pub []byte) (address.Address, error) {
	switch alg {
	case AlgEd25519:
		return address.FromBytes(pub)
	case AlgDilithium3:
		if len(pub) != mode3.PublicKeySize {
			return address.Address{}, fmt.Errorf("dilithium3 public key must be %d bytes, got %d", mode3.PublicKeySize, len(pub))
		}
		return address.Address(sha256.Sum256(pub)), nil
	default:
		return address.Address{}, fmt.Errorf("unsupported key algorithm: %q", alg)
	}
}

// Verify checks sig over hash(message). It returns ErrBadSignature when
// the signature does not verify.
func Verify(alg, hashAlg string, pub, message, sig []byte) error {
	digest, err := digestFor(hashAlg, message)
	if err != nil {
		return err
	}
	switch alg {
	case AlgEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return ErrBadSignature
		}
		return nil
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return fmt.Errorf("dilithium3 public key: %w", err)
		}
		if !mode3.Verify(&pk, digest, sig) {
			return ErrBadSignature
		}
		return nil
	default:
		return fmt.Errorf("unsupported key algorithm: %q", alg)
	}
}
