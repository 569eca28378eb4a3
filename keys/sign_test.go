package keys

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"
)

func TestSignersVerify(t *testing.T) {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	for _, tc := range []struct{ alg, hashAlg string }{
		{AlgEd25519, "sha256"},
		{AlgEd25519, "sha3-256"},
		{AlgDilithium3, "sha256"},
		{AlgDilithium3, "sha512"},
	} {
		t.Run(tc.alg+"/"+tc.hashAlg, func(t *testing.T) {
			s, err := NewSigner(tc.alg, seed, tc.hashAlg)
			if err != nil {
				t.Fatalf("NewSigner: %v", err)
			}
			msg := []byte("put /index.html")
			sig, err := s.Sign(msg)
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}
			if err := Verify(s.Algorithm(), s.HashAlg(), s.PublicKey(), msg, sig); err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if err := Verify(s.Algorithm(), s.HashAlg(), s.PublicKey(), []byte("put /other"), sig); !errors.Is(err, ErrBadSignature) {
				t.Fatalf("expected ErrBadSignature, got %v", err)
			}

			payer, err := PayerAddress(s.Algorithm(), s.PublicKey())
			if err != nil {
				t.Fatalf("PayerAddress: %v", err)
			}
			if payer != s.Payer() {
				t.Fatalf("PayerAddress disagrees with Signer.Payer")
			}
		})
	}
}

func TestPayerAddressRules(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, SeedSize)
	ed, err := NewEd25519Signer(seed, "")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ed.Payer().Bytes(), ed.PublicKey()) {
		t.Fatalf("ed25519 payer must be the public key")
	}
	dl, err := NewDilithium3Signer(seed, "")
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(dl.PublicKey())
	if !bytes.Equal(dl.Payer().Bytes(), sum[:]) {
		t.Fatalf("dilithium3 payer must be sha256 of the public key")
	}
	if _, err := NewSigner("rsa", seed, ""); err == nil {
		t.Fatalf("expected unsupported algorithm error")
	}
	if _, err := NewSigner(AlgEd25519, seed, "md5"); err == nil {
		t.Fatalf("expected unsupported hash error")
	}
}
