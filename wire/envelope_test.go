package wire

import (
	"bytes"
	"errors"
	"testing"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/codec"
	"xdao.co/w3slot/keys"
)

func testSigner(t *testing.T, alg string) keys.Signer {
	t.Helper()
	s, err := keys.NewSigner(alg, bytes.Repeat([]byte{0x5A}, keys.SeedSize), "")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSealVerifyDecode(t *testing.T) {
	for _, alg := range []string{keys.AlgEd25519, keys.AlgDilithium3} {
		t.Run(alg, func(t *testing.T) {
			signer := testSigner(t, alg)
			msg := PutChunk{Path: "/big.bin", ChunkNo: 1, ChunkCount: 3, Body: []byte("chunk"), Target: address.Address{1}, Meta: address.Address{2}}
			env, err := Seal(msg, signer)
			if err != nil {
				t.Fatalf("Seal: %v", err)
			}
			if env.Kind != KindPutChunk || env.Payer != signer.Payer() {
				t.Fatalf("unexpected envelope header %+v", env)
			}

			b, err := env.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := DecodeEnvelope(b)
			if err != nil {
				t.Fatalf("DecodeEnvelope: %v", err)
			}
			if err := got.Verify(); err != nil {
				t.Fatalf("Verify: %v", err)
			}
			m, err := got.Message()
			if err != nil {
				t.Fatalf("Message: %v", err)
			}
			pc, ok := m.(PutChunk)
			if !ok || pc.Path != msg.Path || pc.ChunkNo != 1 || pc.ChunkCount != 3 || !bytes.Equal(pc.Body, msg.Body) || pc.Meta != msg.Meta {
				t.Fatalf("decoded message %+v", m)
			}
		})
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	signer := testSigner(t, keys.AlgEd25519)
	msg := PutContent{Path: "/a", Body: []byte("b"), Target: address.Address{9}}
	e1, err := Seal(msg, signer)
	if err != nil {
		t.Fatal(err)
	}
	e2, err := Seal(msg, signer)
	if err != nil {
		t.Fatal(err)
	}
	b1, _ := e1.Encode()
	b2, _ := e2.Encode()
	if !bytes.Equal(b1, b2) {
		t.Fatalf("ed25519 envelopes for the same message differ")
	}
	if Confirmation(b1) != Confirmation(b2) || Confirmation(b1) == "" {
		t.Fatalf("confirmation not stable")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	signer := testSigner(t, keys.AlgEd25519)
	env, err := Seal(PutContent{Path: "/a", Body: []byte("original")}, signer)
	if err != nil {
		t.Fatal(err)
	}

	tampered := env
	tampered.Body = append([]byte(nil), env.Body...)
	tampered.Body[len(tampered.Body)-1] ^= 0xFF
	if err := tampered.Verify(); !errors.Is(err, keys.ErrBadSignature) {
		t.Fatalf("body tamper: %v", err)
	}

	other := testSigner(t, keys.AlgDilithium3)
	stolen := env
	stolen.Payer = other.Payer()
	if err := stolen.Verify(); !errors.Is(err, ErrPayerMismatch) {
		t.Fatalf("payer swap: %v", err)
	}

	rekeyed := env
	rekeyed.Kind = KindClaimName
	if err := rekeyed.Verify(); !errors.Is(err, keys.ErrBadSignature) {
		t.Fatalf("kind swap: %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeEnvelope([]byte{0xFF, 0x00}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := DecodeMessage("delete_everything", nil); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for unknown kind, got %v", err)
	}
}

func TestDecodeRejectsWrongLengthAddresses(t *testing.T) {
	for _, n := range []int{31, 33} {
		bad := bytes.Repeat([]byte{0x09}, n)

		body, err := codec.Marshal(map[string]any{"path": "/a", "body": []byte("x"), "target": bad})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := DecodeMessage(KindPutContent, body); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%d-byte target: expected ErrMalformed, got %v", n, err)
		}

		env, err := codec.Marshal(map[string]any{
			"kind":  string(KindPutContent),
			"payer": bad,
			"body":  body,
			"auth":  map[string]any{"alg": keys.AlgEd25519, "hash_alg": "sha256", "public_key": []byte{}, "signature": []byte{}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := DecodeEnvelope(env); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%d-byte payer: expected ErrMalformed, got %v", n, err)
		}

		req, err := codec.Marshal(map[string]any{"payer": bad, "amount": 1})
		if err != nil {
			t.Fatal(err)
		}
		var ar AirdropRequest
		if err := codec.Unmarshal(req, &ar); !errors.Is(err, address.ErrInvalidAddress) {
			t.Fatalf("%d-byte airdrop payer: expected ErrInvalidAddress, got %v", n, err)
		}
	}
}
