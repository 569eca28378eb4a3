package wire

import (
	"errors"
	"fmt"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/cidutil"
	"xdao.co/w3slot/codec"
	"xdao.co/w3slot/keys"
)

var (
	ErrMalformed = errors.New("wire: malformed message")
	// ErrPayerMismatch means the envelope's payer is not the account
	// controlled by its public key.
	ErrPayerMismatch = errors.New("wire: payer does not match public key")
)

// Auth carries the payer's signature over the envelope's signing bytes.
type Auth struct {
	Alg       string `cbor:"alg"`
	HashAlg   string `cbor:"hash_alg"`
	PublicKey []byte `cbor:"public_key"`
	Signature []byte `cbor:"signature"`
}

// Envelope is one signed operation.
type Envelope struct {
	Kind  Kind            `cbor:"kind"`
	Payer address.Address `cbor:"payer"`
	Body  []byte          `cbor:"body"`
	Auth  Auth            `cbor:"auth"`
}

type signed struct {
	Kind  Kind            `cbor:"kind"`
	Payer address.Address `cbor:"payer"`
	Body  []byte          `cbor:"body"`
}

// SigningBytes is the CBOR encoding of {kind, payer, body}.
func (e Envelope) SigningBytes() ([]byte, error) {
	return codec.Marshal(signed{Kind: e.Kind, Payer: e.Payer, Body: e.Body})
}

// Seal encodes msg and signs it with signer.
func Seal(msg Message, signer keys.Signer) (Envelope, error) {
	if signer == nil {
		return Envelope{}, errors.New("wire: nil signer")
	}
	body, err := codec.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("wire: encoding %s: %w", msg.Kind(), err)
	}
	env := Envelope{Kind: msg.Kind(), Payer: signer.Payer(), Body: body}
	sb, err := env.SigningBytes()
	if err != nil {
		return Envelope{}, err
	}
	sig, err := signer.Sign(sb)
	if err != nil {
		return Envelope{}, fmt.Errorf("wire: signing %s: %w", msg.Kind(), err)
	}
	env.Auth = Auth{Alg: signer.Algorithm(), HashAlg: signer.HashAlg(), PublicKey: signer.PublicKey(), Signature: sig}
	return env, nil
}

// Verify checks that the payer is controlled by the public key and that the
// signature covers the signing bytes.
func (e Envelope) Verify() error {
	payer, err := keys.PayerAddress(e.Auth.Alg, e.Auth.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if payer != e.Payer {
		return fmt.Errorf("%w: %s declared, key controls %s", ErrPayerMismatch, e.Payer, payer)
	}
	sb, err := e.SigningBytes()
	if err != nil {
		return err
	}
	return keys.Verify(e.Auth.Alg, e.Auth.HashAlg, e.Auth.PublicKey, sb, e.Auth.Signature)
}

// Message decodes the envelope body.
func (e Envelope) Message() (Message, error) {
	return DecodeMessage(e.Kind, e.Body)
}

func (e Envelope) Encode() ([]byte, error) {
	return codec.Marshal(e)
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := codec.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	if e.Kind == "" {
		return Envelope{}, fmt.Errorf("%w: envelope has no kind", ErrMalformed)
	}
	return e, nil
}

// Confirmation is the id reported for an applied envelope: the CID of its
// encoded bytes.
func Confirmation(encoded []byte) string {
	return cidutil.Confirmation(encoded)
}
