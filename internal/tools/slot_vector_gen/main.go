package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/codec"
	"xdao.co/w3slot/keys"
	"xdao.co/w3slot/record"
	"xdao.co/w3slot/wire"
)

// Prints derivation and encoding vectors for a fixed program so other
// implementations of the slot protocol can be checked against this one.
func main() {
	program := address.Address{}
	for i := range program {
		program[i] = byte(i + 1)
	}
	der := address.NewDeriver(program)
	fmt.Printf("PROGRAM=%s\n", program)

	paths := []string{
		"",
		"/index.html",
		"/" + strings.Repeat("a", 31),
		"/" + strings.Repeat("b", 40),
		"/assets/" + strings.Repeat("c", 90) + ".js",
	}
	for _, p := range paths {
		content := must(der.Content(p))
		meta := must(der.Meta(p))
		chunk0 := must(der.Chunk(p, 0))
		chunk7 := must(der.Chunk(p, 7))
		fmt.Printf("PATH=%q len=%d\n", p, len(p))
		fmt.Printf("  content %s bump=%d\n", content.Address, content.Bump)
		fmt.Printf("  meta    %s bump=%d\n", meta.Address, meta.Bump)
		fmt.Printf("  chunk0  %s bump=%d\n", chunk0.Address, chunk0.Bump)
		fmt.Printf("  chunk7  %s bump=%d\n", chunk7.Address, chunk7.Bump)
	}

	name := must(der.Name("w3sol"))
	fmt.Printf("NAME=%q %s bump=%d\n", "w3sol", name.Address, name.Bump)

	metaBytes, err := record.Meta{ChunkCount: 3}.Encode()
	if err != nil {
		panic(err)
	}
	fmt.Printf("META{3}=%s\n", hex.EncodeToString(metaBytes))

	signer, err := keys.NewEd25519Signer(bytes.Repeat([]byte{0xA1}, keys.SeedSize), "")
	if err != nil {
		panic(err)
	}
	nameBytes, err := record.Name{
		Name:        "w3sol",
		Program:     program,
		Creator:     signer.Payer(),
		CreatedAt:   1700000000,
		DefaultPage: "/index.html",
	}.Encode()
	if err != nil {
		panic(err)
	}
	fmt.Printf("NAME_RECORD=%s\n", hex.EncodeToString(nameBytes))

	content := must(der.Content("/index.html"))
	env, err := wire.Seal(wire.PutContent{Path: "/index.html", Body: []byte("<h1>hi</h1>"), Target: content.Address}, signer)
	if err != nil {
		panic(err)
	}
	encoded, err := env.Encode()
	if err != nil {
		panic(err)
	}
	diag, err := codec.Diagnose(encoded)
	if err != nil {
		panic(err)
	}
	fmt.Printf("ENVELOPE_CONFIRMATION=%s\n", wire.Confirmation(encoded))
	fmt.Printf("---BEGIN ENVELOPE---\n%s\n---END ENVELOPE---\n", diag)
}

func must(d address.Derivation, err error) address.Derivation {
	if err != nil {
		panic(err)
	}
	return d
}
