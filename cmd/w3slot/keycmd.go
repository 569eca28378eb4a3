package main

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"xdao.co/w3slot/keys"
)

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "w3slot key: local payer key management")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  w3slot key init --name <name> [--alg ed25519|dilithium3] [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  w3slot key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  w3slot key list")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "All key commands accept --key-dir (default ~/.xdao/w3slot/keys).")
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("key init", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	name := fs.String("name", "", "key name")
	alg := fs.String("alg", keys.AlgEd25519, "key algorithm: ed25519 or dilithium3")
	seedHex := fs.String("seed-hex", "", "optional seed as 64 hex chars (reproducible demos)")
	force := fs.Bool("force", false, "overwrite existing key files")
	keyDir := fs.String("key-dir", "", "key store directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(*name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}

	var seed []byte
	if *seedHex != "" {
		var err error
		seed, err = keys.ParseSeedHex(*seedHex)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", err)
			return 2
		}
	} else {
		seed = make([]byte, keys.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(errOut, "rand: %v\n", err)
			return 1
		}
	}

	ks, err := keys.CreateKeyStore(*keyDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	signer, path, err := ks.InitializeRootKey(*name, *alg, seed, *force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created %s key, payer %s\n", signer.Algorithm(), signer.Payer())
	fmt.Fprintf(out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("key derive", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	from := fs.String("from", "", "root key name")
	role := fs.String("role", "", "role identifier (e.g. payer, staging)")
	force := fs.Bool("force", false, "overwrite existing key files")
	keyDir := fs.String("key-dir", "", "key store directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *from == "" || *role == "" {
		fmt.Fprintln(errOut, "missing --from or --role")
		return 2
	}
	ks, err := keys.CreateKeyStore(*keyDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	signer, path, err := ks.DeriveRole(*from, *role, *force)
	if err != nil {
		fmt.Fprintf(errOut, "derive role key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created role key, payer %s\n", signer.Payer())
	fmt.Fprintf(out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("key list", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	keyDir := fs.String("key-dir", "", "key store directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := keys.CreateKeyStore(*keyDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.ListKeys()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "No keys found in %s\n", ks.Directory)
		return 0
	}
	for _, e := range entries {
		line := e.Identifier + "\t" + e.Algorithm
		if len(e.Roles) > 0 {
			line += "\troles=" + strings.Join(e.Roles, ",")
		}
		fmt.Fprintln(out, line)
	}
	return 0
}
