package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/w3slot/address"
)

const seedHex = "0101010101010101010101010101010101010101010101010101010101010101"

var testProgram = address.Address{0xAB, 0xCD}.String()

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestUploadToLocalLedger(t *testing.T) {
	dir := t.TempDir()
	site := filepath.Join(dir, "site")
	if err := os.MkdirAll(filepath.Join(site, "css"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(site, "index.html"), []byte("<h1>hi</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(site, "css", "site.css"), bytes.Repeat([]byte("a"), 1300), 0o644); err != nil {
		t.Fatal(err)
	}
	ledger := filepath.Join(dir, "ledger.db")
	common := []string{"--program", testProgram, "--seed-hex", seedHex, "--backend", "bolt", "--bolt-path", ledger, "--bolt-no-sync", "--log-level", "error"}

	code, out, errOut := runCLI(t, append([]string{"airdrop"}, append(common, "1000000000000")...)...)
	if code != 0 {
		t.Fatalf("airdrop exit %d: %s", code, errOut)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "1000000000000") {
		t.Fatalf("airdrop output %q", out)
	}

	code, out, errOut = runCLI(t, append([]string{"upload"}, append(common, site)...)...)
	if code != 0 {
		t.Fatalf("upload exit %d: %s\n%s", code, errOut, out)
	}
	if !strings.Contains(out, "/index.html") || !strings.Contains(out, "/css/site.css") {
		t.Fatalf("upload output missing items:\n%s", out)
	}
	if !strings.Contains(out, "chunked\t3 slot(s)") {
		t.Fatalf("expected 1300 bytes to use 3 chunks at 512:\n%s", out)
	}

	code, out, errOut = runCLI(t, append([]string{"claim-name"}, append(common, "mysite")...)...)
	if code != 0 {
		t.Fatalf("claim-name exit %d: %s", code, errOut)
	}
	if strings.TrimSpace(out) == "" {
		t.Fatalf("expected confirmation id")
	}
	code, _, errOut = runCLI(t, append([]string{"claim-name"}, append(common, "mysite")...)...)
	if code != 3 {
		t.Fatalf("second claim: exit %d, %s", code, errOut)
	}
}

func TestAddressCommand(t *testing.T) {
	code, out, errOut := runCLI(t, "address", "--program", testProgram, "/index.html")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	programAddr := address.MustParse(testProgram)
	d, err := address.NewDeriver(programAddr).Content("/index.html")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, d.Address.String()+"\t") {
		t.Fatalf("address output %q, want prefix %s", out, d.Address)
	}

	code, out, _ = runCLI(t, "address", "--program", testProgram, "--chunk", "2", "/index.html")
	if code != 0 || strings.HasPrefix(out, d.Address.String()) {
		t.Fatalf("chunk address should differ from content address: %q", out)
	}
}

func TestCostSize(t *testing.T) {
	code, out, _ := runCLI(t, "cost", "--size", "0")
	if code != 0 || strings.TrimSpace(out) != "890880" {
		t.Fatalf("cost --size 0 = %q (exit %d)", out, code)
	}
}

func TestKeyInitAndList(t *testing.T) {
	dir := t.TempDir()
	code, out, errOut := runCLI(t, "key", "init", "--key-dir", dir, "--name", "site", "--seed-hex", seedHex)
	if code != 0 {
		t.Fatalf("key init exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "ed25519") {
		t.Fatalf("key init output %q", out)
	}
	if code, _, errOut := runCLI(t, "key", "derive", "--key-dir", dir, "--from", "site", "--role", "payer"); code != 0 {
		t.Fatalf("key derive exit %d: %s", code, errOut)
	}
	code, out, _ = runCLI(t, "key", "list", "--key-dir", dir)
	if code != 0 || !strings.Contains(out, "site\ted25519\troles=payer") {
		t.Fatalf("key list = %q", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	if code, _, _ := runCLI(t, "frobnicate"); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
}
