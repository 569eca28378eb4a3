package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/chunked"
	"xdao.co/w3slot/cidutil"
	"xdao.co/w3slot/codec"
	"xdao.co/w3slot/storage"
	"xdao.co/w3slot/storage/bundle"
	"xdao.co/w3slot/storage/ledgerregistry"

	_ "xdao.co/w3slot/storage/boltdb"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "list":
		return cmdList(args[1:], out, errOut)
	case "balances":
		return cmdBalances(args[1:], out, errOut)
	case "get":
		return cmdGet(args[1:], out, errOut)
	case "cat":
		return cmdCat(args[1:], out, errOut)
	case "export":
		return cmdExport(args[1:], out, errOut)
	case "import":
		return cmdImport(args[1:], out, errOut)
	case "cid":
		return cmdCID(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "ledgercli: offline ledger inspection")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ledgercli list --bolt-path <file>")
	fmt.Fprintln(w, "  ledgercli balances --bolt-path <file>")
	fmt.Fprintln(w, "  ledgercli get --bolt-path <file> --address <b58> [--out <file>] [--diag]")
	fmt.Fprintln(w, "  ledgercli cat --bolt-path <file> --program <b58> <path>")
	fmt.Fprintln(w, "  ledgercli export --bolt-path <file> --out <bundle> [--compression none|zstd|lz4] [--index]")
	fmt.Fprintln(w, "  ledgercli import --bolt-path <file> --in <bundle> [--overwrite] [--ignore-unknown]")
	fmt.Fprintln(w, "  ledgercli cid <file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - --backend defaults to bolt; see --list-backends")
	fmt.Fprintln(w, "  - cat reassembles chunked paths and fails when chunks are missing")
	fmt.Fprintln(w, "  - cid prints the payload CID (CIDv1 raw + sha2-256) the uploader reports")
}

type commonFlags struct {
	backend      string
	listBackends bool
}

func (c *commonFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "bolt", "ledger backend name")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	ledgerregistry.RegisterFlags(fs, ledgerregistry.UsageCLI)
}

func (c *commonFlags) open() (storage.Ledger, error) {
	return ledgerregistry.Open(c.backend, ledgerregistry.UsageCLI)
}

func printBackends(w io.Writer) {
	for _, b := range ledgerregistry.List(ledgerregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

// parse handles the flags every ledger command shares. ok is false when the
// command should return code.
func parse(fs *pflag.FlagSet, common *commonFlags, args []string, out io.Writer) (code int, ok bool) {
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2, false
	}
	if common.listBackends {
		printBackends(out)
		return 0, false
	}
	return 0, true
}

func cmdList(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	if code, ok := parse(fs, &common, args, out); !ok {
		return code
	}
	ledger, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer ledger.Close()

	err = ledger.View(context.Background(), func(tx storage.Tx) error {
		return tx.ForEachSlot(func(s storage.Slot) error {
			_, err := fmt.Fprintf(out, "%s\towner=%s\tbalance=%d\tsize=%d\n", s.Address, s.Owner, s.Balance, s.Size())
			return err
		})
	})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdBalances(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("balances", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	if code, ok := parse(fs, &common, args, out); !ok {
		return code
	}
	ledger, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer ledger.Close()

	err = ledger.View(context.Background(), func(tx storage.Tx) error {
		return tx.ForEachBalance(func(addr address.Address, amount uint64) error {
			_, err := fmt.Fprintf(out, "%s\t%d\n", addr, amount)
			return err
		})
	})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("get", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	addrStr := fs.String("address", "", "slot address (base58)")
	outPath := fs.String("out", "", "output file (default stdout)")
	diag := fs.Bool("diag", false, "print the stored slot record in CBOR diagnostic notation")
	if code, ok := parse(fs, &common, args, out); !ok {
		return code
	}
	addr, err := address.Parse(*addrStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --address: %v\n", err)
		return 2
	}
	ledger, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer ledger.Close()

	var s storage.Slot
	err = ledger.View(context.Background(), func(tx storage.Tx) error {
		var err error
		s, err = tx.Slot(addr)
		return err
	})
	if err != nil {
		fmt.Fprintln(errOut, err)
		if storage.IsNotFound(err) {
			return 3
		}
		return 1
	}
	data := s.Data
	if *diag {
		b, err := codec.Marshal(s)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		d, err := codec.Diagnose(b)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		data = []byte(d + "\n")
	}
	return writeOut(data, *outPath, out, errOut)
}

func cmdCat(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("cat", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	program := fs.String("program", "", "program address (base58)")
	outPath := fs.String("out", "", "output file (default stdout)")
	if code, ok := parse(fs, &common, args, out); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: ledgercli cat [flags] --program <b58> <path>")
		return 2
	}
	programAddr, err := address.Parse(*program)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --program: %v\n", err)
		return 2
	}
	ledger, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer ledger.Close()

	var data []byte
	err = ledger.View(context.Background(), func(tx storage.Tx) error {
		var err error
		data, err = chunked.Resolve(tx, address.NewDeriver(programAddr), fs.Arg(0))
		return err
	})
	if err != nil {
		fmt.Fprintln(errOut, err)
		if chunked.IsIncomplete(err) {
			return 4
		}
		if storage.IsNotFound(err) {
			return 3
		}
		return 1
	}
	return writeOut(data, *outPath, out, errOut)
}

func cmdExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	outPath := fs.String("out", "", "bundle file")
	compression := fs.String("compression", "zstd", "none, zstd or lz4")
	index := fs.Bool("index", false, "include index.cbor with payload CIDs")
	if code, ok := parse(fs, &common, args, out); !ok {
		return code
	}
	if *outPath == "" {
		fmt.Fprintln(errOut, "missing --out")
		return 2
	}
	c, err := bundle.ParseCompression(*compression)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	ledger, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer ledger.Close()

	f, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if err := bundle.Export(context.Background(), f, ledger, bundle.ExportOptions{Compression: c, IncludeIndex: *index}); err != nil {
		_ = f.Close()
		_ = os.Remove(*outPath)
		fmt.Fprintln(errOut, err)
		return 1
	}
	if err := f.Close(); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "Wrote %s (%s)\n", filepath.Base(*outPath), c)
	return 0
}

func cmdImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("import", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	inPath := fs.String("in", "", "bundle file")
	overwrite := fs.Bool("overwrite", false, "replace slots that differ")
	ignoreUnknown := fs.Bool("ignore-unknown", false, "skip unknown bundle entries")
	if code, ok := parse(fs, &common, args, out); !ok {
		return code
	}
	if *inPath == "" {
		fmt.Fprintln(errOut, "missing --in")
		return 2
	}
	f, err := os.Open(*inPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer f.Close()

	ledger, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer ledger.Close()

	opts := bundle.ImportOptions{Overwrite: *overwrite, IgnoreUnknown: *ignoreUnknown}
	if err := bundle.ImportWithOptions(context.Background(), f, ledger, opts); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "Imported %s\n", filepath.Base(*inPath))
	return 0
}

func cmdCID(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "usage: ledgercli cid <file>")
		return 2
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(args[0]), err)
		return 1
	}
	id, err := cidutil.PayloadCID(b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id.String())
	return 0
}

func writeOut(data []byte, outPath string, out io.Writer, errOut io.Writer) int {
	if outPath == "" {
		if _, err := out.Write(data); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}
