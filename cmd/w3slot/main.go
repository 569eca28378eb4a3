package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/chunked"
	"xdao.co/w3slot/internal/logutil"
	"xdao.co/w3slot/slot"
	"xdao.co/w3slot/source"
	"xdao.co/w3slot/source/localfs"
	"xdao.co/w3slot/upload"

	_ "xdao.co/w3slot/storage/boltdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "upload":
		return cmdUpload(ctx, args[1:], out, errOut)
	case "claim-name":
		return cmdClaimName(ctx, args[1:], out, errOut)
	case "address":
		return cmdAddress(args[1:], out, errOut)
	case "cost":
		return cmdCost(ctx, args[1:], out, errOut)
	case "balance":
		return cmdBalance(ctx, args[1:], out, errOut)
	case "airdrop":
		return cmdAirdrop(ctx, args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
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
	fmt.Fprintln(w, "w3slot: upload content into program slots")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  w3slot upload [common flags] [--chunk-size <n>] [--workers <n>] <file|dir>")
	fmt.Fprintln(w, "  w3slot claim-name [common flags] [--target-program <b58>] [--default-page <path>] <name>")
	fmt.Fprintln(w, "  w3slot address --program <b58> [--meta | --chunk <i> | --name] <path|name>")
	fmt.Fprintln(w, "  w3slot cost [common flags] [--chunk-size <n>] <file|dir>")
	fmt.Fprintln(w, "  w3slot cost --size <n>")
	fmt.Fprintln(w, "  w3slot balance [common flags] [<payer b58>]")
	fmt.Fprintln(w, "  w3slot airdrop [common flags] <amount>")
	fmt.Fprintln(w, "  w3slot key init --name <name> [--alg ed25519|dilithium3] [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  w3slot key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  w3slot key list")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Common flags:")
	fmt.Fprintln(w, "  --config <file>        YAML config (default $W3SLOT_CONFIG)")
	fmt.Fprintln(w, "  --program <b58>        program address")
	fmt.Fprintln(w, "  --target <host:port>   w3slotd address")
	fmt.Fprintln(w, "  --backend bolt --bolt-path <file>   apply in-process against a local ledger")
	fmt.Fprintln(w, "  --seed-hex | --key-file | --key-name [--key-role]   payer key")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - files larger than --chunk-size are split into chunk slots; the meta slot is written with the last chunk")
	fmt.Fprintln(w, "  - dotfiles and dot directories are skipped")
	fmt.Fprintln(w, "  - upload exits 1 when any item or chunk failed")
}

func cmdUpload(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("upload", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	chunkSize := fs.Int("chunk-size", 0, "largest single-slot payload and chunk size")
	workers := fs.Int("workers", 0, "items uploaded concurrently")
	listBackends := fs.Bool("list-backends", false, "List supported ledger backends and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: w3slot upload [flags] <file|dir>")
		return 2
	}
	cfg, err := common.load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if fs.Changed("chunk-size") {
		cfg.ChunkSize = *chunkSize
	}
	if fs.Changed("workers") {
		cfg.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	logger := logutil.Stderr(cfg.LogLevel)

	src, err := localfs.New(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	signer, err := loadSigner(cfg.Signer)
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 2
	}
	prog, err := common.connect(cfg, logger)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer prog.Close()

	programAddr, _ := cfg.ProgramAddress()
	u := &upload.Uploader{
		Deriver:   address.NewDeriver(programAddr),
		Signer:    signer,
		Submitter: prog,
		ChunkSize: cfg.ChunkSize,
		Workers:   cfg.Workers,
		Logger:    logger,
	}
	report, err := u.Upload(ctx, src)
	for _, it := range report.Items {
		printItem(out, it)
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if !report.OK() {
		fmt.Fprintf(errOut, "%d of %d items failed\n", len(report.Failed()), len(report.Items))
		return 1
	}
	return 0
}

func printItem(w io.Writer, it upload.ItemResult) {
	status := "ok"
	if !it.OK() {
		status = "FAILED"
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%d bytes\t%s\t%d slot(s)\t%s\n", status, it.Path, it.Size, it.Mode, it.Chunks, it.CID)
	if it.Err != nil {
		_, _ = fmt.Fprintf(w, "\terror: %v\n", it.Err)
	}
	for _, f := range it.FailedChunks {
		_, _ = fmt.Fprintf(w, "\tchunk %d: %v\n", f.Index, f.Err)
	}
}

func cmdClaimName(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("claim-name", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	targetProgram := fs.String("target-program", "", "program the name points at (default --program)")
	defaultPage := fs.String("default-page", upload.DefaultPage, "page served for the bare name")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: w3slot claim-name [flags] <name>")
		return 2
	}
	cfg, err := common.load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	programAddr, err := cfg.ProgramAddress()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	target := programAddr
	if *targetProgram != "" {
		target, err = address.Parse(*targetProgram)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --target-program: %v\n", err)
			return 2
		}
	}
	signer, err := loadSigner(cfg.Signer)
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 2
	}
	logger := logutil.Stderr(cfg.LogLevel)
	prog, err := common.connect(cfg, logger)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer prog.Close()

	u := &upload.Uploader{Deriver: address.NewDeriver(programAddr), Signer: signer, Submitter: prog, Logger: logger}
	id, err := u.ClaimName(ctx, fs.Arg(0), target, *defaultPage)
	if err != nil {
		fmt.Fprintln(errOut, err)
		if slot.IsKind(err, slot.KindAlreadyClaimed) {
			return 3
		}
		return 1
	}
	_, _ = fmt.Fprintln(out, id)
	return 0
}

func cmdAddress(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("address", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	program := fs.String("program", "", "program address (base58)")
	meta := fs.Bool("meta", false, "meta slot of a chunked path")
	chunk := fs.Int("chunk", -1, "chunk slot index")
	name := fs.Bool("name", false, "name record slot")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: w3slot address --program <b58> [--meta | --chunk <i> | --name] <path|name>")
		return 2
	}
	programAddr, err := address.Parse(*program)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --program: %v\n", err)
		return 2
	}
	d := address.NewDeriver(programAddr)
	arg := fs.Arg(0)

	var der address.Derivation
	switch {
	case *meta:
		der, err = d.Meta(arg)
	case *chunk >= 0:
		if *chunk >= chunked.MaxChunks {
			fmt.Fprintf(errOut, "--chunk must be below %d\n", chunked.MaxChunks)
			return 2
		}
		der, err = d.Chunk(arg, uint8(*chunk))
	case *name:
		der, err = d.Name(arg)
	default:
		der, err = d.Content(arg)
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "%s\tbump=%d\n", der.Address, der.Bump)
	return 0
}

// cmdCost prices an upload with the daemon's rent (or the default rent
// when --size is used without a connection).
func cmdCost(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("cost", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	size := fs.Int("size", -1, "price one slot of this many bytes with the default rent")
	chunkSize := fs.Int("chunk-size", 0, "largest single-slot payload and chunk size")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *size >= 0 {
		_, _ = fmt.Fprintln(out, slot.DefaultRent.MinimumBalance(*size))
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: w3slot cost [flags] <file|dir> | w3slot cost --size <n>")
		return 2
	}
	cfg, err := common.load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if fs.Changed("chunk-size") {
		cfg.ChunkSize = *chunkSize
	}
	src, err := localfs.New(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	prog, err := common.connect(cfg, logutil.Stderr(cfg.LogLevel))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer prog.Close()

	total, err := estimate(ctx, src, cfg.ChunkSize, prog.MinimumBalance)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, total)
	return 0
}

// estimate sums the minimum balance of every slot an upload of src would
// create: one content slot per small item, chunk slots plus one meta slot
// per large item.
func estimate(ctx context.Context, src source.Source, chunkSize int, price func(context.Context, int) (uint64, error)) (uint64, error) {
	items, err := src.Enumerate(ctx)
	if err != nil {
		return 0, err
	}
	var total uint64
	add := func(size int) error {
		p, err := price(ctx, size)
		total += p
		return err
	}
	for _, it := range items {
		b, err := src.Read(ctx, it.Locator)
		if err != nil {
			return 0, err
		}
		if !chunked.NeedsChunking(len(b), chunkSize) {
			if err := add(len(b)); err != nil {
				return 0, err
			}
			continue
		}
		chunks, err := chunked.Split(b, chunkSize)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", it.Path, err)
		}
		for _, c := range chunks {
			if err := add(len(c)); err != nil {
				return 0, err
			}
		}
		if err := add(1); err != nil {
			return 0, err
		}
	}
	return total, nil
}

func cmdBalance(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("balance", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := common.load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	var payer address.Address
	switch fs.NArg() {
	case 0:
		signer, err := loadSigner(cfg.Signer)
		if err != nil {
			fmt.Fprintf(errOut, "signer: %v\n", err)
			return 2
		}
		payer = signer.Payer()
	case 1:
		payer, err = address.Parse(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "invalid payer: %v\n", err)
			return 2
		}
	default:
		fmt.Fprintln(errOut, "usage: w3slot balance [flags] [<payer b58>]")
		return 2
	}
	prog, err := common.connect(cfg, logutil.Stderr(cfg.LogLevel))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer prog.Close()
	bal, err := prog.Balance(ctx, payer)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "%s\t%d\n", payer, bal)
	return 0
}

func cmdAirdrop(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("airdrop", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: w3slot airdrop [flags] <amount>")
		return 2
	}
	amount, err := strconv.ParseUint(fs.Arg(0), 10, 64)
	if err != nil {
		fmt.Fprintf(errOut, "invalid amount: %v\n", err)
		return 2
	}
	cfg, err := common.load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	signer, err := loadSigner(cfg.Signer)
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 2
	}
	prog, err := common.connect(cfg, logutil.Stderr(cfg.LogLevel))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer prog.Close()
	bal, err := prog.Airdrop(ctx, signer.Payer(), amount)
	if err != nil {
		fmt.Fprintln(errOut, err)
		if errors.Is(err, context.DeadlineExceeded) || slot.IsKind(err, slot.KindTransportFailure) {
			return 1
		}
		return 3
	}
	_, _ = fmt.Fprintf(out, "%s\t%d\n", signer.Payer(), bal)
	return 0
}
