package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/config"
	"xdao.co/w3slot/engine"
	"xdao.co/w3slot/keys"
	"xdao.co/w3slot/storage"
	"xdao.co/w3slot/storage/ledgerregistry"
	"xdao.co/w3slot/transport/grpcslot"
	"xdao.co/w3slot/upload"
)

// commonFlags are shared by every command that talks to a program.
type commonFlags struct {
	fs         *pflag.FlagSet
	configPath string
	program    string
	target     string
	backend    string
	logLevel   string
	signer     config.Signer
}

func (c *commonFlags) add(fs *pflag.FlagSet) {
	c.fs = fs
	fs.StringVar(&c.configPath, "config", "", "YAML config file (default $"+config.EnvVar+")")
	fs.StringVar(&c.program, "program", "", "program address (base58)")
	fs.StringVar(&c.target, "target", "", "w3slotd address host:port")
	fs.StringVar(&c.backend, "backend", "", "apply operations in-process against this ledger backend instead of --target")
	fs.StringVar(&c.logLevel, "log-level", "", "log level")
	fs.StringVar(&c.signer.SeedHex, "seed-hex", "", "payer seed as 64 hex chars")
	fs.StringVar(&c.signer.KeyFile, "key-file", "", "payer key file")
	fs.StringVar(&c.signer.Name, "key-name", "", "payer key name in the key store")
	fs.StringVar(&c.signer.Role, "key-role", "", "role key under --key-name")
	fs.StringVar(&c.signer.KeyDir, "key-dir", "", "key store directory (default ~/.xdao/w3slot/keys)")
	fs.StringVar(&c.signer.Algorithm, "alg", "", "key algorithm: ed25519 or dilithium3")
	ledgerregistry.RegisterFlags(fs, ledgerregistry.UsageCLI)
}

// load merges the config file with flags that were set explicitly.
func (c *commonFlags) load() (config.Uploader, error) {
	cfg, err := config.LoadUploader(config.Path(c.configPath))
	if err != nil {
		return config.Uploader{}, err
	}
	if c.fs.Changed("program") {
		cfg.Program = c.program
	}
	if c.fs.Changed("target") {
		cfg.Target = c.target
	}
	if c.fs.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if c.signer != (config.Signer{}) {
		cfg.Signer = c.signer
	}
	return cfg, nil
}

func loadSigner(s config.Signer) (keys.Signer, error) {
	ks, err := keys.CreateKeyStore(s.KeyDir)
	if err != nil {
		return nil, err
	}
	return ks.LoadSigner(s.Ref())
}

// program is either a daemon connection or an in-process engine.
type program interface {
	upload.Submitter
	MinimumBalance(ctx context.Context, size int) (uint64, error)
	Balance(ctx context.Context, payer address.Address) (uint64, error)
	Airdrop(ctx context.Context, payer address.Address, amount uint64) (uint64, error)
	Close() error
}

func (c *commonFlags) connect(cfg config.Uploader, logger zerolog.Logger) (program, error) {
	programAddr, err := cfg.ProgramAddress()
	if err != nil {
		return nil, err
	}
	if c.backend != "" {
		ledger, err := ledgerregistry.Open(c.backend, ledgerregistry.UsageCLI)
		if err != nil {
			return nil, err
		}
		eng := engine.New(programAddr, ledger,
			engine.WithAirdrop(0),
			engine.WithLogger(logger.With().Str("component", "engine").Logger()))
		return &local{Engine: eng, ledger: ledger}, nil
	}
	client, err := grpcslot.Dial(cfg.Target, grpcslot.DialOptions{Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	client.Timeout = cfg.Timeout
	return client, nil
}

// local adapts an in-process engine to the daemon client's method set.
type local struct {
	*engine.Engine
	ledger storage.Ledger
}

func (l *local) MinimumBalance(_ context.Context, size int) (uint64, error) {
	return l.Engine.MinimumBalance(size), nil
}

func (l *local) Close() error { return l.ledger.Close() }

func printBackends(w io.Writer) {
	for _, b := range ledgerregistry.List(ledgerregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}
