// Package config loads YAML configuration for the uploader and the daemon.
//
// A configuration file is selected by the --config flag or, when the flag is
// absent, the W3SLOT_CONFIG environment variable. Without either, defaults
// apply. Command line flags override file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/chunked"
	"xdao.co/w3slot/keys"
	"xdao.co/w3slot/slot"
)

// EnvVar names the environment variable consulted when no --config flag is
// given.
const EnvVar = "W3SLOT_CONFIG"

const DefaultListen = "127.0.0.1:7777"

// Signer selects the payer key. Exactly one of SeedHex, KeyFile or Name
// should be set.
type Signer struct {
	Algorithm string `yaml:"alg,omitempty"`
	HashAlg   string `yaml:"hash_alg,omitempty"`
	SeedHex   string `yaml:"seed_hex,omitempty"`
	KeyFile   string `yaml:"key_file,omitempty"`
	Name      string `yaml:"name,omitempty"`
	Role      string `yaml:"role,omitempty"`
	// KeyDir overrides the key store directory used with Name.
	KeyDir string `yaml:"key_dir,omitempty"`
}

func (s Signer) Ref() keys.SignerRef {
	return keys.SignerRef{
		Algorithm: s.Algorithm,
		HashAlg:   s.HashAlg,
		SeedHex:   s.SeedHex,
		KeyFile:   s.KeyFile,
		Name:      s.Name,
		Role:      s.Role,
	}
}

// Uploader configures cmd/w3slot.
//
//	program: 5Yk...base58
//	target: 127.0.0.1:7777
//	signer:
//	  name: site
//	  role: payer
//	chunk_size: 512
type Uploader struct {
	Program   string        `yaml:"program"`
	Target    string        `yaml:"target"`
	Signer    Signer        `yaml:"signer"`
	ChunkSize int           `yaml:"chunk_size"`
	Workers   int           `yaml:"workers"`
	Timeout   time.Duration `yaml:"timeout"`
	LogLevel  string        `yaml:"log_level"`
}

func DefaultUploader() Uploader {
	return Uploader{
		Target:    DefaultListen,
		ChunkSize: chunked.DefaultChunkSize,
		Workers:   1,
		Timeout:   30 * time.Second,
		LogLevel:  "info",
	}
}

func (u Uploader) ProgramAddress() (address.Address, error) {
	return parseProgram(u.Program)
}

func (u Uploader) Validate() error {
	if _, err := u.ProgramAddress(); err != nil {
		return err
	}
	if u.Target == "" {
		return errors.New("config: target is required")
	}
	if u.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be positive, got %d", u.ChunkSize)
	}
	if u.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", u.Workers)
	}
	return nil
}

// Ledger selects a storage/ledgerregistry backend. Config keys mirror the
// backend's flag names.
type Ledger struct {
	Backend string            `yaml:"backend"`
	Config  map[string]string `yaml:"config,omitempty"`
}

type Airdrop struct {
	Enabled bool `yaml:"enabled"`
	// Limit caps one request; zero means unlimited.
	Limit uint64 `yaml:"limit"`
}

type Rent struct {
	PerByteYear uint64 `yaml:"per_byte_year"`
	ExemptYears uint64 `yaml:"exempt_years"`
}

func (r Rent) Linear() slot.LinearRent {
	return slot.LinearRent{PerByteYear: r.PerByteYear, ExemptYears: r.ExemptYears}
}

// Daemon configures cmd/w3slotd.
type Daemon struct {
	Listen      string  `yaml:"listen"`
	Program     string  `yaml:"program"`
	Ledger      Ledger  `yaml:"ledger"`
	Airdrop     Airdrop `yaml:"airdrop"`
	Rent        Rent    `yaml:"rent"`
	MaxMsgBytes int     `yaml:"max_msg_bytes"`
	LogLevel    string  `yaml:"log_level"`
}

func DefaultDaemon() Daemon {
	return Daemon{
		Listen: DefaultListen,
		Ledger: Ledger{Backend: "memory"},
		Rent: Rent{
			PerByteYear: slot.DefaultRent.PerByteYear,
			ExemptYears: slot.DefaultRent.ExemptYears,
		},
		MaxMsgBytes: 4 << 20,
		LogLevel:    "info",
	}
}

func (d Daemon) ProgramAddress() (address.Address, error) {
	return parseProgram(d.Program)
}

func (d Daemon) Validate() error {
	if _, err := d.ProgramAddress(); err != nil {
		return err
	}
	if d.Listen == "" {
		return errors.New("config: listen is required")
	}
	if d.Ledger.Backend == "" {
		return errors.New("config: ledger.backend is required")
	}
	if d.Rent.PerByteYear == 0 || d.Rent.ExemptYears == 0 {
		return errors.New("config: rent parameters must be positive")
	}
	return nil
}

func parseProgram(s string) (address.Address, error) {
	if s == "" {
		return address.Address{}, errors.New("config: program is required")
	}
	a, err := address.Parse(s)
	if err != nil {
		return address.Address{}, fmt.Errorf("config: program: %w", err)
	}
	return a, nil
}

// Path returns flagValue when set, otherwise $W3SLOT_CONFIG.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvVar)
}

// LoadUploader reads path over DefaultUploader. An empty path returns the
// defaults unvalidated, so flags can still fill required fields.
func LoadUploader(path string) (Uploader, error) {
	cfg := DefaultUploader()
	if err := loadFile(path, &cfg); err != nil {
		return Uploader{}, err
	}
	return cfg, nil
}

func LoadDaemon(path string) (Daemon, error) {
	cfg := DefaultDaemon()
	if err := loadFile(path, &cfg); err != nil {
		return Daemon{}, err
	}
	return cfg, nil
}

func loadFile(path string, into any) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(into); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("config: %s: %w", path, err)
	}
	return nil
}
