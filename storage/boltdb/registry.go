package boltdb

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"xdao.co/w3slot/storage"
	"xdao.co/w3slot/storage/ledgerregistry"
)

var (
	flagPath   string
	flagNoSync bool
)

func init() {
	ledgerregistry.MustRegister(ledgerregistry.Backend{
		Name:        "bolt",
		Description: "bbolt ledger file",
		Usage:       ledgerregistry.UsageCLI | ledgerregistry.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagPath, "bolt-path", "", "Ledger file (for --backend=bolt)")
			fs.BoolVar(&flagNoSync, "bolt-no-sync", false, "Skip fsync per commit (for --backend=bolt)")
		},
		Open: func() (storage.Ledger, error) {
			path := strings.TrimSpace(flagPath)
			if path == "" {
				return nil, fmt.Errorf("missing --bolt-path")
			}
			return Open(path, WithNoSync(flagNoSync))
		},
	})
}
