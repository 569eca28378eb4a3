package memory

import (
	"github.com/spf13/pflag"

	"xdao.co/w3slot/storage"
	"xdao.co/w3slot/storage/ledgerregistry"
)

func init() {
	ledgerregistry.MustRegister(ledgerregistry.Backend{
		Name:          "memory",
		Description:   "In-process ledger, lost on exit (development)",
		Usage:         ledgerregistry.UsageDaemon,
		RegisterFlags: func(*pflag.FlagSet) {},
		Open: func() (storage.Ledger, error) {
			return New(), nil
		},
	})
}
