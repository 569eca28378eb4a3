package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/cidutil"
	"xdao.co/w3slot/codec"
	"xdao.co/w3slot/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

var epoch0 = time.Unix(0, 0).UTC()

// ErrSlotMismatch reports a slot entry that disagrees with its name, the
// index, or the ledger it is imported into.
var ErrSlotMismatch = errors.New("bundle: slot mismatch")

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	Compression Compression
	// IncludeIndex adds index.cbor listing every slot with its payload CID.
	IncludeIndex bool
}

// Export writes a snapshot of the ledger as a TAR bundle, optionally
// compressed.
//
// Entries are "balances/<address>" (8 byte big-endian amount) and
// "slots/<address>" (CBOR slot). Entry order is lexicographic and TAR
// headers are normalized, so the same ledger state always produces the same
// bytes.
func Export(ctx context.Context, w io.Writer, ledger storage.Ledger, opts ExportOptions) error {
	if ledger == nil {
		return fmt.Errorf("bundle: nil ledger")
	}

	var (
		balances []balanceEntry
		slots    []storage.Slot
	)
	err := ledger.View(ctx, func(tx storage.Tx) error {
		if err := tx.ForEachBalance(func(a address.Address, amount uint64) error {
			balances = append(balances, balanceEntry{Address: a, Amount: amount})
			return nil
		}); err != nil {
			return err
		}
		return tx.ForEachSlot(func(s storage.Slot) error {
			slots = append(slots, s)
			return nil
		})
	})
	if err != nil {
		return err
	}

	cw, err := compressWriter(w, opts.Compression)
	if err != nil {
		return err
	}
	if err := writeEntries(tar.NewWriter(cw), balances, slots, opts.IncludeIndex); err != nil {
		_ = cw.Close()
		return err
	}
	return cw.Close()
}

// Base58 names of equal-length addresses do not sort like the addresses
// themselves, so entries are sorted by name here.
func writeEntries(tw *tar.Writer, balances []balanceEntry, slots []storage.Slot, includeIndex bool) error {
	type entry struct {
		name string
		body []byte
	}
	var entries []entry

	for _, b := range balances {
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], b.Amount)
		entries = append(entries, entry{"balances/" + b.Address.String(), v[:]})
	}

	index := indexFile{Version: FormatVersion, Codec: "raw", Multihash: "sha2-256"}
	for _, s := range slots {
		b, err := codec.Marshal(s)
		if err != nil {
			_ = tw.Close()
			return err
		}
		entries = append(entries, entry{"slots/" + s.Address.String(), b})

		id, err := cidutil.PayloadCID(s.Data)
		if err != nil {
			_ = tw.Close()
			return err
		}
		index.Slots = append(index.Slots, indexSlot{Address: s.Address.String(), Size: s.Size(), CID: id.String()})
	}
	if includeIndex {
		b, err := codec.Marshal(index)
		if err != nil {
			_ = tw.Close()
			return err
		}
		entries = append(entries, entry{"index.cbor", b})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	for _, e := range entries {
		if err := writeFile(tw, e.name, e.body); err != nil {
			_ = tw.Close()
			return err
		}
	}
	return tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown controls whether unknown TAR entries are ignored.
	//
	// Default (false) is fail-closed: unknown entries cause Import to return an error.
	IgnoreUnknown bool
	// Overwrite allows replacing slots that already exist in the ledger.
	// Without it, an existing slot with different content fails the import.
	Overwrite bool
}

// Import reads a bundle from r and restores it into ledger.
func Import(ctx context.Context, r io.Reader, ledger storage.Ledger) error {
	return ImportWithOptions(ctx, r, ledger, ImportOptions{})
}

// ImportWithOptions reads a bundle from r and restores it into ledger in a
// single Update: either every entry lands or none does.
//
// Each slot entry must decode to a slot whose address matches its entry
// name. When the bundle carries an index, every slot's payload must match
// the indexed CID.
func ImportWithOptions(ctx context.Context, r io.Reader, ledger storage.Ledger, opts ImportOptions) error {
	if ledger == nil {
		return fmt.Errorf("bundle: nil ledger")
	}
	dr, closeFn, err := decompressReader(r)
	if err != nil {
		return err
	}
	defer closeFn()

	var (
		balances []balanceEntry
		slots    []storage.Slot
		index    *indexFile
	)
	seen := map[string]struct{}{}

	tr := tar.NewReader(dr)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("bundle: duplicate entry: %s", name)
		}
		seen[name] = struct{}{}

		payload, err := io.ReadAll(tr)
		if err != nil {
			return err
		}

		switch {
		case name == "index.cbor":
			var idx indexFile
			if err := codec.Unmarshal(payload, &idx); err != nil {
				return fmt.Errorf("bundle: index: %w", err)
			}
			if idx.Version != FormatVersion {
				return fmt.Errorf("bundle: unsupported index version %d", idx.Version)
			}
			index = &idx

		case strings.HasPrefix(name, "balances/"):
			a, err := address.Parse(strings.TrimPrefix(name, "balances/"))
			if err != nil {
				return fmt.Errorf("bundle: %s: %w", name, err)
			}
			if len(payload) != 8 {
				return fmt.Errorf("bundle: %s: balance is %d bytes", name, len(payload))
			}
			balances = append(balances, balanceEntry{Address: a, Amount: binary.BigEndian.Uint64(payload)})

		case strings.HasPrefix(name, "slots/"):
			a, err := address.Parse(strings.TrimPrefix(name, "slots/"))
			if err != nil {
				return fmt.Errorf("bundle: %s: %w", name, err)
			}
			var s storage.Slot
			if err := codec.Unmarshal(payload, &s); err != nil {
				return fmt.Errorf("bundle: %s: %w", name, err)
			}
			if s.Address != a {
				return fmt.Errorf("%w: %s holds slot %s", ErrSlotMismatch, name, s.Address)
			}
			if s.Data == nil {
				s.Data = []byte{}
			}
			slots = append(slots, s)

		default:
			if opts.IgnoreUnknown {
				continue
			}
			return fmt.Errorf("bundle: unknown entry: %s", name)
		}
	}

	if index != nil {
		if err := verifyIndex(*index, slots); err != nil {
			return err
		}
	}

	return ledger.Update(ctx, func(tx storage.Tx) error {
		for _, b := range balances {
			if err := tx.SetBalance(b.Address, b.Amount); err != nil {
				return err
			}
		}
		for _, s := range slots {
			if !opts.Overwrite {
				existing, err := tx.Slot(s.Address)
				switch {
				case err == nil:
					if existing.Owner != s.Owner || !bytes.Equal(existing.Data, s.Data) {
						return fmt.Errorf("%w: slot %s already exists with different content", ErrSlotMismatch, s.Address)
					}
				case !storage.IsNotFound(err):
					return err
				}
			}
			if err := tx.PutSlot(s); err != nil {
				return err
			}
		}
		return nil
	})
}

func verifyIndex(idx indexFile, slots []storage.Slot) error {
	want := make(map[string]indexSlot, len(idx.Slots))
	for _, e := range idx.Slots {
		want[e.Address] = e
	}
	if len(want) != len(slots) {
		return fmt.Errorf("%w: index lists %d slots, bundle holds %d", ErrSlotMismatch, len(want), len(slots))
	}
	for _, s := range slots {
		e, ok := want[s.Address.String()]
		if !ok {
			return fmt.Errorf("%w: slot %s missing from index", ErrSlotMismatch, s.Address)
		}
		id, err := cid.Decode(e.CID)
		if err != nil {
			return fmt.Errorf("bundle: index CID for %s: %w", s.Address, err)
		}
		got, err := cidutil.PayloadCID(s.Data)
		if err != nil {
			return err
		}
		if !got.Equals(id) || e.Size != s.Size() {
			return fmt.Errorf("%w: slot %s does not match its index entry", ErrSlotMismatch, s.Address)
		}
	}
	return nil
}

type balanceEntry struct {
	Address address.Address
	Amount  uint64
}

type indexFile struct {
	Version   int         `cbor:"version"`
	Codec     string      `cbor:"codec"`
	Multihash string      `cbor:"multihash"`
	Slots     []indexSlot `cbor:"slots"`
}

type indexSlot struct {
	Address string `cbor:"address"`
	Size    int    `cbor:"size"`
	CID     string `cbor:"cid"`
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
