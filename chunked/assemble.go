package chunked

import (
	"errors"
	"fmt"
	"strings"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/record"
	"xdao.co/w3slot/storage"
)

// ErrNotChunked is returned by Assemble when path has no meta slot or its
// meta count is zero.
var ErrNotChunked = errors.New("chunked: path is not chunked")

// IncompleteError reports a meta count whose chunk slots are not all
// present yet. The read must be retried.
type IncompleteError struct {
	Path       string
	ChunkCount int
	Missing    []int
}

func (e *IncompleteError) Error() string {
	idx := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		idx[i] = fmt.Sprint(m)
	}
	return fmt.Sprintf("chunked: %s is incomplete: %d of %d chunks missing (%s)",
		e.Path, len(e.Missing), e.ChunkCount, strings.Join(idx, ","))
}

// IsIncomplete reports whether err is an *IncompleteError.
func IsIncomplete(err error) bool {
	var e *IncompleteError
	return errors.As(err, &e)
}

// ReadMeta returns the meta record for path. ok is false when no meta slot
// exists.
func ReadMeta(tx storage.Tx, der address.Deriver, path string) (record.Meta, bool, error) {
	md, err := der.Meta(path)
	if err != nil {
		return record.Meta{}, false, err
	}
	s, err := tx.Slot(md.Address)
	if storage.IsNotFound(err) {
		return record.Meta{}, false, nil
	}
	if err != nil {
		return record.Meta{}, false, err
	}
	m, err := record.DecodeMeta(s.Data)
	if err != nil {
		return record.Meta{}, false, err
	}
	return m, true, nil
}

// Assemble reads a chunked path back: the meta count, then chunks
// 0..count-1 concatenated in order.
func Assemble(tx storage.Tx, der address.Deriver, path string) ([]byte, error) {
	m, ok, err := ReadMeta(tx, der, path)
	if err != nil {
		return nil, err
	}
	if !ok || m.ChunkCount == 0 {
		return nil, ErrNotChunked
	}

	var out []byte
	var missing []int
	for i := 0; i < int(m.ChunkCount); i++ {
		d, err := der.Chunk(path, uint8(i))
		if err != nil {
			return nil, err
		}
		s, err := tx.Slot(d.Address)
		if storage.IsNotFound(err) {
			missing = append(missing, i)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s.Data...)
	}
	if len(missing) > 0 {
		return nil, &IncompleteError{Path: path, ChunkCount: int(m.ChunkCount), Missing: missing}
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// Resolve reads path whichever way it is currently stored: assembled from
// chunks when its meta count is non-zero, otherwise from its content slot.
func Resolve(tx storage.Tx, der address.Deriver, path string) ([]byte, error) {
	b, err := Assemble(tx, der, path)
	if !errors.Is(err, ErrNotChunked) {
		return b, err
	}
	d, err := der.Content(path)
	if err != nil {
		return nil, err
	}
	s, err := tx.Slot(d.Address)
	if err != nil {
		return nil, err
	}
	return s.Data, nil
}
