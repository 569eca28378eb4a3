// Package source defines where upload content comes from.
//
// A Source enumerates (web path, locator) pairs and reads the bytes behind a
// locator. Web paths always start with "/" and use forward slashes.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("source: not found")

// Item is one enumerated file.
type Item struct {
	// Path is the logical web path the content is stored under.
	Path string
	// Locator is opaque to callers; pass it back to Read.
	Locator string
}

// Source is the content-source collaborator of the uploader.
type Source interface {
	Enumerate(ctx context.Context) ([]Item, error)
	Read(ctx context.Context, locator string) ([]byte, error)
}

// WebPath normalizes a relative path into a "/"-prefixed web path.
func WebPath(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	return "/" + strings.TrimLeft(rel, "/")
}

// Memory is an in-process Source keyed by web path. Items enumerate in
// ascending path order and the locator is the path itself.
type Memory map[string][]byte

var _ Source = Memory(nil)

func (m Memory) Enumerate(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(m))
	for p := range m {
		items = append(items, Item{Path: WebPath(p), Locator: p})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, nil
}

func (m Memory) Read(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, ok := m[locator]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
