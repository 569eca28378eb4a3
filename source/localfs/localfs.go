package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"xdao.co/w3slot/source"
)

// Source enumerates the regular files under a directory.
//
// Entries whose name starts with "." are skipped, directories included.
// Each file maps to the web path "/" + its slash-separated path relative to
// Root. When Root is a single file it maps to "/" + its base name.
type Source struct {
	root string
}

var _ source.Source = (*Source)(nil)

func New(root string) (*Source, error) {
	if root == "" {
		return nil, errors.New("localfs: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("localfs: %w", err)
	}
	return &Source{root: abs}, nil
}

func (s *Source) Root() string { return s.root }

func (s *Source) Enumerate(ctx context.Context) ([]source.Item, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("localfs: %w", err)
	}
	if !info.IsDir() {
		return []source.Item{{Path: source.WebPath(filepath.Base(s.root)), Locator: s.root}}, nil
	}

	var items []source.Item
	err = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == s.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		items = append(items, source.Item{Path: source.WebPath(filepath.ToSlash(rel)), Locator: p})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, nil
}

// Read only serves locators under Root.
func (s *Source) Read(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean(locator)
	if clean != s.root && !strings.HasPrefix(clean, s.root+string(filepath.Separator)) {
		return nil, fmt.Errorf("localfs: %s is outside %s", locator, s.root)
	}
	b, err := os.ReadFile(clean)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", source.ErrNotFound, locator)
	}
	return b, err
}
