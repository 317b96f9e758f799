// Package pagestore persists raw API pages partitioned by API name and
// logical date. Pages are immutable once written and are the sole input to
// validation and transform.
package pagestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
)

// Store reads and writes raw pages under an explicit root directory.
type Store struct {
	root string
}

// New creates a Store rooted at dir.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the storage root directory.
func (s *Store) Root() string { return s.root }

// RawDir returns the page directory for one (api, date) partition.
func (s *Store) RawDir(api, date string) string {
	return filepath.Join(s.root, "raw", api, date)
}

// InvalidDir returns the side-channel directory for rejected rows.
func (s *Store) InvalidDir(api, date string) string {
	return filepath.Join(s.root, "invalid", api, date)
}

// SavePage writes one raw page as response_NNN.json. Pages are numbered
// sequentially from 1.
func (s *Store) SavePage(api, date string, seq int, data []byte) (string, error) {
	dir := s.RawDir(api, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "pagestore: create dir %s", dir)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", eris.Wrapf(err, "pagestore: page %d is not valid JSON", seq)
	}

	path := filepath.Join(dir, fmt.Sprintf("response_%03d.json", seq))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", eris.Wrapf(err, "pagestore: write %s", path)
	}
	return path, nil
}

// ListPages returns the sorted page file paths for one partition. A missing
// partition directory yields an empty list, not an error.
func (s *Store) ListPages(api, date string) ([]string, error) {
	pattern := filepath.Join(s.RawDir(api, date), "*.json")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, eris.Wrapf(err, "pagestore: glob %s", pattern)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadRows concatenates all pages of a partition into one row set. Each page
// is either a JSON object (one row) or an array of objects.
func (s *Store) LoadRows(api, date string) ([]map[string]any, error) {
	paths, err := s.ListPages(api, date)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "pagestore: read %s", path)
		}

		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrapf(err, "pagestore: parse %s", path)
		}

		switch v := doc.(type) {
		case []any:
			for i, elem := range v {
				obj, ok := elem.(map[string]any)
				if !ok {
					return nil, eris.Errorf("pagestore: %s element %d is not an object", path, i)
				}
				rows = append(rows, obj)
			}
		case map[string]any:
			rows = append(rows, v)
		default:
			return nil, eris.Errorf("pagestore: %s is neither object nor array", path)
		}
	}
	return rows, nil
}

// WriteInvalid dumps rejected rows to the side channel for manual
// inspection. Callers only invoke it with a non-empty payload.
func (s *Store) WriteInvalid(api, date, name string, v any) (string, error) {
	dir := s.InvalidDir(api, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "pagestore: create dir %s", dir)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "pagestore: marshal invalid rows")
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "pagestore: write %s", path)
	}
	return path, nil
}
