package cask

import (
	"io/fs"
	"path/filepath"

	"github.com/mr-karan/caskdb/internal/record"
	"github.com/mr-karan/caskdb/internal/segment"
)

// getSegmentIDs returns the identities of all segment files under root,
// relative to root and slash separated.
func getSegmentIDs(root string) ([]string, error) {
	ids := make([]string, 0)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != segment.Ext {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		ids = append(ids, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// validateKV validates key/value before inserting.
func validateKV(k string, val []byte) error {
	if len(k) == 0 {
		return ErrEmptyKey
	}

	if uint64(len(k)) > record.MaxKeySize {
		return ErrLargeKey
	}

	if uint64(len(val)) > record.MaxValueSize {
		return ErrLargeValue
	}

	return nil
}
