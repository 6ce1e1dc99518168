// Package assets provides a filesystem implementation of core.AssetStore.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/AS042971/otto/internal/core"
	"github.com/AS042971/otto/internal/tts/ttsutils"
)

const (
	errFmtOutsideRoot = "%w: %q escapes the assets directory"
	errFmtRead        = "failed to read clip %q from %s: %w"
	errFmtNotFound    = "%w: %q in %s"
	errFmtRoot        = "assets directory %s: %w"
	errFmtWalk        = "failed to list clips in %s: %w"
)

// ErrNotDirectory is returned when the assets root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// DirStore reads clips from files below a root directory. Clip identifiers are
// slash-separated paths relative to the root.
type DirStore struct {
	root string
}

var _ core.AssetStore = (*DirStore)(nil)

// NewDirStore checks that root is a readable directory and returns a store over it.
func NewDirStore(root string) (*DirStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf(errFmtRoot, root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf(errFmtRoot, root, ErrNotDirectory)
	}

	return &DirStore{root: root}, nil
}

// Root returns the assets directory.
func (d *DirStore) Root() string {
	return d.root
}

// ReadClip returns the bytes of the clip file. Identifiers that are absolute or
// climb out of the root are reported as not found.
func (d *DirStore) ReadClip(ctx context.Context, id string) ([]byte, error) {
	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf(errFmtRead, id, d.root, err)
	}

	local := filepath.FromSlash(id)
	if !filepath.IsLocal(local) {
		return nil, fmt.Errorf(errFmtOutsideRoot, core.ErrAssetNotFound, id)
	}

	data, err := os.ReadFile(filepath.Join(d.root, local))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf(errFmtNotFound, core.ErrAssetNotFound, id, d.root)
		}

		return nil, fmt.Errorf(errFmtRead, id, d.root, err)
	}

	return data, nil
}

// ClipIDs lists the identifiers of every .wav file below the root, sorted.
func (d *DirStore) ClipIDs() ([]string, error) {
	var ids []string

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.IsDir() || !ttsutils.IsWAVFile(path) {
			return nil
		}

		relative, relErr := filepath.Rel(d.root, path)
		if relErr != nil {
			return relErr
		}

		ids = append(ids, filepath.ToSlash(relative))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf(errFmtWalk, d.root, err)
	}

	slices.Sort(ids)

	return ids, nil
}
