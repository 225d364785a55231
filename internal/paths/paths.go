// Package paths implements the storage alias scheme. Database rows never
// store absolute filesystem paths; they store aliased paths rooted at
// "local_archive_har/" or "local_thumbnails/", resolved against the
// configured roots at serve time. Moving the archives to a new disk then
// needs a config change, not a data migration.
package paths

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	ArchivePrefix   = "local_archive_har/"
	ThumbnailPrefix = "local_thumbnails/"
)

// Resolver maps aliased paths to filesystem locations.
type Resolver struct {
	ArchivesRoot   string
	ThumbnailsRoot string
}

// ArchiveAlias turns a path relative to the archives root into its stored
// alias.
func ArchiveAlias(rel string) string {
	return ArchivePrefix + filepath.ToSlash(rel)
}

// ThumbnailAlias turns a thumbnail filename into its stored alias.
func ThumbnailAlias(name string) string {
	return ThumbnailPrefix + name
}

// Archive resolves an archive alias to a filesystem path. Aliases containing
// path traversal are rejected.
func (r *Resolver) Archive(alias string) (string, error) {
	return r.resolve(alias, ArchivePrefix, r.ArchivesRoot)
}

// ThumbnailFromAlias resolves a thumbnail alias to a filesystem path.
func (r *Resolver) ThumbnailFromAlias(alias string) (string, error) {
	return r.resolve(alias, ThumbnailPrefix, r.ThumbnailsRoot)
}

// Thumbnail returns the filesystem path for a thumbnail filename.
func (r *Resolver) Thumbnail(name string) string {
	return filepath.Join(r.ThumbnailsRoot, name)
}

func (r *Resolver) resolve(alias, prefix, root string) (string, error) {
	rel, ok := strings.CutPrefix(alias, prefix)
	if !ok {
		return "", fmt.Errorf("path %q: unknown storage alias", alias)
	}
	rel = filepath.FromSlash(rel)
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q: invalid storage path", alias)
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q: escapes storage root", alias)
	}
	return filepath.Join(root, clean), nil
}
