package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveResolvesUnderRoot(t *testing.T) {
	r := &Resolver{ArchivesRoot: "/data/archives", ThumbnailsRoot: "/data/thumbs"}

	got, err := r.Archive("local_archive_har/session-1/pic.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data/archives", "session-1", "pic.jpg"), got)

	got, err = r.ThumbnailFromAlias("local_thumbnails/abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data/thumbs", "abc.jpg"), got)
}

func TestArchiveRejectsBadAliases(t *testing.T) {
	r := &Resolver{ArchivesRoot: "/data/archives", ThumbnailsRoot: "/data/thumbs"}

	for _, alias := range []string{
		"session-1/pic.jpg",                     // no prefix
		"local_thumbnails/abc.jpg",              // wrong prefix for Archive
		"local_archive_har/../../etc/passwd",    // traversal
		"local_archive_har//etc/passwd",         // absolute after prefix
		"local_archive_har/",                    // empty
	} {
		_, err := r.Archive(alias)
		assert.Error(t, err, alias)
	}
}

func TestAliasBuilders(t *testing.T) {
	assert.Equal(t, "local_archive_har/s1/a.mp4", ArchiveAlias(filepath.Join("s1", "a.mp4")))
	assert.Equal(t, "local_thumbnails/x.jpg", ThumbnailAlias("x.jpg"))
}
