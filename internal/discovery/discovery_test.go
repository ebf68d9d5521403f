package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex/pkg/types"
)

func touch(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(rel), 0644))
}

func relPaths(files []types.SourceFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestDiscover_FiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"z.pdf",
		"a.PDF",
		"mail/inbox.eml",
		"mail/notes.txt",
		"docs/memo.docx",
		"docs/memo.docx.md",
		"docs/old.doc",
		".git/objects/x.pdf",
		"sub/.cache/y.pdf",
		".hidden.pdf",
	} {
		touch(t, root, rel)
	}

	files, err := Discover(root, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		".hidden.pdf",
		"a.PDF",
		"docs/memo.docx",
		"mail/inbox.eml",
		"z.pdf",
	}, relPaths(files))

	for _, f := range files {
		assert.Equal(t, filepath.Join(root, filepath.FromSlash(f.RelPath)), f.AbsPath)
		assert.NotEmpty(t, f.Family)
	}
}

func TestDiscover_Empty(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "readme.txt")

	files, err := Discover(root, Options{})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscover_Exclude(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "keep/a.pdf")
	touch(t, root, "archive/2019/b.pdf")
	touch(t, root, "archive/c.msg")

	files, err := Discover(root, Options{Exclude: []string{"archive/**"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep/a.pdf"}, relPaths(files))
}

func TestDiscover_InvalidPattern(t *testing.T) {
	_, err := Discover(t.TempDir(), Options{Exclude: []string{"[unterminated"}})
	assert.Error(t, err)
}

func TestDiscover_MissingRoot(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.ErrorIs(t, err, ErrRootNotDirectory)
}

func TestDiscover_RootIsFile(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.pdf")

	_, err := Discover(filepath.Join(root, "a.pdf"), Options{})
	assert.ErrorIs(t, err, ErrRootNotDirectory)
}
