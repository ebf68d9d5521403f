package converter

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex/pkg/types"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("converter tests use /bin/sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// copyTool mimics `markitdown SRC -o DEST` by copying SRC to DEST
var copyTool = []string{"sh", "-c", `cp "$1" "$3"`, "sh"}

// failTool exits non-zero without touching its output argument
var failTool = []string{"sh", "-c", `echo "cannot parse $1" >&2; exit 3`, "sh"}

func source(t *testing.T, root, rel, content string) types.SourceFile {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
	fam, err := types.Classify(rel)
	require.NoError(t, err)
	return types.SourceFile{RelPath: rel, AbsPath: abs, Family: fam}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestMarkitdown_Convert(t *testing.T) {
	requireShell(t)
	root := t.TempDir()
	src := source(t, root, "a.pdf", "pdf body")
	dest := filepath.Join(root, "a.pdf.md")

	err := NewMarkitdown(copyTool).Convert(context.Background(), src.AbsPath, dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "pdf body", string(data))
	assert.Equal(t, []string{"a.pdf", "a.pdf.md"}, dirNames(t, root))
}

func TestMarkitdown_FailureKeepsOldArtifact(t *testing.T) {
	requireShell(t)
	root := t.TempDir()
	src := source(t, root, "a.pdf", "pdf body")
	dest := filepath.Join(root, "a.pdf.md")
	require.NoError(t, os.WriteFile(dest, []byte("previous"), 0644))

	err := NewMarkitdown(failTool).Convert(context.Background(), src.AbsPath, dest)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, "markitdown", exitErr.Tool)
	assert.Contains(t, exitErr.Stderr, "cannot parse")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	assert.Equal(t, []string{"a.pdf", "a.pdf.md"}, dirNames(t, root), "no temporary files left behind")
}

func TestMarkitdown_MissingBinary(t *testing.T) {
	root := t.TempDir()
	src := source(t, root, "a.pdf", "x")

	err := NewMarkitdown([]string{"definitely-not-a-real-tool-xyz"}).Convert(context.Background(), src.AbsPath, filepath.Join(root, "a.pdf.md"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(root, "a.pdf.md"))
}

func TestSuperdoc_CapturesStdout(t *testing.T) {
	requireShell(t)
	root := t.TempDir()
	src := source(t, root, "memo.docx", "docx body")
	dest := filepath.Join(root, "memo.docx.json")

	// Arguments arrive as: read --input SRC --no-metadata
	conv := &Superdoc{Command: []string{"sh", "-c", `printf '{"input":"%s","flag":"%s"}' "$3" "$4"`, "sh"}}
	require.NoError(t, conv.Convert(context.Background(), src.AbsPath, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.JSONEq(t, `{"input":"`+src.AbsPath+`","flag":"--no-metadata"}`, string(data))
}

func TestSuperdoc_Failure(t *testing.T) {
	requireShell(t)
	root := t.TempDir()
	src := source(t, root, "memo.docx", "docx body")
	dest := filepath.Join(root, "memo.docx.json")

	conv := &Superdoc{Command: []string{"sh", "-c", `echo partial; exit 1`, "sh"}}
	assert.Error(t, conv.Convert(context.Background(), src.AbsPath, dest))
	assert.NoFileExists(t, dest)
}

type recordingConverter struct {
	name string
	fail map[string]bool
}

func (r *recordingConverter) Name() string { return r.name }

func (r *recordingConverter) Convert(_ context.Context, src, dest string) error {
	if r.fail[filepath.Base(src)] {
		return errors.New("conversion failed")
	}
	return os.WriteFile(dest, []byte(r.name+":"+filepath.Base(src)), 0644)
}

func TestDispatcher_RoutesByFamily(t *testing.T) {
	root := t.TempDir()
	md := &recordingConverter{name: "md"}
	js := &recordingConverter{name: "json"}

	for _, tt := range []struct {
		choice   types.DocxConverter
		artifact string
		content  string
	}{
		{types.DocxMarkitdown, "memo.docx.md", "md:memo.docx"},
		{types.DocxSuperdoc, "memo.docx.json", "json:memo.docx"},
	} {
		t.Run(string(tt.choice), func(t *testing.T) {
			d := NewDispatcher(Options{Root: root, DocxConverter: tt.choice, Markdown: md, Structured: js, Workers: 2})
			sources := []types.SourceFile{
				source(t, root, "a.pdf", "p"),
				source(t, root, "mail/x.eml", "e"),
				source(t, root, "memo.docx", "d"),
			}

			converted, failed := d.ConvertAll(context.Background(), sources)
			require.Empty(t, failed)
			assert.Equal(t, map[string]string{
				"a.pdf":      "a.pdf.md",
				"mail/x.eml": "mail/x.eml.md",
				"memo.docx":  tt.artifact,
			}, converted)

			data, err := os.ReadFile(filepath.Join(root, tt.artifact))
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))

			data, err = os.ReadFile(filepath.Join(root, "a.pdf.md"))
			require.NoError(t, err)
			assert.Equal(t, "md:a.pdf", string(data))
		})
	}
}

func TestDispatcher_IsolatesFailures(t *testing.T) {
	root := t.TempDir()
	md := &recordingConverter{name: "md", fail: map[string]bool{"bad.pdf": true}}
	d := NewDispatcher(Options{Root: root, Markdown: md, Workers: 4})

	sources := []types.SourceFile{
		source(t, root, "a.pdf", "1"),
		source(t, root, "bad.pdf", "2"),
		source(t, root, "c.pdf", "3"),
	}
	converted, failed := d.ConvertAll(context.Background(), sources)

	assert.Equal(t, map[string]string{"a.pdf": "a.pdf.md", "c.pdf": "c.pdf.md"}, converted)
	require.Len(t, failed, 1)
	assert.Equal(t, "bad.pdf", failed[0].Input.RelPath)
	assert.NoFileExists(t, filepath.Join(root, "bad.pdf.md"))
}

func TestDispatcher_Defaults(t *testing.T) {
	d := NewDispatcher(Options{Root: "/docs"})

	assert.Equal(t, types.DocxMarkitdown, d.DocxConverter())
	assert.Equal(t, "markitdown", d.ConverterFor(types.FamilyDOCX).Name())
	assert.Equal(t, "markitdown", d.ConverterFor(types.FamilyPDF).Name())

	sd, ok := d.structured.(*Superdoc)
	require.True(t, ok)
	assert.Equal(t, []string{"node", filepath.Join("/docs", DefaultSuperdocScript)}, sd.Command)
}
