package tokens

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordTokenizer counts whitespace-separated words
type wordTokenizer struct{}

func (wordTokenizer) Encoding() string      { return "words" }
func (wordTokenizer) Count(text string) int { return len(strings.Fields(text)) }

func writeArtifact(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0644))
	return p
}

func TestReadText_ReplacesInvalidUTF8(t *testing.T) {
	p := writeArtifact(t, t.TempDir(), "a.md", []byte("ok \xff\xfe done"))

	text, err := ReadText(p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "ok �"))
	assert.True(t, strings.HasSuffix(text, " done"))
}

func TestReadText_NormalizesNewlines(t *testing.T) {
	p := writeArtifact(t, t.TempDir(), "a.md", []byte("one\r\ntwo\rthree\n"))

	text, err := ReadText(p)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", text)
}

func TestCountFile_Missing(t *testing.T) {
	_, err := CountFile(wordTokenizer{}, filepath.Join(t.TempDir(), "nope.md"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCounter_CountAll(t *testing.T) {
	dir := t.TempDir()
	jobs := []Job{
		{Source: "a.pdf", Artifact: "a.pdf.md", Path: writeArtifact(t, dir, "a.pdf.md", []byte("one two three"))},
		{Source: "b.eml", Artifact: "b.eml.md", Path: writeArtifact(t, dir, "b.eml.md", []byte(""))},
		{Source: "c.pdf", Artifact: "c.pdf.md", Path: filepath.Join(dir, "missing.md")},
	}

	counts, failed := NewCounter(wordTokenizer{}, 2, nil).CountAll(context.Background(), jobs)

	assert.Equal(t, map[string]int{"a.pdf.md": 3, "b.eml.md": 0}, counts)
	require.Len(t, failed, 1)
	assert.Equal(t, "c.pdf.md", failed[0].Input.Artifact)
}

func TestAnalyze(t *testing.T) {
	s := Analyze(wordTokenizer{}, "héllo world\nsecond line")

	assert.Equal(t, "words", s.Encoding)
	assert.Equal(t, 4, s.Tokens)
	assert.Equal(t, 23, s.Characters)
	assert.Equal(t, 4, s.Words)
	assert.Equal(t, 2, s.Lines)
	assert.InDelta(t, 5.75, s.CharsPerToken(), 0.001)

	empty := Analyze(wordTokenizer{}, "")
	assert.Equal(t, 0, empty.Lines)
	assert.Zero(t, empty.CharsPerToken())

	assert.Equal(t, 1, Analyze(wordTokenizer{}, "x\n").Lines)
}

func TestNewTiktoken_UnknownEncoding(t *testing.T) {
	_, err := NewTiktoken("gpt2-ish")
	assert.Error(t, err)
}

func TestTiktoken_Cl100k(t *testing.T) {
	tok, err := NewTiktoken("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEncoding, tok.Encoding())

	assert.Equal(t, 2, tok.Count("hello world"))
	assert.Equal(t, 0, tok.Count(""))
	// Special token text is encoded as ordinary text rather than rejected
	assert.Greater(t, tok.Count("<|endoftext|>"), 1)
}

func TestTiktoken_ConcurrentUse(t *testing.T) {
	tok, err := NewTiktoken(DefaultEncoding)
	require.NoError(t, err)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)
	want := tok.Count(text)

	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = tok.Count(text)
		}()
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestCache(t *testing.T) {
	c := NewCache(2)
	tok := wordTokenizer{}

	n, err := c.CountText(tok, "a b c")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.CountText(tok, "a b c")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	_, _ = c.CountText(tok, "d")
	_, _ = c.CountText(tok, "e f")
	assert.Equal(t, 2, c.Len())
}

func TestCache_Analyze(t *testing.T) {
	c := NewCache(4)
	stats, err := c.Analyze(wordTokenizer{}, "one two\nthree")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tokens)
	assert.Equal(t, 2, stats.Lines)
	assert.Equal(t, "words", stats.Encoding)
	assert.Equal(t, 1, c.Len())
}
