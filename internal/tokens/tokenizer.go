// Package tokens counts tokens in converted artifacts.
package tokens

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is the encoding used for the token index
const DefaultEncoding = "cl100k_base"

// Encodings lists the encodings accepted by NewTiktoken
var Encodings = []string{"cl100k_base", "p50k_base", "r50k_base", "o200k_base"}

// Tokenizer counts tokens in text. Implementations must be safe for
// concurrent use; one instance is shared by every counting worker.
type Tokenizer interface {
	Encoding() string
	Count(text string) int
}

var loaderOnce sync.Once

// Tiktoken is a Tokenizer backed by tiktoken-go. It is built once and never
// mutated afterwards; Count only reads the merge ranks and compiled patterns,
// so a single instance may be used from any number of goroutines.
type Tiktoken struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

// NewTiktoken loads an encoding from the BPE tables embedded in the binary.
// No network access is needed.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if !validEncoding(encoding) {
		return nil, fmt.Errorf("unsupported encoding %q (want one of %s)", encoding, strings.Join(Encodings, ", "))
	}

	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{encoding: encoding, enc: enc}, nil
}

func (t *Tiktoken) Encoding() string { return t.encoding }

// Count encodes text with special tokens treated as ordinary text
func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func validEncoding(name string) bool {
	for _, e := range Encodings {
		if e == name {
			return true
		}
	}
	return false
}

// ReadText reads a file as UTF-8 text. Invalid byte sequences become U+FFFD
// and CRLF or CR line endings become LF.
func ReadText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(transform.NewReader(f, unicode.UTF8.NewDecoder()))
	if err != nil {
		return "", err
	}
	return normalizeNewlines(string(data)), nil
}

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// CountFile reads path as text and counts its tokens
func CountFile(tok Tokenizer, path string) (int, error) {
	text, err := ReadText(path)
	if err != nil {
		return 0, err
	}
	return tok.Count(text), nil
}
