package tokens

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dshills/docindex/internal/workerpool"
)

// Job asks for the token count of one artifact
type Job struct {
	Source   string // Source path the artifact was derived from
	Artifact string // Artifact path, the token index key
	Path     string // Absolute artifact location
}

func (j Job) String() string {
	return j.Artifact
}

// Counter counts artifacts on a bounded pool, sharing one Tokenizer
type Counter struct {
	tok     Tokenizer
	workers int
	logger  *slog.Logger
}

// NewCounter creates a counter. The tokenizer must be safe for concurrent use.
func NewCounter(tok Tokenizer, workers int, logger *slog.Logger) *Counter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Counter{tok: tok, workers: workers, logger: logger}
}

// Tokenizer returns the shared tokenizer
func (c *Counter) Tokenizer() Tokenizer {
	return c.tok
}

// CountAll counts every job. Results are keyed by artifact path.
func (c *Counter) CountAll(ctx context.Context, jobs []Job) (map[string]int, []workerpool.Failure[Job]) {
	return workerpool.Run(ctx, c.workers, jobs, func(_ context.Context, job Job) (string, int, error) {
		n, err := CountFile(c.tok, job.Path)
		if err != nil {
			return "", 0, fmt.Errorf("count %s: %w", job.Artifact, err)
		}
		c.logger.Debug("counted tokens", "artifact", job.Artifact, "tokens", n)
		return job.Artifact, n, nil
	})
}

// Stats describes a text beyond its token count
type Stats struct {
	Encoding   string
	Tokens     int
	Characters int
	Words      int
	Lines      int
}

// CharsPerToken returns the average characters per token, 0 for no tokens
func (s Stats) CharsPerToken() float64 {
	if s.Tokens == 0 {
		return 0
	}
	return float64(s.Characters) / float64(s.Tokens)
}

// Analyze counts tokens, characters, whitespace-separated words and lines.
// A final line without a trailing newline still counts.
func Analyze(tok Tokenizer, text string) Stats {
	return describe(tok.Encoding(), tok.Count(text), text)
}

func describe(encoding string, tokens int, text string) Stats {
	lines := strings.Count(text, "\n")
	if text != "" && !strings.HasSuffix(text, "\n") {
		lines++
	}
	return Stats{
		Encoding:   encoding,
		Tokens:     tokens,
		Characters: utf8.RuneCountInString(text),
		Words:      len(strings.Fields(text)),
		Lines:      lines,
	}
}
