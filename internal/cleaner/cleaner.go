// Package cleaner sends converted PDF text to the artifact removal service
// and writes the cleaned result next to the input.
package cleaner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dshills/docindex/internal/fsutil"
)

// DefaultMaxTokensPerChunk is the chunk size requested from the service
const DefaultMaxTokensPerChunk = 1000

var (
	// ErrNotConfigured is returned when the service URL or token is missing
	ErrNotConfigured = errors.New("artifact removal is not configured")
	// ErrBadResponse is returned for a response without usable chunks
	ErrBadResponse = errors.New("invalid cleaning response")
)

// StatusError is a non-2xx response from the service
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

type cleanRequest struct {
	TranscriptText    string `json:"transcript_text"`
	MaxTokensPerChunk int    `json:"max_tokens_per_chunk"`
}

type cleanChunk struct {
	CleanedText *string `json:"cleaned_text"`
}

type cleanResponse struct {
	Chunks *[]cleanChunk `json:"chunks"`
}

// Options configures a Client
type Options struct {
	URL        string
	Token      string
	HTTPClient *http.Client
	Retry      RetryConfig
	// RequestsPerSecond limits outgoing requests; zero means 2/s
	RequestsPerSecond float64
}

// Client talks to the artifact removal service
type Client struct {
	url     string
	token   string
	http    *http.Client
	retry   RetryConfig
	limiter *rate.Limiter
}

// NewClient creates a client. URL and token are both required.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" || opts.Token == "" {
		return nil, ErrNotConfigured
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	return &Client{
		url:     opts.URL,
		token:   opts.Token,
		http:    opts.HTTPClient,
		retry:   opts.Retry,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}, nil
}

// Clean sends text and returns the cleaned chunks, trimmed and joined by
// blank lines
func (c *Client) Clean(ctx context.Context, text string, maxTokensPerChunk int) (string, error) {
	if maxTokensPerChunk <= 0 {
		maxTokensPerChunk = DefaultMaxTokensPerChunk
	}
	body, err := json.Marshal(cleanRequest{TranscriptText: text, MaxTokensPerChunk: maxTokensPerChunk})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := retryWithBackoff(ctx, c.retry, func() (*cleanResponse, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		return "", err
	}

	chunks := *resp.Chunks
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if chunk.CleanedText == nil {
			return "", fmt.Errorf("%w: chunk %d missing cleaned_text", ErrBadResponse, i)
		}
		parts = append(parts, strings.TrimSpace(*chunk.CleanedText))
	}
	return strings.Join(parts, "\n\n"), nil
}

func (c *Client) post(ctx context.Context, body []byte) (*cleanResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Code: resp.StatusCode, Body: strings.ToValidUTF8(string(raw), "�")}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, statusErr
		}
		return nil, permanent(statusErr)
	}

	var out cleanResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, permanent(fmt.Errorf("%w: %s", ErrBadResponse, truncate(string(raw), 200)))
	}
	if out.Chunks == nil {
		return nil, permanent(fmt.Errorf("%w: missing chunks list", ErrBadResponse))
	}
	return &out, nil
}

// CleanFile cleans the text file at input and writes the result to output,
// or to OutputPath(input) when output is empty. It returns the path written.
func (c *Client) CleanFile(ctx context.Context, input, output string, maxTokensPerChunk int) (string, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	cleaned, err := c.Clean(ctx, string(data), maxTokensPerChunk)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(cleaned, "\n") {
		cleaned += "\n"
	}
	if output == "" {
		output = OutputPath(input)
	}
	err = fsutil.WriteAtomic(output, 0644, func(w io.Writer) error {
		_, err := io.WriteString(w, cleaned)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", output, err)
	}
	return output, nil
}

// OutputPath inserts "_cleaned" before the extension of input; inputs
// without an extension get ".md"
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	if ext == "" || ext == filepath.Base(input) {
		return input + "_cleaned.md"
	}
	return strings.TrimSuffix(input, ext) + "_cleaned" + ext
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
