package cleaner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{
		URL:               srv.URL + "/clean",
		Token:             "secret",
		Retry:             fastRetry(),
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_NotConfigured(t *testing.T) {
	_, err := NewClient(Options{URL: "http://example.invalid"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClean_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/clean", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req cleanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "raw text", req.TranscriptText)
		assert.Equal(t, DefaultMaxTokensPerChunk, req.MaxTokensPerChunk)

		_, _ = w.Write([]byte(`{"chunks":[{"cleaned_text":"  first  "},{"cleaned_text":"second\n"}]}`))
	})

	out, err := client.Clean(context.Background(), "raw text", 0)
	require.NoError(t, err)
	assert.Equal(t, "first\n\nsecond", out)
}

func TestClean_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"chunks":[{"cleaned_text":"ok"}]}`))
	})

	out, err := client.Clean(context.Background(), "x", 10)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClean_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	})

	_, err := client.Clean(context.Background(), "x", 10)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClean_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	})

	_, err := client.Clean(context.Background(), "x", 10)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Contains(t, statusErr.Body, "bad token")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClean_BadResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"missing chunks", `{"result": []}`},
		{"chunks not a list", `{"chunks": "text"}`},
		{"chunk without text", `{"chunks":[{"cleaned_text":"a"},{"other":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Clean(context.Background(), "x", 10)
			assert.ErrorIs(t, err, ErrBadResponse)
		})
	}
}

func TestCleanFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chunks":[{"cleaned_text":"clean body"}]}`))
	})
	dir := t.TempDir()
	input := filepath.Join(dir, "report.pdf.md")
	require.NoError(t, os.WriteFile(input, []byte("Page 1 of 9\nbody"), 0644))

	out, err := client.CleanFile(context.Background(), input, "", 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.pdf_cleaned.md"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "clean body\n", string(data))
}

func TestCleanFile_MissingInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := client.CleanFile(context.Background(), filepath.Join(t.TempDir(), "none.md"), "", 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "a/report.pdf_cleaned.md", OutputPath("a/report.pdf.md"))
	assert.Equal(t, "notes_cleaned.txt", OutputPath("notes.txt"))
	assert.Equal(t, "README_cleaned.md", OutputPath("README"))
	assert.Equal(t, ".md_cleaned.md", OutputPath(".md"))
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := retryWithBackoff(ctx, fastRetry(), func() (int, error) {
		calls++
		return 0, assert.AnError
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
