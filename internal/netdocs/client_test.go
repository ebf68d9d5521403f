package netdocs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, dir string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL+"/", "nd-key", dir, srv.Client())
	require.NoError(t, err)
	return client
}

func TestNewClient_NotConfigured(t *testing.T) {
	_, err := NewClient("", "key", "", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLs(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ls/4821-7732-1190", r.URL.Path)
		assert.Equal(t, "Bearer nd-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"Results":[
			{"DocId":"4821-1","Attributes":{"Name":"Pleadings","Ext":"ndfld","Modified":"2024-03-01T10:00:00Z"},"Versions":{}},
			{"DocId":"4821-2","Attributes":{"Name":"Complaint","Ext":"pdf","Modified":"2024-02-11T08:30:00Z"},"Versions":{"Official":3}}
		]}`))
	})

	entries, err := client.Ls(context.Background(), "4821-7732-1190")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].IsFolder())
	assert.Equal(t, 1, entries[0].Version())
	assert.Equal(t, "4821-1  v1  folder  2024-03-01  Pleadings", entries[0].String())
	assert.Equal(t, "4821-2  v3  pdf     2024-02-11  Complaint", entries[1].String())
}

func TestLs_HTTPError(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such folder", http.StatusNotFound)
	})

	_, err := client.Ls(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Contains(t, err.Error(), "no such folder")
}

func TestLs_MissingResults(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.Ls(context.Background(), "x")
	assert.Error(t, err)
}

func TestDownload(t *testing.T) {
	dir := t.TempDir()
	client := newTestClient(t, dir, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dlv/4821-2/3", r.URL.Path)
		_, _ = w.Write([]byte("%PDF-1.7 body"))
	})

	path, err := client.Download(context.Background(), "4821-2", 3, "../escape/complaint.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "complaint.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(data))
}

func TestDownload_DefaultNameAndVersion(t *testing.T) {
	dir := t.TempDir()
	client := newTestClient(t, dir, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dlv/4821-2/1", r.URL.Path)
		_, _ = w.Write([]byte("x"))
	})

	path, err := client.Download(context.Background(), "4821-2", 0, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "4821-2.download"), path)
}

func TestDownload_FailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	client := newTestClient(t, dir, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	})

	_, err := client.Download(context.Background(), "4821-2", 1, "complaint.pdf")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWebURL(t *testing.T) {
	assert.Equal(t, "https://vault.netvoyage.com/neWeb2/goId.aspx?id=4821-2", WebURL("4821-2"))
}
