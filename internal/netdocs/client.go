// Package netdocs is a client for the NetDocuments helper service and the
// matter search database.
package netdocs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/docindex/internal/fsutil"
)

// FolderExt marks folder entries in a listing
const FolderExt = "ndfld"

// ErrNotConfigured is returned when the helper URL or API key is missing
var ErrNotConfigured = errors.New("netdocs access is not configured")

// Entry is one item of a folder listing
type Entry struct {
	DocID      string `json:"DocId"`
	Attributes struct {
		Name     string `json:"Name"`
		Ext      string `json:"Ext"`
		Modified string `json:"Modified"`
	} `json:"Attributes"`
	Versions struct {
		Official int `json:"Official"`
	} `json:"Versions"`
}

// IsFolder reports whether the entry is a folder
func (e Entry) IsFolder() bool {
	return e.Attributes.Ext == FolderExt
}

// Version returns the official version, defaulting to 1
func (e Entry) Version() int {
	if e.Versions.Official == 0 {
		return 1
	}
	return e.Versions.Official
}

// String formats the entry as a listing line
func (e Entry) String() string {
	kind := e.Attributes.Ext
	if e.IsFolder() {
		kind = "folder"
	}
	modified := e.Attributes.Modified
	if len(modified) > 10 {
		modified = modified[:10]
	}
	return fmt.Sprintf("%s  v%d  %-6s  %s  %s", e.DocID, e.Version(), kind, modified, e.Attributes.Name)
}

// WebURL returns the browser link for a document
func WebURL(docID string) string {
	return "https://vault.netvoyage.com/neWeb2/goId.aspx?id=" + url.QueryEscape(docID)
}

// Client calls the helper service
type Client struct {
	baseURL     string
	apiKey      string
	downloadDir string
	http        *http.Client
}

// NewClient creates a client. Downloads are written under downloadDir.
func NewClient(baseURL, apiKey, downloadDir string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" || apiKey == "" {
		return nil, ErrNotConfigured
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if downloadDir == "" {
		downloadDir = "."
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		downloadDir: downloadDir,
		http:        httpClient,
	}, nil
}

// Ls lists the folder docID
func (c *Client) Ls(ctx context.Context, docID string) ([]Entry, error) {
	resp, err := c.get(ctx, "ls", url.PathEscape(docID))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Results *[]Entry `json:"Results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}
	if out.Results == nil {
		return nil, errors.New("listing response has no Results")
	}
	return *out.Results, nil
}

// Download saves version of docID as filename in the download directory and
// returns the written path. Only the base name of filename is used.
func (c *Client) Download(ctx context.Context, docID string, version int, filename string) (string, error) {
	if version <= 0 {
		version = 1
	}
	name := filepath.Base(filename)
	if filename == "" || name == "." || name == string(filepath.Separator) {
		name = docID + ".download"
	}

	resp, err := c.get(ctx, "dlv", url.PathEscape(docID), strconv.Itoa(version))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	dest := filepath.Join(c.downloadDir, name)
	err = fsutil.WriteAtomic(dest, 0644, func(w io.Writer) error {
		_, err := io.Copy(w, resp.Body)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	return dest, nil
}

func (c *Client) get(ctx context.Context, parts ...string) (*http.Response, error) {
	endpoint := c.baseURL + "/" + strings.Join(parts, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: HTTP %d: %s", parts[0], resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
