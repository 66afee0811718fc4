// Package drive talks to the archive provider: authorizing a session from
// stored credentials, locating the newest takeout archive, and downloading
// it into memory.
package drive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/consentlab/takeout-agent/internal/common"
	"github.com/consentlab/takeout-agent/internal/vault"
)

// Client is configured once per process and shared across tasks; sessions
// carry the per-participant authorization.
type Client struct {
	baseURL string
	timeout time.Duration
	prefix  string
}

// NewClient builds a provider client. prefix is the archive naming token
// used to filter the file listing (e.g. "takeout").
func NewClient(baseURL string, timeout time.Duration, prefix string) *Client {
	return &Client{baseURL: baseURL, timeout: timeout, prefix: prefix}
}

// Session is an authorized HTTP session bound to one participant's tokens.
type Session struct {
	http *resty.Client
}

// Authorize validates the credential object and builds a session. A missing
// access token means the credential is malformed or was never captured; this
// is a permanent failure (common.ErrCannotAuthorize), not a retryable one.
func (c *Client) Authorize(creds *vault.Credentials) (*Session, error) {
	if creds == nil || creds.AccessToken == "" {
		return nil, common.ErrCannotAuthorize
	}

	http := resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(c.timeout).
		SetAuthToken(creds.AccessToken)

	return &Session{http: http}, nil
}

// ArchiveFile is one listing entry. The name embeds a creation timestamp
// token, e.g. "takeout-20230101T120500Z-001.zip".
type ArchiveFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listResult struct {
	Files []ArchiveFile `json:"files"`
}

// LocateLatestArchive lists candidate archives and returns the id of the one
// whose embedded creation timestamp is most recent, ties broken by
// lexicographic id order. An empty listing yields common.ErrDriveNotReady:
// the provider is still preparing the export.
func (c *Client) LocateLatestArchive(ctx context.Context, s *Session) (string, error) {
	result := &listResult{}
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("q", fmt.Sprintf("name contains '%s'", c.prefix)).
		SetResult(result).
		Get("/files")
	if err != nil {
		return "", fmt.Errorf("listing archives failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("listing archives failed with status %d", resp.StatusCode())
	}

	if len(result.Files) == 0 {
		return "", common.ErrDriveNotReady
	}

	files := make([]ArchiveFile, len(result.Files))
	copy(files, result.Files)

	sort.Slice(files, func(i, j int) bool {
		ti, tj := archiveTimestamp(files[i].Name), archiveTimestamp(files[j].Name)
		if ti.Equal(tj) {
			return files[i].ID > files[j].ID
		}
		return ti.After(tj)
	})

	return files[0].ID, nil
}

// archiveTimestampLayout matches the timestamp token embedded in archive
// names by the provider's export job.
const archiveTimestampLayout = "20060102T150405Z"

func archiveTimestamp(name string) time.Time {
	parts := strings.SplitN(name, "-", 3)
	if len(parts) < 2 {
		return time.Time{}
	}
	ts, err := time.Parse(archiveTimestampLayout, parts[1])
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Download fetches the archive content by id. A non-200 response or any
// transport error is wrapped as common.ErrDownloadFailed, since download
// failures are routinely transient and must not abort the rest of the
// consent's processing.
func (c *Client) Download(ctx context.Context, s *Session, archiveID string) ([]byte, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("alt", "media").
		Get("/files/" + archiveID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDownloadFailed, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: status %d", common.ErrDownloadFailed, resp.StatusCode())
	}
	return resp.Body(), nil
}
