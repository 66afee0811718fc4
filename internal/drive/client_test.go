package drive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentlab/takeout-agent/internal/common"
	"github.com/consentlab/takeout-agent/internal/vault"
)

func testCreds() *vault.Credentials {
	return &vault.Credentials{AccessToken: "at", RefreshToken: "rt"}
}

func TestAuthorize_MissingToken(t *testing.T) {
	c := NewClient("http://example.org", time.Second, "takeout")

	_, err := c.Authorize(&vault.Credentials{})
	assert.ErrorIs(t, err, common.ErrCannotAuthorize)

	_, err = c.Authorize(nil)
	assert.ErrorIs(t, err, common.ErrCannotAuthorize)
}

func TestLocateLatestArchive_PicksNewestTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files", r.URL.Path)
		require.Contains(t, r.URL.Query().Get("q"), "takeout")
		require.Equal(t, "Bearer at", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]string{
				{"id": "old", "name": "takeout-20230101T100000Z-001.zip"},
				{"id": "new", "name": "takeout-20230101T120500Z-001.zip"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, "takeout")
	s, err := c.Authorize(testCreds())
	require.NoError(t, err)

	id, err := c.LocateLatestArchive(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "new", id)
}

func TestLocateLatestArchive_TieBreaksLexicographically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]string{
				{"id": "aaa", "name": "takeout-20230101T100000Z-001.zip"},
				{"id": "bbb", "name": "takeout-20230101T100000Z-002.zip"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, "takeout")
	s, err := c.Authorize(testCreds())
	require.NoError(t, err)

	id, err := c.LocateLatestArchive(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "bbb", id, "equal timestamps must resolve deterministically")
}

func TestLocateLatestArchive_EmptyListingMeansNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"files": []map[string]string{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, "takeout")
	s, err := c.Authorize(testCreds())
	require.NoError(t, err)

	_, err = c.LocateLatestArchive(context.Background(), s)
	assert.ErrorIs(t, err, common.ErrDriveNotReady)
}

func TestDownload_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files/abc", r.URL.Path)
		require.Equal(t, "media", r.URL.Query().Get("alt"))
		_, _ = w.Write([]byte("zipbytes"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, "takeout")
	s, err := c.Authorize(testCreds())
	require.NoError(t, err)

	buf, err := c.Download(context.Background(), s, "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("zipbytes"), buf)
}

func TestDownload_Non200IsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, "takeout")
	s, err := c.Authorize(testCreds())
	require.NoError(t, err)

	_, err = c.Download(context.Background(), s, "abc")
	assert.ErrorIs(t, err, common.ErrDownloadFailed)
}
