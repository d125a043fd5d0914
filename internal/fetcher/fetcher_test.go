package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/config"
	"github.com/aleister1102/hotpatch/internal/manifest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// md5("print('v2')")
const scriptDigest = "881fa49a202aa9e053eced495e74285a"

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	retryCfg := config.NewDefaultRetryConfig()
	retryCfg.BaseDelaySecs = 0
	retryCfg.EnableJitter = false

	f, err := NewFetcherBuilder(zerolog.Nop()).
		WithRetryConfig(retryCfg).
		WithNonCriticalFiles(config.DefaultNonCriticalFiles()).
		Build()
	require.NoError(t, err)
	return f
}

func TestFetch_VerifiedDownload(t *testing.T) {
	content := []byte("print('v2')")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(content)
	}))
	defer server.Close()

	f := newTestFetcher(t)
	data, err := f.Fetch(context.Background(), manifest.FileUpdate{
		Path:        "core/main.py",
		Digest:      scriptDigest,
		DownloadURL: server.URL + "/core/main.py",
	})
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestFetch_NotFoundReturnsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := newTestFetcher(t)
	data, err := f.Fetch(context.Background(), manifest.FileUpdate{
		Path:        "core/gone.py",
		Digest:      "abc",
		DownloadURL: server.URL + "/core/gone.py",
	})
	require.Error(t, err)
	assert.Nil(t, data)

	var httpErr *errorwrapper.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestFetch_CriticalDigestMismatchRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tampered content"))
	}))
	defer server.Close()

	f := newTestFetcher(t)
	data, err := f.Fetch(context.Background(), manifest.FileUpdate{
		Path:        "core/main.py",
		Digest:      scriptDigest,
		DownloadURL: server.URL + "/core/main.py",
	})
	require.Error(t, err)
	assert.Nil(t, data)
	assert.True(t, errorwrapper.IsIntegrityError(err))
}

func TestFetch_NonCriticalDigestMismatchAccepted(t *testing.T) {
	content := []byte("2.0.1\n")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(content)
	}))
	defer server.Close()

	f := newTestFetcher(t)
	data, err := f.Fetch(context.Background(), manifest.FileUpdate{
		Path:        "version.txt",
		Digest:      "does-not-match-anything",
		DownloadURL: server.URL + "/version.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestFetch_EmptyDigestSkipsVerification(t *testing.T) {
	content := []byte("anything at all")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(content)
	}))
	defer server.Close()

	f := newTestFetcher(t)
	data, err := f.Fetch(context.Background(), manifest.FileUpdate{
		Path:        "static/app.js",
		Digest:      "",
		DownloadURL: server.URL + "/static/app.js",
	})
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestFetch_RetriesTransientServerErrors(t *testing.T) {
	var attempts atomic.Int32
	content := []byte("print('v2')")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(content)
	}))
	defer server.Close()

	f := newTestFetcher(t)
	data, err := f.Fetch(context.Background(), manifest.FileUpdate{
		Path:        "core/main.py",
		Digest:      scriptDigest,
		DownloadURL: server.URL + "/core/main.py",
	})
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestFetch_MissingDownloadURL(t *testing.T) {
	f := newTestFetcher(t)
	data, err := f.Fetch(context.Background(), manifest.FileUpdate{Path: "core/main.py", Digest: "abc"})
	require.Error(t, err)
	assert.Nil(t, data)
}
