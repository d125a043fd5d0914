package fetcher

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/common/httpclient"
	"github.com/aleister1102/hotpatch/internal/config"
	"github.com/aleister1102/hotpatch/internal/hasher"
	"github.com/aleister1102/hotpatch/internal/manifest"
	"github.com/rs/zerolog"
)

// Fetcher downloads manifest entries and verifies their content digests
// before anything touches the disk.
type Fetcher struct {
	httpClient      *httpclient.HTTPClient
	retryHandler    *httpclient.RetryHandler
	hasher          *hasher.FileHasher
	nonCritical     map[string]bool
	downloadTimeout time.Duration
	logger          zerolog.Logger
}

// FetcherBuilder constructs fetchers
type FetcherBuilder struct {
	serverCfg   config.ServerConfig
	retryCfg    config.RetryConfig
	nonCritical []string
	httpClient  *httpclient.HTTPClient
	logger      zerolog.Logger
}

// NewFetcherBuilder creates a new FetcherBuilder instance
func NewFetcherBuilder(logger zerolog.Logger) *FetcherBuilder {
	return &FetcherBuilder{
		serverCfg: config.NewDefaultServerConfig(),
		retryCfg:  config.NewDefaultRetryConfig(),
		logger:    logger,
	}
}

// WithServerConfig sets download timeouts from the server configuration
func (fb *FetcherBuilder) WithServerConfig(cfg config.ServerConfig) *FetcherBuilder {
	fb.serverCfg = cfg
	return fb
}

// WithRetryConfig sets the retry policy for downloads
func (fb *FetcherBuilder) WithRetryConfig(cfg config.RetryConfig) *FetcherBuilder {
	fb.retryCfg = cfg
	return fb
}

// WithNonCriticalFiles sets filenames whose digest mismatches are tolerated
func (fb *FetcherBuilder) WithNonCriticalFiles(names []string) *FetcherBuilder {
	fb.nonCritical = names
	return fb
}

// WithHTTPClient sets a pre-built HTTP client
func (fb *FetcherBuilder) WithHTTPClient(client *httpclient.HTTPClient) *FetcherBuilder {
	fb.httpClient = client
	return fb
}

// Build creates the fetcher
func (fb *FetcherBuilder) Build() (*Fetcher, error) {
	downloadTimeout := time.Duration(fb.serverCfg.DownloadTimeoutSecs) * time.Second

	client := fb.httpClient
	if client == nil {
		built, err := httpclient.NewHTTPClientBuilder(fb.logger).
			WithTimeout(downloadTimeout).
			Build()
		if err != nil {
			return nil, errorwrapper.WrapError(err, "failed to build HTTP client for downloads")
		}
		client = built
	}

	retryHandler := httpclient.NewRetryHandler(httpclient.RetryHandlerConfig{
		MaxRetries:       fb.retryCfg.MaxRetries,
		BaseDelay:        time.Duration(fb.retryCfg.BaseDelaySecs) * time.Second,
		MaxDelay:         time.Duration(fb.retryCfg.MaxDelaySecs) * time.Second,
		EnableJitter:     fb.retryCfg.EnableJitter,
		RetryStatusCodes: fb.retryCfg.RetryStatusCodes,
	}, fb.logger)

	nonCritical := make(map[string]bool, len(fb.nonCritical))
	for _, name := range fb.nonCritical {
		nonCritical[strings.ToLower(name)] = true
	}

	return &Fetcher{
		httpClient:      client,
		retryHandler:    retryHandler,
		hasher:          hasher.NewFileHasher(fb.logger),
		nonCritical:     nonCritical,
		downloadTimeout: downloadTimeout,
		logger:          fb.logger.With().Str("component", "Fetcher").Logger(),
	}, nil
}

// Fetch downloads one manifest entry and returns the verified bytes.
// The local file is never touched here even when verification fails.
func (f *Fetcher) Fetch(ctx context.Context, fu manifest.FileUpdate) ([]byte, error) {
	if fu.DownloadURL == "" {
		return nil, errorwrapper.NewValidationError("download_url", fu.Path, "manifest entry has no download URL")
	}

	downloadCtx, cancel := context.WithTimeout(ctx, f.downloadTimeout)
	defer cancel()

	resp, err := f.retryHandler.DoWithRetry(downloadCtx, f.httpClient, &httpclient.HTTPRequest{
		URL:     fu.DownloadURL,
		Method:  http.MethodGet,
		Context: downloadCtx,
	})
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to download "+fu.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorwrapper.NewHTTPErrorWithURL(resp.StatusCode, "download failed for "+fu.Path, fu.DownloadURL)
	}

	if err := f.verify(fu, resp.Body); err != nil {
		return nil, err
	}

	f.logger.Debug().
		Str("path", fu.Path).
		Int("bytes", len(resp.Body)).
		Msg("Downloaded and verified file")
	return resp.Body, nil
}

// verify checks the downloaded bytes against the manifest digest. Entries
// without a digest skip verification entirely. Non-critical files log a
// warning on mismatch and are accepted anyway.
func (f *Fetcher) verify(fu manifest.FileUpdate, data []byte) error {
	if fu.Digest == "" {
		f.logger.Debug().Str("path", fu.Path).Msg("Manifest entry carries no digest, skipping verification")
		return nil
	}

	actual := f.hasher.HashBytes(data)
	if actual == fu.Digest {
		return nil
	}

	if f.isNonCritical(fu.Path) {
		f.logger.Warn().
			Str("path", fu.Path).
			Str("expected", fu.Digest).
			Str("actual", actual).
			Msg("Digest mismatch on non-critical file, accepting download")
		return nil
	}

	return errorwrapper.NewIntegrityError(fu.Path, fu.Digest, actual)
}

func (f *Fetcher) isNonCritical(relPath string) bool {
	return f.nonCritical[strings.ToLower(path.Base(relPath))]
}
