package manifest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/common/httpclient"
	"github.com/aleister1102/hotpatch/internal/config"
	"github.com/rs/zerolog"
)

// Client queries the update server for new release manifests.
type Client struct {
	httpClient   *httpclient.HTTPClient
	baseURL      string
	namespace    string
	checkTimeout time.Duration
	logger       zerolog.Logger
}

// ClientBuilder constructs manifest clients
type ClientBuilder struct {
	cfg        config.ServerConfig
	httpClient *httpclient.HTTPClient
	logger     zerolog.Logger
}

// NewClientBuilder creates a new ClientBuilder instance
func NewClientBuilder(logger zerolog.Logger) *ClientBuilder {
	return &ClientBuilder{logger: logger}
}

// WithConfig sets the server configuration
func (cb *ClientBuilder) WithConfig(cfg config.ServerConfig) *ClientBuilder {
	cb.cfg = cfg
	return cb
}

// WithHTTPClient sets a pre-built HTTP client
func (cb *ClientBuilder) WithHTTPClient(client *httpclient.HTTPClient) *ClientBuilder {
	cb.httpClient = client
	return cb
}

// Build creates the manifest client
func (cb *ClientBuilder) Build() (*Client, error) {
	if cb.cfg.BaseURL == "" {
		return nil, errorwrapper.NewValidationError("base_url", cb.cfg.BaseURL, "update server base URL is required")
	}

	client := cb.httpClient
	if client == nil {
		built, err := httpclient.NewHTTPClientBuilder(cb.logger).
			WithTimeout(time.Duration(cb.cfg.CheckTimeoutSecs) * time.Second).
			Build()
		if err != nil {
			return nil, errorwrapper.WrapError(err, "failed to build HTTP client for manifest checks")
		}
		client = built
	}

	return &Client{
		httpClient:   client,
		baseURL:      strings.TrimSuffix(cb.cfg.BaseURL, "/"),
		namespace:    cb.cfg.Namespace,
		checkTimeout: time.Duration(cb.cfg.CheckTimeoutSecs) * time.Second,
		logger:       cb.logger.With().Str("component", "ManifestClient").Logger(),
	}, nil
}

func (c *Client) manifestURL(currentVersion string) string {
	endpoint := c.baseURL + "/" + c.namespace + "/update_manifest"
	if currentVersion != "" {
		endpoint += "?version=" + url.QueryEscape(currentVersion)
	}
	return endpoint
}

// CheckForUpdates asks the server whether a newer release exists.
//
// A nil manifest with a nil error means no update is available. Transport
// failures, timeouts and non-2xx statuses degrade to that same answer so a
// flaky server cannot fail the application. Only an undecodable response
// body is reported as an error.
func (c *Client) CheckForUpdates(ctx context.Context, currentVersion string) (*UpdateManifest, error) {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	endpoint := c.manifestURL(currentVersion)
	resp, err := c.httpClient.Do(&httpclient.HTTPRequest{
		URL:     endpoint,
		Method:  http.MethodGet,
		Context: checkCtx,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("url", endpoint).Msg("Update check failed, treating as no update available")
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().Int("status_code", resp.StatusCode).Str("url", endpoint).Msg("Update server returned unexpected status")
		return nil, nil
	}

	var envelope APIResponse
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, errorwrapper.WrapError(err, "failed to decode update manifest response")
	}

	if !envelope.Success || envelope.Data == nil {
		c.logger.Info().Str("message", envelope.Message).Msg("Server reported no update available")
		return nil, nil
	}

	c.logger.Info().
		Str("current_version", currentVersion).
		Str("manifest_version", envelope.Data.Version).
		Int("file_count", len(envelope.Data.Files)).
		Msg("Received update manifest")
	return envelope.Data, nil
}
