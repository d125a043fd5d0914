package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/manifest"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Config describes what the update server publishes and where.
type Config struct {
	// ListenAddr is the address the HTTP server binds to
	ListenAddr string
	// Namespace is the URL path prefix clients query, matching the
	// client's server config
	Namespace string
	// ManifestPath is the generated manifest JSON file to publish
	ManifestPath string
	// FilesRoot is the release tree served under /files/
	FilesRoot string
}

// UpdateServer publishes a generated manifest and its release files over
// HTTP, implementing the same contract the update client consumes. It
// exists for self-hosted deployments and end-to-end testing.
type UpdateServer struct {
	cfg    Config
	logger zerolog.Logger
}

// NewUpdateServer creates an update server.
func NewUpdateServer(cfg Config, logger zerolog.Logger) *UpdateServer {
	return &UpdateServer{
		cfg:    cfg,
		logger: logger.With().Str("component", "UpdateServer").Logger(),
	}
}

// Handler builds the HTTP routing for the manifest and file endpoints.
func (us *UpdateServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/"+us.cfg.Namespace+"/update_manifest", us.handleManifest)
	mux.Handle("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(us.cfg.FilesRoot))))
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (us *UpdateServer) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              us.cfg.ListenAddr,
		Handler:           us.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		us.logger.Info().
			Str("listen_addr", us.cfg.ListenAddr).
			Str("manifest_path", us.cfg.ManifestPath).
			Msg("Update server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errorwrapper.WrapError(err, "update server shutdown failed")
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return errorwrapper.WrapError(err, "update server failed")
	}
}

// handleManifest answers the client's check call. The manifest file is
// re-read per request so a republished release needs no server restart.
// A client already at the manifest version gets success=false, which the
// client maps to "no update available".
func (us *UpdateServer) handleManifest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	m, err := us.loadManifest()
	if err != nil {
		us.logger.Error().Err(err).Msg("Could not load manifest for request")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(manifest.APIResponse{Success: false, Message: "manifest unavailable"})
		return
	}

	clientVersion := r.URL.Query().Get("version")
	if clientVersion != "" && clientVersion == m.Version {
		_ = json.NewEncoder(w).Encode(manifest.APIResponse{Success: false, Message: "no update available"})
		return
	}

	us.logger.Info().
		Str("client_version", clientVersion).
		Str("manifest_version", m.Version).
		Int("file_count", len(m.Files)).
		Msg("Served update manifest")
	_ = json.NewEncoder(w).Encode(manifest.APIResponse{Success: true, Data: m})
}

func (us *UpdateServer) loadManifest() (*manifest.UpdateManifest, error) {
	data, err := os.ReadFile(us.cfg.ManifestPath)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to read manifest file: "+us.cfg.ManifestPath)
	}

	var m manifest.UpdateManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errorwrapper.WrapError(err, "failed to decode manifest file: "+us.cfg.ManifestPath)
	}
	return &m, nil
}
