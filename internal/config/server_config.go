package config

// ServerConfig defines configuration for the update server endpoints
type ServerConfig struct {
	BaseURL             string `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Namespace           string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	CheckTimeoutSecs    int    `json:"check_timeout_secs,omitempty" yaml:"check_timeout_secs,omitempty" validate:"omitempty,min=1,max=600"`
	DownloadTimeoutSecs int    `json:"download_timeout_secs,omitempty" yaml:"download_timeout_secs,omitempty" validate:"omitempty,min=1,max=3600"`
}

// NewDefaultServerConfig creates default server configuration
func NewDefaultServerConfig() ServerConfig {
	return ServerConfig{
		BaseURL:             "",
		Namespace:           DefaultServerNamespace,
		CheckTimeoutSecs:    DefaultServerCheckTimeoutSecs,
		DownloadTimeoutSecs: DefaultServerDownloadTimeoutSec,
	}
}
