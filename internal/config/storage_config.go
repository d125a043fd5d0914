package config

// StorageConfig defines configuration for local state storage
type StorageConfig struct {
	LedgerPath       string `json:"ledger_path,omitempty" yaml:"ledger_path,omitempty" validate:"required"`
	AuditParquetPath string `json:"audit_parquet_path,omitempty" yaml:"audit_parquet_path,omitempty"`
	CompressionCodec string `json:"compression_codec,omitempty" yaml:"compression_codec,omitempty"`
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		LedgerPath:       DefaultStorageLedgerPath,
		AuditParquetPath: DefaultStorageAuditPath,
		CompressionCodec: DefaultStorageCompressionCodec,
	}
}
