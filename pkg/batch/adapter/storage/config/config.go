package config

// StorageConfig holds the settings of one named storage connection.
type StorageConfig struct {
	Type       string `yaml:"type"`        // Storage type, e.g. "local".
	BucketName string `yaml:"bucket_name"` // Bucket used when an operation names none.
	BaseDir    string `yaml:"base_dir"`    // Root directory of the local backend.
}
