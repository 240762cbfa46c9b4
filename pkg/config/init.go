package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is the commented configuration written by 'formflow init'.
const sampleConfig = `# FormFlow configuration
#
# Every setting can be overridden with a FORMFLOW_* environment variable,
# e.g. FORMFLOW_LOGGING_LEVEL=DEBUG or FORMFLOW_STORE_BACKEND=s3.

logging:
  # Minimum log level: DEBUG, INFO, WARN, ERROR
  level: INFO
  # Log format: text (colored when attached to a terminal) or json
  format: text
  # Where logs are written: stdout, stderr, or a file path
  output: stdout

server:
  # HTTP port for the upload gateway
  port: 8080
  # Maximum duration for reading request headers; bodies stream freely
  read_header_timeout: 10s
  # Timeout for health and metrics requests (uploads are exempt)
  request_timeout: 30s

store:
  # Storage backend: memory, badger, or s3
  backend: memory

  # badger:
  #   path: /var/lib/formflow/store

  # s3:
  #   endpoint: http://localhost:9000   # leave empty for AWS S3
  #   region: us-east-1
  #   bucket: formflow-uploads
  #   access_key_id: minioadmin
  #   secret_access_key: minioadmin
  #   force_path_style: true
  #   part_size: 5MB

decoder:
  # Boundary scanner buffer capacity per part
  buffer_size: 8Ki
  # Maximum size of simple (non-file) field values
  max_value_size: 10Mi

metrics:
  # Expose Prometheus metrics on GET /metrics
  enabled: false

profiling:
  # Pyroscope continuous profiling
  enabled: false
  endpoint: http://localhost:4040

# Maximum time to wait for graceful shutdown
shutdown_timeout: 30s
`

// InitConfig writes a sample configuration file at the default location.
// Returns the path written. Fails if the file exists unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to the given path.
// Fails if the file exists unless force is set.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
