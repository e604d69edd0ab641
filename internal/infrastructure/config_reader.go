package infrastructure

import (
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"potbench/internal/domain"
)

type YAMLConfigReader struct {
	logger *zap.Logger
}

func NewYAMLConfigReader(logger *zap.Logger) *YAMLConfigReader {
	return &YAMLConfigReader{logger: logger}
}

// ReadConfig loads the YAML config at path and fills in defaults. A
// missing file is not an error: the defaults alone form a valid config.
func (r *YAMLConfigReader) ReadConfig(path string) (*domain.Config, error) {
	var config domain.Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		r.logger.Debug("config file not found, using defaults", zap.String("path", path))
	} else {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	}

	r.setDefaults(&config)
	return &config, nil
}

func (r *YAMLConfigReader) setDefaults(config *domain.Config) {
	if config.Workers == 0 {
		config.Workers = max(1, runtime.NumCPU()-1)
	}
	if config.ConnectAttempts == 0 {
		config.ConnectAttempts = 10
	}
	if config.ConnectRetryDelay == 0 {
		config.ConnectRetryDelay = domain.Duration(500 * time.Millisecond)
	}
	if config.Supercell == 0 {
		config.Supercell = 1
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}
