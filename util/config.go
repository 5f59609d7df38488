package util

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Config holds the server settings. Values come from an optional YAML file
// and may be overridden with environment variables.
type Config struct {
	ListenAddr    string `yaml:"listen_addr"`
	BodyLimitMB   int    `yaml:"body_limit_mb"`
	ReadTimeoutS  int    `yaml:"read_timeout_s"`
	AllowOrigins  string `yaml:"allow_origins"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
	EnableGraphQL bool   `yaml:"enable_graphql"`
}

// DefaultConfig returns the built-in server defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    ":8080",
		BodyLimitMB:   50,
		ReadTimeoutS:  60,
		AllowOrigins:  "http://localhost:3000,http://127.0.0.1:3000",
		MaxUploadMB:   20,
		EnableGraphQL: true,
	}
}

// LoadConfig reads the YAML config file at path when it exists and applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if addr, ok := os.LookupEnv("LISTEN_ADDR"); ok {
		cfg.ListenAddr = addr
	}
	if origins, ok := os.LookupEnv("ALLOW_ORIGINS"); ok {
		cfg.AllowOrigins = origins
	}
	return cfg, nil
}
