package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configFileVar = "ELEMO_CONFIG_FILE"

type Config interface {
	EnvConfig
	OAuthConfig
	SessionConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDataFolder() string
	GetBaseURL() string
	GetUserAgent() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Session
	Storage
}

// New loads a .env file when present and reads the configuration from the environment
// only.
func New() Config {
	_ = godotenv.Load()
	return newMainConfig(values{})
}

// Load behaves like New but overlays the YAML file at path (or at $ELEMO_CONFIG_FILE
// when path is empty). Environment variables win over file values, file values win
// over defaults.
func Load(path string) (Config, error) {
	_ = godotenv.Load()
	if path == "" {
		path = os.Getenv(configFileVar)
	}
	if path == "" {
		return newMainConfig(values{}), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load read %s: %w", path, err)
	}

	file := map[string]any{}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("config.Load parse %s: %w", path, err)
	}

	v := make(values, len(file))
	for k, val := range file {
		v[strings.ToUpper(strings.TrimSpace(k))] = yamlString(val)
	}
	return newMainConfig(v), nil
}

func newMainConfig(v values) mainConfig {
	return mainConfig{
		EnvVars: EnvVars{values: v},
		OAuth:   OAuth{values: v},
		Session: Session{values: v},
		Storage: Storage{values: v},
	}
}

// values holds file-provided settings keyed by their environment variable name.
type values map[string]string

func (v values) get(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if value, ok := v[envVar]; ok && value != "" {
		return value
	}
	return defaultValue
}

func yamlString(val any) string {
	switch t := val.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, yamlString(p))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}
