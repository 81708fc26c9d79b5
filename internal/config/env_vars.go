package config

import (
	"fmt"
	"os"
	"runtime"
)

const (
	appNameVar   = "APP_NAME"
	envVar       = "ENV"
	logLevelVar  = "LOG_LEVEL"
	folderEnvVar = "FOLDER"
	baseURLVar   = "ELEMO_BASE_URL"
	userAgentVar = "ELEMO_USER_AGENT"
)

type EnvVars struct {
	values values
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.values.get(appNameVar, "Elemo Session")
}

func (e EnvVars) GetEnv() string {
	return e.values.get(envVar, "DEV")
}

func (e EnvVars) GetLogLevel() string {
	return e.values.get(logLevelVar, "info")
}

func (e EnvVars) GetDataFolder() string {
	return e.values.get(folderEnvVar, "./data")
}

// GetBaseURL returns the base URL of the Elemo API (e.g., "https://api.elemo.app").
// The token endpoint and the liveness probe hang off this URL.
func (e EnvVars) GetBaseURL() string {
	return e.values.get(baseURLVar, "http://localhost:35478")
}

func (e EnvVars) GetUserAgent() string {
	return e.values.get(userAgentVar, fmt.Sprintf("elemo-session (%s; %s)", runtime.GOOS, runtime.GOARCH))
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
