package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	TransportConfig
	CookieConfig
	SessionConfig
	DebugConfig
	Validate() error
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetLogLevel() string
	GetEnv() string
	IsProduction() bool
}

type mainConfig struct {
	EnvVars
	Transport
	Cookies
	Session
	Debug
}

// New returns a Config backed by environment variables only.
func New() Config {
	return newMainConfig(source{})
}

// Load returns a Config backed by a flat YAML file of KEY: value pairs.
// Environment variables take precedence over file values.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config Load] read %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("[config Load] parse %s: %w", path, err)
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[k] = fmt.Sprint(v)
	}
	return newMainConfig(source{file: values}), nil
}

func newMainConfig(src source) mainConfig {
	return mainConfig{
		EnvVars:   EnvVars{src},
		Transport: Transport{src},
		Cookies:   Cookies{src},
		Session:   Session{src},
		Debug:     Debug{src},
	}
}

// Validate rejects combinations that must never reach a running process.
func (c mainConfig) Validate() error {
	if ProductionBuild && c.GetDebugMode() {
		return fmt.Errorf("[config Validate] %s=true is not allowed in a production build", debugModeVar)
	}
	if c.IsProduction() && c.Transport.GetEnvValue(apiBaseURLVar) == "" {
		return fmt.Errorf("[config Validate] %s is required in production", apiBaseURLVar)
	}
	return nil
}
