package config

import (
	"os"
	"strconv"
	"time"
)

// source resolves a setting from the environment first, then the optional
// config file.
type source struct {
	file map[string]string
}

func (s source) lookup(name string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return s.file[name]
}

func (s source) get(name, defaultValue string) string {
	if value := s.lookup(name); value != "" {
		return value
	}
	return defaultValue
}

func (s source) getBool(name string, defaultValue bool) bool {
	value := s.lookup(name)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func (s source) getDuration(name string, defaultValue time.Duration) time.Duration {
	value := s.lookup(name)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare integers are milliseconds.
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// GetEnvValue returns the raw configured value for name without a default.
func (s source) GetEnvValue(name string) string {
	return s.lookup(name)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
