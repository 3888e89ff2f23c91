package config

import (
	"fmt"
	"strings"
)

const (
	portEnvVar   = "PORT"
	appNameVar   = "APP_NAME"
	folderEnvVar = "FOLDER"
	logLevelVar  = "LOG_LEVEL"
	envVar       = "ENV"
)

type EnvVars struct{ source }

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.get(portEnvVar, "3000")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.get(appNameVar, "Osonify")
}

func (e EnvVars) GetDataFolder() string {
	return e.get(folderEnvVar, "./data")
}

func (e EnvVars) GetLogLevel() string {
	return e.get(logLevelVar, "info")
}

func (e EnvVars) GetEnv() string {
	return e.get(envVar, "DEV")
}

func (e EnvVars) IsProduction() bool {
	return ProductionBuild || strings.EqualFold(e.GetEnv(), "production")
}
