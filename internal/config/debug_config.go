package config

const debugModeVar = "DEBUG_MODE"

type DebugConfig interface {
	GetDebugMode() bool
}

type Debug struct{ source }

var _ DebugConfig = Debug{}

func (d Debug) GetDebugMode() bool {
	return d.getBool(debugModeVar, false)
}
