//go:build production

package config_test

import (
	"testing"

	"github.com/jrsteele09/osonify-auth/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDebugModeRejectedInProductionBuild(t *testing.T) {
	t.Setenv("DEBUG_MODE", "true")
	t.Setenv("API_BASE_URL", "https://api.example.com")
	require.Error(t, config.New().Validate())
}
