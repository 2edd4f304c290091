package instance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv(EnvInstanceID, " api-7 ")
	require.Equal(t, "api-7", GetID("local"))
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv(EnvInstanceID, "")
	require.NotEmpty(t, GetID("local"))
}
