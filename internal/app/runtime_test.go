package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/selling-area/testing"
)

func TestInTestModeFollowsEnvironment(t *testing.T) {
	require.True(t, InTestMode())

	t.Cleanup(RefreshTestMode)
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}

func TestRuntimeCloseToleratesMissingConnections(t *testing.T) {
	rt := &Runtime{}
	require.NotPanics(t, rt.Close)
}
