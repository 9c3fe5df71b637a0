package alerts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/selling-area/internal/shared"
)

func TestLoadPresetsEmptyPathUsesDefaults(t *testing.T) {
	p, err := LoadPresets("")
	require.NoError(t, err)
	require.Equal(t, DefaultPresets(), p)
	require.NoError(t, p.Validate())
}

func TestLoadPresetsOverridesPartially(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bands.yaml")
	require.NoError(t, os.WriteFile(path, []byte("days:\n  red: 3\n  orange: 14\n  green: 60\nglobal_threshold: 4\n"), 0o600))

	p, err := LoadPresets(path)
	require.NoError(t, err)
	require.Equal(t, DayBands{Red: 3, Orange: 14, Green: 60}, p.Days)
	require.Equal(t, 4, p.GlobalThreshold)
	require.Equal(t, DefaultPresets().Fraction, p.Fraction)
}

func TestLoadPresetsRejectsUnorderedBands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bands.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fraction:\n  red: 0.5\n  orange: 0.4\n  green: 0.8\n"), 0o600))

	_, err := LoadPresets(path)
	require.ErrorIs(t, err, shared.ErrValidation)
}
