package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "run"}
	c.Flags().StringP("params", "p", "", "")
	c.Flags().String("scenario", "", "")
	c.Flags().String("profile", "", "")
	c.Flags().Int("seed", -1, "")
	c.Flags().Duration("duration", 0, "")
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestLoadParamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 4\ninterceptor_pk: 0.6\nduration: 5m\n"), 0644))

	params, err := loadParamsFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, params["seed"])
	assert.Equal(t, 0.6, params["interceptor_pk"])
	assert.Equal(t, "5m", params["duration"])

	_, err = loadParamsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCollectParametersSkipsPromptsForScenario(t *testing.T) {
	dir := t.TempDir()
	paramsPath := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(paramsPath, []byte("rounds_per_unit: 2\n"), 0644))

	c := newTestRunCommand(t, "--scenario", "brigade.yaml", "--params", paramsPath)
	params, err := collectParameters(c, "Kill Web Air Defense", nil)
	require.NoError(t, err)
	assert.Equal(t, "brigade.yaml", params["scenario"])
	assert.Equal(t, 2, params["rounds_per_unit"])
}

func TestApplyFlagOverrides(t *testing.T) {
	c := newTestRunCommand(t, "--seed", "11", "--duration", "90s")
	params := map[string]interface{}{"seed": 3}
	applyFlagOverrides(c, params)

	assert.Equal(t, 11, params["seed"])
	assert.Equal(t, 90*time.Second, params["duration"])
	assert.NotContains(t, params, "log_level")

	untouched := map[string]interface{}{"seed": 3}
	applyFlagOverrides(newTestRunCommand(t), untouched)
	assert.Equal(t, map[string]interface{}{"seed": 3}, untouched)
}
