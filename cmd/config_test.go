package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joescharf/civic/internal/output"
)

// testEnv sets up isolated config dir, viper, store and output for testing.
// It returns the config dir; everything the commands print lands in
// ui.Out, which is a *bytes.Buffer.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Reset viper
	viper.Reset()
	setDefaults(dir)

	// Fresh lazily-built dependencies
	dataStore = nil
	triage = nil
	logger = zap.NewNop()
	t.Cleanup(func() {
		if dataStore != nil {
			_ = dataStore.Close()
			dataStore = nil
		}
		triage = nil
		logger = nil
	})

	dryRun = false
	verbose = false
	configForce = false

	// Initialize output
	ui = output.New()
	ui.Out = &bytes.Buffer{}
	ui.ErrOut = &bytes.Buffer{}

	return dir
}

// outText returns everything printed to ui.Out so far.
func outText(t *testing.T) string {
	t.Helper()
	buf, ok := ui.Out.(*bytes.Buffer)
	require.True(t, ok, "testEnv must be called first")
	return buf.String()
}

// resetOut discards what has been printed so far.
func resetOut() {
	if buf, ok := ui.Out.(*bytes.Buffer); ok {
		buf.Reset()
	}
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.NoError(t, err, "config file should exist")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "civic configuration")
	assert.Contains(t, string(data), "solve_same_department: true")
	assert.Contains(t, string(data), "transfer_same_department: false")
	assert.Contains(t, string(data), "default_rating: 5")
	assert.Contains(t, string(data), "port: 8080")
}

func TestConfigInit_TemplateIsValidYAML(t *testing.T) {
	dir := testEnv(t)
	require.NoError(t, configInitRun())

	values := readConfigFileValues(filepath.Join(dir, "config.yaml"))
	assert.True(t, values["port"])
	assert.True(t, values["policy.default_rating"])
	assert.True(t, values["log.level"])
	assert.True(t, values["anthropic.model"])
	assert.False(t, values["anthropic.api_key"], "api key stays commented out")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "civic configuration")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)

	err := configShowRun()
	assert.NoError(t, err)
	assert.Contains(t, outText(t), "(none)")
}

func TestConfigShow_WithFile(t *testing.T) {
	testEnv(t)

	// Create config first
	require.NoError(t, configInitRun())

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigShow_Sources(t *testing.T) {
	dir := testEnv(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: debug\n"), 0644))
	t.Setenv("CIVIC_PORT", "9090")

	require.NoError(t, configShowRun())
	out := outText(t)

	assert.Regexp(t, `port\s+\S+\s+\(env: CIVIC_PORT\)`, out)
	assert.Regexp(t, `log\.level\s+\S+\s+\(file\)`, out)
	assert.Regexp(t, `db_path\s+\S+\s+\(default\)`, out)
}

func TestConfigShow_MasksAPIKey(t *testing.T) {
	testEnv(t)
	viper.Set("anthropic.api_key", "sk-ant-secret-1234")

	require.NoError(t, configShowRun())
	out := outText(t)

	assert.NotContains(t, out, "sk-ant-secret")
	assert.Contains(t, out, "****1234")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "****wxyz", maskSecret("abcdwxyz"))
}

func TestInitConfig_EnvOverridesNestedKeys(t *testing.T) {
	testEnv(t)
	viper.Reset()
	t.Setenv("CIVIC_POLICY_DEFAULT_RATING", "3")
	t.Setenv("CIVIC_POLICY_SOLVE_SAME_DEPARTMENT", "false")

	initConfig()

	p := policyFromConfig()
	assert.Equal(t, 3, p.DefaultRating)
	assert.False(t, p.SolveRequiresSameDepartment)
	assert.False(t, p.TransferRequiresSameDepartment)
}

func TestInitConfig_ReadsFile(t *testing.T) {
	dir := testEnv(t)
	viper.Reset()
	cfg := "policy:\n  transfer_same_department: true\nlog:\n  format: json\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0644))

	initConfig()

	assert.True(t, policyFromConfig().TransferRequiresSameDepartment)
	assert.Equal(t, "json", viper.GetString("log.format"))
	assert.Equal(t, filepath.Join(dir, "civic.db"), viper.GetString("db_path"))
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)

	// Unset EDITOR and VISUAL
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")
	_ = os.Unsetenv("EDITOR")
	_ = os.Unsetenv("VISUAL")

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)

	t.Setenv("EDITOR", "echo") // harmless command

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"key_a": true}

	// From env
	t.Setenv("CIVIC_TEST_KEY", "val")
	assert.Contains(t, detectSource("test_key", "CIVIC_TEST_KEY", fileValues), "env")

	// From file
	assert.Contains(t, detectSource("key_a", "CIVIC_KEY_A_NONEXISTENT", fileValues), "file")

	// Default
	assert.Contains(t, detectSource("key_b", "CIVIC_KEY_B_NONEXISTENT", fileValues), "default")
}

func TestFlattenKeys(t *testing.T) {
	input := map[string]any{
		"top": "val",
		"nested": map[string]any{
			"a": "1",
			"b": "2",
		},
	}

	result := make(map[string]bool)
	flattenKeys("", input, result)

	assert.True(t, result["top"])
	assert.True(t, result["nested.a"])
	assert.True(t, result["nested.b"])
	assert.False(t, result["nested"])
}

func TestConfigInit_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true
	defer func() { dryRun = false }()

	err := configInitRun()
	require.NoError(t, err)

	// File should NOT have been created
	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
}
