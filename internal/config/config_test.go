package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Bool("fail-fast", false, "")
	fs.Int("max-call-depth", 0, "")
	fs.String("registry", "", "")
	fs.String("log-level", "", "")
	return fs
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "ready> ", cfg.Prompt)
	assert.Equal(t, RegistryMemory, cfg.Registry)
	assert.Equal(t, ":memory:", cfg.RegistryDSN)
	assert.Equal(t, 4, cfg.CompileWorkers)
	assert.Equal(t, 10000, cfg.MaxCallDepth)
	assert.True(t, cfg.EchoAST)
	assert.False(t, cfg.FailFast)
	assert.Empty(t, cfg.File)
}

func TestPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := "max_call_depth: 50\nregistry: sqlite\nprompt: \"> \"\nlog_level: info\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(yaml), 0o644))
	t.Setenv("LISTSCOPE_MAX_CALL_DEPTH", "70")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfigFile, cfg.File)
	assert.Equal(t, "> ", cfg.Prompt)
	assert.Equal(t, RegistrySQLite, cfg.Registry)
	assert.Equal(t, 70, cfg.MaxCallDepth, "env overrides file")

	fs := flagSet()
	require.NoError(t, fs.Parse([]string{"--max-call-depth=90", "--fail-fast"}))
	cfg, err = Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.MaxCallDepth, "flag overrides env")
	assert.True(t, cfg.FailFast)
	assert.Equal(t, RegistrySQLite, cfg.Registry, "unset flags do not override")
}

func TestExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dump_unit: true\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.True(t, cfg.DumpUnit)
	assert.Equal(t, path, cfg.File)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		name string
		args []string
	}{
		{"registry", []string{"--registry=postgres"}},
		{"depth", []string{"--max-call-depth=-1"}},
		{"level", []string{"--log-level=loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flagSet()
			require.NoError(t, fs.Parse(tt.args))
			_, err := Load("", fs)
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "debug", LogFormat: "json"}
	cfg.NewLogger(&buf).Debug("linked", "unit", "unit1")
	assert.Contains(t, buf.String(), `"unit":"unit1"`)

	buf.Reset()
	cfg = &Config{LogLevel: "warn", LogFormat: "text"}
	cfg.NewLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())
}
