package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValue(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		key     string
		value   string
		want    interface{}
		wantErr string
	}{
		"int":          {key: "max_parallel", value: "8", want: 8},
		"negative int": {key: "run_priority", value: "-2", wantErr: "invalid integer"},
		"duration":     {key: "step_timeout", value: "90s", want: "1m30s"},
		"bad duration": {key: "step_timeout", value: "soon", wantErr: "invalid duration"},
		"enum":         {key: "log_format", value: "json", want: "json"},
		"bad enum":     {key: "log_level", value: "trace", wantErr: "valid options: debug, info, warn, error"},
		"string":       {key: "shell", value: "/bin/bash", want: "/bin/bash"},
		"unknown key":  {key: "colour", value: "red", wantErr: "unknown configuration key: colour"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := ValidateValue(tt.key, tt.value)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Parsed)
			assert.Equal(t, tt.value, got.Raw)
		})
	}
}

func TestSetValue_CreatesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".orchestra", "config.yml")
	_, err := SetValue(path, "max_parallel", "12")
	require.NoError(t, err)

	cfg, err := LoadWithOptions(LoadOptions{
		ProjectConfigPath: path,
		UserConfigPath:    filepath.Join(t.TempDir(), "none.yml"),
	})
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.MaxParallel)
}

func TestSetValue_PreservesComments(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yml")
	original := "# team settings\nshell: /bin/sh # keep posix\nmax_parallel: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	_, err := SetValue(path, "step_timeout", "2m")
	require.NoError(t, err)
	_, err = SetValue(path, "max_parallel", "6")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# team settings")
	assert.Contains(t, content, "# keep posix")
	assert.Contains(t, content, "max_parallel: 6")

	cfg, err := LoadWithOptions(LoadOptions{
		ProjectConfigPath: path,
		UserConfigPath:    filepath.Join(t.TempDir(), "none.yml"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.StepTimeout)
	assert.Equal(t, 6, cfg.MaxParallel)
}

func TestSetValue_RejectsBadInput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yml")

	_, err := SetValue(path, "nope", "1")
	var unknown ErrUnknownKey
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "nope", unknown.Key)

	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o644))
	_, err = SetValue(path, "shell", "/bin/sh")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "mapping")
}
