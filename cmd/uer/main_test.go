package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/alexdcox/cardano-uer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// isolate clears the uer environment and restores the shared flag values
// that applying a flag from the environment overwrites.
func isolate(t *testing.T) {
	t.Helper()

	for _, flag := range []*cli.StringFlag{flagConfig, flagNetwork, flagProjectID, flagBaseURL, flagKeyPath, flagLogLevel} {
		saved := *flag
		t.Cleanup(func() { *flag = saved })
		for _, env := range flag.EnvVars {
			t.Setenv(env, "")
			require.NoError(t, os.Unsetenv(env))
		}
	}
	timeout := *flagRequestTimeout
	t.Cleanup(func() { *flagRequestTimeout = timeout })
	t.Setenv("UER_REQUEST_TIMEOUT", "")
	require.NoError(t, os.Unsetenv("UER_REQUEST_TIMEOUT"))
}

func writeTestKey(t *testing.T, dir string) string {
	t.Helper()

	key, err := GenerateSigningKey()
	require.NoError(t, err)
	envelope, err := key.Envelope()
	require.NoError(t, err)

	path := filepath.Join(dir, "voter.skey")
	require.NoError(t, writeEnvelope(path, envelope))
	return path
}

func writeTestConfig(t *testing.T, dir string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, "uer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))
	return path
}

// runApp runs the cli with args and returns what it printed.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	stdout = &out
	t.Cleanup(func() { stdout = os.Stdout })

	err := newApp().Run(append([]string{"uer"}, args...))
	return out.String(), err
}

func printedNetwork(t *testing.T, output string) string {
	t.Helper()

	for _, line := range strings.Split(output, "\n") {
		if value, ok := strings.CutPrefix(line, "network:"); ok {
			return strings.TrimSpace(value)
		}
	}
	t.Fatalf("no network line in:\n%s", output)
	return ""
}

func printedAddress(t *testing.T, output string) string {
	t.Helper()

	for _, line := range strings.Split(output, "\n") {
		if value, ok := strings.CutPrefix(line, "addr (bech32):"); ok {
			return strings.TrimSpace(value)
		}
	}
	t.Fatalf("no address line in:\n%s", output)
	return ""
}

func TestLoadConfig_Precedence(t *testing.T) {
	tests := []struct {
		name          string
		env           map[string]string
		args          []string
		expectNetwork Network
		expectPrefix  string
	}{
		{
			name:          "yaml over defaults",
			expectNetwork: NetworkPreview,
			expectPrefix:  "addr_test1",
		},
		{
			name:          "env over yaml",
			env:           map[string]string{"UER_NETWORK": "mainnet"},
			expectNetwork: NetworkMainNet,
			expectPrefix:  "addr1",
		},
		{
			name:          "flag over env",
			env:           map[string]string{"UER_NETWORK": "mainnet"},
			args:          []string{"--network", "preprod"},
			expectNetwork: NetworkPreProd,
			expectPrefix:  "addr_test1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			dir := t.TempDir()
			keyPath := writeTestKey(t, dir)
			configPath := writeTestConfig(t, dir,
				"network: preview",
				"key_path: "+keyPath,
			)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			args := append([]string{"--config", configPath}, tt.args...)
			output, err := runApp(t, append(args, "address")...)
			require.NoError(t, err)

			assert.Equal(t, string(tt.expectNetwork), printedNetwork(t, output))
			assert.True(t, strings.HasPrefix(printedAddress(t, output), tt.expectPrefix), output)
		})
	}
}

func TestLoadConfig_KeyPathPrecedence(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	keyPath := writeTestKey(t, dir)
	configPath := writeTestConfig(t, dir,
		"network: preprod",
		"key_path: "+filepath.Join(dir, "missing.skey"),
	)

	_, err := runApp(t, "--config", configPath, "address")
	require.Error(t, err)

	t.Setenv("UER_KEY_PATH", keyPath)
	output, err := runApp(t, "--config", configPath, "address")
	require.NoError(t, err)
	assert.Equal(t, string(NetworkPreProd), printedNetwork(t, output))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))

	t.Run("missing key", func(t *testing.T) {
		isolate(t)
		dir := t.TempDir()
		configPath := writeTestConfig(t, dir,
			"network: preprod",
			"key_path: "+filepath.Join(dir, "missing.skey"),
		)

		_, err := runApp(t, "--config", configPath, "register")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrKeyFileNotFound), "%v", err)
		assert.Equal(t, KindPrecondition.ExitCode(), exitCode(err))
		assert.Equal(t, 2, exitCode(err))
	})

	t.Run("unknown network", func(t *testing.T) {
		isolate(t)
		dir := t.TempDir()
		keyPath := writeTestKey(t, dir)

		_, err := runApp(t, "--network", "moon", "--key", keyPath, "address")
		require.Error(t, err)
		assert.Equal(t, KindInvalidConfig.ExitCode(), exitCode(err))
		assert.Equal(t, 3, exitCode(err))
	})

	t.Run("unreadable config", func(t *testing.T) {
		isolate(t)
		dir := t.TempDir()
		configPath := writeTestConfig(t, dir, "network: [preprod")

		_, err := runApp(t, "--config", configPath, "metadata")
		require.Error(t, err)
		assert.Equal(t, KindInvalidConfig.ExitCode(), exitCode(err))
	})

	t.Run("unclassified", func(t *testing.T) {
		assert.Equal(t, KindUnknown.ExitCode(), exitCode(errors.New("boom")))
	})
}
