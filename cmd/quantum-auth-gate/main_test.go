package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-auth-gate/cmd/quantum-auth-gate/config"
	"github.com/quantumauth-io/quantum-auth-gate/internal/constants"
	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
)

const (
	cliDapp    = "https://dapp.example"
	cliAccount = "0x00000000000000000000000000000000000000aa"
)

// writeConfig points storage at dir and returns the config dir.
func writeConfig(t *testing.T, driver string, encrypt bool) (string, string) {
	t.Helper()
	dir := t.TempDir()
	file := constants.GrantsFile
	if driver == constants.StorageDriverSQLite {
		file = constants.GrantsDBFile
	}
	storePath := filepath.Join(dir, file)
	yaml := "storage:\n  driver: " + driver + "\n  path: " + storePath + "\n"
	if encrypt {
		yaml += "  encrypt: true\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	return dir, storePath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T, configDir string) {
	t.Helper()
	cfg, err := config.Load(configDir)
	require.NoError(t, err)
	store, closeStore, err := openStore(cfg, envOrPromptPassword)
	require.NoError(t, err)
	defer closeStore()
	require.NoError(t, store.Put(context.Background(),
		permissions.NewGrant(cliDapp, cliAccount, "Dapp", "", permissions.StateAllowed)))
}

func TestGrantsListAndRevoke(t *testing.T) {
	for _, driver := range []string{constants.StorageDriverFile, constants.StorageDriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			dir, _ := writeConfig(t, driver, false)

			out, err := runCLI(t, "--config-dir", dir, "grants", "list")
			require.NoError(t, err)
			assert.Contains(t, out, "no grants")

			seed(t, dir)

			out, err = runCLI(t, "--config-dir", dir, "grants", "list")
			require.NoError(t, err)
			assert.Contains(t, out, "ORIGIN")
			assert.Contains(t, out, cliDapp)
			assert.Contains(t, out, cliAccount)

			_, err = runCLI(t, "--config-dir", dir, "grants", "revoke", cliDapp+"/path", strings.ToUpper(cliAccount[2:]))
			require.Error(t, err, "account without 0x prefix does not match")

			out, err = runCLI(t, "--config-dir", dir, "grants", "revoke", cliDapp+"/path", cliAccount)
			require.NoError(t, err)
			assert.Contains(t, out, "revoked "+cliDapp)

			out, err = runCLI(t, "--config-dir", dir, "grants", "list")
			require.NoError(t, err)
			assert.Contains(t, out, "no grants")
		})
	}
}

func TestEncryptedGrantsUseEnvPassword(t *testing.T) {
	dir, storePath := writeConfig(t, constants.StorageDriverFile, true)
	t.Setenv(constants.GrantsPasswordEnv, "correct horse")

	seed(t, dir)

	raw, err := os.ReadFile(storePath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), cliDapp)

	out, err := runCLI(t, "--config-dir", dir, "grants", "list")
	require.NoError(t, err)
	assert.Contains(t, out, cliDapp)

	t.Setenv(constants.GrantsPasswordEnv, "wrong")
	_, err = runCLI(t, "--config-dir", dir, "grants", "list")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, constants.AppName+" dev"))
}
