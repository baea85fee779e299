package http

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/quantumauth-io/quantum-auth-gate/internal/constants"
)

// ConfigDir returns the canonical directory where the gate persists local
// state (grants, pairing token).
//
// Priority:
//  1. SNAP_REAL_HOME (snap installs)
//  2. HOME (normal installs)
//  3. os.UserConfigDir() fallback
func ConfigDir() (string, error) {
	if realHome := os.Getenv("SNAP_REAL_HOME"); realHome != "" {
		return filepath.Join(realHome, ".config", constants.AppName), nil
	}

	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", constants.AppName), nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "UserConfigDir")
	}
	return filepath.Join(dir, constants.AppName), nil
}

// PairingTokenFilePath is where the agent writes the extension pairing token.
// The extension includes it as X-QA-Extension (or pair_token on websockets).
func PairingTokenFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.PairingTokenFile), nil
}
