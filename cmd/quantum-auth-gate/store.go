package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/term"

	"github.com/quantumauth-io/quantum-auth-gate/cmd/quantum-auth-gate/config"
	"github.com/quantumauth-io/quantum-auth-gate/internal/constants"
	gatehttp "github.com/quantumauth-io/quantum-auth-gate/internal/http"
	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
)

// passwordFunc supplies the grants file password when encryption is on.
type passwordFunc func() ([]byte, error)

func envOrPromptPassword() ([]byte, error) {
	if pw := os.Getenv(constants.GrantsPasswordEnv); pw != "" {
		return []byte(pw), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.Newf("grants file is encrypted: set %s or run from a terminal", constants.GrantsPasswordEnv)
	}

	fmt.Fprint(os.Stderr, "Grants password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, errors.Wrap(err, "read password")
	}
	if len(strings.TrimSpace(string(pw))) == 0 {
		return nil, errors.New("empty password")
	}
	return pw, nil
}

func storagePath(cfg *config.Config) (string, error) {
	if p := strings.TrimSpace(cfg.Storage.Path); p != "" {
		return p, nil
	}
	dir, err := gatehttp.ConfigDir()
	if err != nil {
		return "", err
	}
	if cfg.Storage.Driver == constants.StorageDriverSQLite {
		return filepath.Join(dir, constants.GrantsDBFile), nil
	}
	return filepath.Join(dir, constants.GrantsFile), nil
}

// openStore opens the configured backend. The returned close func is never nil.
func openStore(cfg *config.Config, password passwordFunc) (permissions.Store, func() error, error) {
	noop := func() error { return nil }

	path, err := storagePath(cfg)
	if err != nil {
		return nil, noop, err
	}

	switch cfg.Storage.Driver {
	case constants.StorageDriverSQLite:
		if err := os.MkdirAll(filepath.Dir(path), constants.DirectoryPerm); err != nil {
			return nil, noop, errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
		}
		s, err := permissions.OpenSQLite(path)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	default:
		var opts []permissions.FileOption
		if cfg.Storage.Encrypt {
			pw, err := password()
			if err != nil {
				return nil, noop, err
			}
			opts = append(opts, permissions.WithPassword(pw))
		}
		s, err := permissions.OpenFileStore(path, opts...)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	}
}
