package config

import (
	"bytes"
	_ "embed"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/viper"

	"github.com/quantumauth-io/quantum-auth-gate/internal/constants"
	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
)

//go:embed config.yaml
var EmbeddedConfigYAML []byte

const EnvPrefix = "QA_GATE"

type Server struct {
	Host             string   `mapstructure:"host"`
	Port             string   `mapstructure:"port"`
	UIBaseURL        string   `mapstructure:"ui_base_url"`
	UIAllowedOrigins []string `mapstructure:"ui_allowed_origins"`
}

type Provider struct {
	PortName    string `mapstructure:"port_name"`
	ClaimOrigin string `mapstructure:"claim_origin"`
	ReadLimit   int64  `mapstructure:"read_limit"`
}

type Wallet struct {
	Account       string `mapstructure:"account"`
	ChainIDHex    string `mapstructure:"chain_id_hex"`
	DefaultWallet bool   `mapstructure:"default_wallet"`
}

type Upstream struct {
	URL        string `mapstructure:"url"`
	AuthHeader string `mapstructure:"auth_header"`
	AuthToken  string `mapstructure:"auth_token"`
}

type Storage struct {
	Driver  string `mapstructure:"driver"`
	Path    string `mapstructure:"path"`
	Encrypt bool   `mapstructure:"encrypt"`
}

type Popup struct {
	PageURL string `mapstructure:"page_url"`
}

type Config struct {
	Server   Server   `mapstructure:"server"`
	Provider Provider `mapstructure:"provider"`
	Wallet   Wallet   `mapstructure:"wallet"`
	Upstream Upstream `mapstructure:"upstream"`
	Storage  Storage  `mapstructure:"storage"`
	Popup    Popup    `mapstructure:"popup"`
}

// DefaultPaths is where an optional config.yaml overriding the embedded one
// is looked up, in order.
func DefaultPaths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		filepath.Join(home, ".config", constants.AppName),
		filepath.Join(home, "config"),
		".",
	}
}

// Load reads the embedded defaults, merges the first config.yaml found under
// paths (DefaultPaths when empty), applies QA_GATE_* env overrides and
// validates the result.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = DefaultPaths()
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(EmbeddedConfigYAML)); err != nil {
		return nil, errors.Wrap(err, "read embedded config")
	}

	for _, p := range paths {
		f := filepath.Join(p, "config.yaml")
		if _, err := os.Stat(f); err != nil {
			continue
		}
		v.SetConfigFile(f)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "merge config %s", f)
		}
		break
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks and normalizes cfg in place.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Server.Host)) {
	case "127.0.0.1", "localhost", "::1":
	default:
		return errors.Newf("server.host %q must be a loopback address", c.Server.Host)
	}
	port, err := strconv.Atoi(strings.TrimSpace(c.Server.Port))
	if err != nil || port <= 0 || port > 65535 {
		return errors.Newf("server.port %q is not a valid port", c.Server.Port)
	}
	c.Server.Port = strconv.Itoa(port)
	c.Server.UIBaseURL = strings.TrimRight(strings.TrimSpace(c.Server.UIBaseURL), "/")

	origins := make([]string, 0, len(c.Server.UIAllowedOrigins))
	for _, o := range c.Server.UIAllowedOrigins {
		if n := permissions.NormalizeOrigin(o); n != "" {
			origins = append(origins, n)
		}
	}
	c.Server.UIAllowedOrigins = origins

	c.Provider.ClaimOrigin = permissions.NormalizeOrigin(c.Provider.ClaimOrigin)
	c.Provider.PortName = strings.TrimSpace(c.Provider.PortName)
	if c.Provider.ReadLimit <= 0 {
		return errors.Newf("provider.read_limit must be positive, got %d", c.Provider.ReadLimit)
	}

	if a := strings.TrimSpace(c.Wallet.Account); a != "" {
		if !common.IsHexAddress(a) {
			return errors.Newf("wallet.account %q is not a hex address", a)
		}
		c.Wallet.Account = permissions.NormalizeAccount(a)
	}

	chainID, err := hexutil.DecodeBig(strings.TrimSpace(c.Wallet.ChainIDHex))
	if err != nil {
		return errors.Wrapf(err, "wallet.chain_id_hex %q", c.Wallet.ChainIDHex)
	}
	c.Wallet.ChainIDHex = hexutil.EncodeBig(chainID)

	if raw := strings.TrimSpace(c.Upstream.URL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return errors.Wrapf(err, "upstream.url %q", raw)
		}
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			return errors.Newf("upstream.url %q: unsupported scheme %q", raw, u.Scheme)
		}
		c.Upstream.URL = raw
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case constants.StorageDriverFile:
	case constants.StorageDriverSQLite:
		if c.Storage.Encrypt {
			return errors.New("storage.encrypt is only supported by the file driver")
		}
	default:
		return errors.Newf("storage.driver %q (allowed: file, sqlite)", c.Storage.Driver)
	}

	pu, err := url.Parse(strings.TrimSpace(c.Popup.PageURL))
	if err != nil || pu.Scheme == "" || pu.Host == "" {
		return errors.Newf("popup.page_url %q must be an absolute url", c.Popup.PageURL)
	}
	c.Popup.PageURL = pu.String()

	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}
