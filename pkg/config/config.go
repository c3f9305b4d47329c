package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/arthur-debert/fls/pkg/actions"
	"github.com/arthur-debert/fls/pkg/errors"
	"github.com/arthur-debert/fls/pkg/paths"
	"github.com/arthur-debert/fls/pkg/protocol"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "FLS_"

// Config is the effective fls configuration. It is built once at startup
// and handed to every component.
type Config struct {
	SocketDir      string        `koanf:"socket_dir"`
	Capacity       int           `koanf:"capacity"`
	MessageMax     int           `koanf:"message_max"`
	PathMax        int           `koanf:"path_max"`
	ProbeInterval  time.Duration `koanf:"probe_interval"`
	StartupTimeout time.Duration `koanf:"startup_timeout"`
	Commands       Commands      `koanf:"commands"`
}

// Commands holds the command templates of the actions that run a program
type Commands struct {
	Copy    string `koanf:"copy"`
	Move    string `koanf:"move"`
	Symlink string `koanf:"symlink"`
}

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	// ConfigFile overrides the XDG config file location.
	ConfigFile string
	// Overrides are applied last, keyed like the config file
	// ("socket_dir", "commands.copy").
	Overrides map[string]interface{}
}

// Load builds the configuration from every source.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load defaults")
	}

	// 2. User config file, if any
	path := opts.ConfigFile
	explicit := path != ""
	if !explicit {
		path = paths.ConfigFilePath()
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load config from %s", path)
		}
	} else if explicit {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "config file %s not found", path)
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load env vars")
	}

	// 4. Flags
	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load overrides")
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigValid, "failed to unmarshal configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps FLS_SOCKET_DIR to socket_dir and FLS_COMMANDS_COPY to
// commands.copy.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "commands_"); ok {
		return "commands." + rest
	}
	return key
}

// Validate checks value ranges and command templates.
func (c *Config) Validate() error {
	switch {
	case c.Capacity < 1:
		return errors.Newf(errors.ErrConfigValid, "capacity must be at least 1, got %d", c.Capacity)
	case c.MessageMax < 2:
		return errors.Newf(errors.ErrConfigValid, "message_max must be at least 2, got %d", c.MessageMax)
	case c.PathMax < 2:
		return errors.Newf(errors.ErrConfigValid, "path_max must be at least 2, got %d", c.PathMax)
	case c.ProbeInterval <= 0:
		return errors.Newf(errors.ErrConfigValid, "probe_interval must be positive, got %s", c.ProbeInterval)
	case c.StartupTimeout <= 0:
		return errors.Newf(errors.ErrConfigValid, "startup_timeout must be positive, got %s", c.StartupTimeout)
	}
	_, err := c.ActionTable()
	return err
}

// Limits returns the protocol message bounds
func (c *Config) Limits() protocol.Limits {
	return protocol.Limits{MessageMax: c.MessageMax, PathMax: c.PathMax}
}

// SocketPath returns the daemon endpoint for the current user
func (c *Config) SocketPath() string {
	return paths.SocketPath(c.SocketDir)
}

// ActionTable builds the action table from the configured commands
func (c *Config) ActionTable() (actions.Table, error) {
	return actions.NewTable(actions.Commands{
		Copy:    c.Commands.Copy,
		Move:    c.Commands.Move,
		Symlink: c.Commands.Symlink,
	})
}

// fileView is the configuration as written to a config file.
type fileView struct {
	SocketDir      string      `toml:"socket_dir"`
	Capacity       int         `toml:"capacity"`
	MessageMax     int         `toml:"message_max"`
	PathMax        int         `toml:"path_max"`
	ProbeInterval  string      `toml:"probe_interval"`
	StartupTimeout string      `toml:"startup_timeout"`
	Commands       commandView `toml:"commands"`
}

type commandView struct {
	Copy    string `toml:"copy"`
	Move    string `toml:"move"`
	Symlink string `toml:"symlink"`
}

// TOML renders the configuration in config file syntax
func (c *Config) TOML() ([]byte, error) {
	view := fileView{
		SocketDir:      c.SocketDir,
		Capacity:       c.Capacity,
		MessageMax:     c.MessageMax,
		PathMax:        c.PathMax,
		ProbeInterval:  c.ProbeInterval.String(),
		StartupTimeout: c.StartupTimeout.String(),
		Commands: commandView{
			Copy:    c.Commands.Copy,
			Move:    c.Commands.Move,
			Symlink: c.Commands.Symlink,
		},
	}
	out, err := gotoml.Marshal(view)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to render configuration")
	}
	return out, nil
}
