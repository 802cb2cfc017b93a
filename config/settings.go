// Package config loads connection settings for remote HBase shells from
// YAML files, with environment variable overrides
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/evergrid/hbaseshell/ssh"
)

const (
	// EnvPrefix namespaces environment overrides, e.g. HBASESHELL_HOST
	EnvPrefix = "HBASESHELL"

	defaultPort           = 22
	defaultCommandTimeout = 300 * time.Second
	defaultBatchTimeout   = 30 * time.Second
	defaultTerminalSize   = 1024
)

// Settings holds everything needed to reach a remote HBase shell:
// where to connect, how to authenticate, and the driver tuning knobs
type Settings struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	PrivateKey   string `mapstructure:"private_key"`
	Passphrase   string `mapstructure:"passphrase"`
	KnownHosts   string `mapstructure:"known_hosts"`
	SudoPassword string `mapstructure:"sudo_password"`

	// UseSSHConfig pulls unset connection fields from ~/.ssh/config
	UseSSHConfig bool `mapstructure:"use_ssh_config"`

	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
	TerminalWidth  int           `mapstructure:"terminal_width"`
	TerminalHeight int           `mapstructure:"terminal_height"`
}

// Load reads settings from the YAML file at path. Environment variables
// prefixed with HBASESHELL_ override file values
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return parse(v)
}

// LoadOrDefault behaves like Load but returns pure defaults plus
// environment overrides when path is empty
func LoadOrDefault(path string) (*Settings, error) {
	if path != "" {
		return Load(path)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return parse(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", defaultPort)
	v.SetDefault("command_timeout", defaultCommandTimeout.String())
	v.SetDefault("batch_timeout", defaultBatchTimeout.String())
	v.SetDefault("terminal_width", defaultTerminalSize)
	v.SetDefault("terminal_height", defaultTerminalSize)
	v.SetDefault("use_ssh_config", false)
}

func parse(v *viper.Viper) (*Settings, error) {
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("invalid config format: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that the settings can produce a dialable configuration
func (s *Settings) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("host is required")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", s.Port)
	}
	if !s.UseSSHConfig && s.User == "" {
		return fmt.Errorf("user is required unless use_ssh_config is set")
	}
	if s.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive")
	}
	if s.BatchTimeout <= 0 {
		return fmt.Errorf("batch_timeout must be positive")
	}
	return nil
}

// SSHConfig assembles the connection configuration from the settings,
// wiring authentication in the standard priority order
func (s *Settings) SSHConfig() (*ssh.Config, error) {
	var opts []ssh.ConfigOption

	if s.UseSSHConfig {
		opts = append(opts, ssh.WithSSHConfigDefaults())
	}
	if s.PrivateKey != "" {
		opts = append(opts, ssh.WithPrivateKeyPathAuth(s.PrivateKey, s.Passphrase))
	}
	if s.Password != "" {
		opts = append(opts, ssh.WithPasswordAuth(s.Password))
	}
	if s.KnownHosts != "" {
		opts = append(opts, ssh.WithKnownHosts(s.KnownHosts))
	}
	if s.SudoPassword != "" {
		opts = append(opts, ssh.WithSudoPassword(s.SudoPassword))
	}
	if s.TerminalWidth > 0 && s.TerminalHeight > 0 {
		opts = append(opts, ssh.WithTerminalSize(s.TerminalWidth, s.TerminalHeight))
	}

	return ssh.NewConfig(s.User, s.Host, s.Port, opts...)
}
