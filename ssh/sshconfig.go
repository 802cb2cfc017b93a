package ssh

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	sshconfig "github.com/kevinburke/ssh_config"
)

// WithSSHConfigDefaults fills unset connection fields from the user's
// ~/.ssh/config entry for the host alias given to NewConfig: HostName,
// User, Port, and IdentityFile. Values already set explicitly win.
// Apply it before auth options so an explicit key still takes priority
func WithSSHConfigDefaults() ConfigOption {
	return func(cfg *Config) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		return withSSHConfigFile(filepath.Join(home, ".ssh", "config"))(cfg)
	}
}

// withSSHConfigFile is WithSSHConfigDefaults reading a specific config
// file. A missing file applies no defaults
func withSSHConfigFile(path string) ConfigOption {
	return func(cfg *Config) error {
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("read ssh config: %w", err)
		}
		parsed, err := sshconfig.Decode(bytes.NewReader(content))
		if err != nil {
			return fmt.Errorf("parse ssh config: %w", err)
		}

		alias := cfg.Host
		if hostname, _ := parsed.Get(alias, "HostName"); hostname != "" {
			cfg.Host = hostname
		}
		if cfg.User == "" {
			user, _ := parsed.Get(alias, "User")
			cfg.User = user
		}
		if cfg.Port == 0 {
			portStr, _ := parsed.Get(alias, "Port")
			if portStr == "" {
				portStr = sshconfig.Default("Port")
			}
			if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
				cfg.Port = port
			}
		}
		if cfg.auth.keyPath == "" && len(cfg.auth.keyBytes) == 0 {
			identity, _ := parsed.Get(alias, "IdentityFile")
			if identity = expandHome(identity); identity != "" {
				if _, err := os.Stat(identity); err == nil {
					cfg.auth.keyPath = identity
				}
			}
		}
		return nil
	}
}

// expandHome resolves a leading ~/ against the current user's home directory
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
