package ssh

import (
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// auth collects the credentials for logging in to the edge node.
// Methods are assembled at dial time, in priority order
type auth struct {
	password   string // password login, also answers keyboard-interactive
	keyPath    string // private key file on disk
	keyBytes   []byte // private key material held in memory
	passphrase string // decrypts the key when it is protected
	useAgent   bool   // consult the local SSH agent first
}

// withPassword enables password login
func (a *auth) withPassword(password string) error {
	if len(password) == 0 {
		return fmt.Errorf("password empty")
	}
	a.password = password
	return nil
}

// withPrivateKeyPath enables key login from a file on disk. The file is
// read and parsed when methods are assembled, not here
func (a *auth) withPrivateKeyPath(path, passphrase string) error {
	if len(path) == 0 {
		return fmt.Errorf("private key path empty")
	}
	a.keyPath = path
	a.passphrase = passphrase
	return nil
}

// withPrivateKeyBytes enables key login from in-memory key material, for
// callers that load keys from a secret store rather than disk
func (a *auth) withPrivateKeyBytes(privateKey []byte, passphrase string) error {
	if len(privateKey) == 0 {
		return fmt.Errorf("private key bytes empty")
	}
	a.keyBytes = privateKey
	a.passphrase = passphrase
	return nil
}

// withAgent consults the local SSH agent (SSH_AUTH_SOCK, Unix only)
func (a *auth) withAgent() error {
	a.useAgent = true
	return nil
}

// buildAgentAuth dials the agent socket and exposes its signers
func (a *auth) buildAgentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("dial agent: %w", err)
	}
	ag := agent.NewClient(conn)
	return ssh.PublicKeysCallback(ag.Signers), nil
}

// authMethods assembles the configured ssh.AuthMethods in priority order
// agent → key file → key bytes → password. Individual failures are
// collected; only an empty result is an error
func (a *auth) authMethods() ([]ssh.AuthMethod, error) {
	methods := make([]ssh.AuthMethod, 0, 4)
	var failures []string

	if a.useAgent {
		m, err := a.buildAgentAuth()
		if err != nil {
			failures = append(failures, fmt.Sprintf("agent: %v", err))
		} else {
			methods = append(methods, m)
		}
	}

	if a.keyPath != "" {
		keyData, err := os.ReadFile(a.keyPath)
		if err != nil {
			failures = append(failures, fmt.Sprintf("read key file: %v", err))
		} else if signer, err := parseSigner(keyData, a.passphrase); err != nil {
			failures = append(failures, fmt.Sprintf("read key file: %v", err))
		} else {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if len(a.keyBytes) > 0 {
		signer, err := parseSigner(a.keyBytes, a.passphrase)
		if err != nil {
			failures = append(failures, fmt.Sprintf("read key bytes: %v", err))
		} else {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if a.password != "" {
		// PAM-backed sshd on many Hadoop edge nodes asks over
		// keyboard-interactive instead of accepting a plain password;
		// answer both the same way
		methods = append(methods,
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = a.password
				}
				return answers, nil
			}),
			ssh.Password(a.password),
		)
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no valid auth methods available: %s", strings.Join(failures, "; "))
	}
	return methods, nil
}

// parseSigner parses a PEM private key, retrying without the passphrase
// when the key turns out not to be protected
func parseSigner(data []byte, passphrase string) (ssh.Signer, error) {
	if len(passphrase) > 0 {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
		if err != nil && strings.Contains(err.Error(), "key is not password protected") {
			return ssh.ParsePrivateKey(data)
		}
		return signer, err
	}
	return ssh.ParsePrivateKey(data)
}
