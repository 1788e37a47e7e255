package targets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/logger"
)

// SFTPTargetConfig holds configuration for the SFTP target
type SFTPTargetConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	KeyFile        string
	KnownHostsFile string // empty uses ~/.ssh/known_hosts when it exists
	BasePath       string
	Timeout        time.Duration
	Retry          RetryConfig
}

// SFTPTarget uploads exports over SSH
type SFTPTarget struct {
	config SFTPTargetConfig
	log    logger.Logger
}

// NewSFTPTarget validates config and fills defaults
func NewSFTPTarget(config SFTPTargetConfig, log logger.Logger) (*SFTPTarget, error) {
	if config.Host == "" {
		return nil, sftpConfigError("host is required")
	}
	if config.KeyFile == "" && config.Password == "" {
		return nil, sftpConfigError("no authentication method provided")
	}
	if config.Port == 0 {
		config.Port = DefaultSSHPort
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.BasePath == "" {
		config.BasePath = "exports"
	}
	if config.KnownHostsFile == "" {
		config.KnownHostsFile = DefaultKnownHostsFile()
	}
	if config.Retry.MaxRetries == 0 {
		config.Retry = DefaultRetryConfig()
	}
	if log == nil {
		log = GetLogger()
	}
	return &SFTPTarget{config: config, log: log.Module(TypeSFTP)}, nil
}

// NewSFTPTargetFromMap reads host, port, username, password, key_file,
// known_hosts_file, path and timeout
func NewSFTPTargetFromMap(settings map[string]any, log logger.Logger) (*SFTPTarget, error) {
	p := NewSettingsParser(settings, TypeSFTP)
	config := SFTPTargetConfig{
		Host:           p.RequireString("host"),
		Port:           p.OptionalInt("port", DefaultSSHPort),
		Username:       p.OptionalString("username", ""),
		Password:       p.OptionalString("password", ""),
		KeyFile:        p.OptionalString("key_file", ""),
		KnownHostsFile: p.OptionalString("known_hosts_file", ""),
		BasePath:       p.OptionalPath("path", "exports"),
		Timeout:        p.OptionalDuration("timeout", DefaultTimeout),
	}
	if err := p.Error(); err != nil {
		return nil, err
	}
	return NewSFTPTarget(config, log)
}

// DefaultKnownHostsFile returns ~/.ssh/known_hosts, or "" without a home directory
func DefaultKnownHostsFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".ssh", "known_hosts")
}

// Name returns the name of this target
func (t *SFTPTarget) Name() string { return TypeSFTP }

func (t *SFTPTarget) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if t.config.KnownHostsFile != "" {
		if _, err := os.Stat(t.config.KnownHostsFile); err == nil {
			return knownhosts.New(t.config.KnownHostsFile)
		}
	}
	t.log.Warn("no known_hosts file, host key is not verified",
		logger.String("host", t.config.Host))
	return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicit fallback, logged above
}

func (t *SFTPTarget) clientConfig() (*ssh.ClientConfig, error) {
	hostKeys, err := t.hostKeyCallback()
	if err != nil {
		return nil, storeError(TypeSFTP, "load known hosts", err)
	}
	config := &ssh.ClientConfig{
		User:            t.config.Username,
		HostKeyCallback: hostKeys,
		Timeout:         t.config.Timeout,
	}

	if t.config.KeyFile != "" {
		key, err := os.ReadFile(t.config.KeyFile)
		if err != nil {
			return nil, storeError(TypeSFTP, "read private key", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, sftpConfigError("failed to parse private key")
		}
		config.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	} else {
		config.Auth = []ssh.AuthMethod{ssh.Password(t.config.Password)}
	}
	return config, nil
}

// connect establishes an SFTP session, honouring ctx while dialing
func (t *SFTPTarget) connect(ctx context.Context) (*sftp.Client, error) {
	config, err := t.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(t.config.Host, fmt.Sprint(t.config.Port))
	dialer := net.Dialer{Timeout: t.config.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, storeError(TypeSFTP, "connect", err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		_ = netConn.Close()
		return nil, storeError(TypeSFTP, "ssh handshake", err)
	}
	client, err := sftp.NewClient(ssh.NewClient(sshConn, chans, reqs))
	if err != nil {
		_ = sshConn.Close()
		return nil, storeError(TypeSFTP, "create client", err)
	}
	return client, nil
}

// Store writes to a temporary remote name, then renames it over the final one
func (t *SFTPTarget) Store(ctx context.Context, name string, r io.Reader) error {
	if err := ValidateFileName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storeError(TypeSFTP, "read", err)
	}

	remotePath := path.Join(t.config.BasePath, name)
	return WithRetry(ctx, t.config.Retry, t.log, func() error {
		client, err := t.connect(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				t.log.Debug("failed to close SFTP client", logger.Error(err))
			}
		}()

		if err := client.MkdirAll(t.config.BasePath); err != nil {
			return storeError(TypeSFTP, "create directory", err)
		}

		tempPath := remotePath + ".tmp"
		dst, err := client.Create(tempPath)
		if err != nil {
			return storeError(TypeSFTP, "create file", err)
		}
		if _, err := io.Copy(dst, bytes.NewReader(data)); err != nil {
			_ = dst.Close()
			_ = client.Remove(tempPath)
			return storeError(TypeSFTP, "write file", err)
		}
		if err := dst.Close(); err != nil {
			_ = client.Remove(tempPath)
			return storeError(TypeSFTP, "close file", err)
		}
		if err := client.PosixRename(tempPath, remotePath); err != nil {
			_ = client.Remove(tempPath)
			return storeError(TypeSFTP, "rename", err)
		}

		t.log.Info("export uploaded",
			logger.String("host", t.config.Host),
			logger.String("path", remotePath),
			logger.Int("bytes", len(data)))
		return nil
	})
}

func sftpConfigError(msg string) error {
	return errors.Newf("sftp: %s", strings.TrimSpace(msg)).
		Component("export").
		Category(errors.CategoryConfiguration).
		Context("target", TypeSFTP).
		Build()
}
