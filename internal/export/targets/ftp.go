package targets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/logger"
)

const ftpTempFilePrefix = "ftp-upload-"

// FTPTargetConfig holds configuration for the FTP target
type FTPTargetConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	BasePath string
	Timeout  time.Duration
	Retry    RetryConfig
}

// FTPTarget uploads exports to an FTP server
type FTPTarget struct {
	config FTPTargetConfig
	log    logger.Logger
}

// NewFTPTarget validates config and fills defaults
func NewFTPTarget(config FTPTargetConfig, log logger.Logger) (*FTPTarget, error) {
	if config.Host == "" {
		return nil, errors.Newf("ftp: host is required").
			Component("export").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.Port == 0 {
		config.Port = DefaultFTPPort
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.BasePath == "" {
		config.BasePath = "exports"
	}
	config.BasePath = strings.TrimRight(config.BasePath, "/")
	if config.Retry.MaxRetries == 0 {
		config.Retry = DefaultRetryConfig()
	}
	if log == nil {
		log = GetLogger()
	}
	return &FTPTarget{config: config, log: log.Module(TypeFTP)}, nil
}

// NewFTPTargetFromMap reads host, port, username, password, path and timeout
func NewFTPTargetFromMap(settings map[string]any, log logger.Logger) (*FTPTarget, error) {
	p := NewSettingsParser(settings, TypeFTP)
	config := FTPTargetConfig{
		Host:     p.RequireString("host"),
		Port:     p.OptionalInt("port", DefaultFTPPort),
		Username: p.OptionalString("username", ""),
		Password: p.OptionalString("password", ""),
		BasePath: p.OptionalPath("path", "exports"),
		Timeout:  p.OptionalDuration("timeout", DefaultTimeout),
	}
	if err := p.Error(); err != nil {
		return nil, err
	}
	return NewFTPTarget(config, log)
}

// Name returns the name of this target
func (t *FTPTarget) Name() string { return TypeFTP }

// connect dials and logs in, giving up when ctx is done
func (t *FTPTarget) connect(ctx context.Context) (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", t.config.Host, t.config.Port)
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(t.config.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, storeError(TypeFTP, "connect", err)
	}
	if t.config.Username != "" {
		if err := conn.Login(t.config.Username, t.config.Password); err != nil {
			if quitErr := conn.Quit(); quitErr != nil {
				t.log.Debug("failed to quit after login error", logger.Error(quitErr))
			}
			return nil, errors.New(err).
				Component("export").
				Category(errors.CategoryConfiguration).
				Context("target", TypeFTP).
				Context("operation", "login").
				Build()
		}
	}
	return conn, nil
}

// Store uploads into a temporary name and renames it, so readers never see a partial file
func (t *FTPTarget) Store(ctx context.Context, name string, r io.Reader) error {
	if err := ValidateFileName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storeError(TypeFTP, "read", err)
	}

	remotePath := path.Join(t.config.BasePath, name)
	return WithRetry(ctx, t.config.Retry, t.log, func() error {
		conn, err := t.connect(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := conn.Quit(); err != nil {
				t.log.Debug("failed to close FTP connection", logger.Error(err))
			}
		}()

		t.ensureDir(conn, t.config.BasePath)

		tempPath := path.Join(t.config.BasePath, fmt.Sprintf("%s%d", ftpTempFilePrefix, time.Now().UnixNano()))
		if err := conn.Stor(tempPath, bytes.NewReader(data)); err != nil {
			_ = conn.Delete(tempPath)
			return storeError(TypeFTP, "upload", err)
		}
		if err := conn.Rename(tempPath, remotePath); err != nil {
			_ = conn.Delete(tempPath)
			return storeError(TypeFTP, "rename", err)
		}

		t.log.Info("export uploaded",
			logger.String("host", t.config.Host),
			logger.String("path", remotePath),
			logger.Int("bytes", len(data)))
		return nil
	})
}

// ensureDir creates each missing component of dir. Existing directories are not an error.
func (t *FTPTarget) ensureDir(conn *ftp.ServerConn, dir string) {
	if dir == "" || dir == "/" || dir == "." {
		return
	}
	current := ""
	if strings.HasPrefix(dir, "/") {
		current = "/"
	}
	for part := range strings.SplitSeq(strings.Trim(dir, "/"), "/") {
		current = path.Join(current, part)
		if err := conn.MakeDir(current); err != nil {
			t.log.Trace("make dir", logger.String("dir", current), logger.Error(err))
		}
	}
}
