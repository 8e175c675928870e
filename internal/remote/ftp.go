package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"
)

// TLS modes for the control/data connections.
const (
	TLSNone     = "none"
	TLSExplicit = "explicit"
	TLSImplicit = "implicit"
)

// FTPConfig holds the connection parameters for the remote store.
type FTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	TLSMode  string // none | explicit | implicit
	BaseDir  string
	Timeout  time.Duration
}

// FTPClient implements Client over FTP/FTPS. Each operation dials a fresh
// session, which trades connection overhead for isolation: a failed transfer
// cannot poison a later one.
type FTPClient struct {
	cfg FTPConfig
	log zerolog.Logger
}

// NewFTPClient builds a client from cfg. No connection is made until the
// first operation.
func NewFTPClient(cfg FTPConfig, log zerolog.Logger) *FTPClient {
	if cfg.Port == 0 {
		cfg.Port = 21
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &FTPClient{cfg: cfg, log: log.With().Str("component", "ftp").Logger()}
}

var _ Client = (*FTPClient)(nil)

// abs resolves a store-relative path against the configured base directory.
func (c *FTPClient) abs(p string) string {
	return path.Join("/", c.cfg.BaseDir, p)
}

func (c *FTPClient) dial(ctx context.Context) (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(c.cfg.Timeout),
	}
	switch c.cfg.TLSMode {
	case TLSImplicit:
		opts = append(opts, ftp.DialWithTLS(&tls.Config{ServerName: c.cfg.Host}))
	case TLSExplicit:
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: c.cfg.Host}))
	}

	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, &TransportError{Op: "dial", Path: addr, Err: err}
	}
	if err := conn.Login(c.cfg.User, c.cfg.Password); err != nil {
		conn.Quit()
		return nil, &TransportError{Op: "login", Path: addr, Err: err}
	}
	return conn, nil
}

// isNotFound reports whether err is the server saying the path does not
// exist (550 file unavailable).
func isNotFound(err error) bool {
	var proto *textproto.Error
	return errors.As(err, &proto) && proto.Code == ftp.StatusFileUnavailable
}

func (c *FTPClient) Upload(ctx context.Context, r io.Reader, remotePath string) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()

	target := c.abs(remotePath)
	c.mkdirAll(conn, path.Dir(target))
	if err := conn.Stor(target, r); err != nil {
		return &TransportError{Op: "upload", Path: remotePath, Err: err}
	}
	return nil
}

func (c *FTPClient) UploadBuffer(ctx context.Context, data []byte, remotePath string) error {
	return c.Upload(ctx, bytes.NewReader(data), remotePath)
}

func (c *FTPClient) AppendBuffer(ctx context.Context, data []byte, remotePath string) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()

	target := c.abs(remotePath)
	c.mkdirAll(conn, path.Dir(target))
	if err := conn.Append(target, bytes.NewReader(data)); err != nil {
		return &TransportError{Op: "append", Path: remotePath, Err: err}
	}
	return nil
}

func (c *FTPClient) StreamDownload(ctx context.Context, remotePath string, sink io.Writer, opts StreamOptions) (int64, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Quit()

	resp, err := conn.RetrFrom(c.abs(remotePath), uint64(opts.StartAt))
	if err != nil {
		if isNotFound(err) {
			return 0, ErrNotFound
		}
		return 0, &TransportError{Op: "retrieve", Path: remotePath, Err: err}
	}
	defer resp.Close()

	var src io.Reader = resp
	if opts.MaxBytes > 0 {
		src = io.LimitReader(resp, opts.MaxBytes)
	}
	n, err := io.Copy(sink, src)
	if err != nil {
		return n, &TransportError{Op: "stream", Path: remotePath, Err: err}
	}
	return n, nil
}

func (c *FTPClient) Size(ctx context.Context, remotePath string) (int64, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Quit()

	size, err := conn.FileSize(c.abs(remotePath))
	if err != nil {
		if isNotFound(err) {
			return 0, ErrNotFound
		}
		return 0, &TransportError{Op: "size", Path: remotePath, Err: err}
	}
	return size, nil
}

func (c *FTPClient) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := c.Size(ctx, remotePath)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *FTPClient) Remove(ctx context.Context, remotePath string) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()

	if err := conn.Delete(c.abs(remotePath)); err != nil && !isNotFound(err) {
		return &TransportError{Op: "delete", Path: remotePath, Err: err}
	}
	return nil
}

func (c *FTPClient) Rename(ctx context.Context, fromPath, toPath string) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()

	from, to := c.abs(fromPath), c.abs(toPath)
	c.mkdirAll(conn, path.Dir(to))
	if err := conn.Rename(from, to); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return &TransportError{Op: "rename", Path: fromPath, Err: err}
	}
	return nil
}

func (c *FTPClient) Mkdir(ctx context.Context, remotePath string) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()

	c.mkdirAll(conn, c.abs(remotePath))
	return nil
}

func (c *FTPClient) Rmdir(ctx context.Context, remotePath string) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()

	if err := conn.RemoveDir(c.abs(remotePath)); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return &TransportError{Op: "rmdir", Path: remotePath, Err: err}
	}
	return nil
}

// mkdirAll creates every missing segment of an absolute directory path.
// MKD on an existing directory answers 550, so errors here are ignored; the
// operation that needed the directory reports the real failure.
func (c *FTPClient) mkdirAll(conn *ftp.ServerConn, dir string) {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return
	}
	cur := ""
	for _, seg := range strings.Split(dir, "/") {
		cur = cur + "/" + seg
		if err := conn.MakeDir(cur); err != nil && !isNotFound(err) {
			c.log.Debug().Str("dir", cur).Err(err).Msg("mkdir")
		}
	}
}
