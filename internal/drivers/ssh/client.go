package ssh

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	pkgsftp "github.com/pkg/sftp"
	"go.uber.org/multierr"
	gossh "golang.org/x/crypto/ssh"

	"github.com/karousn/sftpbridge/internal/sftp"
)

const (
	defaultDialTimeout = 10 * time.Second
	defaultPort        = 22
	defaultMaxPacket   = 1 << 15
)

var (
	// ErrNotConnected is returned by Login and the file operations before Connect.
	ErrNotConnected = errors.New("ssh: not connected")
	// ErrNotLoggedIn is returned by file operations between Connect and Login.
	ErrNotLoggedIn = errors.New("ssh: not logged in")
)

// Client is the SSH transport behind a session: a TCP connection, an SSH
// client on top of it, and the sftp subsystem on top of that. Connect
// dials, Login authenticates and opens the subsystem, Close tears all
// three down.
//
// The SFTP protocol has no working directory, so Client keeps one
// client-side: Chdir validates the target and records it, relative paths
// resolve against it, and Pwd and NameList read it.
type Client struct {
	dialTimeout    time.Duration
	port           int
	maxPacket      int
	knownHostsPath string

	mu        sync.Mutex
	conn      net.Conn
	addr      string
	sshClient *gossh.Client
	sftp      *pkgsftp.Client
	cwd       string

	closeOnce sync.Once
	closeErr  error
}

// Option customises a Client.
type Option func(*Client)

// WithDialTimeout overrides the TCP dial and SSH handshake timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithDefaultPort overrides the port used when the host carries none.
func WithDefaultPort(port int) Option {
	return func(c *Client) {
		if port > 0 && port <= 65535 {
			c.port = port
		}
	}
}

// WithMaxPacket overrides the sftp packet size.
func WithMaxPacket(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxPacket = size
		}
	}
}

// WithKnownHosts enforces host key verification against the given
// known_hosts file. Without it the remote key is accepted unverified.
func WithKnownHosts(path string) Option {
	return func(c *Client) {
		c.knownHostsPath = strings.TrimSpace(path)
	}
}

// NewClient returns an unconnected Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		dialTimeout: defaultDialTimeout,
		port:        defaultPort,
		maxPacket:   defaultMaxPacket,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the remote host. host is "name" or "name:port"; a bare
// name gets the client's default port.
func (c *Client) Connect(host string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return errors.New("ssh: already connected")
	}

	addr, err := normalizeAddr(host, c.port)
	if err != nil {
		return err
	}

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("ssh: dial %s: %w", addr, err)
	}

	c.conn = conn
	c.addr = addr
	return nil
}

// Login runs the SSH handshake with password authentication, opens the
// sftp subsystem and captures the server's initial working directory.
func (c *Client) Login(user, pass string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	if c.sftp != nil {
		return errors.New("ssh: already logged in")
	}

	hostKeys, err := hostKeyCallback(c.knownHostsPath)
	if err != nil {
		return err
	}

	cfg := &gossh.ClientConfig{
		User:            user,
		Auth:            []gossh.AuthMethod{gossh.Password(pass)},
		HostKeyCallback: hostKeys,
		Timeout:         c.dialTimeout,
	}

	clientConn, chans, reqs, err := gossh.NewClientConn(c.conn, c.addr, cfg)
	if err != nil {
		return fmt.Errorf("ssh: handshake %s: %w", c.addr, err)
	}
	sshClient := gossh.NewClient(clientConn, chans, reqs)

	sftpClient, err := pkgsftp.NewClient(sshClient, pkgsftp.MaxPacket(c.maxPacket))
	if err != nil {
		_ = sshClient.Close()
		return fmt.Errorf("ssh: open sftp subsystem: %w", err)
	}

	cwd, err := sftpClient.Getwd()
	if err != nil {
		_ = sftpClient.Close()
		_ = sshClient.Close()
		return fmt.Errorf("ssh: read initial directory: %w", err)
	}

	c.sshClient = sshClient
	c.sftp = sftpClient
	c.cwd = cwd
	return nil
}

// Close tears down the sftp subsystem and the SSH connection. Safe to
// call more than once; later calls return the first result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		var errs error
		if c.sftp != nil {
			errs = multierr.Append(errs, c.sftp.Close())
			c.sftp = nil
		}
		switch {
		case c.sshClient != nil:
			// Closing the SSH client closes the TCP connection under it.
			errs = multierr.Append(errs, c.sshClient.Close())
			c.sshClient = nil
			c.conn = nil
		case c.conn != nil:
			errs = multierr.Append(errs, c.conn.Close())
			c.conn = nil
		}
		c.closeErr = errs
	})
	return c.closeErr
}

// Chdir moves the client-side working directory after checking the
// target exists and is a directory.
func (c *Client) Chdir(dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.ready()
	if err != nil {
		return err
	}

	resolved, err := client.RealPath(c.resolve(dir))
	if err != nil {
		return fmt.Errorf("ssh: chdir %s: %w", dir, err)
	}
	info, err := client.Stat(resolved)
	if err != nil {
		return fmt.Errorf("ssh: chdir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("ssh: chdir %s: not a directory", dir)
	}

	c.cwd = resolved
	return nil
}

// Mkdir creates a single directory level.
func (c *Client) Mkdir(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.ready()
	if err != nil {
		return err
	}
	return client.Mkdir(c.resolve(name))
}

// Delete removes a file, an empty directory, or with recursive a whole
// tree. Symlinks are removed, never followed.
func (c *Client) Delete(p string, recursive bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.ready()
	if err != nil {
		return err
	}

	resolved := c.resolve(p)
	info, err := client.Lstat(resolved)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return client.Remove(resolved)
	}
	if !recursive {
		return client.RemoveDirectory(resolved)
	}
	return removeTree(client, resolved)
}

func removeTree(client *pkgsftp.Client, dir string) error {
	entries, err := client.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		child := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := removeTree(client, child); err != nil {
				return err
			}
			continue
		}
		if err := client.Remove(child); err != nil {
			return err
		}
	}
	return client.RemoveDirectory(dir)
}

// Size returns the byte length of the remote path.
func (c *Client) Size(p string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.ready()
	if err != nil {
		return 0, err
	}

	info, err := client.Stat(c.resolve(p))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Put writes the source's bytes to remotePath, creating or truncating it.
func (c *Client) Put(remotePath string, src sftp.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.ready()
	if err != nil {
		return err
	}

	rc, err := src.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := client.Create(c.resolve(remotePath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Get copies remotePath into dst and reports the bytes written.
func (c *Client) Get(remotePath string, dst io.Writer) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.ready()
	if err != nil {
		return 0, err
	}

	f, err := client.Open(c.resolve(remotePath))
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(dst, f)
}

// Rename moves oldPath to newPath.
func (c *Client) Rename(oldPath, newPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.ready()
	if err != nil {
		return err
	}
	return client.Rename(c.resolve(oldPath), c.resolve(newPath))
}

// Chmod applies mode to the path, or with recursive to every entry under
// it. Recursive application keeps going past individual failures and
// returns them combined.
func (c *Client) Chmod(mode os.FileMode, p string, recursive bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.ready()
	if err != nil {
		return err
	}

	resolved := c.resolve(p)
	if !recursive {
		return client.Chmod(resolved, mode)
	}

	var errs error
	walker := client.Walk(resolved)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := client.Chmod(walker.Path(), mode); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Touch creates p as an empty file when absent and sets its access and
// modification times to now.
func (c *Client) Touch(p string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.ready()
	if err != nil {
		return err
	}

	resolved := c.resolve(p)
	f, err := client.OpenFile(resolved, os.O_WRONLY|os.O_CREATE)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	now := time.Now()
	return client.Chtimes(resolved, now, now)
}

// Pwd reports the client-side working directory.
func (c *Client) Pwd() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.ready(); err != nil {
		return "", err
	}
	return c.cwd, nil
}

// NameList returns the entry names of the working directory, in the
// order the server sent them.
func (c *Client) NameList() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.ready()
	if err != nil {
		return nil, err
	}

	entries, err := client.ReadDir(c.cwd)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// Stat returns the metadata mapping for p, following symlinks.
func (c *Client) Stat(p string) (sftp.Attrs, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.ready()
	if err != nil {
		return nil, err
	}

	info, err := client.Stat(c.resolve(p))
	if err != nil {
		return nil, err
	}
	return fileAttrs(info), nil
}

// Lstat returns the metadata mapping for p itself, symlinks included.
func (c *Client) Lstat(p string) (sftp.Attrs, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.ready()
	if err != nil {
		return nil, err
	}

	info, err := client.Lstat(c.resolve(p))
	if err != nil {
		return nil, err
	}
	return fileAttrs(info), nil
}

// ready returns the sftp client or the state error explaining why there
// is none. Callers hold c.mu.
func (c *Client) ready() (*pkgsftp.Client, error) {
	if c.sftp == nil {
		if c.conn == nil {
			return nil, ErrNotConnected
		}
		return nil, ErrNotLoggedIn
	}
	return c.sftp, nil
}

// resolve maps p onto the working directory: absolute paths are cleaned,
// relative ones joined to cwd.
func (c *Client) resolve(p string) string {
	if p == "" {
		return c.cwd
	}
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(c.cwd, p)
}

// normalizeAddr turns "host" or "host:port" into a dialable address,
// filling in defaultPort when none is given. IPv6 literals work with and
// without brackets.
func normalizeAddr(host string, defaultPort int) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", errors.New("ssh: host is required")
	}

	if h, p, err := net.SplitHostPort(host); err == nil {
		if p == "" {
			p = strconv.Itoa(defaultPort)
		}
		return net.JoinHostPort(h, p), nil
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(defaultPort)), nil
}

// fileAttrs flattens a FileInfo into the session layer's metadata
// mapping. SFTP-specific fields appear when the server supplied them.
func fileAttrs(info os.FileInfo) sftp.Attrs {
	attrs := sftp.Attrs{
		"name":        info.Name(),
		"size":        info.Size(),
		"mode":        info.Mode(),
		"permissions": info.Mode().Perm(),
		"mtime":       info.ModTime(),
		"type":        entryType(info.Mode()),
	}
	if stat, ok := info.Sys().(*pkgsftp.FileStat); ok && stat != nil {
		attrs["uid"] = stat.UID
		attrs["gid"] = stat.GID
		attrs["atime"] = time.Unix(int64(stat.Atime), 0).UTC()
	}
	return attrs
}

func entryType(mode os.FileMode) string {
	switch {
	case mode.IsDir():
		return "directory"
	case mode&os.ModeSymlink != 0:
		return "symlink"
	case mode.IsRegular():
		return "file"
	default:
		return "special"
	}
}

var _ sftp.Transport = (*Client)(nil)
