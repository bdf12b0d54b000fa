package sftp

import (
	"fmt"
	"os"
	"path"
	"sync"
)

// Session owns one transport handle to a remote host and mediates every
// operation against it. It validates credential shape on Connect, keeps a
// merge-only register of session metadata, and enforces the post-upload
// size check. Everything else forwards to the transport.
//
// A Session serializes its operations on an internal mutex, so the
// multi-step sequences (the parent/leaf directory splits, ListDir's
// save/restore) stay atomic when the session is shared across goroutines.
// The transport's lifetime belongs to whoever constructed it; Session
// never closes it.
type Session struct {
	mu        sync.Mutex
	transport Transport
	errorLog  ErrorLogger
	register  *Register
	connected bool

	failOnInvalidCredentials bool
}

// Option configures a Session at construction time.
type Option func(*Session)

// FailOnInvalidCredentials makes Connect return the credential shape error
// instead of carrying on with the transport attempt. The legacy behaviour,
// and the default, is to log the shape error and attempt the connection
// with whatever account values are present.
func FailOnInvalidCredentials() Option {
	return func(s *Session) {
		s.failOnInvalidCredentials = true
	}
}

// New constructs a disconnected Session around the supplied transport and
// error log. Both collaborators are required.
func New(transport Transport, errorLog ErrorLogger, opts ...Option) (*Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("sftp: transport is required")
	}
	if errorLog == nil {
		return nil, fmt.Errorf("sftp: error logger is required")
	}

	s := &Session{
		transport: transport,
		errorLog:  errorLog,
		register:  NewRegister(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Connect validates the credential shape, merges valid credentials into
// the register, then dials account_host and authenticates with
// account_username/account_password.
//
// A set missing required keys is logged with trace E076 and kept out of
// the register; unless the session was built with
// FailOnInvalidCredentials, the connection attempt still proceeds. The
// working directory after login is whatever the transport reports, the
// register's default_directory is never applied.
func (s *Session) Connect(creds CredentialSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return ErrAlreadyConnected
	}

	if err := creds.Validate(); err != nil {
		s.errorLog.LogError("connect", err.Error(), TraceInvalidCredentials)
		if s.failOnInvalidCredentials {
			return err
		}
	} else {
		s.register.Merge(creds)
	}

	host := creds.Host()
	if err := s.transport.Connect(host); err != nil {
		return &ConnectError{Host: host, Err: err}
	}
	if err := s.transport.Login(creds.Username(), creds.Password()); err != nil {
		return &ConnectError{Host: host, Err: err}
	}

	s.connected = true
	return nil
}

// Connected reports whether Connect has completed successfully.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// ChangeDirectory moves the transport's working directory. The path is
// passed through untouched; relative versus absolute semantics are the
// transport's.
func (s *Session) ChangeDirectory(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}
	if err := s.transport.Chdir(dir); err != nil {
		return &OpError{Op: "chdir", Path: dir, Err: err}
	}
	return nil
}

// CreateDirectory changes into the parent of dir and creates the leaf
// there, in that order. The working directory is left at the parent;
// callers expecting anything else must chdir themselves. dir should be
// absolute, relative paths make the parent split transport-dependent.
func (s *Session) CreateDirectory(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}

	parent, leaf := splitPath(dir)
	if err := s.transport.Chdir(parent); err != nil {
		return &OpError{Op: "chdir", Path: parent, Err: err}
	}
	if err := s.transport.Mkdir(leaf); err != nil {
		return &OpError{Op: "mkdir", Path: leaf, Err: err}
	}
	return nil
}

// DeleteDirectory removes the leaf of dir after changing into its parent,
// mirroring CreateDirectory's split. recursive is passed through to the
// transport.
func (s *Session) DeleteDirectory(dir string, recursive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}

	parent, leaf := splitPath(dir)
	if err := s.transport.Chdir(parent); err != nil {
		return &OpError{Op: "chdir", Path: parent, Err: err}
	}
	if err := s.transport.Delete(leaf, recursive); err != nil {
		return &OpError{Op: "delete", Path: leaf, Err: err}
	}
	return nil
}

// GetFileSize returns the remote size of name, or -1 when the transport
// cannot stat it. It never returns an error.
func (s *Session) GetFileSize(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteSizeLocked(name)
}

// UploadFile copies the local file at localPath to remotePath. An
// unreadable local file is logged with trace E085 and the transfer is
// skipped. After a skipped or completed transfer the remote and local
// sizes are compared and a mismatch is logged with trace E086. Neither
// trace fails the call; only a transport put failure does, and that one
// returns before the size check.
func (s *Session) UploadFile(remotePath, localPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}

	if err := checkLocalReadable(localPath); err != nil {
		s.errorLog.LogError("uploadFile", err.Error(), TraceLocalFileUnreadable)
	} else if err := s.transport.Put(remotePath, FileSource(localPath)); err != nil {
		return &OpError{Op: "put", Path: remotePath, Err: err}
	}

	s.checkSameFileSize(remotePath, localPath)
	return nil
}

// DeleteFile removes a single remote file. The path is forwarded as
// given; use DeleteDirectory for directories.
func (s *Session) DeleteFile(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}
	if err := s.transport.Delete(name, false); err != nil {
		return &OpError{Op: "delete", Path: name, Err: err}
	}
	return nil
}

// DownloadFile copies remotePath into a freshly created local file at
// localPath, truncating anything already there.
func (s *Session) DownloadFile(remotePath, localPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}

	f, err := os.Create(localPath)
	if err != nil {
		return &OpError{Op: "get", Path: localPath, Err: err}
	}
	if _, err := s.transport.Get(remotePath, f); err != nil {
		_ = f.Close()
		return &OpError{Op: "get", Path: remotePath, Err: err}
	}
	if err := f.Close(); err != nil {
		return &OpError{Op: "get", Path: localPath, Err: err}
	}
	return nil
}

// Merge adds values to the session register. The register never shrinks.
func (s *Session) Merge(values map[string]any) {
	s.register.Merge(values)
}

// Register returns a snapshot copy of the session register.
func (s *Session) Register() map[string]any {
	return s.register.Snapshot()
}

// RegisterValue returns a single register entry.
func (s *Session) RegisterValue(key string) (any, bool) {
	return s.register.Value(key)
}

// SecureConnection reports the register's is_secure_connection flag,
// coerced with ParseBool.
func (s *Session) SecureConnection() bool {
	value, _ := s.register.Value("is_secure_connection")
	return ParseBool(value)
}

// EncryptedCredentials reports the register's is_encrypted flag, coerced
// with ParseBool.
func (s *Session) EncryptedCredentials() bool {
	value, _ := s.register.Value("is_encrypted")
	return ParseBool(value)
}

// checkSameFileSize compares the remote and local sizes after an upload
// attempt and logs trace E086 when they differ. Both sides report -1 when
// unreadable, so a skipped transfer against an absent remote file stays
// quiet.
func (s *Session) checkSameFileSize(remotePath, localPath string) {
	remote := s.remoteSizeLocked(remotePath)
	local := localFileSize(localPath)
	if remote != local {
		s.errorLog.LogError(
			"checkSameFileSize",
			fmt.Sprintf("size mismatch for %s: remote %d bytes, local %d bytes", remotePath, remote, local),
			TraceSizeMismatch,
		)
	}
}

// remoteSizeLocked is GetFileSize without the lock; callers hold s.mu.
func (s *Session) remoteSizeLocked(name string) int64 {
	if !s.connected {
		return -1
	}
	size, err := s.transport.Size(name)
	if err != nil {
		return -1
	}
	return size
}

// splitPath decomposes a slash-separated remote path into its parent
// directory and leaf name.
func splitPath(p string) (parent, leaf string) {
	return path.Dir(p), path.Base(p)
}

// checkLocalReadable verifies the local upload source exists and can be
// opened for reading.
func checkLocalReadable(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("local file %s is not readable: %w", name, err)
	}
	return f.Close()
}

// localFileSize returns the byte length of a local file, or -1 when it
// cannot be statted.
func localFileSize(name string) int64 {
	info, err := os.Stat(name)
	if err != nil {
		return -1
	}
	return info.Size()
}

var _ Client = (*Session)(nil)
