package sftp

import (
	"bytes"
	"os"

	"go.uber.org/multierr"
)

// The operations below form the Extended surface. They share the session
// mutex with the core operations, so mixing the two across goroutines is
// still safe.

// RenameFile renames a remote file.
func (s *Session) RenameFile(oldPath, newPath string) error {
	return s.rename(oldPath, newPath)
}

// RenameDirectory renames a remote directory. The transport primitive is
// the same as RenameFile's; the two names exist for call-site clarity.
func (s *Session) RenameDirectory(oldPath, newPath string) error {
	return s.rename(oldPath, newPath)
}

func (s *Session) rename(oldPath, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}
	if err := s.transport.Rename(oldPath, newPath); err != nil {
		return &OpError{Op: "rename", Path: oldPath, Err: err}
	}
	return nil
}

// Touch creates name as an empty file if absent and refreshes its
// modification time.
func (s *Session) Touch(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}
	if err := s.transport.Touch(name); err != nil {
		return &OpError{Op: "touch", Path: name, Err: err}
	}
	return nil
}

// Chmod applies mode to the leaf of name after changing into its parent,
// the same split CreateDirectory performs. recursive is passed through.
func (s *Session) Chmod(mode os.FileMode, name string, recursive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}

	parent, leaf := splitPath(name)
	if err := s.transport.Chdir(parent); err != nil {
		return &OpError{Op: "chdir", Path: parent, Err: err}
	}
	if err := s.transport.Chmod(mode, leaf, recursive); err != nil {
		return &OpError{Op: "chmod", Path: leaf, Err: err}
	}
	return nil
}

// UploadString writes content to remotePath byte for byte. Unlike
// UploadFile there is no precondition or size check; the put either
// succeeds or fails.
func (s *Session) UploadString(remotePath, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}
	if err := s.transport.Put(remotePath, StringSource(content)); err != nil {
		return &OpError{Op: "put", Path: remotePath, Err: err}
	}
	return nil
}

// UploadFunc writes the bytes produced by next to remotePath. next runs
// when the transport opens the source; an error from it surfaces as the
// put failure.
func (s *Session) UploadFunc(remotePath string, next func() ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}
	if err := s.transport.Put(remotePath, CallbackSource(next)); err != nil {
		return &OpError{Op: "put", Path: remotePath, Err: err}
	}
	return nil
}

// DownloadString fetches remotePath into memory and returns it as a
// string, byte for byte.
func (s *Session) DownloadString(remotePath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return "", ErrNotConnected
	}

	var buf bytes.Buffer
	if _, err := s.transport.Get(remotePath, &buf); err != nil {
		return "", &OpError{Op: "get", Path: remotePath, Err: err}
	}
	return buf.String(), nil
}

// Pwd reports the transport's current working directory.
func (s *Session) Pwd() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return "", ErrNotConnected
	}

	pwd, err := s.transport.Pwd()
	if err != nil {
		return "", &OpError{Op: "pwd", Path: "", Err: err}
	}
	return pwd, nil
}

// List names the entries of the current working directory.
func (s *Session) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, ErrNotConnected
	}

	names, err := s.transport.NameList()
	if err != nil {
		return nil, &OpError{Op: "nlist", Path: "", Err: err}
	}
	return names, nil
}

// ListDir names the entries of dir, then restores the working directory
// it found on entry. Save, chdir, list and restore run as one critical
// section. If dir itself cannot be entered, nothing was changed and no
// restore happens.
func (s *Session) ListDir(dir string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, ErrNotConnected
	}

	saved, err := s.transport.Pwd()
	if err != nil {
		return nil, &OpError{Op: "pwd", Path: "", Err: err}
	}
	if err := s.transport.Chdir(dir); err != nil {
		return nil, &OpError{Op: "chdir", Path: dir, Err: err}
	}

	names, listErr := s.transport.NameList()

	if err := s.transport.Chdir(saved); err != nil {
		return nil, &OpError{Op: "chdir", Path: saved, Err: multierr.Append(listErr, err)}
	}
	if listErr != nil {
		return nil, &OpError{Op: "nlist", Path: dir, Err: listErr}
	}
	return names, nil
}

// Stat returns the metadata mapping for name.
func (s *Session) Stat(name string) (Attrs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, ErrNotConnected
	}

	attrs, err := s.transport.Stat(name)
	if err != nil {
		return nil, &OpError{Op: "stat", Path: name, Err: err}
	}
	return attrs, nil
}

// Lstat returns the metadata mapping for name without following a final
// symlink.
func (s *Session) Lstat(name string) (Attrs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, ErrNotConnected
	}

	attrs, err := s.transport.Lstat(name)
	if err != nil {
		return nil, &OpError{Op: "lstat", Path: name, Err: err}
	}
	return attrs, nil
}

var _ Extended = (*Session)(nil)
