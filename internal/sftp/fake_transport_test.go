package sftp

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport. It records every call in
// order so tests can assert sequencing, keeps a permissive path space
// (chdir succeeds anywhere unless a forced error is set), and stores
// file contents in a map.
type fakeTransport struct {
	connectErr error
	loginErr   error
	putErr     error
	getErr     error
	nlistErr   error
	deleteErr  error
	renameErr  error
	touchErr   error
	chmodErr   error
	chdirErr   map[string]error

	sizeOverrides map[string]int64

	host      string
	user      string
	pass      string
	connected bool
	authed    bool
	cwd       string

	dirs  map[string]bool
	files map[string][]byte
	modes map[string]os.FileMode

	calls []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		chdirErr:      make(map[string]error),
		sizeOverrides: make(map[string]int64),
		cwd:           "/home/tester",
		dirs:          map[string]bool{"/": true, "/home": true, "/home/tester": true},
		files:         make(map[string][]byte),
		modes:         make(map[string]os.FileMode),
	}
}

func (f *fakeTransport) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeTransport) resolve(p string) string {
	if p == "" {
		return f.cwd
	}
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(f.cwd, p)
}

func (f *fakeTransport) Connect(host string) error {
	f.record("connect %s", host)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.host = host
	f.connected = true
	return nil
}

func (f *fakeTransport) Login(user, pass string) error {
	f.record("login %s", user)
	if f.loginErr != nil {
		return f.loginErr
	}
	f.user = user
	f.pass = pass
	f.authed = true
	return nil
}

func (f *fakeTransport) Chdir(p string) error {
	f.record("chdir %s", p)
	if err := f.chdirErr[p]; err != nil {
		return err
	}
	f.cwd = f.resolve(p)
	f.dirs[f.cwd] = true
	return nil
}

func (f *fakeTransport) Mkdir(name string) error {
	f.record("mkdir %s", name)
	f.dirs[f.resolve(name)] = true
	return nil
}

func (f *fakeTransport) Delete(p string, recursive bool) error {
	f.record("delete %s recursive=%v", p, recursive)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	resolved := f.resolve(p)
	switch {
	case f.dirs[resolved]:
		delete(f.dirs, resolved)
		if recursive {
			for known := range f.files {
				if path.Dir(known) == resolved {
					delete(f.files, known)
				}
			}
			for known := range f.dirs {
				if path.Dir(known) == resolved {
					delete(f.dirs, known)
				}
			}
		}
	default:
		if _, ok := f.files[resolved]; !ok {
			return fmt.Errorf("delete %s: %w", p, os.ErrNotExist)
		}
		delete(f.files, resolved)
	}
	return nil
}

func (f *fakeTransport) Size(p string) (int64, error) {
	resolved := f.resolve(p)
	if size, ok := f.sizeOverrides[resolved]; ok {
		return size, nil
	}
	if data, ok := f.files[resolved]; ok {
		return int64(len(data)), nil
	}
	return 0, fmt.Errorf("size %s: %w", p, os.ErrNotExist)
}

func (f *fakeTransport) Put(remotePath string, src Source) error {
	f.record("put %s mode=%s", remotePath, src.Mode())
	if f.putErr != nil {
		return f.putErr
	}
	rc, err := src.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	f.files[f.resolve(remotePath)] = data
	return nil
}

func (f *fakeTransport) Get(remotePath string, dst io.Writer) (int64, error) {
	f.record("get %s", remotePath)
	if f.getErr != nil {
		return 0, f.getErr
	}
	data, ok := f.files[f.resolve(remotePath)]
	if !ok {
		return 0, fmt.Errorf("get %s: %w", remotePath, os.ErrNotExist)
	}
	n, err := dst.Write(data)
	return int64(n), err
}

func (f *fakeTransport) Rename(oldPath, newPath string) error {
	f.record("rename %s %s", oldPath, newPath)
	if f.renameErr != nil {
		return f.renameErr
	}
	oldResolved, newResolved := f.resolve(oldPath), f.resolve(newPath)
	if data, ok := f.files[oldResolved]; ok {
		delete(f.files, oldResolved)
		f.files[newResolved] = data
		return nil
	}
	if f.dirs[oldResolved] {
		delete(f.dirs, oldResolved)
		f.dirs[newResolved] = true
		return nil
	}
	return fmt.Errorf("rename %s: %w", oldPath, os.ErrNotExist)
}

func (f *fakeTransport) Chmod(mode os.FileMode, p string, recursive bool) error {
	f.record("chmod %o %s recursive=%v", mode, p, recursive)
	if f.chmodErr != nil {
		return f.chmodErr
	}
	f.modes[f.resolve(p)] = mode
	return nil
}

func (f *fakeTransport) Touch(p string) error {
	f.record("touch %s", p)
	if f.touchErr != nil {
		return f.touchErr
	}
	resolved := f.resolve(p)
	if _, ok := f.files[resolved]; !ok {
		f.files[resolved] = nil
	}
	return nil
}

func (f *fakeTransport) Pwd() (string, error) {
	f.record("pwd")
	return f.cwd, nil
}

func (f *fakeTransport) NameList() ([]string, error) {
	f.record("nlist")
	if f.nlistErr != nil {
		return nil, f.nlistErr
	}
	var names []string
	for known := range f.files {
		if path.Dir(known) == f.cwd {
			names = append(names, path.Base(known))
		}
	}
	for known := range f.dirs {
		if known != f.cwd && path.Dir(known) == f.cwd {
			names = append(names, path.Base(known))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeTransport) Stat(p string) (Attrs, error) {
	f.record("stat %s", p)
	return f.attrs(p)
}

func (f *fakeTransport) Lstat(p string) (Attrs, error) {
	f.record("lstat %s", p)
	return f.attrs(p)
}

func (f *fakeTransport) attrs(p string) (Attrs, error) {
	resolved := f.resolve(p)
	if data, ok := f.files[resolved]; ok {
		return Attrs{"name": path.Base(resolved), "size": int64(len(data)), "type": "file"}, nil
	}
	if f.dirs[resolved] {
		return Attrs{"name": path.Base(resolved), "size": int64(0), "type": "directory"}, nil
	}
	return nil, fmt.Errorf("stat %s: %w", p, os.ErrNotExist)
}

var _ Transport = (*fakeTransport)(nil)

type loggedError struct {
	method  string
	message string
	trace   string
}

// recordingErrorLog captures LogError calls for assertions.
type recordingErrorLog struct {
	entries []loggedError
}

func (r *recordingErrorLog) LogError(method, message, trace string) {
	r.entries = append(r.entries, loggedError{method: method, message: message, trace: trace})
}

func (r *recordingErrorLog) traces() []string {
	traces := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		traces = append(traces, entry.trace)
	}
	return traces
}

var _ ErrorLogger = (*recordingErrorLog)(nil)

func validCredentials() CredentialSet {
	return CredentialSet{
		"id":                   42,
		"uuid":                 "7d12e1a8-9f6f-4d0c-a57b-0a8f04c6e3d1",
		"date":                 "2026-03-14 09:26:53",
		"is_encrypted":         "0",
		"account_host":         "files.example.com",
		"account_options":      "",
		"account_username":     "deploy",
		"account_password":     "hunter2",
		"default_directory":    "/srv/incoming",
		"is_secure_connection": "yes",
	}
}

func connectedSession(t *testing.T, transport *fakeTransport, errs *recordingErrorLog, opts ...Option) *Session {
	t.Helper()

	sess, err := New(transport, errs, opts...)
	require.NoError(t, err)
	require.NoError(t, sess.Connect(validCredentials()))
	return sess
}
