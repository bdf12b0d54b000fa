package sftp

import (
	"io"
	"os"
)

// Attrs is the metadata mapping returned by Stat and Lstat.
type Attrs map[string]any

// Transport is the SFTP primitive set a Session drives. Implementations
// live outside this package; internal/drivers/ssh provides the real one.
//
// Connect dials the remote host and Login authenticates and opens the
// file-transfer subsystem, in that order. Every path-taking primitive
// follows the transport's own working directory, which Chdir moves and
// Pwd reports.
type Transport interface {
	Connect(host string) error
	Login(user, pass string) error
	Chdir(path string) error
	Mkdir(name string) error
	Delete(path string, recursive bool) error
	Size(path string) (int64, error)
	Put(remotePath string, src Source) error
	Get(remotePath string, dst io.Writer) (int64, error)
	Rename(oldPath, newPath string) error
	Chmod(mode os.FileMode, path string, recursive bool) error
	Touch(path string) error
	Pwd() (string, error)
	NameList() ([]string, error)
	Stat(path string) (Attrs, error)
	Lstat(path string) (Attrs, error)
}

// ErrorLogger receives the session's logged-but-non-fatal failures.
// Trace is one of the stable codes defined in this package (E076, E085,
// E086) so log consumers can grep for them.
type ErrorLogger interface {
	LogError(method, message, trace string)
}

// Client is the core session surface: connecting and the everyday
// file and directory operations.
type Client interface {
	Connect(creds CredentialSet) error
	ChangeDirectory(path string) error
	CreateDirectory(path string) error
	DeleteDirectory(path string, recursive bool) error
	GetFileSize(path string) int64
	UploadFile(remotePath, localPath string) error
	DeleteFile(path string) error
	DownloadFile(remotePath, localPath string) error
}

// Extended groups the less common operations behind a second focused
// interface. Consumers take Client, Extended, or both, whichever they
// actually use.
type Extended interface {
	RenameFile(oldPath, newPath string) error
	RenameDirectory(oldPath, newPath string) error
	Touch(path string) error
	Chmod(mode os.FileMode, path string, recursive bool) error
	UploadString(remotePath, content string) error
	UploadFunc(remotePath string, next func() ([]byte, error)) error
	DownloadString(remotePath string) (string, error)
	Pwd() (string, error)
	List() ([]string, error)
	ListDir(path string) ([]string, error)
	Stat(path string) (Attrs, error)
	Lstat(path string) (Attrs, error)
}
