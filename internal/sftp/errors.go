package sftp

import (
	"errors"
	"fmt"
	"strings"
)

// Trace codes passed to the error-log collaborator. They are stable
// identifiers carried over from the system this session layer fronts;
// log consumers grep for them.
const (
	// TraceInvalidCredentials marks a credential set missing required keys.
	TraceInvalidCredentials = "E076"
	// TraceLocalFileUnreadable marks an upload whose local source could not be read.
	TraceLocalFileUnreadable = "E085"
	// TraceSizeMismatch marks an upload whose remote size differs from the local size.
	TraceSizeMismatch = "E086"
)

var (
	// ErrNotConnected is returned by operations issued before a successful Connect.
	ErrNotConnected = errors.New("sftp: session not connected")
	// ErrAlreadyConnected is returned by Connect on a session that is already connected.
	ErrAlreadyConnected = errors.New("sftp: session already connected")
	// ErrUnknownSourceMode is returned when a Source carries an unrecognised mode.
	ErrUnknownSourceMode = errors.New("sftp: unknown source mode")
)

// ConnectError wraps a transport failure while dialling or authenticating.
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("sftp: connect %s: %v", e.Host, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// OpError wraps a transport failure during a session operation. Op names
// the transport primitive that failed and Path the argument it failed on.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("sftp: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// CredentialShapeError reports the required keys absent from a credential set.
type CredentialShapeError struct {
	Missing []string
}

func (e *CredentialShapeError) Error() string {
	return fmt.Sprintf("sftp: credential set missing required keys: %s", strings.Join(e.Missing, ", "))
}
