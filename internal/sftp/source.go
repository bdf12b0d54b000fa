package sftp

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// SourceMode names where upload bytes come from. The enumeration is
// closed: transports switch over exactly these three modes.
type SourceMode int

const (
	// SourceLocalFile reads the upload from a file on the local disk.
	SourceLocalFile SourceMode = iota
	// SourceCallback pulls the upload bytes from a caller-supplied function.
	SourceCallback
	// SourceString uploads an in-memory string verbatim.
	SourceString
)

// String returns the mode name.
func (m SourceMode) String() string {
	switch m {
	case SourceLocalFile:
		return "LOCAL_FILE"
	case SourceCallback:
		return "CALLBACK"
	case SourceString:
		return "STRING"
	default:
		return fmt.Sprintf("SourceMode(%d)", int(m))
	}
}

// Source carries upload content in one of the three modes. Construct it
// with FileSource, StringSource or CallbackSource; the zero value is a
// LOCAL_FILE source with an empty path.
type Source struct {
	mode     SourceMode
	path     string
	content  string
	callback func() ([]byte, error)
}

// FileSource uploads the contents of the local file at path.
func FileSource(path string) Source {
	return Source{mode: SourceLocalFile, path: path}
}

// StringSource uploads content byte for byte.
func StringSource(content string) Source {
	return Source{mode: SourceString, content: content}
}

// CallbackSource defers content production to next, which runs when the
// transport opens the source.
func CallbackSource(next func() ([]byte, error)) Source {
	return Source{mode: SourceCallback, callback: next}
}

// Mode returns the source mode.
func (s Source) Mode() SourceMode { return s.mode }

// Path returns the local path of a LOCAL_FILE source.
func (s Source) Path() string { return s.path }

// Open resolves the source to a reader. LOCAL_FILE opens the file,
// STRING wraps the string, CALLBACK invokes the function. A Source
// holding an unknown mode or a nil callback fails with
// ErrUnknownSourceMode.
func (s Source) Open() (io.ReadCloser, error) {
	switch s.mode {
	case SourceLocalFile:
		f, err := os.Open(s.path)
		if err != nil {
			return nil, err
		}
		return f, nil
	case SourceString:
		return io.NopCloser(strings.NewReader(s.content)), nil
	case SourceCallback:
		if s.callback == nil {
			return nil, fmt.Errorf("%w: nil callback", ErrUnknownSourceMode)
		}
		data, err := s.callback()
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSourceMode, s.mode)
	}
}
