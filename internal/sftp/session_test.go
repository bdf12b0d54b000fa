package sftp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, &recordingErrorLog{})
	require.Error(t, err)

	_, err = New(newFakeTransport(), nil)
	require.Error(t, err)
}

func TestConnectValidCredentials(t *testing.T) {
	transport := newFakeTransport()
	errs := &recordingErrorLog{}

	sess, err := New(transport, errs)
	require.NoError(t, err)

	creds := validCredentials()
	creds["environment"] = "staging"

	require.NoError(t, sess.Connect(creds))
	require.True(t, sess.Connected())
	require.Empty(t, errs.entries)

	require.Equal(t, "files.example.com", transport.host)
	require.Equal(t, "deploy", transport.user)
	require.Equal(t, "hunter2", transport.pass)
	require.Equal(t, []string{"connect files.example.com", "login deploy"}, transport.calls)

	register := sess.Register()
	require.Len(t, register, len(creds))
	require.Equal(t, "staging", register["environment"])
	require.Equal(t, "/srv/incoming", register["default_directory"])
}

func TestConnectTwiceFails(t *testing.T) {
	sess := connectedSession(t, newFakeTransport(), &recordingErrorLog{})

	err := sess.Connect(validCredentials())
	require.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestConnectMissingKeysLegacyPolicy(t *testing.T) {
	transport := newFakeTransport()
	errs := &recordingErrorLog{}

	sess, err := New(transport, errs)
	require.NoError(t, err)

	creds := validCredentials()
	delete(creds, "uuid")
	delete(creds, "default_directory")

	require.NoError(t, sess.Connect(creds))
	require.True(t, sess.Connected())

	require.Len(t, errs.entries, 1)
	require.Equal(t, "connect", errs.entries[0].method)
	require.Equal(t, TraceInvalidCredentials, errs.entries[0].trace)
	require.Contains(t, errs.entries[0].message, "uuid")
	require.Contains(t, errs.entries[0].message, "default_directory")

	// The shape failure keeps the credentials out of the register but the
	// connection attempt still ran.
	require.Empty(t, sess.Register())
	require.Equal(t, []string{"connect files.example.com", "login deploy"}, transport.calls)
}

func TestConnectMissingKeysStrictPolicy(t *testing.T) {
	transport := newFakeTransport()
	errs := &recordingErrorLog{}

	sess, err := New(transport, errs, FailOnInvalidCredentials())
	require.NoError(t, err)

	creds := validCredentials()
	delete(creds, "account_options")

	err = sess.Connect(creds)
	var shapeErr *CredentialShapeError
	require.ErrorAs(t, err, &shapeErr)
	require.Equal(t, []string{"account_options"}, shapeErr.Missing)

	// E076 is still logged; only the continuation differs from the legacy policy.
	require.Equal(t, []string{TraceInvalidCredentials}, errs.traces())
	require.False(t, sess.Connected())
	require.Empty(t, transport.calls)
}

func TestConnectTransportFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.loginErr = errors.New("permission denied")

	sess, err := New(transport, &recordingErrorLog{})
	require.NoError(t, err)

	err = sess.Connect(validCredentials())
	var connectErr *ConnectError
	require.ErrorAs(t, err, &connectErr)
	require.Equal(t, "files.example.com", connectErr.Host)
	require.ErrorIs(t, err, transport.loginErr)
	require.False(t, sess.Connected())
}

func TestOperationsRequireConnection(t *testing.T) {
	sess, err := New(newFakeTransport(), &recordingErrorLog{})
	require.NoError(t, err)

	require.ErrorIs(t, sess.ChangeDirectory("/tmp"), ErrNotConnected)
	require.ErrorIs(t, sess.CreateDirectory("/tmp/a"), ErrNotConnected)
	require.ErrorIs(t, sess.DeleteDirectory("/tmp/a", false), ErrNotConnected)
	require.ErrorIs(t, sess.UploadFile("/tmp/a", "a"), ErrNotConnected)
	require.ErrorIs(t, sess.DeleteFile("/tmp/a"), ErrNotConnected)
	require.ErrorIs(t, sess.DownloadFile("/tmp/a", "a"), ErrNotConnected)
	require.ErrorIs(t, sess.RenameFile("/a", "/b"), ErrNotConnected)
	require.ErrorIs(t, sess.RenameDirectory("/a", "/b"), ErrNotConnected)
	require.ErrorIs(t, sess.Touch("/tmp/a"), ErrNotConnected)
	require.ErrorIs(t, sess.Chmod(0o644, "/tmp/a", false), ErrNotConnected)
	require.ErrorIs(t, sess.UploadString("/tmp/a", "x"), ErrNotConnected)
	require.ErrorIs(t, sess.UploadFunc("/tmp/a", nil), ErrNotConnected)

	_, err = sess.DownloadString("/tmp/a")
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = sess.Pwd()
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = sess.List()
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = sess.ListDir("/tmp")
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = sess.Stat("/tmp/a")
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = sess.Lstat("/tmp/a")
	require.ErrorIs(t, err, ErrNotConnected)

	require.Equal(t, int64(-1), sess.GetFileSize("/tmp/a"))
}

func TestChangeDirectoryForwardsPathUntouched(t *testing.T) {
	transport := newFakeTransport()
	sess := connectedSession(t, transport, &recordingErrorLog{})

	require.NoError(t, sess.ChangeDirectory("work/../incoming"))
	require.Equal(t, "chdir work/../incoming", transport.calls[len(transport.calls)-1])
}

func TestCreateDirectorySplitsParentAndLeaf(t *testing.T) {
	transport := newFakeTransport()
	sess := connectedSession(t, transport, &recordingErrorLog{})

	require.NoError(t, sess.CreateDirectory("/srv/data/reports"))

	calls := transport.calls[2:]
	require.Equal(t, []string{"chdir /srv/data", "mkdir reports"}, calls)
	// No restore: the working directory stays at the parent.
	require.Equal(t, "/srv/data", transport.cwd)
	require.True(t, transport.dirs["/srv/data/reports"])
}

func TestCreateDirectoryParentFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.chdirErr["/missing"] = errors.New("no such directory")
	sess := connectedSession(t, transport, &recordingErrorLog{})

	err := sess.CreateDirectory("/missing/reports")
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "chdir", opErr.Op)
	require.Equal(t, "/missing", opErr.Path)
	require.NotContains(t, transport.calls, "mkdir reports")
}

func TestDeleteDirectorySplitsAndPassesRecursive(t *testing.T) {
	transport := newFakeTransport()
	transport.dirs["/srv/old"] = true
	sess := connectedSession(t, transport, &recordingErrorLog{})

	require.NoError(t, sess.DeleteDirectory("/srv/old", true))
	calls := transport.calls[2:]
	require.Equal(t, []string{"chdir /srv", "delete old recursive=true"}, calls)
	require.False(t, transport.dirs["/srv/old"])
}

func TestGetFileSize(t *testing.T) {
	transport := newFakeTransport()
	transport.files["/srv/report.csv"] = []byte("a,b,c\n1,2,3\n")
	sess := connectedSession(t, transport, &recordingErrorLog{})

	require.Equal(t, int64(12), sess.GetFileSize("/srv/report.csv"))
	require.Equal(t, int64(-1), sess.GetFileSize("/srv/absent.csv"))
}

func TestUploadFileStoresContentAndStaysQuiet(t *testing.T) {
	transport := newFakeTransport()
	errs := &recordingErrorLog{}
	sess := connectedSession(t, transport, errs)

	local := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(local, []byte("payload bytes"), 0o600))

	require.NoError(t, sess.UploadFile("/srv/payload.bin", local))
	require.Equal(t, []byte("payload bytes"), transport.files["/srv/payload.bin"])
	require.Contains(t, transport.calls, "put /srv/payload.bin mode=LOCAL_FILE")
	require.Empty(t, errs.entries)
}

func TestUploadFileUnreadableLocalSkipsPut(t *testing.T) {
	transport := newFakeTransport()
	errs := &recordingErrorLog{}
	sess := connectedSession(t, transport, errs)

	missing := filepath.Join(t.TempDir(), "nope.bin")

	// The call still succeeds; the failure is logged, not returned.
	require.NoError(t, sess.UploadFile("/srv/nope.bin", missing))

	for _, call := range transport.calls {
		require.NotContains(t, call, "put ")
	}

	// E085 only: both sizes resolve to the -1 sentinel, so the size check
	// that still ran found nothing to report.
	require.Equal(t, []string{TraceLocalFileUnreadable}, errs.traces())
	require.Equal(t, "uploadFile", errs.entries[0].method)
}

func TestUploadFileSizeMismatchLogsAndSucceeds(t *testing.T) {
	transport := newFakeTransport()
	errs := &recordingErrorLog{}
	sess := connectedSession(t, transport, errs)

	local := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(local, []byte("0123456789"), 0o600))
	transport.sizeOverrides["/srv/payload.bin"] = 7

	require.NoError(t, sess.UploadFile("/srv/payload.bin", local))

	require.Equal(t, []string{TraceSizeMismatch}, errs.traces())
	require.Equal(t, "checkSameFileSize", errs.entries[0].method)
	require.Contains(t, errs.entries[0].message, "remote 7")
	require.Contains(t, errs.entries[0].message, "local 10")
}

func TestUploadFilePutFailureSkipsSizeCheck(t *testing.T) {
	transport := newFakeTransport()
	transport.putErr = errors.New("disk full")
	errs := &recordingErrorLog{}
	sess := connectedSession(t, transport, errs)

	local := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(local, []byte("abc"), 0o600))

	err := sess.UploadFile("/srv/payload.bin", local)
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "put", opErr.Op)
	require.Empty(t, errs.entries)
}

func TestDeleteFileForwards(t *testing.T) {
	transport := newFakeTransport()
	transport.files["/srv/report.csv"] = []byte("x")
	sess := connectedSession(t, transport, &recordingErrorLog{})

	require.NoError(t, sess.DeleteFile("/srv/report.csv"))
	require.Equal(t, "delete /srv/report.csv recursive=false", transport.calls[len(transport.calls)-1])

	err := sess.DeleteFile("/srv/report.csv")
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "delete", opErr.Op)
}

func TestDownloadFileWritesLocalCopy(t *testing.T) {
	transport := newFakeTransport()
	transport.files["/srv/export.json"] = []byte(`{"ok":true}`)
	sess := connectedSession(t, transport, &recordingErrorLog{})

	local := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, sess.DownloadFile("/srv/export.json", local))

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"ok":true}`), data)
}

func TestRegisterMergeOnly(t *testing.T) {
	sess := connectedSession(t, newFakeTransport(), &recordingErrorLog{})

	sess.Merge(map[string]any{"transfer_count": 3})
	value, ok := sess.RegisterValue("transfer_count")
	require.True(t, ok)
	require.Equal(t, 3, value)

	// Snapshots are copies; writing to one does not touch the register.
	snapshot := sess.Register()
	snapshot["transfer_count"] = 99
	value, _ = sess.RegisterValue("transfer_count")
	require.Equal(t, 3, value)
}

func TestRegisterFlagAccessors(t *testing.T) {
	sess := connectedSession(t, newFakeTransport(), &recordingErrorLog{})

	// Seeded with is_secure_connection "yes" and is_encrypted "0".
	require.True(t, sess.SecureConnection())
	require.False(t, sess.EncryptedCredentials())

	sess.Merge(map[string]any{"is_encrypted": 1})
	require.True(t, sess.EncryptedCredentials())
}
