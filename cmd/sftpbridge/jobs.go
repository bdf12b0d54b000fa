package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/karousn/sftpbridge/internal/app"
	sshdriver "github.com/karousn/sftpbridge/internal/drivers/ssh"
	"github.com/karousn/sftpbridge/internal/errorlog"
	"github.com/karousn/sftpbridge/internal/sftp"
	"github.com/karousn/sftpbridge/internal/vault"
	"github.com/karousn/sftpbridge/pkg/logger"
)

// session is the surface a job drives: the core operations plus the
// extended ones.
type session interface {
	sftp.Client
	sftp.Extended
}

// jobRunner executes the configured transfer jobs. Each job gets a fresh
// transport and session; failures in one job do not stop the others.
type jobRunner struct {
	cfg          *app.Config
	store        *errorlog.Store
	vault        *vault.Crypto
	newTransport func() sftp.Transport
	log          *zap.Logger
}

func newJobRunner(cfg *app.Config, store *errorlog.Store, vaultCrypto *vault.Crypto) *jobRunner {
	return &jobRunner{
		cfg:          cfg,
		store:        store,
		vault:        vaultCrypto,
		newTransport: transportFactory(cfg.Transport),
		log:          logger.WithModule("jobs"),
	}
}

func transportFactory(cfg app.TransportConfig) func() sftp.Transport {
	return func() sftp.Transport {
		var opts []sshdriver.Option
		if cfg.DialTimeout > 0 {
			opts = append(opts, sshdriver.WithDialTimeout(cfg.DialTimeout))
		}
		if cfg.DefaultPort > 0 {
			opts = append(opts, sshdriver.WithDefaultPort(cfg.DefaultPort))
		}
		if cfg.MaxPacket > 0 {
			opts = append(opts, sshdriver.WithMaxPacket(cfg.MaxPacket))
		}
		if strings.TrimSpace(cfg.KnownHostsFile) != "" {
			opts = append(opts, sshdriver.WithKnownHosts(cfg.KnownHostsFile))
		}
		return sshdriver.NewClient(opts...)
	}
}

// RunAll executes every configured job in order. Errors are aggregated;
// a failing job does not prevent the remaining ones from running.
func (r *jobRunner) RunAll(ctx context.Context) error {
	var errs error

	for _, job := range r.cfg.Jobs {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}

		start := time.Now()
		if err := r.runJob(job); err != nil {
			r.log.Warn("job failed",
				zap.String("job", job.Name),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("job %q: %w", job.Name, err))
			continue
		}
		r.log.Info("job finished",
			zap.String("job", job.Name),
			zap.Int("steps", len(job.Steps)),
			zap.Duration("elapsed", time.Since(start)))
	}

	return errs
}

func (r *jobRunner) runJob(job app.JobConfig) error {
	creds := r.buildCredentials(job.Account)

	if r.vault != nil {
		decrypted, err := r.vault.DecryptPassword(creds)
		if err != nil {
			return err
		}
		creds = decrypted
	}

	transport := r.newTransport()
	defer func() {
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
	}()

	sink := errorlog.Fanout(
		errorlog.NewZapLogger(r.log.With(zap.String("job", job.Name))),
		r.store.WithFields(map[string]any{
			"job":  job.Name,
			"host": job.Account.Host,
		}),
	)

	var opts []sftp.Option
	if r.cfg.Agent.FailOnInvalidCredentials {
		opts = append(opts, sftp.FailOnInvalidCredentials())
	}

	sess, err := sftp.New(transport, sink, opts...)
	if err != nil {
		return err
	}

	if err := sess.Connect(creds); err != nil {
		return err
	}

	for i, step := range job.Steps {
		if err := r.runStep(sess, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
	}

	return nil
}

// buildCredentials synthesizes the full ten-key credential set from the
// account configuration. The original system read these rows from its
// database; the agent mints the record fields itself.
func (r *jobRunner) buildCredentials(account app.AccountConfig) sftp.CredentialSet {
	return sftp.CredentialSet{
		"id":                   uuid.NewString(),
		"uuid":                 uuid.NewString(),
		"date":                 time.Now().UTC().Format(time.RFC3339),
		"is_encrypted":         flagValue(account.Encrypted),
		"account_host":         account.Host,
		"account_options":      account.Options,
		"account_username":     account.Username,
		"account_password":     account.Password,
		"default_directory":    account.DefaultDirectory,
		"is_secure_connection": flagValue(account.Secure),
	}
}

func flagValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (r *jobRunner) runStep(sess session, step app.StepConfig) error {
	switch step.Action {
	case "upload":
		return sess.UploadFile(step.Remote, step.Local)
	case "upload_string":
		return sess.UploadString(step.Remote, step.Content)
	case "download":
		return sess.DownloadFile(step.Remote, step.Local)
	case "download_string":
		content, err := sess.DownloadString(step.Remote)
		if err != nil {
			return err
		}
		if strings.TrimSpace(step.Local) != "" {
			return os.WriteFile(step.Local, []byte(content), 0o600)
		}
		r.log.Info("downloaded string",
			zap.String("remote", step.Remote),
			zap.Int("bytes", len(content)))
		return nil
	case "mkdir":
		return sess.CreateDirectory(step.Remote)
	case "remove":
		return sess.DeleteFile(step.Remote)
	case "rmdir":
		return sess.DeleteDirectory(step.Remote, step.Recursive)
	case "touch":
		return sess.Touch(step.Remote)
	case "chmod":
		mode, err := strconv.ParseUint(strings.TrimSpace(step.Mode), 8, 32)
		if err != nil {
			return fmt.Errorf("parse mode %q: %w", step.Mode, err)
		}
		return sess.Chmod(os.FileMode(mode), step.Remote, step.Recursive)
	case "rename":
		return sess.RenameFile(step.Remote, step.Target)
	case "list":
		var (
			names []string
			err   error
		)
		if strings.TrimSpace(step.Remote) == "" {
			names, err = sess.List()
		} else {
			names, err = sess.ListDir(step.Remote)
		}
		if err != nil {
			return err
		}
		r.log.Info("listing",
			zap.String("remote", step.Remote),
			zap.Strings("entries", names))
		return nil
	default:
		return fmt.Errorf("unknown step action %q", step.Action)
	}
}
