package errorlog

import (
	"go.uber.org/zap"

	"github.com/karousn/sftpbridge/internal/sftp"
	"github.com/karousn/sftpbridge/pkg/logger"
)

// ZapLogger reports transfer failures to a zap logger.
type ZapLogger struct {
	log *zap.Logger
}

// NewZapLogger wraps the given logger. A nil logger falls back to the
// process-wide one.
func NewZapLogger(log *zap.Logger) *ZapLogger {
	if log == nil {
		log = logger.WithModule("errorlog")
	}
	return &ZapLogger{log: log}
}

func (z *ZapLogger) LogError(method, message, trace string) {
	z.log.Warn("transfer failure",
		zap.String("method", method),
		zap.String("trace", trace),
		zap.String("message", message))
}

type fanout []sftp.ErrorLogger

func (f fanout) LogError(method, message, trace string) {
	for _, receiver := range f {
		receiver.LogError(method, message, trace)
	}
}

// Fanout forwards each report to every non-nil receiver in order.
func Fanout(receivers ...sftp.ErrorLogger) sftp.ErrorLogger {
	out := make(fanout, 0, len(receivers))
	for _, receiver := range receivers {
		if receiver != nil {
			out = append(out, receiver)
		}
	}
	return out
}

var _ sftp.ErrorLogger = (*ZapLogger)(nil)
var _ sftp.ErrorLogger = fanout(nil)
