package obs

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	loggerOnce sync.Once
	logger     *logrus.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *logrus.Logger {
	loggerOnce.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stdout)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
			},
		})
	})
	return logger
}

// SetLevel parses a textual level ("debug", "info", ...). Unknown values keep info.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger().SetLevel(lvl)
}

var (
	accessOnce sync.Once
	access     *logrus.Logger
)

// AccessLogger is the request log sink. It shares the formatter of Logger but
// may write elsewhere (see SetAccessOutput).
func AccessLogger() *logrus.Logger {
	accessOnce.Do(func() {
		access = logrus.New()
		access.SetOutput(os.Stdout)
		access.SetFormatter(Logger().Formatter)
	})
	return access
}

// SetAccessOutput redirects request logs, e.g. to an append-only file.
func SetAccessOutput(w io.Writer) {
	AccessLogger().SetOutput(w)
}

// LogRequest emits a structured JSON log line with common HTTP fields.
func LogRequest(entry map[string]any) {
	AccessLogger().WithFields(logrus.Fields(entry)).Info("request_complete")
}
