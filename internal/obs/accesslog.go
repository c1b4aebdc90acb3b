package obs

import (
	"context"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const accessLogMaxSizeMB = 10

// AccessLogFile is an append-only request log rotated at 10 MB and at local
// midnight.
type AccessLogFile struct {
	*lumberjack.Logger
}

// OpenAccessLog points the access logger at path and returns the file so the
// caller can run its daily rotation and close it on shutdown.
func OpenAccessLog(path string) *AccessLogFile {
	f := &AccessLogFile{Logger: &lumberjack.Logger{
		Filename:  path,
		MaxSize:   accessLogMaxSizeMB,
		LocalTime: true,
	}}
	SetAccessOutput(f)
	return f
}

// RotateDaily rotates the file at every local midnight until ctx is done.
func (f *AccessLogFile) RotateDaily(ctx context.Context) {
	for {
		timer := time.NewTimer(untilMidnight(time.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := f.Rotate(); err != nil {
				Logger().WithError(err).Warn("access log rotation failed")
			}
		}
	}
}

func untilMidnight(now time.Time) time.Duration {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Sub(now)
}
