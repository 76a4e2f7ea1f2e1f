package crypto

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// opLog is a logrus entry scoped to one crypto operation.
type opLog struct {
	op    string
	entry *logrus.Entry
}

func newOpLog(op string, fields logrus.Fields) *opLog {
	e := logrus.WithFields(logrus.Fields{
		"function": op,
		"package":  "crypto",
	})
	if len(fields) > 0 {
		e = e.WithFields(fields)
	}
	return &opLog{op: op, entry: e}
}

// begin logs the start of the operation at debug level and returns a func
// that logs its end together with the elapsed time. Key generation can take
// seconds at 4096 bits.
func (l *opLog) begin() func() {
	start := time.Now()
	l.entry.Debug(l.op + " started")
	return func() {
		l.entry.WithField("elapsed", time.Since(start).String()).Debug(l.op + " finished")
	}
}

// failure returns the entry annotated with err and the stage that failed.
func (l *opLog) failure(err error, stage string) *logrus.Entry {
	return l.entry.WithFields(logrus.Fields{
		"error": err.Error(),
		"stage": stage,
	})
}

// KeyFingerprint returns log fields identifying key material without
// revealing it: the first 4 bytes of its SHA-256 digest and its size.
func KeyFingerprint(data []byte, name string) logrus.Fields {
	fp := "nil"
	if len(data) > 0 {
		sum := sha256.Sum256(data)
		fp = fmt.Sprintf("%x", sum[:4])
	}
	return logrus.Fields{
		name + "_fingerprint": fp,
		name + "_size":        len(data),
	}
}
