package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevLevel, prevFmt := logrus.StandardLogger().Out, logrus.GetLevel(), logrus.StandardLogger().Formatter
	logrus.SetOutput(&buf)
	logrus.SetLevel(logrus.DebugLevel)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	t.Cleanup(func() {
		logrus.SetOutput(prevOut)
		logrus.SetLevel(prevLevel)
		logrus.SetFormatter(prevFmt)
	})
	return &buf
}

func TestOpLogFailure(t *testing.T) {
	buf := captureLogs(t)

	newOpLog("Op", logrus.Fields{"size": 58, "mode": "aes"}).
		failure(errors.New("boom"), "decrypt").
		Warn("failed")

	out := buf.String()
	for _, want := range []string{`"function":"Op"`, `"package":"crypto"`, `"size":58`, `"mode":"aes"`, `"error":"boom"`, `"stage":"decrypt"`, `"level":"warning"`} {
		assert.Contains(t, out, want)
	}
}

func TestOpLogBegin(t *testing.T) {
	buf := captureLogs(t)

	done := newOpLog("Gen", nil).begin()
	done()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Gen started")
	assert.Contains(t, lines[1], "Gen finished")
	assert.Contains(t, lines[1], `"elapsed"`)
}

func TestKeyFingerprint(t *testing.T) {
	f := KeyFingerprint(nil, "key")
	assert.Equal(t, "nil", f["key_fingerprint"])
	assert.Equal(t, 0, f["key_size"])

	secret := []byte("0123456789abcdef")
	f = KeyFingerprint(secret, "key")
	assert.Equal(t, "9f9f5111", f["key_fingerprint"])
	assert.Equal(t, 16, f["key_size"])
}
