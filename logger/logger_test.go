package logger

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	var buf bytes.Buffer
	require.NoError(t, Setup("warn", "json", false, &buf))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	_, ok := log.StandardLogger().Formatter.(*log.JSONFormatter)
	assert.True(t, ok)

	log.Warn("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	require.NoError(t, Setup("error", "text", true, &buf))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func TestSetupInvalid(t *testing.T) {
	err := Setup("loud", "text", false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "loud"`)
	assert.Implements(t, (*stackTracer)(nil), err)

	err = Setup("info", "xml", false, nil)
	require.Error(t, err)
	assert.Equal(t, `invalid log format "xml"`, err.Error())
	assert.Implements(t, (*stackTracer)(nil), err)
}
