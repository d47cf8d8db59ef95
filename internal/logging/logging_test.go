package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pageinspect.log")

	logger, cleanup, err := Configure("debug", path)
	require.NoError(t, err)
	logger.WithField("component", "test").Debug("hello")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hello"))
	assert.True(t, strings.Contains(string(data), "component=test"))
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	_, _, err := Configure("loud", "")
	require.Error(t, err)
}

func TestConfigureDefaultsToInfo(t *testing.T) {
	logger, cleanup, err := Configure("", "")
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestOrDiscard(t *testing.T) {
	l := logrus.New()
	assert.Same(t, l, OrDiscard(l))
	assert.NotNil(t, OrDiscard(nil))
}
