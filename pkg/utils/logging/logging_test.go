package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/utils/logging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfo(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	logger, err := logging.New(&out, logging.Options{})
	require.NoError(t, err)

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	logger.Debug("hidden")
	logger.WithField("node", "sn").Info("visible")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "node=sn")
}

func TestNewJSONFormat(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	logger, err := logging.New(&out, logging.Options{Level: "DEBUG", Format: v1alpha1.LogFormatJSON})
	require.NoError(t, err)

	logger.WithField("stage", "install").Debug("staging")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "install", entry["stage"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := logging.New(&bytes.Buffer{}, logging.Options{Level: "loud"})

	require.ErrorIs(t, err, logging.ErrInvalidLevel)
}
