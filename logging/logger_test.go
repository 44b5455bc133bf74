package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesToFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir, "report.log")
	require.NoError(t, err)

	l.WithField("request_id", "01ABC").Info("export started")
	l.Warn("plain line")
	l.Close()

	data, err := os.ReadFile(filepath.Join(dir, "report.log"))
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "export started")
	assert.Contains(t, out, "request_id=01ABC")
	assert.Contains(t, out, "plain line")
}

func TestSetFormatJSON(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir, "summary.log")
	require.NoError(t, err)
	l.SetFormat("json")
	l.WithFields(logrus.Fields{"task": "daily_summary"}).Warn("done")
	l.Close()

	data, err := os.ReadFile(filepath.Join(dir, "summary.log"))
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "daily_summary", entry["task"])
	assert.Equal(t, "warning", entry["level"])
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Info("nothing")
	l.Close()
}
