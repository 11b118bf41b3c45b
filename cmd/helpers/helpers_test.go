package helpers

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() (*pflag.FlagSet, *string, *time.Duration, *bool) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config := fs.String("config", "dwh.cfg", "")
	interval := fs.Duration("poll-interval", 10*time.Second, "")
	resume := fs.Bool("resume", false, "")
	return fs, config, interval, resume
}

func TestSetFlagsFromEnv(t *testing.T) {
	fs, config, interval, resume := newFlagSet()
	require.NoError(t, fs.Parse([]string{"--config", "prod.cfg"}))

	t.Setenv("DWH_CONFIG", "ignored.cfg")
	t.Setenv("DWH_POLL_INTERVAL", "30s")
	t.Setenv("DWH_RESUME", "true")

	require.NoError(t, SetFlagsFromEnv(fs, "DWH"))
	assert.Equal(t, "prod.cfg", *config, "flags set on the command line win")
	assert.Equal(t, 30*time.Second, *interval)
	assert.True(t, *resume)
}

func TestSetFlagsFromEnvInvalidValue(t *testing.T) {
	fs, _, _, _ := newFlagSet()
	require.NoError(t, fs.Parse(nil))
	t.Setenv("DWH_POLL_INTERVAL", "soon")

	err := SetFlagsFromEnv(fs, "DWH")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DWH_POLL_INTERVAL")
}

func TestMapEnvVarToFlag(t *testing.T) {
	fs, config, _, _ := newFlagSet()
	require.NoError(t, fs.Parse(nil))
	t.Setenv("SPARKIFY_CONFIG", "/etc/dwh.cfg")

	require.NoError(t, MapEnvVarToFlag(map[string]string{"SPARKIFY_CONFIG": "config"}, fs))
	assert.Equal(t, "/etc/dwh.cfg", *config)

	assert.Error(t, MapEnvVarToFlag(map[string]string{"X": "missing"}, fs))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "DWH_PUSHGATEWAY_URL", EnvName("DWH", "pushgateway-url"))
}

func TestSetupLogger(t *testing.T) {
	logger, err := SetupLogger("warn", true, log.Fields{"app": "dwh"})
	require.NoError(t, err)
	entry, ok := logger.(*log.Entry)
	require.True(t, ok)
	assert.Equal(t, log.WarnLevel, entry.Logger.GetLevel())
	assert.Equal(t, "dwh", entry.Data["app"])

	_, err = SetupLogger("loud", true, nil)
	assert.Error(t, err)
}
