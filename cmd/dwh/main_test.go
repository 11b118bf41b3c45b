package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkify/dwh/pkg/config"
)

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"provision", "etl", "validate", "teardown", "run"}, names)

	assert.NotNil(t, etlCmd.Flags().Lookup("resume"))
	assert.Nil(t, runCmd.Flags().Lookup("resume"))
	teardown := validateCmd.Flags().Lookup("teardown")
	require.NotNil(t, teardown)
	assert.Equal(t, "false", teardown.DefValue, "teardown after validation is opt-in")
}

func TestOptions(t *testing.T) {
	o := options{
		driver:          "pgx",
		sslMode:         "verify-full",
		pollInterval:    time.Second,
		pollMaxInterval: 5 * time.Second,
		pollTimeout:     time.Minute,
		pollAttempts:    7,
		transactional:   true,
		spotCheck:       3,
		copyOptions:     []string{"COMPUPDATE OFF"},
	}

	b := o.pollBackoff()
	assert.Equal(t, time.Second, b.InitialInterval)
	assert.Equal(t, 5*time.Second, b.MaxInterval)
	assert.Equal(t, time.Minute, b.MaxElapsed)
	assert.Equal(t, 7, b.MaxAttempts)
	assert.NotZero(t, b.Multiplier)

	p := o.pipelineOptions()
	assert.Equal(t, "pgx", p.Connect.Driver)
	assert.Equal(t, "verify-full", p.Connect.SSLMode)
	assert.True(t, p.Transactional)
	assert.Equal(t, 3, p.SpotCheck)
	assert.Equal(t, []string{"COMPUPDATE OFF"}, p.CopyOptions)
}

func TestSaveOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dwh.cfg")
	require.NoError(t, os.WriteFile(path, []byte("[IAM_ROLE]\nDWH_IAM_ROLE_NAME = dwhRole\nARN =\n\n[CLUSTER]\nHOST =\n"), 0600))
	opts.configPath = path
	logger, _ := test.NewNullLogger()

	before, err := config.Load(path)
	require.NoError(t, err)

	require.NoError(t, saveOutputs(logger, before, before))
	unchanged, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(unchanged), "arn:aws")

	after := before.WithRoleARN("arn:aws:iam::123456789012:role/dwhRole").WithClusterHost("dwhcluster.example.com")
	require.NoError(t, saveOutputs(logger, before, after))

	reloaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123456789012:role/dwhRole", reloaded.IAMRole.ARN)
	assert.Equal(t, "dwhcluster.example.com", reloaded.Cluster.Host)
	assert.Equal(t, "dwhRole", reloaded.IAMRole.Name)
}
