package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeEmptyPayloadYieldsDefaults(t *testing.T) {
	opts, err := Decode(nil)
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, opts.LivenessTimeout())
	require.Equal(t, 10*time.Second, opts.ShutdownCeiling())
	require.NotNil(t, opts.Servers)
	require.Empty(t, opts.Servers)
}

func TestDecodeParsesServersAndTimeouts(t *testing.T) {
	raw := json.RawMessage(`{
		"dataDir": "/var/lib/tsls",
		"servers": {"lua": {"command": "lua-language-server"}},
		"livenessTimeoutMs": 45000,
		"shutdownCeilingMs": 12000
	}`)
	opts, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/tsls", opts.DataDir)
	require.Equal(t, "lua-language-server", opts.Servers["lua"].Command)
	require.Equal(t, 45*time.Second, opts.LivenessTimeout())
	require.Equal(t, 12*time.Second, opts.ShutdownCeiling())
}

func TestLivenessTimeoutClampsToBounds(t *testing.T) {
	low, err := Decode(json.RawMessage(`{"livenessTimeoutMs": 1000}`))
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, low.LivenessTimeout())

	high, err := Decode(json.RawMessage(`{"livenessTimeoutMs": 999999}`))
	require.NoError(t, err)
	require.Equal(t, 120*time.Second, high.LivenessTimeout())
}

func TestShutdownCeilingClampsToBounds(t *testing.T) {
	low, err := Decode(json.RawMessage(`{"shutdownCeilingMs": 1000}`))
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, low.ShutdownCeiling())

	high, err := Decode(json.RawMessage(`{"shutdownCeilingMs": 999999}`))
	require.NoError(t, err)
	require.Equal(t, 15*time.Second, high.ShutdownCeiling())
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode(json.RawMessage(`{not-json`))
	require.Error(t, err)
}

func TestDecodeMetricsPortDefaultsToDisabled(t *testing.T) {
	opts, err := Decode(nil)
	require.NoError(t, err)
	require.Zero(t, opts.MetricsPort)
}

func TestDecodeParsesMetricsPort(t *testing.T) {
	opts, err := Decode(json.RawMessage(`{"metricsPort": 9100}`))
	require.NoError(t, err)
	require.Equal(t, 9100, opts.MetricsPort)
}
