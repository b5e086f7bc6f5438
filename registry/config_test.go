package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log_level: debug
lasers:
  - name: laser
    link:
      path: /dev/ttyLaser
    settle: 300ms
    mode_attempts: 5
axes:
  - id: 1
    name: north
    link:
      path: /dev/ttyVXM
    completion_timeout: 30s
  - id: 2
    name: south
    link:
      path: /dev/ttyVXM
outlets:
  - id: 1
    name: vxm_power
    link: {path: /dev/ttyRPC, baud_rate: 9600}
    max_resync: 0
  - id: 2
    name: laser_power
    link: {path: /dev/ttyRPC}
  - id: 3
    name: radiometer_power
    link: {path: /dev/ttyRPC}
    prompt_timeout: 2s
telemetry:
  link:
    path: /dev/ttyFPGA
    read_timeout: 250ms
  attempts: 4
sequences:
  power_on:
    - {device: vxm_power, action: "on"}
    - {device: laser_power, action: "on", delay: 1s}
    - {device: radiometer_power, action: "on", delay: 1s}
  shutdown:
    - {device: laser, action: standby}
    - {device: laser, action: stop}
`

func TestParseConfig(t *testing.T) {
	require := require.New(t)

	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(err)

	require.Equal("debug", cfg.LogLevel)
	require.Len(cfg.Lasers, 1)
	require.Equal(300*time.Millisecond, cfg.Lasers[0].Settle)
	require.Equal(5, cfg.Lasers[0].ModeAttempts)

	require.Len(cfg.Axes, 2)
	require.Equal(30*time.Second, cfg.Axes[0].CompletionTimeout)
	require.Equal("/dev/ttyVXM", cfg.Axes[1].Link.Path)

	require.Len(cfg.Outlets, 3)
	require.NotNil(cfg.Outlets[0].MaxResync)
	require.Zero(*cfg.Outlets[0].MaxResync)
	require.Nil(cfg.Outlets[1].MaxResync)
	require.Equal(9600, cfg.Outlets[0].Link.BaudRate)

	require.NotNil(cfg.Telemetry)
	require.Equal(250*time.Millisecond, cfg.Telemetry.Link.ReadTimeout)
	require.Equal(4, cfg.Telemetry.Attempts)

	require.Equal([]Step{
		{Device: "vxm_power", Action: ActionOn},
		{Device: "laser_power", Action: ActionOn, Delay: time.Second},
		{Device: "radiometer_power", Action: ActionOn, Delay: time.Second},
	}, cfg.Sequences["power_on"])
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "lasers:\n  - name: laser\n    colour: red\n"},
		{"bad duration", "lasers:\n  - name: laser\n    settle: soon\n"},
		{"bad level", "log_level: loud\n"},
		{"not a mapping", "- just\n- a list\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Lasers)
	assert.Nil(t, cfg.Telemetry)
}

func TestParseConfig_EnvLogLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)

	t.Setenv(EnvLogLevel, "nonsense")
	_, err = ParseConfig([]byte(sampleConfig))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "instrument.yaml")
	require.NoError(os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(err)
	require.Len(cfg.Outlets, 3)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(err)
}

func TestFromConfig(t *testing.T) {
	require := require.New(t)

	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(err)

	b := newBench()
	r, err := FromConfig(cfg, b.options()...)
	require.NoError(err)
	t.Cleanup(func() { _ = r.Close() })

	require.Equal([]string{
		"laser", "north", "south", "vxm_power", "laser_power", "radiometer_power", TelemetryName,
	}, r.Names())

	l, ok := r.Link("/dev/ttyFPGA")
	require.True(ok)
	require.Equal(5*time.Millisecond, l.Config().ReadTimeout())

	seq, err := r.Sequence("power_on")
	require.NoError(err)
	require.Len(seq.Steps(), 3)

	seq, err = r.Sequence("shutdown")
	require.NoError(err)
	require.Equal(ActionStop, seq.Steps()[1].Action)
}

func TestFromConfig_ErrorClosesRegistry(t *testing.T) {
	cfg := &Config{
		Lasers: []LaserConfig{{Name: "laser", Link: LinkParams{Path: laserPath}}},
		Axes:   []AxisConfig{{ID: 1, Name: "laser", Link: LinkParams{Path: motionPath}}},
	}

	b := newBench()
	_, err := FromConfig(cfg, b.options()...)
	assert.ErrorIs(t, err, ErrDuplicateName)

	cfg = &Config{
		Sequences: map[string][]Step{"bad": {{Device: "missing", Action: ActionOn}}},
	}
	_, err = FromConfig(cfg, b.options()...)
	assert.ErrorIs(t, err, ErrUnknownDevice)

	_, err = FromConfig(&Config{LogLevel: "loud"})
	assert.Error(t, err)
}
