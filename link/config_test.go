package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestNewConfig(t *testing.T) {
	require := require.New(t)

	t.Run("Defaults", func(t *testing.T) {
		cfg, err := NewConfig("/dev/ttyUSB0")
		require.NoError(err)
		require.Equal("/dev/ttyUSB0", cfg.Path())
		require.Equal(DefaultBaudRate, cfg.BaudRate())
		require.Equal(DefaultDataBits, cfg.DataBits())
		require.Equal(ParityNone, cfg.Parity())
		require.Equal(OneStopBit, cfg.StopBits())
		require.Equal(DefaultReadTimeout, cfg.ReadTimeout())
		require.Equal(DefaultFlushSettle, cfg.FlushSettle())
		require.NotNil(cfg.GetLogger())
		require.Equal("/dev/ttyUSB0 9600 8N1", cfg.String())
	})

	t.Run("Valid Configuration", func(t *testing.T) {
		cfg, err := NewConfig("/dev/ttyS1",
			WithBaudRate(57600),
			WithDataBits(7),
			WithParity(ParityEven),
			WithStopBits(TwoStopBits),
			WithReadTimeout(500*time.Millisecond),
			WithFlushSettle(0),
		)
		require.NoError(err)
		require.Equal(57600, cfg.BaudRate())
		require.Equal(7, cfg.DataBits())
		require.Equal(ParityEven, cfg.Parity())
		require.Equal(TwoStopBits, cfg.StopBits())
		require.Equal(500*time.Millisecond, cfg.ReadTimeout())
		require.Zero(cfg.FlushSettle())
		require.Equal("/dev/ttyS1 57600 7E2", cfg.String())
	})

	t.Run("Empty Path", func(t *testing.T) {
		_, err := NewConfig("  ")
		require.EqualError(err, "link: port path must not be empty")
	})

	t.Run("Invalid Baud Rate", func(t *testing.T) {
		_, err := NewConfig("/dev/ttyS0", WithBaudRate(0))
		require.EqualError(err, "link: baud rate 0 must be positive")
	})

	t.Run("Invalid Data Bits", func(t *testing.T) {
		_, err := NewConfig("/dev/ttyS0", WithDataBits(4))
		require.EqualError(err, "link: data bits 4 out of range [5, 8]")

		_, err = NewConfig("/dev/ttyS0", WithDataBits(9))
		require.Error(err)
	})

	t.Run("Invalid Read Timeout", func(t *testing.T) {
		_, err := NewConfig("/dev/ttyS0", WithReadTimeout(0))
		require.Error(err)

		_, err = NewConfig("/dev/ttyS0", WithReadTimeout(61*time.Second))
		require.Error(err)
	})

	t.Run("Invalid Flush Settle", func(t *testing.T) {
		_, err := NewConfig("/dev/ttyS0", WithFlushSettle(-time.Millisecond))
		require.Error(err)

		_, err = NewConfig("/dev/ttyS0", WithFlushSettle(6*time.Second))
		require.Error(err)
	})

	t.Run("Invalid Parity And Stop Bits", func(t *testing.T) {
		_, err := NewConfig("/dev/ttyS0", WithParity(Parity(9)))
		require.Error(err)

		_, err = NewConfig("/dev/ttyS0", WithStopBits(StopBits(-1)))
		require.Error(err)
	})

	t.Run("Nil Opener And Logger", func(t *testing.T) {
		_, err := NewConfig("/dev/ttyS0", WithOpener(nil))
		require.EqualError(err, "link: opener must not be nil")

		_, err = NewConfig("/dev/ttyS0", WithLogger(nil))
		require.EqualError(err, "link: logger must not be nil")
	})
}

func TestConfigMode(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		parity   Parity
		stopBits StopBits
		want     serial.Mode
	}{
		{ParityNone, OneStopBit, serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}},
		{ParityOdd, OnePointFiveStopBits, serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.OddParity, StopBits: serial.OnePointFiveStopBits}},
		{ParityEven, TwoStopBits, serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.EvenParity, StopBits: serial.TwoStopBits}},
		{ParityMark, OneStopBit, serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.MarkParity, StopBits: serial.OneStopBit}},
		{ParitySpace, OneStopBit, serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.SpaceParity, StopBits: serial.OneStopBit}},
	}

	for _, tt := range tests {
		cfg, err := NewConfig("/dev/ttyS0", WithParity(tt.parity), WithStopBits(tt.stopBits))
		require.NoError(err)
		require.Equal(tt.want, *cfg.Mode(), "parity %s stop bits %s", tt.parity, tt.stopBits)
	}
}

func TestParseParity(t *testing.T) {
	require := require.New(t)

	for in, want := range map[string]Parity{
		"":     ParityNone,
		"n":    ParityNone,
		"odd":  ParityOdd,
		"E":    ParityEven,
		"EVEN": ParityEven,
		"mark": ParityMark,
		" s ":  ParitySpace,
	} {
		got, err := ParseParity(in)
		require.NoError(err, in)
		require.Equal(want, got, in)
	}

	_, err := ParseParity("X")
	require.EqualError(err, `link: unsupported parity "X"`)
}

func TestParseStopBits(t *testing.T) {
	require := require.New(t)

	for in, want := range map[string]StopBits{"": OneStopBit, "1": OneStopBit, "1.5": OnePointFiveStopBits, "2": TwoStopBits} {
		got, err := ParseStopBits(in)
		require.NoError(err, in)
		require.Equal(want, got, in)
	}

	_, err := ParseStopBits("3")
	require.Error(err)
}

func TestConfigSameLine(t *testing.T) {
	require := require.New(t)

	a, err := NewConfig("/dev/ttyS0", WithBaudRate(9600))
	require.NoError(err)
	b, err := NewConfig("/dev/ttyS0", WithBaudRate(9600), WithReadTimeout(2*time.Second))
	require.NoError(err)
	c, err := NewConfig("/dev/ttyS0", WithBaudRate(57600))
	require.NoError(err)

	require.True(a.SameLine(b))
	require.False(a.SameLine(c))
	require.False(a.SameLine(nil))
}
