package telemetry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/internal/fakeport"
	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFrame = "BAAB" + "0000\r0001\r0002\r0003\r8000\r0005" + "FEEF"

var sampleDecoded = Frame{
	Seconds:    1,
	Counter:    2<<16 + 3*10,
	PPSDelta:   (0x8000 - 32767) * 10,
	PulseCount: 5,
}

func TestMain(m *testing.M) {
	level, ok := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if !ok {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)

	os.Exit(m.Run())
}

func newTestReader(t *testing.T, opts ...Option) (*Reader, *fakeport.Port) {
	t.Helper()

	port := fakeport.New(nil)
	linkOpts := append(LinkOptions(),
		link.WithOpener(port.Opener()),
		link.WithFlushSettle(0),
		link.WithReadTimeout(5*time.Millisecond),
	)
	cfg, err := link.NewConfig("/dev/ttyFPGA", linkOpts...)
	require.NoError(t, err)

	l := link.New(cfg)
	t.Cleanup(func() { _ = l.Close() })

	opts = append([]Option{WithRetryDelay(time.Millisecond)}, opts...)
	r, err := New("fpga", l, opts...)
	require.NoError(t, err)

	return r, port
}

func TestReader_ReadEvent(t *testing.T) {
	require := require.New(t)

	r, port := newTestReader(t)
	port.Feed([]byte(sampleFrame))

	f, err := r.ReadEvent(context.Background())
	require.NoError(err)
	require.Equal(sampleDecoded, f)
	require.Equal(uint64(131102), f.Counter)
	require.Equal(int32(10), f.PPSDelta)

	last, at, ok := r.Last()
	require.True(ok)
	require.Equal(sampleDecoded, last)
	require.False(at.IsZero())
	require.Equal(device.KindTelemetry, r.Kind())
	require.Equal("/dev/ttyFPGA", r.Port())
}

func TestReader_FrameSplitAcrossReads(t *testing.T) {
	require := require.New(t)

	r, port := newTestReader(t, WithRetryDelay(5*time.Millisecond))
	port.Feed([]byte("noise" + sampleFrame[:12]))
	port.FeedAfter(8*time.Millisecond, []byte(sampleFrame[12:]))

	f, err := r.ReadEvent(context.Background())
	require.NoError(err)
	require.Equal(sampleDecoded, f)
}

func TestReader_KeepsInputAfterFooter(t *testing.T) {
	require := require.New(t)

	r, port := newTestReader(t)
	second := "BAAB" + "0001\r0000\r0000\r0001\r7FFF\r000A" + "FEEF"
	port.Feed([]byte(sampleFrame + second + "BA"))

	f, err := r.ReadEvent(context.Background())
	require.NoError(err)
	require.Equal(sampleDecoded, f)

	f, err = r.ReadEvent(context.Background())
	require.NoError(err)
	require.Equal(Frame{Seconds: 1 << 16, Counter: 10, PPSDelta: 0, PulseCount: 10}, f)

	port.Feed([]byte(sampleFrame[2:]))
	f, err = r.ReadEvent(context.Background())
	require.NoError(err)
	require.Equal(sampleDecoded, f)
}

func TestReader_MissingFooter(t *testing.T) {
	require := require.New(t)

	r, port := newTestReader(t, WithAttempts(3))
	port.Feed([]byte("BAAB0000\r0001\r0002\r0003\r8000\r0005"))

	f, err := r.ReadEvent(context.Background())
	require.ErrorIs(err, ErrNoFrame)
	require.ErrorIs(err, device.ErrTimeout)
	require.Equal(Frame{}, f)
	require.EqualValues(1, r.link.GetMetrics().TimeoutCount.Load())

	_, _, ok := r.Last()
	require.False(ok)

	// the partial frame completes on the next call
	port.Feed([]byte("FEEF"))
	f, err = r.ReadEvent(context.Background())
	require.NoError(err)
	require.Equal(sampleDecoded, f)
}

func TestReader_NothingReceived(t *testing.T) {
	r, _ := newTestReader(t, WithAttempts(2))

	f, err := r.ReadEvent(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)
	assert.Equal(t, Frame{}, f)
}

func TestReader_MalformedFrameIsConsumed(t *testing.T) {
	require := require.New(t)

	r, port := newTestReader(t)
	port.Feed([]byte("BAAB0000\r0001\r0002FEEF" + sampleFrame))

	f, err := r.ReadEvent(context.Background())
	require.ErrorIs(err, ErrMalformedFrame)
	require.ErrorIs(err, device.ErrProtocol)
	require.Equal(Frame{}, f)

	f, err = r.ReadEvent(context.Background())
	require.NoError(err)
	require.Equal(sampleDecoded, f)
}

func TestReader_RealignsAfterTruncatedFrame(t *testing.T) {
	require := require.New(t)

	r, port := newTestReader(t)
	port.Feed([]byte("BAAB0000\r00" + sampleFrame + "xxBAAB00" + sampleFrame))

	f, err := r.ReadEvent(context.Background())
	require.NoError(err)
	require.Equal(sampleDecoded, f)

	f, err = r.ReadEvent(context.Background())
	require.NoError(err)
	require.Equal(sampleDecoded, f)
}

func TestReader_FieldLooksLikeHeader(t *testing.T) {
	require := require.New(t)

	r, port := newTestReader(t)
	port.Feed([]byte("BAAB" + "0000\rBAAB\r0002\r0003\r8000\r0005" + "FEEF"))

	f, err := r.ReadEvent(context.Background())
	require.NoError(err)
	require.Equal(uint32(0xBAAB), f.Seconds)
	require.Equal(sampleDecoded.Counter, f.Counter)
}

func TestReader_MaxWait(t *testing.T) {
	require := require.New(t)

	cfg, err := link.NewConfig("/dev/ttyFPGA", LinkOptions()...)
	require.NoError(err)
	require.Equal(DefaultReadTimeout, cfg.ReadTimeout())

	l := link.New(cfg)
	t.Cleanup(func() { _ = l.Close() })

	r, err := New("fpga", l)
	require.NoError(err)
	require.Equal(10*DefaultReadTimeout+9*DefaultRetryDelay, r.MaxWait())
	require.LessOrEqual(r.MaxWait(), 2500*time.Millisecond)

	r, err = New("fpga", l, WithAttempts(1), WithRetryDelay(time.Second))
	require.NoError(err)
	require.Equal(DefaultReadTimeout, r.MaxWait())
}

func TestReader_CancelBetweenAttempts(t *testing.T) {
	r, _ := newTestReader(t, WithRetryDelay(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := r.ReadEvent(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestReader_CustomMarkers(t *testing.T) {
	r, port := newTestReader(t, WithMarkers("<<", ">>"))
	port.Feed([]byte("<<0000\r0002\r0000\r0000\r7FFF\r0000>>"))

	f, err := r.ReadEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Frame{Seconds: 2}, f)
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Frame
		wantErr bool
	}{
		{name: "sample", payload: "0000\r0001\r0002\r0003\r8000\r0005", want: sampleDecoded},
		{name: "surrounding whitespace", payload: "\r0000\r0001\r0002\r0003\r8000\r0005\r\n", want: sampleDecoded},
		{name: "extra fields", payload: "0000\r0001\r0002\r0003\r8000\r0005\r1234", want: sampleDecoded},
		{name: "lower case", payload: "ffff\rffff\r0000\r0000\r0000\r0000", want: Frame{Seconds: 0xFFFFFFFF, PPSDelta: -327670}},
		{name: "five fields", payload: "0000\r0001\r0002\r0003\r8000", wantErr: true},
		{name: "not hex", payload: "0000\r0001\rzz02\r0003\r8000\r0005", wantErr: true},
		{name: "field too wide", payload: "10000\r0001\r0002\r0003\r8000\r0005", wantErr: true},
		{name: "empty", payload: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrame(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedFrame)
				assert.Equal(t, Frame{}, got)

				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero attempts", WithAttempts(0)},
		{"too many attempts", WithAttempts(MaxAttempts + 1)},
		{"negative delay", WithRetryDelay(-time.Millisecond)},
		{"huge delay", WithRetryDelay(MaxRetryDelay + time.Second)},
		{"empty header", WithMarkers("", "FEEF")},
		{"same markers", WithMarkers("AA", "AA")},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.opt.apply(defaultOptions()))
		})
	}
}
