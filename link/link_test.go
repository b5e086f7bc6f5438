package link_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/internal/fakeport"
	"github.com/arloliu/go-instrument/link"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func newTestLink(t *testing.T, port *fakeport.Port, opts ...link.Option) *link.Link {
	t.Helper()

	opts = append([]link.Option{
		link.WithOpener(port.Opener()),
		link.WithFlushSettle(0),
		link.WithReadTimeout(10 * time.Millisecond),
	}, opts...)

	cfg, err := link.NewConfig("/dev/ttyFAKE0", opts...)
	require.NoError(t, err)

	l := link.New(cfg)
	t.Cleanup(func() { _ = l.Close() })

	return l
}

func TestLink_LazyOpen(t *testing.T) {
	require := require.New(t)

	port := fakeport.New(nil)
	l := newTestLink(t, port, link.WithBaudRate(57600), link.WithParity(link.ParityEven))

	require.False(l.IsOpen())
	require.Equal(0, port.Opens())

	for range 3 {
		err := l.Exclusive(context.Background(), func(p link.Port) error {
			require.Same(port, p)
			return nil
		})
		require.NoError(err)
	}

	require.True(l.IsOpen())
	require.Equal(1, port.Opens())
	require.Equal(uint64(1), l.GetMetrics().OpenCount.Load())
	require.Equal(&serial.Mode{BaudRate: 57600, DataBits: 8, Parity: serial.EvenParity, StopBits: serial.OneStopBit}, port.Mode())
}

func TestLink_OpenFailure(t *testing.T) {
	require := require.New(t)

	port := fakeport.New(nil)
	port.FailNextOpen(fakeport.ErrInjected)
	l := newTestLink(t, port)

	called := false
	err := l.Exclusive(context.Background(), func(link.Port) error {
		called = true
		return nil
	})
	require.ErrorIs(err, device.ErrConnection)
	require.ErrorIs(err, fakeport.ErrInjected)
	require.False(called)
	require.Equal(device.ConnectionFailure, device.Classify(err))
	require.Equal(uint64(1), l.GetMetrics().OpenErrCount.Load())

	// the next attempt opens the port again
	err = l.Exclusive(context.Background(), func(link.Port) error { return nil })
	require.NoError(err)
	require.True(l.IsOpen())
}

func TestLink_ReopenAfterClosedPort(t *testing.T) {
	require := require.New(t)

	port := fakeport.New(nil)
	l := newTestLink(t, port)

	require.NoError(l.Exclusive(context.Background(), func(link.Port) error { return nil }))
	port.SimulateUnplug()

	err := l.Exclusive(context.Background(), func(p link.Port) error {
		if _, err := p.Write([]byte("X\r")); err != nil {
			return l.Fail(err)
		}

		return nil
	})
	require.ErrorIs(err, device.ErrTransport)
	require.Equal(device.TransportFailure, device.Classify(err))
	require.False(l.IsOpen())

	err = l.Exclusive(context.Background(), func(p link.Port) error {
		_, err := p.Write([]byte("Y\r"))
		return err
	})
	require.NoError(err)
	require.Equal(2, port.Opens())
	require.Equal(uint64(1), l.GetMetrics().ReopenCount.Load())
	require.Equal([]string{"Y"}, port.Commands())
}

func TestLink_FailKeepsOpenPortOnOtherErrors(t *testing.T) {
	require := require.New(t)

	port := fakeport.New(nil)
	l := newTestLink(t, port)

	err := l.Exclusive(context.Background(), func(link.Port) error {
		return l.Fail(fakeport.ErrInjected)
	})
	require.ErrorIs(err, device.ErrTransport)
	require.ErrorIs(err, fakeport.ErrInjected)
	require.True(l.IsOpen())
}

func TestLink_Flush(t *testing.T) {
	require := require.New(t)

	port := fakeport.New(nil)
	l := newTestLink(t, port)

	err := l.Exclusive(context.Background(), func(p link.Port) error {
		port.Feed([]byte("stale bytes"))
		if err := l.Flush(p); err != nil {
			return err
		}

		buf := make([]byte, 32)
		n, err := p.Read(buf)
		require.NoError(err)
		require.Zero(n)

		return nil
	})
	require.NoError(err)
	require.Equal(1, port.Resets())
	require.Equal(uint64(1), l.GetMetrics().FlushCount.Load())

	port.FailNextReset(fakeport.ErrInjected)
	err = l.Exclusive(context.Background(), func(p link.Port) error { return l.Flush(p) })
	require.ErrorIs(err, device.ErrTransport)
}

func TestLink_ExclusiveSerializes(t *testing.T) {
	require := require.New(t)

	port := fakeport.New(nil)
	l := newTestLink(t, port)

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := l.Exclusive(context.Background(), func(link.Port) error {
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				active.Add(-1)

				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	require.Equal(int32(1), maxActive.Load())
	require.Equal(int32(0), l.GetMetrics().InflightGauge.Load())
}

func TestLink_ExclusiveContextCancelled(t *testing.T) {
	require := require.New(t)

	port := fakeport.New(nil)
	l := newTestLink(t, port)

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- l.Exclusive(context.Background(), func(link.Port) error {
			close(holding)
			<-release

			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Exclusive(ctx, func(link.Port) error { return errors.New("must not run") })
	require.ErrorIs(err, context.DeadlineExceeded)
	require.Equal(device.Cancelled, device.Classify(err))

	close(release)
	require.NoError(<-done)
}

func TestLink_Close(t *testing.T) {
	require := require.New(t)

	port := fakeport.New(nil)
	l := newTestLink(t, port)

	require.NoError(l.Exclusive(context.Background(), func(link.Port) error { return nil }))
	require.NoError(l.Close())
	require.True(port.IsClosed())

	err := l.Exclusive(context.Background(), func(link.Port) error { return nil })
	require.ErrorIs(err, link.ErrLinkClosed)
	require.ErrorIs(err, device.ErrConnection)
}

func TestIsClosedError(t *testing.T) {
	require := require.New(t)

	require.False(link.IsClosedError(nil))
	require.False(link.IsClosedError(fakeport.ErrInjected))
	require.True(link.IsClosedError(os.ErrClosed))
	require.True(link.IsClosedError(io.ErrClosedPipe))
	require.True(link.IsClosedError(fmt.Errorf("read: %w", os.ErrClosed)))
}
