package power

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/internal/fakeport"
	"github.com/arloliu/go-instrument/link"
	"github.com/arloliu/go-instrument/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	level, ok := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if !ok {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)

	os.Exit(m.Run())
}

// simRPC answers like an RPC-style power unit.
type simRPC struct {
	port *fakeport.Port

	mu         sync.Mutex
	names      map[int]string
	on         map[int]bool
	pending    string
	errorsLeft int  // answer ERROR to the next on/off commands
	stuck      bool // confirm without changing anything
	silent     bool
}

func newSimRPC() *simRPC {
	sim := &simRPC{
		names: map[int]string{1: "VXM", 2: "Laser", 3: "Radiometer", 4: "Spare outlet"},
		on:    map[int]bool{},
	}
	sim.port = fakeport.New(sim.respond, fakeport.WithTerminator("\r\n"))

	return sim
}

func (sim *simRPC) listing() string {
	ids := make([]int, 0, len(sim.names))
	for id := range sim.names {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	b.WriteString("\r\nRPC-3 Telnet Host\r\nRevision F 5.01\r\n\r\n")
	for _, id := range ids {
		state := "Off"
		if sim.on[id] {
			state = "On"
		}
		fmt.Fprintf(&b, "%d)...%-20s: %s\r\n", id, sim.names[id], state)
	}
	b.WriteString("\r\nRPC>")

	return b.String()
}

func (sim *simRPC) respond(cmd string) []byte {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	if sim.silent {
		return nil
	}

	switch {
	case cmd == "":
		return []byte(sim.listing())
	case strings.HasPrefix(cmd, "on "), strings.HasPrefix(cmd, "off "):
		if sim.errorsLeft > 0 {
			sim.errorsLeft--
			return []byte(cmd + "\r\nERROR: command failed\r\n")
		}
		sim.pending = cmd

		return []byte(cmd + "\r\nTurn outlet (Y/N)? ")
	case cmd == "y":
		fields := strings.Fields(sim.pending)
		sim.pending = ""
		if len(fields) == 2 && !sim.stuck {
			id, _ := strconv.Atoi(fields[1])
			sim.on[id] = fields[0] == "on"
		}

		return []byte("y\r\n")
	default:
		return []byte("\r\nInvalid command\r\n" + "RPC>")
	}
}

func newTestPDU(t *testing.T, sim *simRPC, opts ...Option) *PDU {
	t.Helper()

	linkOpts := append(LinkOptions(),
		link.WithOpener(sim.port.Opener()),
		link.WithFlushSettle(0),
		link.WithReadTimeout(10*time.Millisecond),
	)
	cfg, err := link.NewConfig("/dev/ttyRPC", linkOpts...)
	require.NoError(t, err)

	l := link.New(cfg)
	t.Cleanup(func() { _ = l.Close() })

	opts = append([]Option{
		WithPollInterval(time.Millisecond),
		WithPromptSettle(0),
		WithPromptTimeout(time.Second),
	}, opts...)
	p, err := NewPDU(l, opts...)
	require.NoError(t, err)

	return p
}

func TestPDU_OutletOn(t *testing.T) {
	require := require.New(t)

	sim := newSimRPC()
	p := newTestPDU(t, sim)
	o, err := p.AddOutlet(3, "radiometer")
	require.NoError(err)

	require.NoError(o.On(context.Background()))
	require.Equal([]string{"", "on 3", "y", "", ""}, sim.port.Commands())
	require.Equal(device.PhaseIdle, p.Phase())

	st, ok := o.LastKnown()
	require.True(ok)
	require.True(st.On)
	require.Equal("Radiometer", st.Name)

	on, err := o.Status(context.Background())
	require.NoError(err)
	require.True(on)
}

func TestPDU_OutletOff(t *testing.T) {
	require := require.New(t)

	sim := newSimRPC()
	sim.on[2] = true
	p := newTestPDU(t, sim)
	o, err := p.AddOutlet(2, "laser")
	require.NoError(err)

	require.NoError(o.Off(context.Background()))
	require.Equal(1, sim.port.CountCommand("off 2"))

	st, ok := p.LastKnown(2)
	require.True(ok)
	require.False(st.On)
}

func TestPDU_ResyncAfterError(t *testing.T) {
	require := require.New(t)

	sim := newSimRPC()
	sim.errorsLeft = 1
	p := newTestPDU(t, sim)

	require.NoError(p.Set(context.Background(), 1, true))
	require.Equal([]string{"", "on 1", "", "on 1", "y", "", ""}, sim.port.Commands())
	require.EqualValues(1, p.link.GetMetrics().RetryCount.Load())
}

func TestPDU_ResyncExhausted(t *testing.T) {
	require := require.New(t)

	sim := newSimRPC()
	sim.errorsLeft = 100
	p := newTestPDU(t, sim, WithMaxResync(2))

	err := p.Set(context.Background(), 1, true)
	require.ErrorIs(err, ErrResyncExhausted)
	require.ErrorIs(err, device.ErrProtocol)
	require.Equal(3, sim.port.CountCommand("on 1"))
	require.Zero(sim.port.CountCommand("y"))
	require.Equal(device.PhaseIdle, p.Phase())
}

func TestPDU_NotVerified(t *testing.T) {
	require := require.New(t)

	sim := newSimRPC()
	sim.stuck = true
	p := newTestPDU(t, sim)

	err := p.Set(context.Background(), 4, true)
	require.ErrorIs(err, ErrNotVerified)
	require.Equal(device.Mismatch, device.Classify(err))

	st, ok := p.LastKnown(4)
	require.True(ok)
	require.False(st.On)
	require.Equal("Spare outlet", st.Name)
}

func TestPDU_PromptTimeout(t *testing.T) {
	require := require.New(t)

	sim := newSimRPC()
	sim.silent = true
	p := newTestPDU(t, sim, WithPromptTimeout(30*time.Millisecond))

	err := p.Set(context.Background(), 1, true)
	require.ErrorIs(err, ErrPromptTimeout)
	require.ErrorIs(err, device.ErrTimeout)
	require.Zero(sim.port.CountCommand("on 1"))

	_, err = p.WaitPrompt(context.Background())
	require.ErrorIs(err, ErrPromptTimeout)
}

func TestPDU_ConfirmTimeout(t *testing.T) {
	require := require.New(t)

	sim := newSimRPC()
	p := newTestPDU(t, sim, WithPromptTimeout(30*time.Millisecond))
	sim.port.SetResponder(func(cmd string) []byte {
		if cmd == "" {
			return []byte("RPC>")
		}

		return nil
	})

	err := p.Set(context.Background(), 1, false)
	require.ErrorIs(err, ErrConfirmTimeout)
	require.ErrorIs(err, device.ErrTimeout)
}

func TestPDU_OutletNotListed(t *testing.T) {
	require := require.New(t)

	sim := newSimRPC()
	p := newTestPDU(t, sim)

	_, err := p.Status(context.Background(), 6)
	require.ErrorIs(err, ErrOutletNotListed)

	err = p.Set(context.Background(), 6, true)
	require.ErrorIs(err, ErrOutletNotListed)
}

func TestPDU_StatusAll(t *testing.T) {
	require := require.New(t)

	sim := newSimRPC()
	sim.on[2] = true
	p := newTestPDU(t, sim)

	states, err := p.StatusAll(context.Background())
	require.NoError(err)
	require.Len(states, 4)
	require.True(states[2].On)
	require.False(states[1].On)
	require.Equal("VXM", states[1].Name)
	require.False(states[1].Updated.IsZero())
}

func TestParseStatus(t *testing.T) {
	text := "RPC-3 Telnet Host\r\n" +
		"Temperature: 30.5 C\r\n" +
		"1)...Motion controller : On\r\n" +
		" 2)...Laser: Off\r\n" +
		"3)...: On\n" +
		"4)..Broken: On\r\n" +
		"5)...Fan: Unknown\r\n" +
		"RPC>"

	states := ParseStatus(text)
	assert.Len(t, states, 3)
	assert.Equal(t, OutletState{ID: 1, Name: "Motion controller", On: true}, states[1])
	assert.Equal(t, OutletState{ID: 2, Name: "Laser", On: false}, states[2])
	assert.Equal(t, OutletState{ID: 3, Name: "", On: true}, states[3])
	assert.Empty(t, ParseStatus(""))
}

func TestPDU_AddOutlet(t *testing.T) {
	require := require.New(t)

	p := newTestPDU(t, newSimRPC())

	_, err := p.AddOutlet(0, "zero")
	require.ErrorIs(err, ErrInvalidOutletID)
	_, err = p.AddOutlet(MaxOutlets+1, "high")
	require.ErrorIs(err, ErrInvalidOutletID)
	_, err = p.AddOutlet(1, " ")
	require.Error(err)

	o3, err := p.AddOutlet(3, "radiometer")
	require.NoError(err)
	o1, err := p.AddOutlet(1, "vxm")
	require.NoError(err)

	_, err = p.AddOutlet(3, "other")
	require.ErrorIs(err, ErrDuplicateOutlet)
	_, err = p.AddOutlet(2, "vxm")
	require.ErrorIs(err, ErrDuplicateOutlet)

	got, err := p.Outlet("vxm")
	require.NoError(err)
	require.Same(o1, got)
	require.Equal(device.KindPowerOutlet, got.Kind())
	require.Equal("/dev/ttyRPC", got.Port())
	require.Same(p, got.PDU())

	_, err = p.Outlet("missing")
	require.ErrorIs(err, ErrUnknownOutlet)

	require.Equal([]*Outlet{o1, o3}, p.Outlets())
}

func TestPDU_ConcurrentOutletsDoNotInterleave(t *testing.T) {
	require := require.New(t)

	sim := newSimRPC()
	p := newTestPDU(t, sim)

	var wg sync.WaitGroup
	for id := 1; id <= 4; id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Set(context.Background(), id, true))
		}()
	}
	wg.Wait()

	cmds := sim.port.Commands()
	for i, cmd := range cmds {
		if strings.HasPrefix(cmd, "on ") {
			require.Equal("y", cmds[i+1], "confirmation must follow its command")
		}
	}

	states, err := p.StatusAll(context.Background())
	require.NoError(err)
	for id := 1; id <= 4; id++ {
		require.True(states[id].On)
	}
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero prompt timeout", WithPromptTimeout(0)},
		{"huge prompt timeout", WithPromptTimeout(MaxPromptTimeout + time.Second)},
		{"negative poll", WithPollInterval(-time.Millisecond)},
		{"huge poll", WithPollInterval(MaxPollInterval + time.Second)},
		{"negative settle", WithPromptSettle(-time.Millisecond)},
		{"negative resync", WithMaxResync(-1)},
		{"huge resync", WithMaxResync(MaxResync + 1)},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.opt.apply(defaultOptions()))
		})
	}

	o := defaultOptions()
	assert.Equal(t, DefaultPromptTimeout, o.promptTimeout)
	assert.Equal(t, DefaultMaxResync, o.maxResync)
}
