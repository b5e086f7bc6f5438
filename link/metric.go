package link

import (
	"sync/atomic"

	"github.com/arloliu/go-instrument/device"
)

// Metrics contains atomic counters for one link.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// OpenCount indicates the number of successful port opens, including reopens.
	OpenCount atomic.Uint64
	// OpenErrCount indicates the number of failed port opens.
	OpenErrCount atomic.Uint64
	// ReopenCount indicates the number of opens that followed a closed-port error.
	ReopenCount atomic.Uint64
	// FlushCount indicates the number of buffer flushes.
	FlushCount atomic.Uint64

	// TxCount indicates the number of completed transactions.
	TxCount atomic.Uint64
	// TxErrCount indicates the number of transactions that did not succeed.
	TxErrCount atomic.Uint64
	// MismatchCount indicates the number of grammar mismatches.
	MismatchCount atomic.Uint64
	// TimeoutCount indicates the number of transactions that timed out.
	TimeoutCount atomic.Uint64
	// TransportErrCount indicates the number of I/O failures.
	TransportErrCount atomic.Uint64
	// RetryCount indicates the number of driver-level retries (resyncs, repeated sequences).
	RetryCount atomic.Uint64

	// InflightGauge is 1 while a session holds the link, 0 otherwise.
	InflightGauge atomic.Int32
}

// RecordOutcome counts one finished transaction.
func (m *Metrics) RecordOutcome(o device.Outcome) {
	m.TxCount.Add(1)

	switch o {
	case device.Success:
		return
	case device.Mismatch:
		m.MismatchCount.Add(1)
	case device.Timeout:
		m.TimeoutCount.Add(1)
	case device.TransportFailure:
		m.TransportErrCount.Add(1)
	}

	m.TxErrCount.Add(1)
}

// IncRetry counts one driver-level retry.
func (m *Metrics) IncRetry() {
	m.RetryCount.Add(1)
}

func (m *Metrics) incOpenCount() {
	m.OpenCount.Add(1)
}

func (m *Metrics) incOpenErrCount() {
	m.OpenErrCount.Add(1)
}

func (m *Metrics) incReopenCount() {
	m.ReopenCount.Add(1)
}

func (m *Metrics) incFlushCount() {
	m.FlushCount.Add(1)
}
