package telemetry

import (
	"fmt"
	"strconv"
	"strings"
)

// FrameFields is the number of payload fields a frame must carry.
const FrameFields = 6

const ppsOffset = 32767

// Frame is one decoded telemetry event.
type Frame struct {
	Seconds    uint32
	Counter    uint64
	PPSDelta   int32
	PulseCount uint32
}

// ParseFrame decodes the payload found between the frame markers. Fields
// past the sixth are ignored.
func ParseFrame(payload string) (Frame, error) {
	fields := strings.Split(strings.TrimSpace(payload), "\r")
	if len(fields) < FrameFields {
		return Frame{}, fmt.Errorf("%w: %d fields, need %d", ErrMalformedFrame, len(fields), FrameFields)
	}

	var v [FrameFields]uint64
	for i := range v {
		n, err := strconv.ParseUint(strings.TrimSpace(fields[i]), 16, 16)
		if err != nil {
			return Frame{}, fmt.Errorf("%w: field %d %q: %w", ErrMalformedFrame, i, fields[i], err)
		}
		v[i] = n
	}

	return Frame{
		Seconds:    uint32(v[0]<<16 + v[1]),
		Counter:    v[2]<<16 + v[3]*10,
		PPSDelta:   (int32(v[4]) - ppsOffset) * 10,
		PulseCount: uint32(v[5]),
	}, nil
}
