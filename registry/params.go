package registry

import (
	"errors"
	"time"

	"github.com/arloliu/go-instrument/link"
)

// LinkParams are the serial settings of a device's port. Zero fields keep the
// device's defaults.
type LinkParams struct {
	Path        string        `yaml:"path"`
	BaudRate    int           `yaml:"baud_rate,omitempty"`
	DataBits    int           `yaml:"data_bits,omitempty"`
	Parity      string        `yaml:"parity,omitempty"`
	StopBits    string        `yaml:"stop_bits,omitempty"`
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`
}

// Options converts the non-zero fields into link options.
func (p LinkParams) Options() ([]link.Option, error) {
	if p.Path == "" {
		return nil, errors.New("registry: link path must not be empty")
	}

	var opts []link.Option
	if p.BaudRate != 0 {
		opts = append(opts, link.WithBaudRate(p.BaudRate))
	}

	if p.DataBits != 0 {
		opts = append(opts, link.WithDataBits(p.DataBits))
	}

	if p.Parity != "" {
		parity, err := link.ParseParity(p.Parity)
		if err != nil {
			return nil, err
		}
		opts = append(opts, link.WithParity(parity))
	}

	if p.StopBits != "" {
		sb, err := link.ParseStopBits(p.StopBits)
		if err != nil {
			return nil, err
		}
		opts = append(opts, link.WithStopBits(sb))
	}

	if p.ReadTimeout != 0 {
		opts = append(opts, link.WithReadTimeout(p.ReadTimeout))
	}

	return opts, nil
}
