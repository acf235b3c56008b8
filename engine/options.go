package engine

import (
	"errors"
	"net"
	"time"
)

// ErrInvalidOptions is returned from NewMachine when the supplied Options are
// missing or malformed. It corresponds to the InvalidOptions error kind.
var ErrInvalidOptions = errors.New("invalid ping options")

// Options is the immutable per-instance configuration supplied by the
// caller at Init. The engine never reads process-wide state; every
// value it needs flows in through Options.
type Options struct {
	// Destination is the resolved address the probes target.
	Destination net.IP
	// Count is the total number of probes to issue. Must be >= 0.
	Count int
	// Interval is the base spacing between probes.
	Interval time.Duration
	// MaxTTL is the TTL stamped into probes and reported in output.
	MaxTTL uint8
	// DoResolve enables reverse-DNS resolution of discovered addresses.
	DoResolve bool
	// ShowTimestamp enables a timestamp prefix on each reported line.
	ShowTimestamp bool
	// Quiet suppresses per-probe reporting, leaving only the summary.
	Quiet bool
}

// validate checks that Options is well-formed. An absent or malformed
// Options value is a fatal InvalidOptions error.
func (o *Options) validate() error {
	if o == nil {
		return ErrInvalidOptions
	}
	if o.Destination == nil {
		return ErrInvalidOptions
	}
	if o.Count < 0 {
		return ErrInvalidOptions
	}
	if o.Interval <= 0 {
		return ErrInvalidOptions
	}
	return nil
}
