package transport

import (
	"time"

	"go.uber.org/zap"
)

type Options struct {
	// DialTimeout bounds the TCP connect. Defaults to 10s.
	DialTimeout time.Duration

	// SettleDelay is how long to wait after the TCP connect before the
	// first write. The ComIP module ignores traffic sent too soon after
	// accepting; Texecom recommend 500ms. Tests shrink this.
	SettleDelay time.Duration

	// WriteTimeout bounds each write to the panel. Defaults to 5s.
	WriteTimeout time.Duration

	// Trace will hexdump all traffic through the logger. This is only
	// useful in local debugging.
	Trace bool

	Log *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.DialTimeout == 0 {
		o.DialTimeout = 10 * time.Second
	}

	if o.SettleDelay == 0 {
		o.SettleDelay = 500 * time.Millisecond
	}

	if o.WriteTimeout == 0 {
		o.WriteTimeout = 5 * time.Second
	}

	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	return o
}
