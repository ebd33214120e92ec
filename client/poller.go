package client

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// The panel drops an idle session after 60 seconds, so polling at half
// that doubles as a keepalive.
const defaultPollInterval = 30 * time.Second

// Poller keeps derived state fresh by issuing telemetry commands in
// round-robin (panel time, log pointer, system power) whenever the
// session is authenticated and no request is outstanding. It runs for
// the session's lifetime and stops by itself when the session closes.
type Poller struct {
	conn     *Conn
	interval time.Duration
	log      *zap.Logger

	stopped chan struct{}
}

func NewPoller(conn *Conn, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Poller{
		conn:     conn,
		interval: interval,
		log:      log,
		stopped:  make(chan struct{}),
	}
}

// Start launches the polling loop.
func (p *Poller) Start() {
	go p.run()
}

// Stopped is closed once the polling loop has exited.
func (p *Poller) Stopped() <-chan struct{} {
	return p.stopped
}

func (p *Poller) run() {
	defer close(p.stopped)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	polls := []func(context.Context) error{
		func(ctx context.Context) error {
			_, err := p.conn.GetDateTime(ctx)
			return err
		},
		func(ctx context.Context) error {
			_, err := p.conn.GetLogPointer(ctx)
			return err
		},
		func(ctx context.Context) error {
			_, err := p.conn.GetSystemPower(ctx)
			return err
		},
	}

	next := 0

	for {
		select {
		case <-p.conn.Done():
			p.log.Info("Poller stopped, session closed")
			return

		case <-ticker.C:
			if p.conn.State() != StateAuthenticated || p.conn.Busy() {
				// Never queue behind someone else's request; we will be
				// back on the next tick.
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			err := polls[next](ctx)
			cancel()

			next = (next + 1) % len(polls)

			switch {
			case err == nil:
			case errors.Is(err, ErrBusy), errors.Is(err, ErrDisconnected):
			default:
				p.log.Warn("Telemetry poll failed", zap.Error(err))
			}
		}
	}
}
