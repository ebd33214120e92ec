package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luma/argus/protocol"
	"github.com/luma/argus/storage"
	"github.com/luma/argus/transport"
)

// 2-3 seconds is mentioned in section 5.5 of the protocol specification.
// Increasing this is not recommended: when the panel drops a command
// (which happens when it emits an event at the same moment) a longer
// timeout just delays the caller noticing.
const defaultCommandTimeout = 2 * time.Second

var (
	// ErrBusy means a request is already outstanding. The panel cannot
	// multiplex, so a second request fails fast instead of queueing.
	ErrBusy = errors.New("a request is already outstanding")

	// ErrTimeout means the panel did not answer within the bound. The
	// caller decides whether to retry.
	ErrTimeout = errors.New("timed out waiting for panel response")

	// ErrDisconnected means the session is closed. A new Conn must be
	// dialled and authenticated.
	ErrDisconnected = errors.New("session is disconnected")

	// ErrAuth means the panel rejected the login or never answered it.
	// Fatal for this connection: retrying with the same credentials can
	// lock out the panel's engineer/UDL access.
	ErrAuth = errors.New("authentication failed")

	// ErrNotAuthenticated means a command was issued before Login
	// succeeded.
	ErrNotAuthenticated = errors.New("session is not authenticated")
)

// State tracks the session lifecycle. A Conn only ever moves forward
// through these states and is never reused after StateClosed.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DisconnectReason classifies why the session ended.
type DisconnectReason int

const (
	// DisconnectClean: we closed the session, or the panel closed it in
	// an orderly way.
	DisconnectClean DisconnectReason = iota

	// DisconnectPanelHangup: the panel forcibly dropped the session (it
	// does this on inactivity and when an alarm condition occurs).
	DisconnectPanelHangup

	// DisconnectIOError: the transport failed.
	DisconnectIOError
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectClean:
		return "clean close"
	case DisconnectPanelHangup:
		return "panel-forced drop"
	case DisconnectIOError:
		return "i/o error"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Disconnect is the terminal session event, delivered exactly once to the
// owning caller. Reconnection is the caller's responsibility.
type Disconnect struct {
	Reason DisconnectReason
	Err    error
}

type Options struct {
	// Registry receives decoded events. Required so registrations can
	// outlive individual sessions.
	Registry *Registry

	// Store backs the panel snapshot. Optional; a fresh in-memory store
	// is used when nil, but then the snapshot dies with the Conn.
	Store storage.Store

	// CommandTimeout bounds each request/response exchange. Defaults to
	// the protocol's recommended 2s.
	CommandTimeout time.Duration

	Transport transport.Options

	Log *zap.Logger
}

type result struct {
	frame *protocol.Frame
	err   error
}

// pendingRequest is the single in-flight command awaiting its response.
type pendingRequest struct {
	cmd      protocol.Command
	seq      byte
	issuedAt time.Time
	done     chan result
}

// Conn is an authenticated session to the panel: it owns the transport,
// runs the read loop, correlates responses to the outstanding request,
// and feeds unsolicited messages to the dispatcher.
type Conn struct {
	ctx    context.Context
	cancel context.CancelFunc

	sess       *transport.Session
	loopWaiter sync.WaitGroup

	stateMu sync.Mutex
	state   State

	pendMu  sync.Mutex
	pending *pendingRequest
	nextSeq byte

	// Message sequence bookkeeping, touched only by the read loop.
	lastMsgSeq     byte
	haveLastMsgSeq bool

	registry   *Registry
	snapshot   *Snapshot
	dispatcher *Dispatcher

	cmdTimeout time.Duration

	finishOnce   sync.Once
	closeErr     error
	disconnectCh chan Disconnect

	log *zap.Logger
}

// Connect dials the panel and starts the read loop. The returned Conn is
// unauthenticated; callers must Login before issuing commands.
//
// Cancelling ctx closes the session.
func Connect(ctx context.Context, addr string, options Options) (*Conn, error) {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	if options.Registry == nil {
		options.Registry = NewRegistry()
	}

	store := options.Store
	if store == nil {
		store = storage.NewInmemoryStore()
	}

	cmdTimeout := options.CommandTimeout
	if cmdTimeout == 0 {
		cmdTimeout = defaultCommandTimeout
	}

	topts := options.Transport
	if topts.Log == nil {
		topts.Log = log.Named("transport")
	}

	sess, err := transport.Dial(ctx, addr, topts)
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancel(ctx)

	snapshot := NewSnapshot(store, log.Named("snapshot"))

	c := &Conn{
		ctx:          connCtx,
		cancel:       cancel,
		sess:         sess,
		state:        StateUnauthenticated,
		registry:     options.Registry,
		snapshot:     snapshot,
		dispatcher:   NewDispatcher(options.Registry, snapshot, log.Named("dispatch")),
		cmdTimeout:   cmdTimeout,
		disconnectCh: make(chan Disconnect, 1),
		log:          log,
	}

	c.loopWaiter.Add(1)
	go c.readLoop()

	// Closing the session must promptly fail any pending request and
	// halt the poller, also when the parent context is cancelled.
	go func() {
		<-connCtx.Done()
		c.finish(DisconnectClean, nil)
	}()

	return c, nil
}

// State reports the session lifecycle state.
func (c *Conn) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	return c.state
}

func (c *Conn) setState(s State) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	// closed is terminal
	if c.state != StateClosed {
		c.state = s
	}
}

// Done is closed when the session ends, however that happens.
func (c *Conn) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Disconnected delivers the terminal session event, exactly once.
func (c *Conn) Disconnected() <-chan Disconnect {
	return c.disconnectCh
}

// Registry returns the handler registry this Conn dispatches into.
func (c *Conn) Registry() *Registry {
	return c.registry
}

// Snapshot returns the cached panel state.
func (c *Conn) Snapshot() *Snapshot {
	return c.snapshot
}

// Busy reports whether a request is currently outstanding.
func (c *Conn) Busy() bool {
	c.pendMu.Lock()
	defer c.pendMu.Unlock()

	return c.pending != nil
}

// Login authenticates the session with the panel's UDL password. It must
// be called exactly once, before any other command. A rejection or a
// timeout is ErrAuth and is fatal for this connection: do not retry with
// the same credentials without operator intervention.
func (c *Conn) Login(ctx context.Context, udlPassword string) error {
	c.stateMu.Lock()
	switch c.state {
	case StateUnauthenticated:
		c.state = StateAuthenticating
	case StateClosed:
		c.stateMu.Unlock()
		return ErrDisconnected
	default:
		state := c.state
		c.stateMu.Unlock()
		return fmt.Errorf("cannot login while %s", state)
	}
	c.stateMu.Unlock()

	payload, err := c.issue(ctx, protocol.CmdLogin, []byte(udlPassword))
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			// No answer to a login usually means a wrong password on a
			// pre-v4 panel, or connecting again too soon.
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}

		return err
	}

	if len(payload) == 0 {
		return fmt.Errorf("%w: empty login response", ErrAuth)
	}

	switch payload[0] {
	case protocol.ResponseACK:
		c.setState(StateAuthenticated)
		c.log.Info("Login successful")
		return nil

	case protocol.ResponseNAK:
		return fmt.Errorf("%w: panel rejected the UDL password", ErrAuth)

	default:
		return fmt.Errorf("%w: unexpected login response 0x%02x", ErrAuth, payload[0])
	}
}

// Issue sends a command frame and blocks until the matching response, a
// timeout, a disconnect, or ctx cancellation. At most one request may be
// outstanding; a second concurrent Issue fails fast with ErrBusy.
//
// The returned payload excludes the echoed command code.
func (c *Conn) Issue(ctx context.Context, cmd protocol.Command, params []byte) ([]byte, error) {
	switch c.State() {
	case StateAuthenticated:
	case StateClosed:
		return nil, ErrDisconnected
	default:
		return nil, ErrNotAuthenticated
	}

	return c.issue(ctx, cmd, params)
}

func (c *Conn) issue(ctx context.Context, cmd protocol.Command, params []byte) ([]byte, error) {
	c.pendMu.Lock()
	if c.pending != nil {
		c.pendMu.Unlock()
		return nil, ErrBusy
	}

	seq := c.nextSeq
	c.nextSeq++ // wraps at 256, as the panel expects

	p := &pendingRequest{
		cmd:      cmd,
		seq:      seq,
		issuedAt: time.Now(),
		done:     make(chan result, 1),
	}
	c.pending = p
	c.pendMu.Unlock()

	data, err := protocol.EncodeCommand(seq, cmd, params)
	if err != nil {
		c.clearPending(p)
		return nil, err
	}

	if err := c.sess.Write(data); err != nil {
		c.clearPending(p)
		return nil, fmt.Errorf("writing %s: %w", cmd, err)
	}

	timer := time.NewTimer(c.cmdTimeout)
	defer timer.Stop()

	select {
	case res := <-p.done:
		if res.err != nil {
			return nil, res.err
		}
		return res.frame.Payload(), nil

	case <-timer.C:
		c.clearPending(p)

		// The read loop may have completed the request in the same
		// instant the timer fired.
		select {
		case res := <-p.done:
			if res.err != nil {
				return nil, res.err
			}
			return res.frame.Payload(), nil
		default:
		}

		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, cmd, c.cmdTimeout)

	case <-ctx.Done():
		c.clearPending(p)
		return nil, ctx.Err()
	}
}

// clearPending removes p from the pending slot if it is still there.
func (c *Conn) clearPending(p *pendingRequest) {
	c.pendMu.Lock()
	if c.pending == p {
		c.pending = nil
	}
	c.pendMu.Unlock()
}

// failPending resolves the outstanding request, if any, with err.
func (c *Conn) failPending(err error) {
	c.pendMu.Lock()
	p := c.pending
	c.pending = nil
	c.pendMu.Unlock()

	if p != nil {
		p.done <- result{err: err}
	}
}

// Close ends the session cleanly and waits for the read loop to exit.
func (c *Conn) Close() error {
	c.finish(DisconnectClean, nil)
	c.loopWaiter.Wait()

	return c.closeErr
}

// finish tears the session down: terminal state, cancelled context,
// closed transport, failed pending request, and the one-shot disconnect
// notification. Safe to call from any goroutine; only the first call
// does anything.
func (c *Conn) finish(reason DisconnectReason, cause error) {
	c.finishOnce.Do(func() {
		c.setState(StateClosed)
		c.cancel()
		c.closeErr = c.sess.Close()

		if cause != nil {
			c.failPending(fmt.Errorf("%w: %v", ErrDisconnected, cause))
		} else {
			c.failPending(ErrDisconnected)
		}

		// Buffered so the notification never blocks teardown if the
		// owner is not listening yet.
		c.disconnectCh <- Disconnect{Reason: reason, Err: cause}

		c.log.Info("Session closed", zap.String("reason", reason.String()))
	})
}

func (c *Conn) readLoop() {
	defer c.loopWaiter.Done()

	log := c.log.Named("readLoop")

	var buf []byte
	chunk := make([]byte, 1024)

	for {
		n, err := c.sess.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)

			rest, stop := c.drainFrames(buf, log)
			if stop {
				return
			}
			buf = rest
		}

		if err != nil {
			c.classifyReadError(err, log)
			return
		}
	}
}

// drainFrames decodes and handles every complete frame at the front of
// buf, returning the unconsumed remainder. Frames are processed strictly
// in arrival order: an event frame received before a response is
// dispatched before that response resolves its waiter.
func (c *Conn) drainFrames(buf []byte, log *zap.Logger) (rest []byte, stop bool) {
	for len(buf) > 0 {
		f, consumed, err := protocol.Decode(buf)
		if errors.Is(err, protocol.ErrIncomplete) {
			break
		}

		buf = buf[consumed:]

		switch {
		case err == nil:
			c.handleFrame(f, log)

		case errors.Is(err, protocol.ErrRemoteHangup):
			log.Warn("Panel has forcibly dropped the connection")
			c.finish(DisconnectPanelHangup, protocol.ErrRemoteHangup)
			return nil, true

		default:
			// Corrupted frame. Routine noise on long-lived connections;
			// the codec has already resynchronized for us.
			log.Warn("Discarding invalid frame", zap.Error(err))
		}
	}

	return buf, false
}

func (c *Conn) classifyReadError(err error, log *zap.Logger) {
	select {
	case <-c.ctx.Done():
		// We initiated the close; the read error is just the socket
		// being torn down underneath the loop.
		c.finish(DisconnectClean, nil)
		return
	default:
	}

	if errors.Is(err, io.EOF) {
		log.Info("Panel closed the connection")
		c.finish(DisconnectClean, nil)
		return
	}

	log.Warn("Read failed", zap.Error(err))
	c.finish(DisconnectIOError, err)
}

func (c *Conn) handleFrame(f *protocol.Frame, log *zap.Logger) {
	switch f.Type {
	case protocol.FrameResponse:
		c.handleResponse(f, log)

	case protocol.FrameMessage:
		c.handleMessage(f, log)

	default:
		log.Warn("Received command frame from panel, ignoring",
			zap.String("payload", protocol.HexStr(f.Data)))
	}
}

func (c *Conn) handleResponse(f *protocol.Frame, log *zap.Logger) {
	cmd := protocol.Command(f.ID())

	c.pendMu.Lock()
	p := c.pending
	if p != nil && f.Seq == p.seq && cmd == p.cmd {
		c.pending = nil
		c.pendMu.Unlock()

		p.done <- result{frame: f}
		return
	}
	c.pendMu.Unlock()

	if cmd == protocol.CmdLogin && len(f.Payload()) > 0 && f.Payload()[0] == protocol.ResponseNAK {
		// The panel sends an unsolicited logon NAK when it has expired
		// the session; it will drop the connection shortly.
		log.Warn("Received logon NAK, session has timed out on the panel")
		return
	}

	log.Warn("Dropping response with no matching request",
		zap.String("command", cmd.String()),
		zap.Uint8("seq", f.Seq))
}

func (c *Conn) handleMessage(f *protocol.Frame, log *zap.Logger) {
	if c.haveLastMsgSeq {
		next := c.lastMsgSeq + 1

		if f.Seq == c.lastMsgSeq {
			log.Warn("Ignoring message, sequence number repeats the last message",
				zap.Uint8("seq", f.Seq))
			return
		}

		if f.Seq != next {
			// Perhaps we missed one or they arrived out of order;
			// process it anyway.
			log.Warn("Message sequence gap",
				zap.Uint8("expected", next),
				zap.Uint8("actual", f.Seq))
		}
	}

	c.lastMsgSeq = f.Seq
	c.haveLastMsgSeq = true

	c.dispatcher.Dispatch(f)
}
