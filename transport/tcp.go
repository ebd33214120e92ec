package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luma/argus/protocol"
)

// Session owns the single TCP connection to the panel. The panel accepts
// exactly one concurrent session; a second connection is refused or
// dropped by the panel itself, not detected here.
//
// A Session is never reused. Once Close has been called, or a read has
// failed, callers must Dial a fresh one.
type Session struct {
	conn *net.TCPConn

	writeTimeout time.Duration
	trace        bool
	log          *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Dial opens a TCP session to the panel and waits out the settle delay
// before returning, so the first frame written is not ignored.
func Dial(ctx context.Context, addr string, options Options) (*Session, error) {
	options = options.withDefaults()

	dialer := net.Dialer{Timeout: options.DialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Session{
		conn:         conn.(*net.TCPConn),
		writeTimeout: options.WriteTimeout,
		trace:        options.Trace,
		log:          options.Log,
	}

	select {
	case <-time.After(options.SettleDelay):
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}

	s.log.Info("Connected to panel", zap.String("addr", addr))

	return s, nil
}

// Read reads the next chunk of bytes from the panel. It blocks until
// bytes are available, the peer closes, or the connection errors. There
// is no read deadline: the panel is expected to be silent for long
// stretches and liveness is the poller's job.
func (s *Session) Read(p []byte) (int, error) {
	n, err := s.conn.Read(p)

	if s.trace && n > 0 {
		s.log.Debug("Received", zap.String("bytes", protocol.HexStr(p[:n])))
	}

	return n, err
}

// Write sends an encoded frame to the panel under the write deadline.
func (s *Session) Write(data []byte) error {
	if s.trace {
		s.log.Debug("Sending", zap.String("bytes", protocol.HexStr(data)))
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}

	_, err := s.conn.Write(data)
	return err
}

// RemoteAddr reports the panel's address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Close shuts the connection down. It is safe to call more than once and
// from multiple goroutines; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})

	return s.closeErr
}
