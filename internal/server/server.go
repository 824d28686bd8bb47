package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/Brownie44l1/classroom-http/internal/metrics"
	"github.com/Brownie44l1/classroom-http/internal/request"
	"github.com/Brownie44l1/classroom-http/internal/response"
)

var (
	ErrRequestTimeout = errors.New("request timeout")
	ErrServerClosed   = errors.New("listener closed")
	ErrInvalidState   = errors.New("invalid listener state")
)

// State is the lifecycle position of a Listener.
type State int32

const (
	StateCreated State = iota
	StateBound
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBound:
		return "bound"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config configures the acceptor.
type Config struct {
	Host string
	Port int

	// Workers is the size of the pool; zero or less means runtime.NumCPU().
	Workers int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	MaxHeaderBytes int
	MaxBodyBytes   int64

	// ReusePort sets SO_REUSEPORT so several processes can share the port.
	ReusePort bool
}

func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8003,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxHeaderBytes:  request.DefaultMaxHeaderBytes,
		MaxBodyBytes:    request.DefaultMaxBodyBytes,
	}
}

// Addr is the host:port the listener binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ReceiveFunc is called once per decoded request, from any worker.
type ReceiveFunc func(req *request.Request) response.Result

type connState struct {
	worker   int
	accepted time.Time
}

// Listener accepts connections on one socket and serves each of them with a
// single request/response exchange on a fixed pool of workers. Every worker
// accepts on the shared socket itself, so a connection is only ever owned by
// the worker that accepted it.
type Listener struct {
	cfg       Config
	log       zerolog.Logger
	metrics   *metrics.Metrics
	onReceive ReceiveFunc

	state atomic.Int32
	ln    net.Listener
	conns *xsync.MapOf[net.Conn, connState]
	wg    sync.WaitGroup

	// sweeping is set once shutdown starts force-closing connections
	sweeping atomic.Bool
}

func New(cfg Config, log zerolog.Logger) *Listener {
	return &Listener{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		conns:   xsync.NewMapOf[net.Conn, connState](),
	}
}

// SetOnReceive registers the callback requests are handed to. It must be
// called before Serve.
func (l *Listener) SetOnReceive(fn ReceiveFunc) {
	l.onReceive = fn
}

func (l *Listener) Metrics() *metrics.Metrics {
	return l.metrics
}

func (l *Listener) State() State {
	return State(l.state.Load())
}

// Addr returns the bound address, or nil before CreateSocket.
func (l *Listener) Addr() net.Addr {
	if l.State() < StateBound {
		return nil
	}
	return l.ln.Addr()
}

// ActiveConnections is the number of connections currently being served.
func (l *Listener) ActiveConnections() int {
	return l.conns.Size()
}

// CreateSocket binds the configured address. Created -> Bound.
func (l *Listener) CreateSocket(ctx context.Context) error {
	if l.State() == StateClosed {
		return ErrServerClosed
	}
	if l.State() != StateCreated {
		return fmt.Errorf("%w: create socket while %s", ErrInvalidState, l.State())
	}

	lc := net.ListenConfig{}
	if l.cfg.ReusePort {
		lc.Control = reusePortControl
	}

	ln, err := lc.Listen(ctx, "tcp", l.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.cfg.Addr(), err)
	}

	l.ln = ln
	l.state.Store(int32(StateBound))
	l.log.Info().Str("addr", ln.Addr().String()).Msg("socket bound")
	return nil
}

// Serve runs the worker pool until ctx is cancelled. Bound -> Running ->
// Closed. On cancellation the socket is closed, workers finish the
// connection they hold, and connections still open after ShutdownTimeout
// are closed forcibly.
func (l *Listener) Serve(ctx context.Context) error {
	if l.State() == StateClosed {
		return ErrServerClosed
	}
	if !l.state.CompareAndSwap(int32(StateBound), int32(StateRunning)) {
		return fmt.Errorf("%w: serve while %s", ErrInvalidState, l.State())
	}

	workers := l.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	l.log.Info().
		Str("addr", l.ln.Addr().String()).
		Int("workers", workers).
		Msg("listening")

	for i := 0; i < workers; i++ {
		l.wg.Add(1)
		go l.worker(ctx, i)
	}

	<-ctx.Done()
	l.shutdown()
	l.state.Store(int32(StateClosed))

	l.log.Info().Msg("listener closed")
	return nil
}

// Listen binds host:port and serves with the given pool size until ctx is
// cancelled.
func (l *Listener) Listen(ctx context.Context, host string, port, workers int) error {
	l.cfg.Host = host
	l.cfg.Port = port
	l.cfg.Workers = workers

	if err := l.CreateSocket(ctx); err != nil {
		return err
	}
	return l.Serve(ctx)
}

func (l *Listener) worker(ctx context.Context, id int) {
	defer l.wg.Done()

	var tempDelay time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}

			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}

			l.log.Warn().Err(err).Int("worker", id).Dur("retry_in", tempDelay).Msg("accept failed")

			select {
			case <-time.After(tempDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		tempDelay = 0
		if !l.track(conn, id) {
			continue
		}
		l.serveConn(conn, id)
	}
}

// track registers conn in the live-connection registry before it is served.
// It reports false, having closed conn, when the shutdown sweep has already
// run and would miss it.
func (l *Listener) track(conn net.Conn, worker int) bool {
	l.conns.Store(conn, connState{worker: worker, accepted: time.Now()})
	if l.sweeping.Load() {
		l.conns.Delete(conn)
		conn.Close()
		return false
	}
	return true
}

// closeStragglers force-closes every registered connection. Connections
// registered afterwards are closed by track.
func (l *Listener) closeStragglers() {
	l.sweeping.Store(true)

	l.log.Warn().Int("connections", l.conns.Size()).Msg("shutdown timeout, closing connections")
	now := time.Now()
	l.conns.Range(func(conn net.Conn, st connState) bool {
		l.log.Debug().
			Int("worker", st.worker).
			Str("remote_addr", conn.RemoteAddr().String()).
			Dur("age", now.Sub(st.accepted)).
			Msg("force-closing connection")
		conn.Close()
		return true
	})
}

func (l *Listener) shutdown() {
	if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		l.log.Warn().Err(err).Msg("closing socket")
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(l.cfg.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		l.closeStragglers()
		<-done
	}
}
