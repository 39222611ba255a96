// Package lifecycle supervises the process outside the request path: it waits
// for a stop signal or a fatal failure, shuts components down, and reports
// the exit code.
//
// Failures inside a request never reach the supervisor; they are mapped to a
// response by the HTTP error funnel. Background goroutines (the listener,
// anything else started with Go) report through Fatal, and a fatal failure
// ends the process: immediately, or after a bounded drain when DrainOnFatal
// is set.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-budget-api/internal/apperr"
)

// Exit codes returned by Run.
const (
	ExitOK    = 0
	ExitFatal = 1
)

// MsgFatal is logged when a fatal failure ends the process.
const MsgFatal = "fatal error, shutting down"

// ShutdownFunc stops one component within the deadline carried by ctx.
type ShutdownFunc func(ctx context.Context) error

// Options configures a Supervisor.
type Options struct {
	// ShutdownTimeout bounds the drain. Defaults to 10s.
	ShutdownTimeout time.Duration
	// DrainOnFatal drains components after a fatal failure instead of
	// exiting straight away.
	DrainOnFatal bool
	// Signals that trigger a graceful stop. Defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// Supervisor owns process shutdown. It is safe for concurrent use.
type Supervisor struct {
	opts  Options
	fatal chan error
	once  sync.Once

	mu        sync.Mutex
	shutdowns []namedShutdown
}

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// New constructs a Supervisor.
func New(opts Options) *Supervisor {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if len(opts.Signals) == 0 {
		opts.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	return &Supervisor{opts: opts, fatal: make(chan error, 1)}
}

// OnShutdown registers fn to run during the drain. Components stop in
// reverse registration order.
func (s *Supervisor) OnShutdown(name string, fn ShutdownFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdowns = append(s.shutdowns, namedShutdown{name: name, fn: fn})
}

// Fatal reports an unrecoverable failure. Only the first report counts.
func (s *Supervisor) Fatal(err error) {
	if err == nil {
		return
	}
	s.once.Do(func() { s.fatal <- err })
}

// Guard turns a panic in the calling goroutine into a fatal failure. Use it
// as the first deferred call of a background goroutine.
func (s *Supervisor) Guard(name string) {
	if rec := recover(); rec != nil {
		log.Error().Str("goroutine", name).Interface("panic", rec).Msg("background goroutine panicked")
		s.Fatal(apperr.FromPanic(rec))
	}
}

// Go runs fn in a guarded goroutine. A non-nil error from fn is fatal.
func (s *Supervisor) Go(name string, fn func() error) {
	go func() {
		defer s.Guard(name)
		if err := fn(); err != nil {
			s.Fatal(err)
		}
	}()
}

// Run blocks until ctx is done, a stop signal arrives, or a fatal failure is
// reported. It returns ExitOK after a graceful stop and ExitFatal otherwise.
func (s *Supervisor) Run(ctx context.Context) int {
	sigCtx, stop := signal.NotifyContext(ctx, s.opts.Signals...)
	defer stop()

	select {
	case <-sigCtx.Done():
		log.Info().Msg("shutdown requested")
		s.drain()
		log.Info().Msg("server stopped")
		return ExitOK

	case err := <-s.fatal:
		ae := apperr.Classify(err)
		log.Error().
			Str("error_message", ae.Error()).
			Str("stack", ae.Stack()).
			Bool("drain", s.opts.DrainOnFatal).
			Msg(MsgFatal)
		if s.opts.DrainOnFatal {
			s.drain()
		}
		return ExitFatal
	}
}

// drain runs the registered shutdown funcs, newest first, sharing one
// deadline.
func (s *Supervisor) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	fns := make([]namedShutdown, len(s.shutdowns))
	copy(fns, s.shutdowns)
	s.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i].fn(ctx); err != nil {
			log.Warn().Err(err).Str("component", fns[i].name).Msg("shutdown failed")
		}
	}
}
