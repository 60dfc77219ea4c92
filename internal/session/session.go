// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/lspbridge/internal/config"
	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/matt-FFFFFF/lspbridge/internal/launcher"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
	"github.com/sourcegraph/jsonrpc2"
)

const (
	methodInitialize       = "initialize"
	methodInitialized      = "initialized"
	methodShutdown         = "shutdown"
	methodExit             = "exit"
	methodExecuteCommand   = "workspace/executeCommand"
	methodWorkDoneProgress = "window/workDoneProgress/create"

	// StartedMessage is shown once the server is up.
	StartedMessage = "Language server started"

	defaultShutdownTimeout = 2 * time.Second
)

var (
	// ErrNotStarted is returned by operations that need a running server.
	ErrNotStarted = errors.New("session not started")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrHandshake is returned when the initialize request fails.
	ErrHandshake = errors.New("initialize handshake failed")
	// ErrShutdown is returned when the server did not shut down cleanly.
	ErrShutdown = errors.New("language server shutdown failed")
)

// Transport is the byte stream to a language server.
type Transport interface {
	io.ReadWriteCloser
	// Wait blocks until the server has exited.
	Wait() error
}

// Dialer opens the transport to a language server.
type Dialer func(ctx context.Context, cfg config.ServerConfig) (Transport, error)

// Command is a workspace/executeCommand request.
type Command struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
}

// Session owns one language server connection together with the progress
// registry and notification dispatcher fed by it.
type Session struct {
	id       string
	cfg      *config.Config
	ctx      context.Context
	cancel   context.CancelFunc
	sink     notify.Sink
	registry *progress.Registry
	dispatch *notify.Dispatcher
	dial     Dialer
	timeout  time.Duration

	reporter progress.Reporter
	observer notify.Observer

	mu        sync.Mutex
	transport Transport
	conn      *jsonrpc2.Conn
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Session.
type Option func(*Session)

// WithReporter sends progress indicator events to r, usually the UI and metrics.
// The caller keeps ownership of r and closes it after Close returns.
func WithReporter(r progress.Reporter) Option {
	return func(s *Session) {
		s.reporter = r
	}
}

// WithObserver reports every routed notification to o.
func WithObserver(o notify.Observer) Option {
	return func(s *Session) {
		s.observer = o
	}
}

// WithDialer replaces the default prepare-and-spawn transport.
func WithDialer(d Dialer) Option {
	return func(s *Session) {
		s.dial = d
	}
}

// WithShutdownTimeout bounds the shutdown request sent by Close.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.timeout = d
	}
}

// New builds the registry and dispatcher for a session. The server is not
// started until Start is called. Cancelling ctx interrupts every indicator
// loop and kills the server process.
func New(ctx context.Context, cfg *config.Config, sink notify.Sink, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		sink:    sink,
		dial:    spawn,
		timeout: defaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.ctx, s.cancel = context.WithCancel(ctxlog.With(ctx, "session", s.id))

	regOpts := []progress.Option{progress.WithPollInterval(cfg.Progress.PollInterval.Std())}
	if s.reporter != nil {
		regOpts = append(regOpts, progress.WithReporter(s.reporter))
	}

	s.registry = progress.NewRegistry(s.ctx, regOpts...)

	dispatchOpts := []notify.Option{notify.WithMethodPrefix(cfg.Notifications.MethodPrefix)}
	if s.observer != nil {
		dispatchOpts = append(dispatchOpts, notify.WithObserver(s.observer))
	}

	s.dispatch = notify.NewDispatcher(s.registry, sink, dispatchOpts...)

	return s
}

// ID returns the unique session id used in logs.
func (s *Session) ID() string {
	return s.id
}

// Registry returns the session's progress registry.
func (s *Session) Registry() *progress.Registry {
	return s.registry
}

// Dispatcher returns the session's notification dispatcher.
func (s *Session) Dispatcher() *notify.Dispatcher {
	return s.dispatch
}

// Start launches the server, connects to it and performs the initialize
// handshake. A launch failure is returned as a *launcher.LaunchError.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return ErrAlreadyStarted
	}

	transport, err := s.dial(s.ctx, s.cfg.Server)
	if err != nil {
		return err
	}

	s.transport = transport
	s.conn = jsonrpc2.NewConn(
		s.ctx,
		jsonrpc2.NewBufferedStream(transport, jsonrpc2.VSCodeObjectCodec{}),
		&handler{dispatch: s.dispatch},
		jsonrpc2.SetLogger(rpcLogger{ctx: s.ctx}),
	)

	if s.cfg.Server.Initialize {
		if err := s.initialize(ctx); err != nil {
			return err
		}
	}

	ctxlog.Info(s.ctx, "language server started")
	s.sink.Show(notify.SeverityInfo, StartedMessage)

	return nil
}

// Done is closed when the connection to the server is lost or closed.
// It returns nil before Start.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	return s.conn.DisconnectNotify()
}

// ExecuteCommand forwards cmd unchanged and returns the raw result.
func (s *Session) ExecuteCommand(ctx context.Context, cmd Command) (json.RawMessage, error) {
	conn := s.connection()
	if conn == nil {
		return nil, ErrNotStarted
	}

	var result json.RawMessage
	if err := conn.Call(ctx, methodExecuteCommand, cmd, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Close shuts the server down, stops every indicator loop and waits for them.
// It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close(ctx)
	})

	return s.closeErr
}

func (s *Session) close(ctx context.Context) error {
	var result error

	conn, transport := s.connection(), s.transportOf()

	if conn != nil {
		if err := s.shutdown(ctx, conn); err != nil {
			result = multierror.Append(result, err)
		}

		if err := conn.Close(); err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}

	if transport != nil {
		if err := waitExit(ctx, transport, s.cancel); err != nil {
			result = multierror.Append(result, err)
		}
	}

	s.registry.Clear()
	s.cancel()
	s.registry.Wait()

	ctxlog.Debug(s.ctx, "session closed")

	return result
}

func (s *Session) shutdown(ctx context.Context, conn *jsonrpc2.Conn) error {
	select {
	case <-conn.DisconnectNotify():
		return nil
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := conn.Call(ctx, methodShutdown, nil, nil); err != nil {
		if errors.Is(err, jsonrpc2.ErrClosed) {
			return nil
		}

		return errors.Join(ErrShutdown, err)
	}

	if err := conn.Notify(ctx, methodExit, nil); err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
		return errors.Join(ErrShutdown, err)
	}

	return nil
}

// waitExit waits for the server to exit, killing it via kill when ctx is done first.
func waitExit(ctx context.Context, t Transport, kill context.CancelFunc) error {
	done := make(chan error, 1)

	go func() {
		done <- t.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		kill()
		return errors.Join(ErrShutdown, ctx.Err(), <-done)
	}
}

func (s *Session) initialize(ctx context.Context) error {
	params := initializeParams{
		ProcessID:    os.Getpid(),
		Capabilities: struct{}{},
		ClientInfo:   clientInfo{Name: "lspbridge"},
	}

	if wd, err := filepath.Abs(s.cfg.Server.WorkDir); err == nil {
		params.RootURI = "file://" + filepath.ToSlash(wd)
	}

	// The result is ignored, there is no capability negotiation.
	if err := s.conn.Call(ctx, methodInitialize, params, nil); err != nil {
		return errors.Join(ErrHandshake, err)
	}

	if err := s.conn.Notify(ctx, methodInitialized, struct{}{}); err != nil {
		return errors.Join(ErrHandshake, err)
	}

	return nil
}

func (s *Session) connection() *jsonrpc2.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn
}

func (s *Session) transportOf() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transport
}

type initializeParams struct {
	ProcessID    int        `json:"processId"`
	RootURI      string     `json:"rootUri,omitempty"`
	Capabilities struct{}   `json:"capabilities"`
	ClientInfo   clientInfo `json:"clientInfo"`
}

type clientInfo struct {
	Name string `json:"name"`
}

// spawn prepares the configured executable and starts it. Every failure is a
// *launcher.LaunchError.
func spawn(ctx context.Context, cfg config.ServerConfig) (Transport, error) {
	path, err := launcher.Prepare(ctx, cfg)
	if err != nil {
		if le := (*launcher.LaunchError)(nil); errors.As(err, &le) {
			return nil, err
		}

		return nil, &launcher.LaunchError{Path: cfg.Path, Err: err}
	}

	proc, err := launcher.Spawn(ctx, path, cfg.WorkDir, cfg.Args...)
	if err != nil {
		return nil, err
	}

	return proc, nil
}
