// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
)

// Dispatcher routes server notifications to the progress registry or the UI sink.
// Its table is fixed at construction and only read afterwards, so Route may be
// called from any goroutine.
type Dispatcher struct {
	progress Progress
	sink     Sink
	observer Observer
	prefix   string
	extra    Table
	table    Table
	validate *validator.Validate
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMethodPrefix registers the rgo specific methods under prefix+name,
// e.g. "custom/rgo/progress". Standard LSP methods are never prefixed.
func WithMethodPrefix(prefix string) Option {
	return func(d *Dispatcher) {
		d.prefix = prefix
	}
}

// WithObserver reports the outcome of every routed notification to o.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithHandler registers an additional handler under the exact method name.
// It replaces a built-in handler with the same name.
func WithHandler(method string, h Handler) Option {
	return func(d *Dispatcher) {
		d.extra[method] = h
	}
}

// NewDispatcher builds the dispatch table.
func NewDispatcher(progress Progress, sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		progress: progress,
		sink:     sink,
		observer: nopObserver{},
		extra:    make(Table),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.table = Table{
		d.prefix + MethodProgress:  d.handleProgress,
		d.prefix + MethodShowInfo:  d.showHandler(SeverityInfo),
		d.prefix + MethodShowWarn:  d.showHandler(SeverityWarn),
		d.prefix + MethodShowError: d.showHandler(SeverityError),
		MethodShowMessage:          d.handleShowMessage,
		MethodLogMessage:           d.handleLogMessage,
	}
	maps.Copy(d.table, d.extra)

	return d
}

// Route handles one notification. Unknown methods and malformed params are
// dropped; nothing is returned and a panicking handler is recovered.
func (d *Dispatcher) Route(ctx context.Context, method string, params json.RawMessage) {
	label := method
	if _, ok := d.table[method]; !ok {
		label = unknownMethodLabel
	}

	d.observer.ObserveNotification(label, d.route(ctx, method, params))
}

// Methods returns the registered method names, sorted.
func (d *Dispatcher) Methods() []string {
	return slices.Sorted(maps.Keys(d.table))
}

// Handles reports whether method has a handler.
func (d *Dispatcher) Handles(method string) bool {
	_, ok := d.table[method]
	return ok
}

func (d *Dispatcher) route(ctx context.Context, method string, params json.RawMessage) (outcome Outcome) {
	handler, ok := d.table[method]
	if !ok {
		ctxlog.Debug(ctx, "ignoring unknown notification", "method", method)
		return OutcomeIgnored
	}

	defer func() {
		if r := recover(); r != nil {
			ctxlog.Warn(ctx, "notification handler panicked", "method", method, "panic", fmt.Sprint(r))
			outcome = OutcomeMalformed
		}
	}()

	err := handler(ctx, params)

	switch {
	case err == nil:
		return OutcomeHandled
	case errors.Is(err, ErrIgnored):
		ctxlog.Debug(ctx, "notification needs no action", "method", method, "detail", err.Error())
		return OutcomeIgnored
	default:
		ctxlog.Debug(ctx, "dropping notification", "method", method, "error", err, "params", string(params))
		return OutcomeMalformed
	}
}

func (d *Dispatcher) handleProgress(_ context.Context, params json.RawMessage) error {
	p, err := decode[ProgressParams](d.validate, params)
	if err != nil {
		return err
	}

	id := *p.ID

	switch *p.Type {
	case ProgressStart:
		if !d.progress.Start(id, *p.Message) {
			return fmt.Errorf("%w: progress %q already active", ErrIgnored, id)
		}
	case ProgressStop:
		if !d.progress.Stop(id) {
			return fmt.Errorf("%w: progress %q not active", ErrIgnored, id)
		}
	default:
		return fmt.Errorf("%w: progress type %q", ErrIgnored, *p.Type)
	}

	return nil
}

func (d *Dispatcher) showHandler(severity Severity) Handler {
	return func(_ context.Context, params json.RawMessage) error {
		p, err := decode[ShowParams](d.validate, params)
		if err != nil {
			return err
		}

		d.sink.Show(severity, *p.Message)

		return nil
	}
}

func (d *Dispatcher) handleShowMessage(ctx context.Context, params json.RawMessage) error {
	p, err := decode[LSPMessageParams](d.validate, params)
	if err != nil {
		return err
	}

	switch p.Type {
	case MessageTypeError:
		d.sink.Show(SeverityError, *p.Message)
	case MessageTypeWarning:
		d.sink.Show(SeverityWarn, *p.Message)
	case MessageTypeInfo:
		d.sink.Show(SeverityInfo, *p.Message)
	default:
		ctxlog.Logger(ctx).Log(ctx, lspLogLevel(p.Type), *p.Message, "source", "server")
	}

	return nil
}

func (d *Dispatcher) handleLogMessage(ctx context.Context, params json.RawMessage) error {
	p, err := decode[LSPMessageParams](d.validate, params)
	if err != nil {
		return err
	}

	ctxlog.Logger(ctx).Log(ctx, lspLogLevel(p.Type), *p.Message, "source", "server")

	return nil
}

func lspLogLevel(messageType int) slog.Level {
	switch messageType {
	case MessageTypeError:
		return slog.LevelError
	case MessageTypeWarning:
		return slog.LevelWarn
	case MessageTypeInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// decode strictly decodes params into T and validates it.
// Missing params, non-object params, wrong field types and failed
// validation all yield an error wrapping ErrMalformed. Keys must match the
// json tags of T exactly; a key differing only in case counts as missing.
func decode[T any](v *validator.Validate, params json.RawMessage) (T, error) {
	var out T

	if len(params) == 0 {
		return out, fmt.Errorf("%w: no params", ErrMalformed)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(params, &fields); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	known := jsonKeys[T]()
	for key := range fields {
		if !slices.Contains(known, key) {
			delete(fields, key)
		}
	}

	exact, err := json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := json.Unmarshal(exact, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := v.Struct(out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return out, nil
}

// jsonKeys returns the json tag names of the fields of struct type T.
func jsonKeys[T any]() []string {
	t := reflect.TypeFor[T]()
	keys := make([]string, 0, t.NumField())

	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys = append(keys, name)
		}
	}

	return keys
}
