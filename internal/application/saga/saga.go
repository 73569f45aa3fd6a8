// Package saga runs multi-step operations across independent writes, undoing
// completed steps with explicit compensations when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Step is one (action, compensation) pair. Compensate may be nil for steps
// that leave nothing to undo.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// CompensationFailure records a compensation that returned an error
type CompensationFailure struct {
	Step string
	Err  error
}

// Error describes a failed saga run
type Error struct {
	Saga                 string
	Step                 string
	Cause                error
	Compensated          []string
	CompensationFailures []CompensationFailure
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "saga %s: step %s failed: %v", e.Saga, e.Step, e.Cause)
	for _, f := range e.CompensationFailures {
		fmt.Fprintf(&b, "; compensation %s failed: %v", f.Step, f.Err)
	}
	return b.String()
}

// Unwrap returns the cause of the failed step
func (e *Error) Unwrap() error {
	return e.Cause
}

// CompensationFailed reports whether at least one compensation failed
func (e *Error) CompensationFailed() bool {
	return len(e.CompensationFailures) > 0
}

// CompensationErr joins all compensation errors, or returns nil
func (e *Error) CompensationErr() error {
	if len(e.CompensationFailures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(e.CompensationFailures))
	for _, f := range e.CompensationFailures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Step, f.Err))
	}
	return errors.Join(errs...)
}

// AsError extracts a saga Error from err's chain
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Runner executes saga steps in order
type Runner struct {
	name   string
	logger *zap.Logger
	tracer trace.Tracer
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the runner's logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracer sets the tracer used for step spans
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// NewRunner creates a runner for the named saga
func NewRunner(name string, opts ...Option) *Runner {
	r := &Runner{
		name:   name,
		logger: zap.NewNop(),
		tracer: otel.Tracer("github.com/atelier-erp/backend/saga"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("saga", name))
	return r
}

// Run executes steps sequentially. When a step fails, the compensations of
// all previously completed steps run in reverse order and a *Error is
// returned. Compensations run even if ctx has been cancelled.
func (r *Runner) Run(ctx context.Context, steps ...Step) error {
	ctx, span := r.tracer.Start(ctx, "saga."+r.name)
	defer span.End()

	completed := make([]Step, 0, len(steps))
	for _, step := range steps {
		if err := r.runAction(ctx, step); err != nil {
			sagaErr := &Error{Saga: r.name, Step: step.Name, Cause: err}
			r.logger.Warn("Saga step failed, compensating",
				zap.String("step", step.Name),
				zap.Int("completed_steps", len(completed)),
				zap.Error(err),
			)
			r.compensate(context.WithoutCancel(ctx), completed, sagaErr)

			span.RecordError(err)
			span.SetStatus(codes.Error, sagaErr.Error())
			span.SetAttributes(
				attribute.String("saga.failed_step", step.Name),
				attribute.Bool("saga.compensation_failed", sagaErr.CompensationFailed()),
			)
			return sagaErr
		}
		completed = append(completed, step)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *Runner) runAction(ctx context.Context, step Step) (err error) {
	ctx, span := r.tracer.Start(ctx, "saga."+r.name+"."+step.Name)
	defer span.End()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in step %s: %v", step.Name, p)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		r.logger.Debug("Saga step finished",
			zap.String("step", step.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Bool("ok", err == nil),
		)
	}()

	if step.Action == nil {
		return nil
	}
	return step.Action(ctx)
}

func (r *Runner) compensate(ctx context.Context, completed []Step, sagaErr *Error) {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := r.runCompensation(ctx, step); err != nil {
			r.logger.Error("Saga compensation failed",
				zap.String("step", step.Name),
				zap.String("failed_step", sagaErr.Step),
				zap.Error(err),
			)
			sagaErr.CompensationFailures = append(sagaErr.CompensationFailures, CompensationFailure{Step: step.Name, Err: err})
			continue
		}
		sagaErr.Compensated = append(sagaErr.Compensated, step.Name)
	}
}

func (r *Runner) runCompensation(ctx context.Context, step Step) (err error) {
	ctx, span := r.tracer.Start(ctx, "saga."+r.name+"."+step.Name+".compensate")
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic compensating %s: %v", step.Name, p)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return step.Compensate(ctx)
}
