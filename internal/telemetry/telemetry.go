// Package telemetry emits OpenTelemetry spans for scenarios and the driver
// commands they dispatch.
//
// When disabled, a noop provider is used and every call is free. When
// enabled, spans are exported to a writer (stderr by default) in the
// stdouttrace JSON format.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/roach88/lnharness/internal/harness"
	"github.com/roach88/lnharness/internal/shell"
)

const tracerName = "lnharness"

// Options configures Setup.
type Options struct {
	// Enabled turns span export on.
	Enabled bool

	// Writer receives exported spans. Nil means os.Stderr.
	Writer io.Writer

	// Exporter overrides the stdout exporter. Spans are exported
	// synchronously when set.
	Exporter sdktrace.SpanExporter
}

// Tracer starts scenario and command spans.
type Tracer struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Setup creates a Tracer. Shutdown must be called to flush spans.
func Setup(opts Options) (*Tracer, error) {
	if !opts.Enabled {
		return &Tracer{
			tracer:   noop.NewTracerProvider().Tracer(tracerName),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	var spOpt sdktrace.TracerProviderOption
	if opts.Exporter != nil {
		spOpt = sdktrace.WithSyncer(opts.Exporter)
	} else {
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		spOpt = sdktrace.WithBatcher(exporter)
	}

	tp := sdktrace.NewTracerProvider(
		spOpt,
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	return &Tracer{tracer: tp.Tracer(tracerName), shutdown: tp.Shutdown}, nil
}

// Shutdown flushes pending spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

// StartScenario opens a span covering one lifecycle. The returned function
// ends it with the outcome's status.
func (t *Tracer) StartScenario(ctx context.Context, group, scenario string) (context.Context, func(*harness.Outcome)) {
	ctx, span := t.tracer.Start(ctx, "scenario "+group+"/"+scenario,
		trace.WithAttributes(
			attribute.String("lnharness.group", group),
			attribute.String("lnharness.scenario", scenario),
		),
	)
	return ctx, func(o *harness.Outcome) {
		span.SetAttributes(
			attribute.String("lnharness.status", string(o.Status)),
			attribute.Int("lnharness.commands", len(o.Trace)),
			attribute.Int("lnharness.teardown_errors", len(o.TeardownErrors)),
		)
		if o.Err != nil {
			span.RecordError(o.Err)
			span.SetStatus(codes.Error, o.Err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// Before implements shell.Hook by starting a command span.
func (t *Tracer) Before(ctx context.Context, tokens []string) context.Context {
	name := "command"
	if len(tokens) > 0 {
		name = "command " + tokens[0]
	}
	ctx, _ = t.tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("lnharness.command", shell.Command(tokens))),
	)
	return ctx
}

// After implements shell.Hook by ending the command span.
func (t *Tracer) After(ctx context.Context, _ []string, elapsed time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int64("lnharness.elapsed_ms", elapsed.Milliseconds()))
	if code, ok := shell.ExitCode(err); ok {
		span.SetAttributes(attribute.Int("lnharness.exit_code", code))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
