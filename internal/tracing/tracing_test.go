package tracing

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dkoosis/testplan/internal/config"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/engine/funcengine"
	"github.com/dkoosis/testplan/pkg/launcher"
	"github.com/dkoosis/testplan/pkg/plan"
)

func run(t *testing.T, p *Provider) *Listener {
	t.Helper()
	e := funcengine.New("func", funcengine.Suite{Name: "math", Cases: []funcengine.Case{
		{Name: "adds", Func: func(context.Context, *funcengine.T) error { return nil }},
		{Name: "divides", Func: func(context.Context, *funcengine.T) error { return errors.New("division by zero") }},
		{Name: "later", Skip: "not ready"},
	}})
	reg, err := engine.NewRegistry(e)
	require.NoError(t, err)

	l := NewListener(context.Background(), p.Tracer())
	lc := launcher.New(reg)
	lc.RegisterPlanListeners(l)
	lc.RegisterExecutionListeners(l)
	require.NoError(t, lc.Execute(context.Background(), nil))
	return l
}

func byName(spans []sdktrace.ReadOnlySpan) map[string]sdktrace.ReadOnlySpan {
	m := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		m[s.Name()] = s
	}
	return m
}

func TestListener_SpanTree(t *testing.T) {
	t.Parallel()

	rec := tracetest.NewSpanRecorder()
	p := NewProviderWithProcessor("testplan-test", rec)
	run(t, p)
	require.NoError(t, p.Shutdown(context.Background()))

	spans := byName(rec.Ended())
	require.Len(t, spans, 6, "plan, engine, suite and three tests")

	planSpan, eng, suite := spans["plan"], spans["engine func"], spans["math"]
	assert.Equal(t, planSpan.SpanContext().SpanID(), eng.Parent().SpanID())
	assert.Equal(t, eng.SpanContext().SpanID(), suite.Parent().SpanID())
	for _, name := range []string{"adds", "divides", "later"} {
		assert.Equal(t, suite.SpanContext().SpanID(), spans[name].Parent().SpanID(), name)
		assert.Equal(t, planSpan.SpanContext().TraceID(), spans[name].SpanContext().TraceID(), name)
	}

	assert.Equal(t, codes.Ok, spans["adds"].Status().Code)
	assert.Equal(t, codes.Error, spans["divides"].Status().Code)
	assert.Equal(t, "division by zero", spans["divides"].Status().Description)
	assert.Contains(t, spans["later"].Attributes(), AttrSkipReason.String("not ready"))
}

func TestListener_CloseEndsOpenSpans(t *testing.T) {
	t.Parallel()

	rec := tracetest.NewSpanRecorder()
	p := NewProviderWithProcessor("testplan-test", rec)
	l := NewListener(context.Background(), p.Tracer())

	require.NoError(t, l.PlanExecutionStarted(plan.NewBuilder().Build()))
	l.Close()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
}

func TestNewProvider_Exporters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	none, err := NewProvider(ctx, config.TracingConfig{Exporter: "none"}, nil)
	require.NoError(t, err)
	assert.False(t, none.Enabled())
	assert.NoError(t, none.Shutdown(ctx))

	var buf bytes.Buffer
	stdout, err := NewProvider(ctx, config.TracingConfig{Exporter: "stdout"}, &buf)
	require.NoError(t, err)
	assert.True(t, stdout.Enabled())
	_, s := stdout.Tracer().Start(ctx, "hello")
	s.End()
	require.NoError(t, stdout.Shutdown(ctx))
	assert.Contains(t, buf.String(), `"Name": "hello"`)

	path := filepath.Join(t.TempDir(), "traces", "run.jsonl")
	file, err := NewProvider(ctx, config.TracingConfig{Exporter: "file", FilePath: path}, nil)
	require.NoError(t, err)
	assert.FileExists(t, path)
	require.NoError(t, file.Shutdown(ctx))

	_, err = NewProvider(ctx, config.TracingConfig{Exporter: "zipkin"}, nil)
	assert.Error(t, err)
}
