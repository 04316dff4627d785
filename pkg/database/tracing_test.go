package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return recorder
}

func captureSlowQueries(t *testing.T, threshold time.Duration) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	SetSlowQueryLogging(threshold, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })
	return &buf
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[string]string {
	attrs := make(map[string]string)
	for _, a := range span.Attributes() {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	return attrs
}

// ============================================================================
// Spans
// ============================================================================

func TestTraceQuery_RecordsClientSpan(t *testing.T) {
	recorder := recordSpans(t)

	_, end := TraceQuery(context.Background(), "GetProduct", "SELECT id FROM products WHERE id = $1")
	end(nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "db.GetProduct", span.Name())
	assert.Equal(t, trace.SpanKindClient, span.SpanKind())
	assert.Equal(t, codes.Unset, span.Status().Code)

	attrs := spanAttrs(span)
	assert.Equal(t, systemPostgres, attrs["db.system"])
	assert.Equal(t, "GetProduct", attrs["db.operation"])
	assert.Equal(t, "SELECT id FROM products WHERE id = $1", attrs["db.statement"])
}

func TestTraceQuery_ErrorMarksSpan(t *testing.T) {
	recorder := recordSpans(t)

	_, end := TraceQuery(context.Background(), "UpdateProduct", "UPDATE products SET name = $2 WHERE id = $1")
	end(errors.New("deadlock detected"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "deadlock detected", spans[0].Status().Description)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestTraceQuery_ChildOfCallerSpan(t *testing.T) {
	recorder := recordSpans(t)

	ctx, parent := otel.Tracer("test").Start(context.Background(), "service.Create")
	ctx, end := TraceQuery(ctx, "InsertProduct", "INSERT INTO products ...")
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	end(nil)
	parent.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), spans[0].SpanContext().TraceID())
}

func TestTraceCommand_MongoSystem(t *testing.T) {
	recorder := recordSpans(t)

	_, end := TraceCommand(context.Background(), "FindProduct", "products.find")
	end(nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := spanAttrs(spans[0])
	assert.Equal(t, systemMongo, attrs["db.system"])
	assert.Equal(t, "products.find", attrs["db.statement"])
}

func TestTraceQuery_ObservesDuration(t *testing.T) {
	recordSpans(t)

	before := testutil.CollectAndCount(queryDuration)
	_, end := TraceCommand(context.Background(), "CountProductsForDuration", "products.count")
	end(errors.New("boom"))

	assert.Equal(t, before+1, testutil.CollectAndCount(queryDuration))
}

// ============================================================================
// Slow query logging
// ============================================================================

func TestSlowQueryLogging_LogsSlowOperation(t *testing.T) {
	recordSpans(t)
	buf := captureSlowQueries(t, time.Millisecond)

	_, end := TraceQuery(context.Background(), "ListProducts", "SELECT * FROM products")
	time.Sleep(5 * time.Millisecond)
	end(nil)

	out := buf.String()
	assert.Contains(t, out, "slow query detected")
	assert.Contains(t, out, `"operation":"ListProducts"`)
	assert.Contains(t, out, `"db_system":"postgresql"`)
	assert.NotContains(t, out, `"error"`)
}

func TestSlowQueryLogging_IncludesError(t *testing.T) {
	recordSpans(t)
	buf := captureSlowQueries(t, time.Millisecond)

	_, end := TraceCommand(context.Background(), "DeleteProduct", "products.delete")
	time.Sleep(5 * time.Millisecond)
	end(errors.New("write concern timeout"))

	assert.Contains(t, buf.String(), `"error":"write concern timeout"`)
}

func TestSlowQueryLogging_FastOperationNotLogged(t *testing.T) {
	recordSpans(t)
	buf := captureSlowQueries(t, time.Hour)

	_, end := TraceQuery(context.Background(), "GetProduct", "SELECT 1")
	end(nil)

	assert.Empty(t, buf.String())
}

func TestSlowQueryLogging_Disabled(t *testing.T) {
	recordSpans(t)
	buf := captureSlowQueries(t, time.Millisecond)
	SetSlowQueryLogging(0, slog.Default())

	_, end := TraceQuery(context.Background(), "GetProduct", "SELECT 1")
	time.Sleep(3 * time.Millisecond)
	end(nil)

	assert.Empty(t, buf.String())
	assert.Nil(t, slowQueries.Load())
}

func TestSetSlowQueryLogging_Concurrent(t *testing.T) {
	recordSpans(t)
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetSlowQueryLogging(time.Duration(i+1)*time.Millisecond, logger)
		}()
		go func() {
			defer wg.Done()
			_, end := TraceQuery(context.Background(), "GetProduct", "SELECT 1")
			end(nil)
		}()
	}
	wg.Wait()
}
