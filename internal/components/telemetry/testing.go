package telemetry

import (
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	testRecorderOnce sync.Once
	testRecorder     *tracetest.SpanRecorder
)

// SetupForTesting enables debug logging and records every span ended in the
// test binary. Tracers obtained before the first call only see the first
// global provider, so the recorder is shared by all tests in the binary.
func SetupForTesting(t testing.TB) *tracetest.SpanRecorder {
	t.Helper()
	testRecorderOnce.Do(func() {
		InitSlog(true)
		testRecorder = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(testRecorder),
		))
	})
	return testRecorder
}
