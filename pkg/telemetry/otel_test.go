package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

// Without an installed provider the span helpers must degrade to
// no-ops; the driver calls them unconditionally on worker failures.
func TestSpanHelpersNoopWithoutProvider(t *testing.T) {
	ctx, span := StartSpanFromContext(context.Background(), "process.run")
	assert.NotNil(t, span)

	RecordError(ctx, errors.New("worker failed"))
	AddSpanEvent(ctx, "boundary.failed", attribute.Int64("start", 42))
	span.End()
}

func TestDefaultOTLPConfig(t *testing.T) {
	cfg := DefaultOTLPConfig("pullwatch")
	assert.Equal(t, "pullwatch", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.InsecureTLS)
	assert.InDelta(t, 1.0, cfg.SamplingRatio, 1e-9)
}
