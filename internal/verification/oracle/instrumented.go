package oracle

import (
	"context"
	"errors"
	"image"
	"time"

	apperrors "challenge-verifier/internal/common/errors"
	"challenge-verifier/internal/common/metrics"
	"challenge-verifier/internal/common/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type instrumentedOracle struct {
	next    Oracle
	backend string
	obs     *observability.Observability
	tracer  trace.Tracer
}

// Instrument records duration, in-flight count and a span for each Score call.
// obs may be nil.
func Instrument(next Oracle, backend string, obs *observability.Observability, tracer trace.Tracer) Oracle {
	return &instrumentedOracle{next: next, backend: backend, obs: obs, tracer: tracer}
}

func (o *instrumentedOracle) Score(ctx context.Context, img image.Image, prompts []string) (Scores, error) {
	ctx, span := o.tracer.Start(ctx, "oracle.Score", trace.WithAttributes(
		attribute.String("oracle.backend", o.backend),
		attribute.Int("oracle.prompts", len(prompts)),
	))
	defer span.End()

	active := metrics.OracleCallsActive.WithLabelValues(o.backend)
	active.Inc()
	defer active.Dec()

	start := time.Now()
	scores, err := o.next.Score(ctx, img, prompts)
	elapsed := time.Since(start)

	status := callStatus(err)
	metrics.OracleCallDuration.WithLabelValues(o.backend, status).Observe(elapsed.Seconds())
	o.obs.RecordOracleDuration(ctx, elapsed, o.backend, status)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return nil, err
	}
	return scores, nil
}

func (o *instrumentedOracle) Ready(ctx context.Context) error {
	return o.next.Ready(ctx)
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.HasCode(err, apperrors.ErrCodeOracleTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
