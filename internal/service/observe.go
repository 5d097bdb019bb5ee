package service

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/codes"

	apperrors "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/errors"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/tracing"
)

const tracerName = "github.com/Capstone-POKI/Pitchcoach-BACK/internal/service"

// AuthOperations counts authentication operations by outcome. The result
// label is "success", a failure code such as INVALID_CREDENTIALS, or "error"
// for unexpected failures.
var AuthOperations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_operations_total",
		Help: "Total number of authentication operations by operation and result",
	},
	[]string{"operation", "result"},
)

// observe starts a span for a service operation. The returned function
// records the outcome on the span and in AuthOperations:
//
//	ctx, end := observe(ctx, "login")
//	defer func() { end(err) }()
func observe(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "auth."+operation)

	return ctx, func(err error) {
		result := resultLabel(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.End()
		AuthOperations.WithLabelValues(operation, result).Inc()
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return "error"
}
