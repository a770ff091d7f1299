package sentry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// Initialize sets up Sentry if SENTRY_DSN is provided
func Initialize(version string) error {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		// Sentry not configured, skip initialization
		return nil
	}

	environment := os.Getenv("SENTRY_ENVIRONMENT")
	if environment == "" {
		environment = "production"
	}

	sampleRate := 1.0
	if rate := os.Getenv("SENTRY_TRACES_SAMPLE_RATE"); rate != "" {
		fmt.Sscanf(rate, "%f", &sampleRate)
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          version,
		TracesSampleRate: sampleRate,
		Debug:            os.Getenv("SENTRY_DEBUG") == "true",
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Extra == nil {
				event.Extra = map[string]interface{}{}
			}
			event.Extra["replicate_base_url"] = os.Getenv("STORYBOARD_REPLICATE_URL")
			for k, v := range event.Extra {
				if s, ok := v.(string); ok {
					event.Extra[k] = RedactToken(s)
				}
			}
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	return nil
}

// Enabled reports whether a client is configured
func Enabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// Flush waits for all events to be sent
func Flush(timeout time.Duration) {
	if Enabled() {
		sentry.Flush(timeout)
	}
}

// StartSpan starts a new span for tracing. The span is nil when Sentry is off;
// use FinishSpan to close it.
func StartSpan(ctx context.Context, operation string, opts ...sentry.SpanOption) (*sentry.Span, context.Context) {
	if !Enabled() {
		return nil, ctx
	}
	span := sentry.StartSpan(ctx, operation, opts...)
	return span, span.Context()
}

// FinishSpan sets the span status from err and finishes it
func FinishSpan(span *sentry.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
	} else {
		span.Status = sentry.SpanStatusOK
	}
	span.Finish()
}

// CaptureError captures an error with additional context
func CaptureError(err error, tags map[string]string, extras map[string]interface{}) {
	if !Enabled() || err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// AddBreadcrumb adds a breadcrumb for debugging
func AddBreadcrumb(category, message string, data map[string]interface{}) {
	if Enabled() {
		sentry.AddBreadcrumb(&sentry.Breadcrumb{
			Category:  category,
			Message:   message,
			Level:     sentry.LevelInfo,
			Data:      data,
			Timestamp: time.Now(),
		})
	}
}

// WithTransaction runs a function within a transaction
func WithTransaction(ctx context.Context, name string, fn func(context.Context) error) error {
	if !Enabled() {
		return fn(ctx)
	}

	span := sentry.StartTransaction(ctx, name)
	err := fn(span.Context())
	FinishSpan(span, err)
	if err != nil {
		sentry.CaptureException(err)
	}
	return err
}

// RedactToken masks provider API tokens (r8_..., sk-...) inside s
func RedactToken(s string) string {
	for _, prefix := range []string{"r8_", "sk-"} {
		for {
			i := strings.Index(s, prefix)
			if i < 0 {
				break
			}
			end := i + len(prefix)
			for end < len(s) && isTokenChar(s[end]) {
				end++
			}
			s = s[:i] + "[REDACTED]" + s[end:]
		}
	}
	return s
}

func isTokenChar(c byte) bool {
	return c == '_' || c == '-' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
