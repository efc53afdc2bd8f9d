// Package telemetry provides opt-in Sentry error reporting.
package telemetry

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/errors"
)

var enabled atomic.Bool

// Init initializes the Sentry SDK when telemetry is explicitly enabled in the
// configuration. It also registers the enhanced-error reporting hook so that
// errors built with category and component metadata reach Sentry. Telemetry is
// opt-in; when disabled this is a no-op.
func Init(settings *conf.Settings) error {
	if !settings.Sentry.Enabled {
		slog.Info("Sentry telemetry is disabled (opt-in required)")
		return nil
	}
	if settings.Sentry.DSN == "" {
		return fmt.Errorf("sentry enabled but no DSN configured")
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        settings.Sentry.DSN,
		SampleRate: 1.0,
		// Privacy: never attach stack traces or hostnames; request audio is
		// never put into error context by the pipeline.
		AttachStacktrace: false,
		ServerName:       "",
		Environment:      "production",
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	enabled.Store(true)
	errors.SetTelemetryReporter(reportEnhancedError)
	slog.Info("Sentry telemetry initialized")
	return nil
}

// reportEnhancedError forwards a built enhanced error to Sentry with its
// component and category as tags.
func reportEnhancedError(ee *errors.EnhancedError) {
	if !enabled.Load() {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", ee.GetCategory())
		if ctx := ee.GetContext(); ctx != nil {
			scope.SetContext("error", ctx)
		}
		scope.SetFingerprint([]string{ee.GetCategory(), ee.Component})
		sentry.CaptureException(ee.Err)
	})
}

// CaptureMessage sends a message event tagged with the originating component.
func CaptureMessage(message string, level sentry.Level, component string) {
	if !enabled.Load() {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(level)
		sentry.CaptureMessage(message)
	})
}

// Flush waits for buffered events to be sent. Call during shutdown.
func Flush(timeout time.Duration) {
	if enabled.Load() {
		sentry.Flush(timeout)
	}
}
