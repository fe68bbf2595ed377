package client

import (
	"log/slog"
	"net/http"
	"time"
)

// maxPathLogLen is the maximum length for logged request paths before truncation.
const maxPathLogLen = 200

// slowRequestThreshold is the duration above which requests are logged at WARN level.
// Chat inference routinely takes seconds, so this only flags the unusual.
const slowRequestThreshold = 10 * time.Second

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// LoggingTransport returns a RoundTripper that logs every request with timing.
// Slow requests are logged at WARN, failures at ERROR, everything else at DEBUG.
func LoggingTransport(logger *slog.Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()

		resp, err := next.RoundTrip(req)

		duration := time.Since(start)

		attrs := []any{
			"method", req.Method,
			"path", truncate(req.URL.Path, maxPathLogLen),
			"duration_ms", duration.Milliseconds(),
		}

		switch {
		case err != nil:
			attrs = append(attrs, "error", err.Error())
			logger.Error("request failed", attrs...)
		case resp.StatusCode >= 400:
			attrs = append(attrs, "status", resp.StatusCode)
			logger.Warn("request rejected", attrs...)
		case duration > slowRequestThreshold:
			attrs = append(attrs, "status", resp.StatusCode)
			logger.Warn("slow request", attrs...)
		default:
			attrs = append(attrs, "status", resp.StatusCode)
			logger.Debug("request completed", attrs...)
		}

		return resp, err
	})
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
